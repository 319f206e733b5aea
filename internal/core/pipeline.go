package core

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"chatguard/internal/captcha"
	"chatguard/internal/chat"
	"chatguard/internal/flood"
	"chatguard/internal/i18n"
	"chatguard/pkg/text"
)

// Rule names, also used as metric labels
const (
	RuleCaptchaPending = "captcha_pending"
	RuleFlood          = "flood"
	RuleLinks          = "links"
	RuleStopwords      = "stopwords"
)

// Action names reported to Metrics
const (
	ActionDelete   = "delete"
	ActionRestrict = "restrict"
	ActionLift     = "lift_restriction"
	ActionRemove   = "remove_member"
	ActionNotify   = "notify"
)

// rule pairs a predicate with the action taken when it matches.
// A matching rule always ends evaluation of the event.
type rule struct {
	name  string
	match func(ctx context.Context, ev *chat.Event) bool
	act   func(ctx context.Context, ev *chat.Event)
	// skipAdminCommands lets admins run commands whose arguments would trip the rule
	skipAdminCommands bool
}

// Pipeline evaluates incoming chat events against the moderation rules
type Pipeline struct {
	config    *ModerationConfig
	client    chat.Client
	store     SettingsStore
	floodgate *flood.Floodgate
	captchas  *captcha.Registry
	localizer *i18n.Localizer
	metrics   Metrics
	logger    *zap.Logger

	rules []rule
	now   func() time.Time
}

func NewPipeline(
	config *ModerationConfig,
	client chat.Client,
	store SettingsStore,
	floodgate *flood.Floodgate,
	captchas *captcha.Registry,
	localizer *i18n.Localizer,
	metrics Metrics,
	logger *zap.Logger,
) *Pipeline {
	if metrics == nil {
		metrics = nopMetrics{}
	}

	p := &Pipeline{
		config:    config,
		client:    client,
		store:     store,
		floodgate: floodgate,
		captchas:  captchas,
		localizer: localizer,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}

	p.rules = []rule{
		{name: RuleCaptchaPending, match: p.matchCaptchaPending, act: p.deletePendingMessage},
		{name: RuleFlood, match: p.matchFlood, act: p.punishFlood},
		{name: RuleLinks, match: p.matchLink, act: p.deleteFiltered(RuleLinks), skipAdminCommands: true},
		{name: RuleStopwords, match: p.matchStopword, act: p.deleteFiltered(RuleStopwords), skipAdminCommands: true},
	}

	return p
}

// HandleEvent runs one event through the pipeline. It reports whether the event
// was consumed; unconsumed text events may be passed on to command handling.
func (p *Pipeline) HandleEvent(ctx context.Context, ev *chat.Event) bool {
	start := time.Now()
	kind := ev.Kind.String()
	p.metrics.IncEvent(kind)
	defer func() {
		p.metrics.ObserveProcessing(kind, time.Since(start))
	}()

	switch ev.Kind {
	case chat.EventTextMessage:
		return p.handleText(ctx, ev)
	case chat.EventMembershipChange:
		return p.handleMembershipChange(ctx, ev)
	case chat.EventVerificationCallback:
		return p.handleVerificationCallback(ctx, ev)
	case chat.EventServiceMessage:
		return p.handleServiceMessage(ctx, ev)
	default:
		return false
	}
}

func (p *Pipeline) handleText(ctx context.Context, ev *chat.Event) bool {
	if ev.ChatID == 0 || ev.UserID == 0 || !ev.IsGroup {
		return false
	}

	adminCommand := sync.OnceValue(func() bool {
		return strings.HasPrefix(strings.TrimSpace(ev.Text), "/") &&
			isSenderAdmin(ctx, p.client, p.logger, ev)
	})

	for _, r := range p.rules {
		if !r.match(ctx, ev) {
			continue
		}
		if r.skipAdminCommands && adminCommand() {
			continue
		}

		p.metrics.IncRuleMatch(r.name)
		p.logger.Debug("Rule matched",
			zap.String("rule", r.name),
			zap.Int64("chat_id", ev.ChatID),
			zap.Int64("user_id", ev.UserID),
			zap.Int("message_id", ev.MessageID))
		r.act(ctx, ev)
		return true
	}

	return false
}

func (p *Pipeline) matchCaptchaPending(_ context.Context, ev *chat.Event) bool {
	return p.captchas.IsPending(ev.ChatID, ev.UserID)
}

func (p *Pipeline) deletePendingMessage(ctx context.Context, ev *chat.Event) {
	p.deleteMessage(ctx, ev.ChatID, ev.MessageID)
}

func (p *Pipeline) matchFlood(_ context.Context, ev *chat.Event) bool {
	flooding := p.floodgate.RecordMessage(ev.ChatID, ev.UserID)
	p.metrics.SetFloodWindows(p.floodgate.GetStats().ActiveWindows)
	return flooding
}

func (p *Pipeline) punishFlood(ctx context.Context, ev *chat.Event) {
	p.floodgate.Clear(ev.ChatID, ev.UserID)
	p.metrics.SetFloodWindows(p.floodgate.GetStats().ActiveWindows)

	if !p.isBotAdmin(ctx, ev.ChatID) {
		p.logger.Debug("Flood detected but bot is not admin", zap.Int64("chat_id", ev.ChatID))
		return
	}

	p.deleteMessage(ctx, ev.ChatID, ev.MessageID)

	until := p.now().Add(p.config.FloodMuteDuration)
	err := p.client.Restrict(ctx, ev.ChatID, ev.UserID, until)
	p.metrics.IncAction(ActionRestrict, err)
	if err != nil {
		p.logger.Warn("Failed to mute flooding user",
			zap.Int64("chat_id", ev.ChatID),
			zap.Int64("user_id", ev.UserID),
			zap.Error(err))
		p.metrics.IncError("pipeline", "restrict")
		return
	}

	p.logger.Info("User muted for flooding",
		zap.Int64("chat_id", ev.ChatID),
		zap.Int64("user_id", ev.UserID),
		zap.Time("until", until))

	muteMinutes := int(p.config.FloodMuteDuration / time.Minute)
	notice := p.localizer.TN("flood.muted", muteMinutes,
		p.config.FloodMaxMessages,
		int(p.config.FloodWindow/time.Second),
		muteMinutes)
	p.send(ctx, ev.ChatID, notice, nil)
}

func (p *Pipeline) matchLink(ctx context.Context, ev *chat.Event) bool {
	if !text.HasLink(ev.Text) {
		return false
	}

	settings, err := p.store.GetChatSettings(ctx, ev.ChatID)
	if err != nil {
		p.logger.Warn("Failed to load chat settings, skipping links filter",
			zap.Int64("chat_id", ev.ChatID), zap.Error(err))
		p.metrics.IncError("store", "get_settings")
		return false
	}
	return settings.LinksFilterEnabled
}

func (p *Pipeline) matchStopword(ctx context.Context, ev *chat.Event) bool {
	stopwords, err := p.store.GetStopwords(ctx)
	if err != nil {
		p.logger.Warn("Failed to load stopwords, skipping stopword filter", zap.Error(err))
		p.metrics.IncError("store", "get_stopwords")
		return false
	}
	return text.HasStopword(ev.Text, stopwords)
}

// deleteFiltered returns the action shared by the content filters
func (p *Pipeline) deleteFiltered(ruleName string) func(context.Context, *chat.Event) {
	return func(ctx context.Context, ev *chat.Event) {
		if !p.isBotAdmin(ctx, ev.ChatID) {
			return
		}

		if p.deleteMessage(ctx, ev.ChatID, ev.MessageID) {
			p.logger.Info("Deleted filtered message",
				zap.String("rule", ruleName),
				zap.Int64("chat_id", ev.ChatID),
				zap.Int64("user_id", ev.UserID))
		}
	}
}

func (p *Pipeline) handleServiceMessage(ctx context.Context, ev *chat.Event) bool {
	if !p.config.DeleteServiceMessages || ev.ChatID == 0 || ev.MessageID == 0 {
		return false
	}
	p.deleteMessage(ctx, ev.ChatID, ev.MessageID)
	return true
}

// isBotAdmin reports whether the bot may moderate the chat. Lookup failures count as no.
func (p *Pipeline) isBotAdmin(ctx context.Context, chatID int64) bool {
	status, err := p.client.GetMembershipStatus(ctx, chatID, p.client.BotID())
	if err != nil {
		p.logger.Warn("Failed to get bot membership status",
			zap.Int64("chat_id", chatID), zap.Error(err))
		p.metrics.IncError("pipeline", "bot_status")
		return false
	}
	return status.IsAdmin()
}

func (p *Pipeline) deleteMessage(ctx context.Context, chatID int64, messageID int) bool {
	if messageID == 0 {
		return false
	}

	err := p.client.DeleteMessage(ctx, chatID, messageID)
	p.metrics.IncAction(ActionDelete, err)
	if err != nil {
		p.logger.Debug("Failed to delete message",
			zap.Int64("chat_id", chatID),
			zap.Int("message_id", messageID),
			zap.Error(err))
		return false
	}
	return true
}

func (p *Pipeline) send(ctx context.Context, chatID int64, message string, opts *chat.SendOptions) (int, bool) {
	id, err := p.client.SendMessage(ctx, chatID, message, opts)
	p.metrics.IncAction(ActionNotify, err)
	if err != nil {
		p.logger.Warn("Failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
		p.metrics.IncError("pipeline", "send")
		return 0, false
	}
	return id, true
}
