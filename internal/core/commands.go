package core

import (
	"context"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"chatguard/internal/chat"
	"chatguard/internal/i18n"
	"chatguard/pkg/text"
)

const (
	listWordsLimit   = 50
	remainingLimit   = 15
	defaultMuteInput = "10m"
)

type commandFunc func(ctx context.Context, ev *chat.Event, args string)

type command struct {
	adminOnly bool
	run       commandFunc
}

// Commands handles slash commands in messages the pipeline did not consume
type Commands struct {
	client      chat.Client
	store       SettingsStore
	localizer   *i18n.Localizer
	metrics     Metrics
	logger      *zap.Logger
	botUsername string

	commands map[string]command
	now      func() time.Time
}

func NewCommands(
	client chat.Client,
	store SettingsStore,
	localizer *i18n.Localizer,
	metrics Metrics,
	logger *zap.Logger,
	botUsername string,
) *Commands {
	if metrics == nil {
		metrics = nopMetrics{}
	}

	c := &Commands{
		client:      client,
		store:       store,
		localizer:   localizer,
		metrics:     metrics,
		logger:      logger,
		botUsername: botUsername,
		now:         time.Now,
	}

	c.commands = map[string]command{
		"start":      {run: c.start},
		"help":       {run: c.help},
		"addword":    {adminOnly: true, run: c.addWord},
		"removeword": {adminOnly: true, run: c.removeWord},
		"listwords":  {adminOnly: true, run: c.listWords},
		"settings":   {adminOnly: true, run: c.settings},
		"captcha":    {adminOnly: true, run: c.toggle(settingCaptcha)},
		"links":      {adminOnly: true, run: c.toggle(settingLinks)},
		"mute":       {adminOnly: true, run: c.mute},
		"unmute":     {adminOnly: true, run: c.unmute},
		"kick":       {adminOnly: true, run: c.kick},
	}

	return c
}

// Chat switches toggled by /captcha and /links
const (
	settingCaptcha = "captcha"
	settingLinks   = "links"
)

// parseCommand splits "/name@bot args" into its name and arguments. Commands
// addressed to a different bot are rejected.
func parseCommand(message, botUsername string) (string, string, bool) {
	message = strings.TrimSpace(message)
	if !strings.HasPrefix(message, "/") {
		return "", "", false
	}

	token, args := message[1:], ""
	if i := strings.IndexFunc(token, unicode.IsSpace); i >= 0 {
		token, args = token[:i], token[i+1:]
	}

	name, target, addressed := strings.Cut(token, "@")
	if addressed && botUsername != "" && !strings.EqualFold(target, botUsername) {
		return "", "", false
	}
	if name == "" {
		return "", "", false
	}

	return strings.ToLower(name), strings.TrimSpace(args), true
}

// Handle runs the command in ev, if any, and reports whether one was recognized
func (c *Commands) Handle(ctx context.Context, ev *chat.Event) bool {
	if ev.Kind != chat.EventTextMessage || ev.ChatID == 0 {
		return false
	}

	name, args, ok := parseCommand(ev.Text, c.botUsername)
	if !ok {
		return false
	}
	cmd, ok := c.commands[name]
	if !ok {
		return false
	}

	if cmd.adminOnly {
		if !ev.IsGroup {
			c.reply(ctx, ev, c.localizer.T("command.groups_only"))
			return true
		}
		if !isSenderAdmin(ctx, c.client, c.logger, ev) {
			c.reply(ctx, ev, c.localizer.T("command.admins_only"))
			return true
		}
	}

	c.logger.Debug("Handling command",
		zap.String("command", name),
		zap.Int64("chat_id", ev.ChatID),
		zap.Int64("user_id", ev.UserID))
	cmd.run(ctx, ev, args)
	return true
}

// isSenderAdmin accepts chat administrators and messages posted on behalf of the chat itself
func isSenderAdmin(ctx context.Context, client chat.Client, logger *zap.Logger, ev *chat.Event) bool {
	if ev.SenderChatID != 0 && ev.SenderChatID == ev.ChatID {
		return true
	}
	if ev.UserID == 0 {
		return false
	}
	return isAdmin(ctx, client, logger, ev.ChatID, ev.UserID)
}

func (c *Commands) start(ctx context.Context, ev *chat.Event, _ string) {
	c.reply(ctx, ev, c.localizer.T("command.start"))
}

func (c *Commands) help(ctx context.Context, ev *chat.Event, _ string) {
	if !ev.IsGroup {
		c.reply(ctx, ev, c.localizer.T("command.help_private"))
		return
	}
	c.reply(ctx, ev, c.localizer.T("command.help_group"))
}

func (c *Commands) addWord(ctx context.Context, ev *chat.Event, args string) {
	word := text.NormalizeWord(args)
	if word == "" {
		c.reply(ctx, ev, c.localizer.T("command.addword_usage"))
		return
	}

	added, err := c.store.AddStopword(ctx, word)
	if err != nil {
		c.logger.Error("Failed to add stopword", zap.String("word", word), zap.Error(err))
		c.metrics.IncError("store", "add_stopword")
		c.reply(ctx, ev, c.localizer.T("error.store_failed"))
		return
	}
	if !added {
		c.reply(ctx, ev, c.localizer.T("command.addword_exists", word))
		return
	}

	c.logger.Info("Stopword added",
		zap.String("word", word),
		zap.Int64("by", ev.UserID),
		zap.Int64("chat_id", ev.ChatID))
	c.reply(ctx, ev, c.localizer.T("command.addword_added", word))
}

func (c *Commands) removeWord(ctx context.Context, ev *chat.Event, args string) {
	word := text.NormalizeWord(args)
	if word == "" {
		c.reply(ctx, ev, c.localizer.T("command.removeword_usage"))
		return
	}

	removed, err := c.store.RemoveStopword(ctx, word)
	if err != nil {
		c.logger.Error("Failed to remove stopword", zap.String("word", word), zap.Error(err))
		c.metrics.IncError("store", "remove_stopword")
		c.reply(ctx, ev, c.localizer.T("error.store_failed"))
		return
	}
	if !removed {
		c.reply(ctx, ev, c.localizer.T("command.removeword_missing", word))
		return
	}

	c.logger.Info("Stopword removed",
		zap.String("word", word),
		zap.Int64("by", ev.UserID),
		zap.Int64("chat_id", ev.ChatID))

	remaining, err := c.store.GetStopwords(ctx)
	if err != nil {
		c.logger.Warn("Failed to list stopwords", zap.Error(err))
	}
	listText := c.localizer.T("command.list_empty")
	if len(remaining) > 0 {
		listText = c.formatWords(remaining, remainingLimit)
	}
	c.reply(ctx, ev, c.localizer.T("command.removeword_removed", word, listText))
}

func (c *Commands) listWords(ctx context.Context, ev *chat.Event, _ string) {
	words, err := c.store.GetStopwords(ctx)
	if err != nil {
		c.logger.Error("Failed to list stopwords", zap.Error(err))
		c.metrics.IncError("store", "get_stopwords")
		c.reply(ctx, ev, c.localizer.T("error.store_failed"))
		return
	}
	if len(words) == 0 {
		c.reply(ctx, ev, c.localizer.T("command.list_empty"))
		return
	}
	c.reply(ctx, ev, c.localizer.T("command.list", c.formatWords(words, listWordsLimit)))
}

// formatWords joins the first limit words and appends the total when truncated
func (c *Commands) formatWords(words []string, limit int) string {
	if len(words) <= limit {
		return strings.Join(words, ", ")
	}
	return strings.Join(words[:limit], ", ") + c.localizer.T("command.list_more", len(words))
}

func (c *Commands) settings(ctx context.Context, ev *chat.Event, _ string) {
	settings, err := c.store.GetChatSettings(ctx, ev.ChatID)
	if err != nil {
		c.logger.Error("Failed to load chat settings", zap.Int64("chat_id", ev.ChatID), zap.Error(err))
		c.metrics.IncError("store", "get_settings")
		c.reply(ctx, ev, c.localizer.T("error.generic"))
		return
	}
	c.reply(ctx, ev, c.localizer.T("command.settings",
		c.onOff(settings.CaptchaEnabled), c.onOff(settings.LinksFilterEnabled)))
}

// toggle returns the handler for /captcha and /links
func (c *Commands) toggle(setting string) commandFunc {
	usageKey, setKey := "command.links_usage", "command.links_set"
	if setting == settingCaptcha {
		usageKey, setKey = "command.captcha_usage", "command.captcha_set"
	}

	return func(ctx context.Context, ev *chat.Event, args string) {
		var enabled bool
		switch strings.ToLower(args) {
		case "on":
			enabled = true
		case "off":
			enabled = false
		default:
			c.reply(ctx, ev, c.localizer.T(usageKey))
			return
		}

		var patch SettingsPatch
		if setting == settingCaptcha {
			patch.CaptchaEnabled = &enabled
		} else {
			patch.LinksFilterEnabled = &enabled
		}

		if _, err := c.store.UpdateChatSettings(ctx, ev.ChatID, patch); err != nil {
			c.logger.Error("Failed to update chat settings",
				zap.Int64("chat_id", ev.ChatID),
				zap.String("setting", setting),
				zap.Error(err))
			c.metrics.IncError("store", "update_settings")
			c.reply(ctx, ev, c.localizer.T("error.settings_failed"))
			return
		}

		c.logger.Info("Chat setting changed",
			zap.String("setting", setting),
			zap.Bool("enabled", enabled),
			zap.Int64("by", ev.UserID),
			zap.Int64("chat_id", ev.ChatID))
		c.reply(ctx, ev, c.localizer.T(setKey, c.onOff(enabled)))
	}
}

func (c *Commands) mute(ctx context.Context, ev *chat.Event, args string) {
	if ev.ReplyToUserID == 0 {
		c.reply(ctx, ev, c.localizer.T("command.mute_reply"))
		return
	}

	input := defaultMuteInput
	if fields := strings.Fields(args); len(fields) > 0 {
		input = fields[0]
	}
	duration, ok := ParseMuteDuration(input)
	if !ok {
		c.reply(ctx, ev, c.localizer.T("command.mute_bad_duration"))
		return
	}

	if !c.requireBotAdmin(ctx, ev) {
		return
	}

	err := c.client.Restrict(ctx, ev.ChatID, ev.ReplyToUserID, c.now().Add(duration))
	c.metrics.IncAction(ActionRestrict, err)
	if err != nil {
		c.logger.Warn("Failed to mute user",
			zap.Int64("chat_id", ev.ChatID),
			zap.Int64("user_id", ev.ReplyToUserID),
			zap.Error(err))
		c.reply(ctx, ev, c.localizer.T("command.mute_failed"))
		return
	}

	c.logger.Info("User muted by admin",
		zap.Int64("chat_id", ev.ChatID),
		zap.Int64("user_id", ev.ReplyToUserID),
		zap.Duration("duration", duration),
		zap.Int64("by", ev.UserID))
	c.reply(ctx, ev, c.localizer.T("command.muted", input))
}

func (c *Commands) unmute(ctx context.Context, ev *chat.Event, _ string) {
	if ev.ReplyToUserID == 0 {
		c.reply(ctx, ev, c.localizer.T("command.unmute_reply"))
		return
	}
	if !c.requireBotAdmin(ctx, ev) {
		return
	}

	err := c.client.LiftRestriction(ctx, ev.ChatID, ev.ReplyToUserID)
	c.metrics.IncAction(ActionLift, err)
	if err != nil {
		c.logger.Warn("Failed to unmute user",
			zap.Int64("chat_id", ev.ChatID),
			zap.Int64("user_id", ev.ReplyToUserID),
			zap.Error(err))
		c.reply(ctx, ev, c.localizer.T("command.unmute_failed"))
		return
	}

	c.logger.Info("User unmuted by admin",
		zap.Int64("chat_id", ev.ChatID),
		zap.Int64("user_id", ev.ReplyToUserID),
		zap.Int64("by", ev.UserID))
	c.reply(ctx, ev, c.localizer.T("command.unmuted"))
}

func (c *Commands) kick(ctx context.Context, ev *chat.Event, _ string) {
	if ev.ReplyToUserID == 0 {
		c.reply(ctx, ev, c.localizer.T("command.kick_reply"))
		return
	}
	if !c.requireBotAdmin(ctx, ev) {
		return
	}

	err := c.client.RemoveMember(ctx, ev.ChatID, ev.ReplyToUserID)
	c.metrics.IncAction(ActionRemove, err)
	if err != nil {
		c.logger.Warn("Failed to kick user",
			zap.Int64("chat_id", ev.ChatID),
			zap.Int64("user_id", ev.ReplyToUserID),
			zap.Error(err))
		c.reply(ctx, ev, c.localizer.T("command.kick_failed"))
		return
	}

	c.logger.Info("User kicked by admin",
		zap.Int64("chat_id", ev.ChatID),
		zap.Int64("user_id", ev.ReplyToUserID),
		zap.Int64("by", ev.UserID))
	c.reply(ctx, ev, c.localizer.T("command.kicked"))
}

func (c *Commands) requireBotAdmin(ctx context.Context, ev *chat.Event) bool {
	if isAdmin(ctx, c.client, c.logger, ev.ChatID, c.client.BotID()) {
		return true
	}
	c.reply(ctx, ev, c.localizer.T("command.bot_not_admin"))
	return false
}

func (c *Commands) onOff(enabled bool) string {
	if enabled {
		return c.localizer.T("command.on")
	}
	return c.localizer.T("command.off")
}

func (c *Commands) reply(ctx context.Context, ev *chat.Event, message string) {
	if _, err := c.client.SendMessage(ctx, ev.ChatID, message, nil); err != nil {
		c.logger.Warn("Failed to send command reply", zap.Int64("chat_id", ev.ChatID), zap.Error(err))
	}
}

// isAdmin reports whether userID holds creator or administrator status. Lookup failures count as no.
func isAdmin(ctx context.Context, client chat.Client, logger *zap.Logger, chatID, userID int64) bool {
	status, err := client.GetMembershipStatus(ctx, chatID, userID)
	if err != nil {
		logger.Debug("Failed to get membership status",
			zap.Int64("chat_id", chatID),
			zap.Int64("user_id", userID),
			zap.Error(err))
		return false
	}
	return status.IsAdmin()
}
