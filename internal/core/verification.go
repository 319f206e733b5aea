package core

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"go.uber.org/zap"

	"chatguard/internal/chat"
)

// CaptchaCallbackPrefix starts the callback data of every verification button
const CaptchaCallbackPrefix = "captcha_ok"

var captchaCallbackPattern = regexp.MustCompile(`^` + CaptchaCallbackPrefix + `:(-?\d+)$`)

// CaptchaCallbackData builds the callback token carried by the verification button
func CaptchaCallbackData(userID int64) string {
	return CaptchaCallbackPrefix + ":" + strconv.FormatInt(userID, 10)
}

// ParseCaptchaCallback extracts the user ID embedded in a verification token
func ParseCaptchaCallback(data string) (int64, bool) {
	m := captchaCallbackPattern.FindStringSubmatch(data)
	if m == nil {
		return 0, false
	}
	userID, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return userID, true
}

// isJoin reports whether a membership change brings a user into the chat.
// Transitions between present statuses (e.g. restricted to member after a
// lifted captcha mute) are not joins.
func isJoin(ev *chat.Event) bool {
	switch ev.NewStatus {
	case chat.StatusMember, chat.StatusAdministrator, chat.StatusRestricted:
	default:
		return false
	}
	return ev.OldStatus == "" || ev.OldStatus == chat.StatusLeft || ev.OldStatus == chat.StatusKicked
}

func (p *Pipeline) handleMembershipChange(ctx context.Context, ev *chat.Event) bool {
	if ev.ChatID == 0 || ev.UserID == 0 || !isJoin(ev) {
		return false
	}
	if ev.UserID == p.client.BotID() {
		return false
	}

	settings, err := p.store.GetChatSettings(ctx, ev.ChatID)
	if err != nil {
		p.logger.Warn("Failed to load chat settings, skipping captcha",
			zap.Int64("chat_id", ev.ChatID), zap.Error(err))
		p.metrics.IncError("store", "get_settings")
		return false
	}
	if !settings.CaptchaEnabled {
		return false
	}

	timeout := p.captchas.Timeout()
	until := p.now().Add(timeout + p.config.CaptchaMuteBuffer)
	err = p.client.Restrict(ctx, ev.ChatID, ev.UserID, until)
	p.metrics.IncAction(ActionRestrict, err)
	if err != nil {
		p.logger.Warn("Failed to mute new member",
			zap.Int64("chat_id", ev.ChatID),
			zap.Int64("user_id", ev.UserID),
			zap.Error(err))
		p.metrics.IncError("pipeline", "restrict")
		p.metrics.IncCaptcha(CaptchaRestrictError)
		return false
	}

	name := ev.UserName
	if name == "" {
		name = p.localizer.T("captcha.default_name")
	}
	prompt := p.localizer.T("captcha.prompt", name, int(timeout.Seconds()))
	opts := &chat.SendOptions{
		Buttons: [][]chat.Button{{
			{Text: p.localizer.T("captcha.button"), CallbackData: CaptchaCallbackData(ev.UserID)},
		}},
	}

	promptID, ok := p.send(ctx, ev.ChatID, prompt, opts)
	if !ok {
		p.metrics.IncCaptcha(CaptchaPromptError)
		return false
	}

	deadline := p.captchas.Register(ctx, ev.ChatID, ev.UserID, p.expireCaptcha(promptID))
	p.metrics.IncCaptcha(CaptchaStarted)
	p.metrics.SetPendingCaptchas(p.captchas.Pending())

	p.logger.Info("Captcha started",
		zap.Int64("chat_id", ev.ChatID),
		zap.Int64("user_id", ev.UserID),
		zap.Time("deadline", deadline))
	return true
}

// expireCaptcha returns the action run when a captcha deadline passes:
// the user is removed from the chat and the prompt is deleted.
func (p *Pipeline) expireCaptcha(promptID int) func(ctx context.Context, chatID, userID int64) error {
	return func(ctx context.Context, chatID, userID int64) error {
		p.metrics.IncCaptcha(CaptchaExpired)
		p.metrics.SetPendingCaptchas(p.captchas.Pending())

		var errs []error

		err := p.client.RemoveMember(ctx, chatID, userID)
		p.metrics.IncAction(ActionRemove, err)
		if err != nil {
			p.metrics.IncError("pipeline", "remove_member")
			errs = append(errs, fmt.Errorf("remove member: %w", err))
		}

		if promptID != 0 {
			err = p.client.DeleteMessage(ctx, chatID, promptID)
			p.metrics.IncAction(ActionDelete, err)
			if err != nil {
				errs = append(errs, fmt.Errorf("delete prompt: %w", err))
			}
		}

		return errors.Join(errs...)
	}
}

func (p *Pipeline) handleVerificationCallback(ctx context.Context, ev *chat.Event) bool {
	targetID, ok := ParseCaptchaCallback(ev.CallbackData)
	if !ok || ev.ChatID == 0 || ev.UserID == 0 {
		return false
	}

	if ev.UserID != targetID {
		p.metrics.IncCaptcha(CaptchaRejected)
		p.answer(ctx, ev, "captcha.not_for_you")
		return true
	}

	if !p.captchas.IsPending(ev.ChatID, ev.UserID) || !p.captchas.Resolve(ev.ChatID, ev.UserID) {
		p.metrics.IncCaptcha(CaptchaStale)
		p.answer(ctx, ev, "captcha.already_handled")
		return true
	}
	p.metrics.SetPendingCaptchas(p.captchas.Pending())

	err := p.client.LiftRestriction(ctx, ev.ChatID, ev.UserID)
	p.metrics.IncAction(ActionLift, err)
	if err != nil {
		p.logger.Warn("Failed to lift captcha restriction",
			zap.Int64("chat_id", ev.ChatID),
			zap.Int64("user_id", ev.UserID),
			zap.Error(err))
		p.metrics.IncError("pipeline", "lift_restriction")
		p.metrics.IncCaptcha(CaptchaUnmuteFailed)
		p.answer(ctx, ev, "captcha.unmute_failed")
		return true
	}

	p.metrics.IncCaptcha(CaptchaVerified)
	p.answer(ctx, ev, "captcha.welcome")
	p.deleteMessage(ctx, ev.ChatID, ev.MessageID)

	p.logger.Info("Captcha passed",
		zap.Int64("chat_id", ev.ChatID),
		zap.Int64("user_id", ev.UserID))
	return true
}

func (p *Pipeline) answer(ctx context.Context, ev *chat.Event, key string) {
	if ev.CallbackID == "" {
		return
	}
	if err := p.client.AnswerCallback(ctx, ev.CallbackID, p.localizer.T(key)); err != nil {
		p.logger.Debug("Failed to answer callback",
			zap.String("callback_id", ev.CallbackID), zap.Error(err))
	}
}
