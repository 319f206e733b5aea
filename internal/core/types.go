package core

import (
	"context"
	"time"
)

// ChatSettings holds the per-chat moderation switches
type ChatSettings struct {
	ChatID             int64     `json:"chat_id"`
	CaptchaEnabled     bool      `json:"captcha_enabled"`
	LinksFilterEnabled bool      `json:"links_filter_enabled"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// DefaultChatSettings returns the settings a chat starts with
func DefaultChatSettings(chatID int64) ChatSettings {
	return ChatSettings{
		ChatID:             chatID,
		CaptchaEnabled:     true,
		LinksFilterEnabled: true,
		UpdatedAt:          time.Now().UTC(),
	}
}

// SettingsPatch is a partial update; nil fields are left unchanged
type SettingsPatch struct {
	CaptchaEnabled     *bool
	LinksFilterEnabled *bool
}

// Apply writes the non-nil fields of the patch into s and bumps UpdatedAt
func (p SettingsPatch) Apply(s *ChatSettings) {
	if p.CaptchaEnabled != nil {
		s.CaptchaEnabled = *p.CaptchaEnabled
	}
	if p.LinksFilterEnabled != nil {
		s.LinksFilterEnabled = *p.LinksFilterEnabled
	}
	s.UpdatedAt = time.Now().UTC()
}

// SettingsStore persists chat settings and the global stopword list
type SettingsStore interface {
	// GetChatSettings returns the settings for a chat, creating defaults on first read
	GetChatSettings(ctx context.Context, chatID int64) (ChatSettings, error)
	UpdateChatSettings(ctx context.Context, chatID int64, patch SettingsPatch) (ChatSettings, error)
	GetStopwords(ctx context.Context) ([]string, error)
	// AddStopword reports false when an equal word (ignoring case) is already stored
	AddStopword(ctx context.Context, word string) (bool, error)
	// RemoveStopword reports false when no equal word (ignoring case) was stored
	RemoveStopword(ctx context.Context, word string) (bool, error)
	Close() error
}

// Metrics receives moderation counters; implemented by the HTTP server's Prometheus registry
type Metrics interface {
	IncEvent(kind string)
	IncRuleMatch(rule string)
	IncAction(action string, err error)
	IncCaptcha(outcome string)
	IncError(component, errType string)
	SetPendingCaptchas(n int)
	SetFloodWindows(n int)
	ObserveProcessing(kind string, d time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) IncEvent(string) {}
func (nopMetrics) IncRuleMatch(string) {}
func (nopMetrics) IncAction(string, error) {}
func (nopMetrics) IncCaptcha(string) {}
func (nopMetrics) IncError(string, string) {}
func (nopMetrics) SetPendingCaptchas(int) {}
func (nopMetrics) SetFloodWindows(int) {}
func (nopMetrics) ObserveProcessing(string, time.Duration) {}

// Captcha outcomes reported to Metrics
const (
	CaptchaStarted       = "started"
	CaptchaVerified      = "verified"
	CaptchaExpired       = "expired"
	CaptchaRejected      = "rejected"
	CaptchaStale         = "stale"
	CaptchaUnmuteFailed  = "unmute_failed"
	CaptchaRestrictError = "restrict_failed"
	CaptchaPromptError   = "prompt_failed"
)
