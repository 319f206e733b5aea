package telegram

import (
	"context"
	"time"

	"go.uber.org/zap/zapcore"

	"chatguard/internal/chat"
)

const (
	// MaxMirrorLength is the longest log line forwarded to the log chat, in characters
	MaxMirrorLength = 4000

	mirrorQueueSize   = 256
	mirrorSendTimeout = 10 * time.Second
)

// messageSender is the part of chat.Client the mirror needs
type messageSender interface {
	SendMessage(ctx context.Context, chatID int64, text string, opts *chat.SendOptions) (int, error)
}

// LogMirror forwards log entries to a Telegram chat.
// Entries are queued and sent by Run; when the queue is full new entries are dropped.
type LogMirror struct {
	sender    messageSender
	chatID    int64
	maxLength int
	queue     chan string
	core      *mirrorCore
}

// NewLogMirror creates a mirror sending entries at or above level to chatID
func NewLogMirror(sender messageSender, chatID int64, level zapcore.LevelEnabler, maxLength int) *LogMirror {
	if maxLength <= 0 {
		maxLength = MaxMirrorLength
	}

	queue := make(chan string, mirrorQueueSize)
	encoder := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		LevelKey:       "level",
		NameKey:        "logger",
		MessageKey:     "msg",
		LineEnding:     "",
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	})

	return &LogMirror{
		sender:    sender,
		chatID:    chatID,
		maxLength: maxLength,
		queue:     queue,
		core: &mirrorCore{
			LevelEnabler: level,
			encoder:      encoder,
			queue:        queue,
			maxLength:    maxLength,
		},
	}
}

// Core returns the zapcore.Core to tee into a logger
func (m *LogMirror) Core() zapcore.Core {
	return m.core
}

// Run sends queued entries until ctx is done. Send failures are dropped since they cannot be logged.
func (m *LogMirror) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case text := <-m.queue:
			sendCtx, cancel := context.WithTimeout(ctx, mirrorSendTimeout)
			_, _ = m.sender.SendMessage(sendCtx, m.chatID, text, nil)
			cancel()
		}
	}
}

// Announce sends a message to the log chat right away
func (m *LogMirror) Announce(ctx context.Context, text string) error {
	_, err := m.sender.SendMessage(ctx, m.chatID, truncate(text, m.maxLength), nil)
	return err
}

type mirrorCore struct {
	zapcore.LevelEnabler
	encoder   zapcore.Encoder
	queue     chan<- string
	maxLength int
}

func (c *mirrorCore) With(fields []zapcore.Field) zapcore.Core {
	clone := c.encoder.Clone()
	for i := range fields {
		fields[i].AddTo(clone)
	}
	return &mirrorCore{
		LevelEnabler: c.LevelEnabler,
		encoder:      clone,
		queue:        c.queue,
		maxLength:    c.maxLength,
	}
}

func (c *mirrorCore) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return checked.AddCore(entry, c)
	}
	return checked
}

func (c *mirrorCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	buf, err := c.encoder.EncodeEntry(entry, fields)
	if err != nil {
		return err
	}
	text := levelMarker(entry.Level) + buf.String()
	buf.Free()

	select {
	case c.queue <- truncate(text, c.maxLength):
	default:
	}
	return nil
}

func (c *mirrorCore) Sync() error {
	return nil
}

func levelMarker(level zapcore.Level) string {
	switch {
	case level >= zapcore.ErrorLevel:
		return "❌ "
	case level == zapcore.WarnLevel:
		return "⚠️ "
	default:
		return ""
	}
}

// truncate cuts text to at most maxLength characters, marking the cut with an ellipsis
func truncate(text string, maxLength int) string {
	runes := []rune(text)
	if len(runes) <= maxLength {
		return text
	}
	return string(runes[:maxLength]) + "…"
}
