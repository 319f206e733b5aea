// Package flood provides antiflood burst detection for group chats.
package flood

import (
	"sync"
	"time"
)

const (
	// DefaultWindow is the trailing window used for burst detection
	DefaultWindow = 10 * time.Second
	// DefaultMaxMessages is the message count within the window that counts as flooding
	DefaultMaxMessages = 5

	// cleanupInterval is how often idle windows are swept
	cleanupInterval = 5 * time.Minute
)

// windowKey identifies a user's window within a chat
type windowKey struct {
	chatID int64
	userID int64
}

// Floodgate tracks a per-user, per-chat sliding window of recent message timestamps
type Floodgate struct {
	maxMessages int
	window      time.Duration
	windows     map[windowKey][]time.Time
	mutex       sync.Mutex
	stopCleanup chan struct{}
	stopOnce    sync.Once
}

// New creates a Floodgate that reports flooding once maxMessages land within window.
// Non-positive arguments fall back to the defaults.
func New(maxMessages int, window time.Duration) *Floodgate {
	if maxMessages <= 0 {
		maxMessages = DefaultMaxMessages
	}
	if window <= 0 {
		window = DefaultWindow
	}

	fg := &Floodgate{
		maxMessages: maxMessages,
		window:      window,
		windows:     make(map[windowKey][]time.Time),
		stopCleanup: make(chan struct{}),
	}

	go fg.cleanup()

	return fg
}

// Stop stops the background cleanup goroutine
func (fg *Floodgate) Stop() {
	fg.stopOnce.Do(func() {
		close(fg.stopCleanup)
	})
}

// RecordMessage appends the current time to the user's window and reports whether the
// pruned window has reached the flood threshold. The window is updated regardless of the verdict.
func (fg *Floodgate) RecordMessage(chatID, userID int64) bool {
	key := windowKey{chatID: chatID, userID: userID}
	now := time.Now()

	fg.mutex.Lock()
	defer fg.mutex.Unlock()

	timestamps := prune(fg.windows[key], now.Add(-fg.window))
	timestamps = append(timestamps, now)
	fg.windows[key] = timestamps

	return len(timestamps) >= fg.maxMessages
}

// Clear drops the user's window so the next message starts from an empty history
func (fg *Floodgate) Clear(chatID, userID int64) {
	fg.mutex.Lock()
	defer fg.mutex.Unlock()

	delete(fg.windows, windowKey{chatID: chatID, userID: userID})
}

// prune removes timestamps at or before cutoff, reusing the slice capacity
func prune(timestamps []time.Time, cutoff time.Time) []time.Time {
	valid := timestamps[:0]
	for _, ts := range timestamps {
		if ts.After(cutoff) {
			valid = append(valid, ts)
		}
	}
	return valid
}

func (fg *Floodgate) cleanup() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			fg.performCleanup()
		case <-fg.stopCleanup:
			return
		}
	}
}

// performCleanup removes windows whose every timestamp has left the window
func (fg *Floodgate) performCleanup() {
	fg.mutex.Lock()
	defer fg.mutex.Unlock()

	cutoff := time.Now().Add(-fg.window)
	for key, timestamps := range fg.windows {
		timestamps = prune(timestamps, cutoff)
		if len(timestamps) == 0 {
			delete(fg.windows, key)
			continue
		}
		fg.windows[key] = timestamps
	}
}

// GetStats returns statistics about the floodgate for monitoring/debugging
func (fg *Floodgate) GetStats() Stats {
	fg.mutex.Lock()
	defer fg.mutex.Unlock()

	return Stats{
		ActiveWindows: len(fg.windows),
		MaxMessages:   fg.maxMessages,
		WindowSeconds: int(fg.window.Seconds()),
	}
}

// Stats contains floodgate statistics
type Stats struct {
	ActiveWindows int `json:"active_windows"`
	MaxMessages   int `json:"max_messages"`
	WindowSeconds int `json:"window_seconds"`
}
