// Package captcha tracks pending new-member verifications and their expiry deadlines.
package captcha

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout is how long a new member has to answer the verification prompt
const DefaultTimeout = 60 * time.Second

// ExpireFunc is run once when a pending verification reaches its deadline unresolved
type ExpireFunc func(ctx context.Context, chatID, userID int64) error

type entryKey struct {
	chatID int64
	userID int64
}

// entry is one pending verification. The pointer identity is what the expiry
// callback checks to know it still owns the key.
type entry struct {
	deadline time.Time
	timer    *time.Timer
}

// Registry holds at most one pending verification per (chat, user) and guarantees that
// each registration ends in exactly one of Resolve or expiry.
type Registry struct {
	timeout time.Duration
	logger  *zap.Logger

	mutex   sync.Mutex
	entries map[entryKey]*entry
}

// NewRegistry creates a registry whose deadlines fire after timeout
func NewRegistry(timeout time.Duration, logger *zap.Logger) *Registry {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Registry{
		timeout: timeout,
		logger:  logger,
		entries: make(map[entryKey]*entry),
	}
}

// Timeout returns the verification deadline duration
func (r *Registry) Timeout() time.Duration {
	return r.timeout
}

// IsPending reports whether the user still has to pass verification in the chat
func (r *Registry) IsPending(chatID, userID int64) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	_, exists := r.entries[entryKey{chatID: chatID, userID: userID}]
	return exists
}

// Register starts (or restarts) the verification deadline for the user and returns it.
// A previous pending entry for the same key is cancelled and replaced.
// onExpire runs with a context that keeps ctx's values but not its cancellation.
func (r *Registry) Register(ctx context.Context, chatID, userID int64, onExpire ExpireFunc) time.Time {
	key := entryKey{chatID: chatID, userID: userID}
	e := &entry{deadline: time.Now().Add(r.timeout)}
	expireCtx := context.WithoutCancel(ctx)

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if prev, exists := r.entries[key]; exists {
		prev.timer.Stop()
		r.logger.Debug("Replaced pending captcha",
			zap.Int64("chat_id", chatID),
			zap.Int64("user_id", userID))
	}

	e.timer = time.AfterFunc(r.timeout, func() {
		r.expire(expireCtx, key, e, onExpire)
	})
	r.entries[key] = e

	return e.deadline
}

// Resolve marks the user as verified. It returns false when nothing was pending, which
// callers treat as a stale action. After a true return the expiry action never runs.
func (r *Registry) Resolve(chatID, userID int64) bool {
	key := entryKey{chatID: chatID, userID: userID}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	e, exists := r.entries[key]
	if !exists {
		return false
	}

	delete(r.entries, key)
	e.timer.Stop()
	return true
}

// expire runs on the timer goroutine. It only acts if e is still the registered entry;
// otherwise Resolve or a newer Register already took ownership of the key.
func (r *Registry) expire(ctx context.Context, key entryKey, e *entry, onExpire ExpireFunc) {
	r.mutex.Lock()
	if r.entries[key] != e {
		r.mutex.Unlock()
		return
	}
	delete(r.entries, key)
	r.mutex.Unlock()

	if onExpire == nil {
		return
	}

	if err := onExpire(ctx, key.chatID, key.userID); err != nil {
		r.logger.Error("Captcha expiry action failed",
			zap.Int64("chat_id", key.chatID),
			zap.Int64("user_id", key.userID),
			zap.Error(err))
		return
	}

	r.logger.Info("Captcha expired, user removed",
		zap.Int64("chat_id", key.chatID),
		zap.Int64("user_id", key.userID))
}

// Pending returns the number of verifications currently awaiting an answer
func (r *Registry) Pending() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.entries)
}

// Stop cancels every pending deadline without running expiry actions
func (r *Registry) Stop() {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for key, e := range r.entries {
		e.timer.Stop()
		delete(r.entries, key)
	}
}
