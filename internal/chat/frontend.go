// Package chat provides the platform-neutral event and client types used by the moderation core
package chat

import (
	"context"
	"time"
)

// MemberStatus is a chat member's standing in a group
type MemberStatus string

// Membership statuses as reported by the chat platform
const (
	StatusCreator       MemberStatus = "creator"
	StatusAdministrator MemberStatus = "administrator"
	StatusMember        MemberStatus = "member"
	StatusRestricted    MemberStatus = "restricted"
	StatusLeft          MemberStatus = "left"
	StatusKicked        MemberStatus = "kicked"
)

// IsAdmin reports whether the status grants administrative capability
func (s MemberStatus) IsAdmin() bool {
	return s == StatusCreator || s == StatusAdministrator
}

// IsPresent reports whether the status means the user is in the chat
func (s MemberStatus) IsPresent() bool {
	return s == StatusMember || s == StatusAdministrator || s == StatusRestricted || s == StatusCreator
}

// EventKind tags the variant carried by an Event
type EventKind int

// Event kinds accepted by the moderation pipeline
const (
	EventTextMessage EventKind = iota
	EventMembershipChange
	EventVerificationCallback
	EventServiceMessage
)

func (k EventKind) String() string {
	switch k {
	case EventTextMessage:
		return "text_message"
	case EventMembershipChange:
		return "membership_change"
	case EventVerificationCallback:
		return "verification_callback"
	case EventServiceMessage:
		return "service_message"
	default:
		return "unknown"
	}
}

// Event is a normalized inbound update. Fields that do not apply to Kind are zero.
type Event struct {
	Kind     EventKind
	ChatID   int64
	IsGroup  bool
	UserID   int64
	UserName string

	// Text messages and service messages
	MessageID     int
	Text          string
	SenderChatID  int64 // set when a message is posted on behalf of a chat
	ReplyToUserID int64

	// Membership changes
	OldStatus MemberStatus
	NewStatus MemberStatus

	// Verification callbacks
	CallbackID   string
	CallbackData string
}

// Button is an inline button attached to a sent message
type Button struct {
	Text         string
	CallbackData string
}

// SendOptions controls optional parts of an outgoing message
type SendOptions struct {
	ReplyToMessageID int
	Buttons          [][]Button
}

// Client is the set of chat-platform primitives the moderation core acts through.
// Every method may block on the network and may fail.
type Client interface {
	// Restrict mutes a user until the given time
	Restrict(ctx context.Context, chatID, userID int64, until time.Time) error

	// LiftRestriction restores a user's default permissions
	LiftRestriction(ctx context.Context, chatID, userID int64) error

	// RemoveMember bans and immediately unbans a user so they may rejoin later
	RemoveMember(ctx context.Context, chatID, userID int64) error

	// DeleteMessage deletes a message by its ID
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error

	// SendMessage sends a message and returns its ID
	SendMessage(ctx context.Context, chatID int64, text string, opts *SendOptions) (int, error)

	// GetMembershipStatus returns a user's status in a chat
	GetMembershipStatus(ctx context.Context, chatID, userID int64) (MemberStatus, error)

	// AnswerCallback shows a short notice to the user who pressed an inline button
	AnswerCallback(ctx context.Context, callbackID, text string) error

	// BotID returns the user ID of the acting bot
	BotID() int64
}
