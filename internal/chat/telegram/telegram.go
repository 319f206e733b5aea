// Package telegram provides Telegram Bot API integration using go-telegram/bot library.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"chatguard/internal/chat"
	"chatguard/internal/store"
)

const (
	chatTypeGroup      = "group"
	chatTypeSuperGroup = "supergroup"

	// Bloom filter false positive rate for update replay detection
	dedupFalsePositiveRate = 0.001
	defaultDedupCapacity   = 10000
)

var _ chat.Client = (*Frontend)(nil)

// ErrNotStarted is returned by client methods called before Start.
var ErrNotStarted = errors.New("telegram frontend is not started")

// Config holds Telegram-specific configuration
type Config struct {
	BotToken       string
	CallbackPrefix string        // Callback data prefix routed to the handler as verification callbacks
	AdminCacheTTL  time.Duration // How long the bot's own admin status is cached per chat
	AdminCacheSize int
	DedupCapacity  int // Number of recent update IDs remembered for replay detection
}

// EventHandler receives every converted update.
type EventHandler func(ctx context.Context, ev *chat.Event)

// Frontend implements chat.Client for Telegram and turns updates into chat events
type Frontend struct {
	config *Config
	logger *zap.Logger
	bot    *bot.Bot

	botID       int64
	botUsername string

	handlerMutex sync.RWMutex
	handler      EventHandler

	seen        *store.DedupStore
	adminStatus *expirable.LRU[int64, chat.MemberStatus]
}

// NewFrontend creates a new Telegram frontend
func NewFrontend(config *Config, logger *zap.Logger) *Frontend {
	capacity := config.DedupCapacity
	if capacity <= 0 {
		capacity = defaultDedupCapacity
	}

	return &Frontend{
		config:      config,
		logger:      logger,
		seen:        store.NewDedupStore(capacity, dedupFalsePositiveRate),
		adminStatus: expirable.NewLRU[int64, chat.MemberStatus](config.AdminCacheSize, nil, config.AdminCacheTTL),
	}
}

// Start creates the bot and resolves its identity. Updates are not consumed until Listen.
func (f *Frontend) Start(ctx context.Context) error {
	f.logger.Info("Starting Telegram frontend")

	opts := []bot.Option{
		bot.WithDefaultHandler(f.handleUpdate),
		bot.WithAllowedUpdates(bot.AllowedUpdates{"message", "chat_member", "my_chat_member", "callback_query"}),
	}
	if f.config.CallbackPrefix != "" {
		opts = append(opts, bot.WithCallbackQueryDataHandler(f.config.CallbackPrefix, bot.MatchTypePrefix, f.handleUpdate))
	}

	b, err := bot.New(f.config.BotToken, opts...)
	if err != nil {
		return fmt.Errorf("failed to create telegram bot: %w", err)
	}

	me, err := b.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("failed to get bot identity: %w", err)
	}

	f.bot = b
	f.botID = me.ID
	f.botUsername = me.Username

	f.logger.Info("Telegram frontend started successfully",
		zap.Int64("bot_id", me.ID),
		zap.String("username", me.Username))
	return nil
}

// Listen long-polls for updates and calls the handler for each converted event until ctx is done
func (f *Frontend) Listen(ctx context.Context, handler EventHandler) error {
	if f.bot == nil {
		return ErrNotStarted
	}

	f.handlerMutex.Lock()
	f.handler = handler
	f.handlerMutex.Unlock()

	f.bot.Start(ctx)
	return nil
}

// SetLogger replaces the frontend's logger. It must be called before Listen.
func (f *Frontend) SetLogger(logger *zap.Logger) {
	f.logger = logger
}

// Username returns the bot's username without the leading @
func (f *Frontend) Username() string {
	return f.botUsername
}

// BotID returns the user ID of the bot
func (f *Frontend) BotID() int64 {
	return f.botID
}

// handleUpdate processes incoming Telegram updates
func (f *Frontend) handleUpdate(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.ID != 0 && f.seen.Seen(update.ID) {
		f.logger.Debug("Dropping replayed update", zap.Int64("update_id", update.ID))
		return
	}

	if update.MyChatMember != nil {
		// The bot's own rights changed
		f.invalidateAdminStatus(update.MyChatMember.Chat.ID)
		return
	}

	if update.CallbackQuery != nil && !f.isVerificationCallback(update.CallbackQuery.Data) {
		// Not ours; stop the client's loading spinner
		if _, err := b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
			CallbackQueryID: update.CallbackQuery.ID,
		}); err != nil {
			f.logger.Debug("Failed to answer foreign callback", zap.Error(err))
		}
		return
	}

	ev := convertUpdate(update)
	if ev == nil {
		return
	}
	// Ignore messages from the bot itself
	if ev.Kind == chat.EventTextMessage && ev.UserID == f.botID {
		return
	}

	f.handlerMutex.RLock()
	handler := f.handler
	f.handlerMutex.RUnlock()

	if handler != nil {
		handler(ctx, ev)
	}
}

func (f *Frontend) isVerificationCallback(data string) bool {
	return f.config.CallbackPrefix == "" || strings.HasPrefix(data, f.config.CallbackPrefix)
}

// convertUpdate maps a Telegram update to a chat event; nil means the update carries nothing to moderate
func convertUpdate(update *models.Update) *chat.Event {
	switch {
	case update.Message != nil:
		return messageEvent(update.Message)
	case update.ChatMember != nil:
		return memberEvent(update.ChatMember)
	case update.CallbackQuery != nil:
		return callbackEvent(update.CallbackQuery)
	default:
		return nil
	}
}

func messageEvent(msg *models.Message) *chat.Event {
	ev := &chat.Event{
		ChatID:    msg.Chat.ID,
		IsGroup:   isGroup(msg.Chat),
		MessageID: msg.ID,
	}
	if msg.From != nil {
		ev.UserID = msg.From.ID
		ev.UserName = displayName(msg.From)
	}
	if msg.SenderChat != nil {
		ev.SenderChatID = msg.SenderChat.ID
	}

	switch {
	case len(msg.NewChatMembers) > 0 || msg.LeftChatMember != nil:
		ev.Kind = chat.EventServiceMessage
	case msg.Text != "":
		ev.Kind = chat.EventTextMessage
		ev.Text = msg.Text
		if reply := msg.ReplyToMessage; reply != nil && reply.From != nil {
			ev.ReplyToUserID = reply.From.ID
		}
	default:
		return nil
	}
	return ev
}

func memberEvent(upd *models.ChatMemberUpdated) *chat.Event {
	user := memberUser(upd.NewChatMember)
	if user == nil {
		user = &upd.From
	}

	return &chat.Event{
		Kind:      chat.EventMembershipChange,
		ChatID:    upd.Chat.ID,
		IsGroup:   isGroup(upd.Chat),
		UserID:    user.ID,
		UserName:  displayName(user),
		OldStatus: memberStatus(upd.OldChatMember),
		NewStatus: memberStatus(upd.NewChatMember),
	}
}

func callbackEvent(query *models.CallbackQuery) *chat.Event {
	ev := &chat.Event{
		Kind:         chat.EventVerificationCallback,
		UserID:       query.From.ID,
		UserName:     displayName(&query.From),
		CallbackID:   query.ID,
		CallbackData: query.Data,
	}

	switch {
	case query.Message.Message != nil:
		ev.ChatID = query.Message.Message.Chat.ID
		ev.IsGroup = isGroup(query.Message.Message.Chat)
		ev.MessageID = query.Message.Message.ID
	case query.Message.InaccessibleMessage != nil:
		ev.ChatID = query.Message.InaccessibleMessage.Chat.ID
		ev.IsGroup = isGroup(query.Message.InaccessibleMessage.Chat)
		ev.MessageID = query.Message.InaccessibleMessage.MessageID
	}
	return ev
}

// memberStatus flattens the ChatMember union into a status
func memberStatus(member models.ChatMember) chat.MemberStatus {
	switch member.Type {
	case models.ChatMemberTypeOwner:
		return chat.StatusCreator
	case models.ChatMemberTypeAdministrator:
		return chat.StatusAdministrator
	case models.ChatMemberTypeMember:
		return chat.StatusMember
	case models.ChatMemberTypeRestricted:
		// A restricted user that is not a member has left the chat
		if member.Restricted != nil && !member.Restricted.IsMember {
			return chat.StatusLeft
		}
		return chat.StatusRestricted
	case models.ChatMemberTypeLeft:
		return chat.StatusLeft
	case models.ChatMemberTypeBanned:
		return chat.StatusKicked
	default:
		return ""
	}
}

func memberUser(member models.ChatMember) *models.User {
	switch member.Type {
	case models.ChatMemberTypeOwner:
		if member.Owner != nil {
			return member.Owner.User
		}
	case models.ChatMemberTypeAdministrator:
		if member.Administrator != nil {
			return &member.Administrator.User
		}
	case models.ChatMemberTypeMember:
		if member.Member != nil {
			return member.Member.User
		}
	case models.ChatMemberTypeRestricted:
		if member.Restricted != nil {
			return member.Restricted.User
		}
	case models.ChatMemberTypeLeft:
		if member.Left != nil {
			return member.Left.User
		}
	case models.ChatMemberTypeBanned:
		if member.Banned != nil {
			return member.Banned.User
		}
	}
	return nil
}

func isGroup(c models.Chat) bool {
	return c.Type == chatTypeGroup || c.Type == chatTypeSuperGroup
}

// displayName prefers the user's real name over the username
func displayName(user *models.User) string {
	if user == nil {
		return ""
	}
	name := strings.TrimSpace(user.FirstName + " " + user.LastName)
	if name != "" {
		return name
	}
	if user.Username != "" {
		return "@" + user.Username
	}
	return ""
}

// mutedPermissions denies every kind of message
func mutedPermissions() *models.ChatPermissions {
	return &models.ChatPermissions{}
}

// defaultPermissions restores what an ordinary member may do
func defaultPermissions() *models.ChatPermissions {
	return &models.ChatPermissions{
		CanSendMessages:       true,
		CanSendAudios:         true,
		CanSendDocuments:      true,
		CanSendPhotos:         true,
		CanSendVideos:         true,
		CanSendVideoNotes:     true,
		CanSendVoiceNotes:     true,
		CanSendPolls:          true,
		CanSendOtherMessages:  true,
		CanAddWebPagePreviews: true,
		CanInviteUsers:        true,
	}
}

// Restrict mutes a user until the given time
func (f *Frontend) Restrict(ctx context.Context, chatID, userID int64, until time.Time) error {
	if f.bot == nil {
		return ErrNotStarted
	}

	if _, err := f.bot.RestrictChatMember(ctx, &bot.RestrictChatMemberParams{
		ChatID:      chatID,
		UserID:      userID,
		Permissions: mutedPermissions(),
		UntilDate:   int(until.Unix()),
	}); err != nil {
		return fmt.Errorf("failed to restrict user: %w", err)
	}
	return nil
}

// LiftRestriction restores a user's default permissions
func (f *Frontend) LiftRestriction(ctx context.Context, chatID, userID int64) error {
	if f.bot == nil {
		return ErrNotStarted
	}

	if _, err := f.bot.RestrictChatMember(ctx, &bot.RestrictChatMemberParams{
		ChatID:      chatID,
		UserID:      userID,
		Permissions: defaultPermissions(),
	}); err != nil {
		return fmt.Errorf("failed to lift restriction: %w", err)
	}
	return nil
}

// RemoveMember bans and immediately unbans so the user can rejoin later
func (f *Frontend) RemoveMember(ctx context.Context, chatID, userID int64) error {
	if f.bot == nil {
		return ErrNotStarted
	}

	if _, err := f.bot.BanChatMember(ctx, &bot.BanChatMemberParams{
		ChatID: chatID,
		UserID: userID,
	}); err != nil {
		return fmt.Errorf("failed to ban user: %w", err)
	}
	if _, err := f.bot.UnbanChatMember(ctx, &bot.UnbanChatMemberParams{
		ChatID:       chatID,
		UserID:       userID,
		OnlyIfBanned: true,
	}); err != nil {
		return fmt.Errorf("failed to unban user: %w", err)
	}
	return nil
}

// DeleteMessage deletes a message by its ID
func (f *Frontend) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	if f.bot == nil {
		return ErrNotStarted
	}

	if _, err := f.bot.DeleteMessage(ctx, &bot.DeleteMessageParams{
		ChatID:    chatID,
		MessageID: messageID,
	}); err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return nil
}

// SendMessage sends a message and returns its ID
func (f *Frontend) SendMessage(ctx context.Context, chatID int64, text string, opts *chat.SendOptions) (int, error) {
	if f.bot == nil {
		return 0, ErrNotStarted
	}

	params := &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	}

	disabled := true
	params.LinkPreviewOptions = &models.LinkPreviewOptions{
		IsDisabled: &disabled,
	}

	if opts != nil {
		if opts.ReplyToMessageID != 0 {
			params.ReplyParameters = &models.ReplyParameters{
				MessageID:                opts.ReplyToMessageID,
				AllowSendingWithoutReply: true,
			}
		}
		if len(opts.Buttons) > 0 {
			params.ReplyMarkup = inlineKeyboard(opts.Buttons)
		}
	}

	msg, err := f.bot.SendMessage(ctx, params)
	if err != nil {
		return 0, fmt.Errorf("failed to send message: %w", err)
	}
	return msg.ID, nil
}

func inlineKeyboard(rows [][]chat.Button) *models.InlineKeyboardMarkup {
	keyboard := make([][]models.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]models.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, models.InlineKeyboardButton{
				Text:         b.Text,
				CallbackData: b.CallbackData,
			})
		}
		keyboard = append(keyboard, buttons)
	}
	return &models.InlineKeyboardMarkup{InlineKeyboard: keyboard}
}

// GetMembershipStatus returns a user's status in a chat. The bot's own status is cached.
func (f *Frontend) GetMembershipStatus(ctx context.Context, chatID, userID int64) (chat.MemberStatus, error) {
	if f.bot == nil {
		return "", ErrNotStarted
	}

	self := userID == f.botID
	if self {
		if status, ok := f.adminStatus.Get(chatID); ok {
			return status, nil
		}
	}

	member, err := f.bot.GetChatMember(ctx, &bot.GetChatMemberParams{
		ChatID: chatID,
		UserID: userID,
	})
	if err != nil {
		return "", fmt.Errorf("failed to get chat member: %w", err)
	}

	status := memberStatus(*member)
	if self {
		f.adminStatus.Add(chatID, status)
	}
	return status, nil
}

func (f *Frontend) invalidateAdminStatus(chatID int64) {
	f.adminStatus.Remove(chatID)
}

// AnswerCallback shows a short notice to the user who pressed an inline button
func (f *Frontend) AnswerCallback(ctx context.Context, callbackID, text string) error {
	if f.bot == nil {
		return ErrNotStarted
	}

	if _, err := f.bot.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
	}); err != nil {
		return fmt.Errorf("failed to answer callback: %w", err)
	}
	return nil
}
