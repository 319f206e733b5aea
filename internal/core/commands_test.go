package core

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"chatguard/internal/chat"
)

const testAdminID int64 = 7

type testCommands struct {
	*Commands
	client *mockClient
	store  *mockStore
}

func newTestCommands(t *testing.T) *testCommands {
	t.Helper()
	client := newMockClient()
	client.setStatus(testAdminID, chat.StatusAdministrator)
	store := newMockStore()
	c := NewCommands(client, store, enLocalizer, nil, zap.NewNop(), "guard_bot")
	return &testCommands{Commands: c, client: client, store: store}
}

func commandEvent(userID int64, message string) *chat.Event {
	return &chat.Event{
		Kind:      chat.EventTextMessage,
		ChatID:    testChatID,
		IsGroup:   true,
		UserID:    userID,
		MessageID: 1,
		Text:      message,
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		input string
		name  string
		args  string
		ok    bool
	}{
		{"/help", "help", "", true},
		{"/addword spam", "addword", "spam", true},
		{"/addword   money fast  ", "addword", "money fast", true},
		{"/AddWord Spam", "addword", "Spam", true},
		{"/addword@guard_bot spam", "addword", "spam", true},
		{"/addword@Guard_Bot spam", "addword", "spam", true},
		{"/addword@other_bot spam", "", "", false},
		{"/mute\n1h", "mute", "1h", true},
		{"hello /help", "", "", false},
		{"/", "", "", false},
		{"", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			name, args, ok := parseCommand(tt.input, "guard_bot")
			if name != tt.name || args != tt.args || ok != tt.ok {
				t.Errorf("parseCommand(%q) = %q, %q, %v; want %q, %q, %v",
					tt.input, name, args, ok, tt.name, tt.args, tt.ok)
			}
		})
	}
}

func TestCommandsIgnoreNonCommands(t *testing.T) {
	tc := newTestCommands(t)

	for _, message := range []string{"hello", "/unknown", "/addword@other_bot spam"} {
		if tc.Handle(context.Background(), commandEvent(testAdminID, message)) {
			t.Errorf("%q should not be handled", message)
		}
	}
	if c := tc.client.counts(); c.sent != 0 {
		t.Errorf("Expected no replies, got %d", c.sent)
	}
}

func TestPublicCommands(t *testing.T) {
	tests := []struct {
		name    string
		message string
		isGroup bool
		wantKey string
	}{
		{"start", "/start", true, "command.start"},
		{"help in group", "/help", true, "command.help_group"},
		{"help in private", "/help", false, "command.help_private"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := newTestCommands(t)
			ev := commandEvent(testUserID, tt.message)
			ev.IsGroup = tt.isGroup

			if !tc.Handle(context.Background(), ev) {
				t.Fatal("Command should be handled")
			}
			if got := tc.client.lastSent().text; got != enLocalizer.T(tt.wantKey) {
				t.Errorf("Expected %q, got %q", enLocalizer.T(tt.wantKey), got)
			}
		})
	}
}

func TestAdminOnlyCommands(t *testing.T) {
	tests := []struct {
		name         string
		ev           *chat.Event
		expectedText string
	}{
		{
			name:         "regular member",
			ev:           commandEvent(testUserID, "/listwords"),
			expectedText: enLocalizer.T("command.admins_only"),
		},
		{
			name: "private chat",
			ev: &chat.Event{
				Kind: chat.EventTextMessage, ChatID: testAdminID, UserID: testAdminID, Text: "/listwords",
			},
			expectedText: enLocalizer.T("command.groups_only"),
		},
		{
			name:         "administrator",
			ev:           commandEvent(testAdminID, "/listwords"),
			expectedText: enLocalizer.T("command.list_empty"),
		},
		{
			name: "anonymous admin posting as the chat",
			ev: &chat.Event{
				Kind: chat.EventTextMessage, ChatID: testChatID, IsGroup: true,
				UserID: 1087968824, SenderChatID: testChatID, Text: "/listwords",
			},
			expectedText: enLocalizer.T("command.list_empty"),
		},
		{
			name: "channel posting into the chat",
			ev: &chat.Event{
				Kind: chat.EventTextMessage, ChatID: testChatID, IsGroup: true,
				UserID: 136817688, SenderChatID: -100999, Text: "/listwords",
			},
			expectedText: enLocalizer.T("command.admins_only"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := newTestCommands(t)
			if !tc.Handle(context.Background(), tt.ev) {
				t.Fatal("Command should be handled")
			}
			if got := tc.client.lastSent().text; got != tt.expectedText {
				t.Errorf("Expected %q, got %q", tt.expectedText, got)
			}
		})
	}
}

func TestStopwordCommands(t *testing.T) {
	tc := newTestCommands(t)
	ctx := context.Background()

	tc.Handle(ctx, commandEvent(testAdminID, "/addword Casino"))
	if got, want := tc.client.lastSent().text, enLocalizer.T("command.addword_added", "Casino"); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}

	tc.Handle(ctx, commandEvent(testAdminID, "/addword casino"))
	if got, want := tc.client.lastSent().text, enLocalizer.T("command.addword_exists", "casino"); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}

	tc.Handle(ctx, commandEvent(testAdminID, "/addword"))
	if got, want := tc.client.lastSent().text, enLocalizer.T("command.addword_usage"); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}

	tc.Handle(ctx, commandEvent(testAdminID, "/addword spam"))
	tc.Handle(ctx, commandEvent(testAdminID, "/listwords"))
	if got, want := tc.client.lastSent().text, enLocalizer.T("command.list", "Casino, spam"); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}

	tc.Handle(ctx, commandEvent(testAdminID, "/removeword CASINO"))
	if got, want := tc.client.lastSent().text, enLocalizer.T("command.removeword_removed", "CASINO", "spam"); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}

	tc.Handle(ctx, commandEvent(testAdminID, "/removeword spam"))
	want := enLocalizer.T("command.removeword_removed", "spam", enLocalizer.T("command.list_empty"))
	if got := tc.client.lastSent().text; got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}

	tc.Handle(ctx, commandEvent(testAdminID, "/removeword spam"))
	if got, want := tc.client.lastSent().text, enLocalizer.T("command.removeword_missing", "spam"); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestListWordsTruncates(t *testing.T) {
	tc := newTestCommands(t)
	for i := 0; i < 60; i++ {
		tc.store.stopwords = append(tc.store.stopwords, fmt.Sprintf("w%02d", i))
	}

	tc.Handle(context.Background(), commandEvent(testAdminID, "/listwords"))

	got := tc.client.lastSent().text
	if !strings.HasSuffix(got, enLocalizer.T("command.list_more", 60)) {
		t.Errorf("Expected truncation suffix, got %q", got)
	}
	if !strings.Contains(got, "w49") || strings.Contains(got, "w50") {
		t.Errorf("Expected exactly the first 50 words, got %q", got)
	}
}

func TestStoreFailureReplies(t *testing.T) {
	tc := newTestCommands(t)
	tc.store.err = errMock

	tc.Handle(context.Background(), commandEvent(testAdminID, "/addword spam"))
	if got, want := tc.client.lastSent().text, enLocalizer.T("error.store_failed"); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}

	tc.Handle(context.Background(), commandEvent(testAdminID, "/captcha off"))
	if got, want := tc.client.lastSent().text, enLocalizer.T("error.settings_failed"); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestSettingsCommands(t *testing.T) {
	tc := newTestCommands(t)
	ctx := context.Background()
	on, off := enLocalizer.T("command.on"), enLocalizer.T("command.off")

	tc.Handle(ctx, commandEvent(testAdminID, "/settings"))
	if got, want := tc.client.lastSent().text, enLocalizer.T("command.settings", on, on); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}

	tc.Handle(ctx, commandEvent(testAdminID, "/captcha OFF"))
	if got, want := tc.client.lastSent().text, enLocalizer.T("command.captcha_set", off); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}

	tc.Handle(ctx, commandEvent(testAdminID, "/links off"))
	if got, want := tc.client.lastSent().text, enLocalizer.T("command.links_set", off); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}

	settings, _ := tc.store.GetChatSettings(ctx, testChatID)
	if settings.CaptchaEnabled || settings.LinksFilterEnabled {
		t.Errorf("Expected both switches off, got %+v", settings)
	}

	tc.Handle(ctx, commandEvent(testAdminID, "/links maybe"))
	if got, want := tc.client.lastSent().text, enLocalizer.T("command.links_usage"); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}

	tc.Handle(ctx, commandEvent(testAdminID, "/captcha"))
	if got, want := tc.client.lastSent().text, enLocalizer.T("command.captcha_usage"); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestMuteCommand(t *testing.T) {
	fixed := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name          string
		message       string
		replyTo       int64
		botStatus     chat.MemberStatus
		restrictErr   error
		expectedText  string
		expectedUntil time.Time
	}{
		{"default duration", "/mute", testUserID, chat.StatusAdministrator, nil,
			enLocalizer.T("command.muted", "10m"), fixed.Add(10 * time.Minute)},
		{"hours", "/mute 2h", testUserID, chat.StatusAdministrator, nil,
			enLocalizer.T("command.muted", "2h"), fixed.Add(2 * time.Hour)},
		{"no reply", "/mute 1h", 0, chat.StatusAdministrator, nil,
			enLocalizer.T("command.mute_reply"), time.Time{}},
		{"bad duration", "/mute soon", testUserID, chat.StatusAdministrator, nil,
			enLocalizer.T("command.mute_bad_duration"), time.Time{}},
		{"bot not admin", "/mute 1h", testUserID, chat.StatusMember, nil,
			enLocalizer.T("command.bot_not_admin"), time.Time{}},
		{"restrict fails", "/mute 1d", testUserID, chat.StatusAdministrator, errMock,
			enLocalizer.T("command.mute_failed"), fixed.Add(24 * time.Hour)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := newTestCommands(t)
			tc.now = func() time.Time { return fixed }
			tc.client.setStatus(testBotID, tt.botStatus)
			tc.client.restrictErr = tt.restrictErr

			ev := commandEvent(testAdminID, tt.message)
			ev.ReplyToUserID = tt.replyTo
			tc.Handle(context.Background(), ev)

			if got := tc.client.lastSent().text; got != tt.expectedText {
				t.Errorf("Expected %q, got %q", tt.expectedText, got)
			}

			restricts := tc.client.restricts
			if tt.expectedUntil.IsZero() {
				if len(restricts) != 0 {
					t.Errorf("Expected no restrict call, got %d", len(restricts))
				}
				return
			}
			if len(restricts) != 1 {
				t.Fatalf("Expected 1 restrict call, got %d", len(restricts))
			}
			if restricts[0].userID != tt.replyTo || !restricts[0].until.Equal(tt.expectedUntil) {
				t.Errorf("Unexpected restrict call %+v", restricts[0])
			}
		})
	}
}

func TestUnmuteAndKickCommands(t *testing.T) {
	tests := []struct {
		name         string
		message      string
		replyTo      int64
		failing      bool
		expectedText string
		lifts        int
		removes      int
	}{
		{"unmute", "/unmute", testUserID, false, enLocalizer.T("command.unmuted"), 1, 0},
		{"unmute fails", "/unmute", testUserID, true, enLocalizer.T("command.unmute_failed"), 1, 0},
		{"unmute without reply", "/unmute", 0, false, enLocalizer.T("command.unmute_reply"), 0, 0},
		{"kick", "/kick", testUserID, false, enLocalizer.T("command.kicked"), 0, 1},
		{"kick fails", "/kick", testUserID, true, enLocalizer.T("command.kick_failed"), 0, 1},
		{"kick without reply", "/kick", 0, false, enLocalizer.T("command.kick_reply"), 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := newTestCommands(t)
			if tt.failing {
				tc.client.liftErr = errMock
				tc.client.removeErr = errMock
			}

			ev := commandEvent(testAdminID, tt.message)
			ev.ReplyToUserID = tt.replyTo
			tc.Handle(context.Background(), ev)

			if got := tc.client.lastSent().text; got != tt.expectedText {
				t.Errorf("Expected %q, got %q", tt.expectedText, got)
			}
			c := tc.client.counts()
			if c.lifts != tt.lifts || c.removes != tt.removes {
				t.Errorf("Expected %d lifts and %d removes, got %+v", tt.lifts, tt.removes, c)
			}
		})
	}
}
