package core

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"chatguard/internal/captcha"
	"chatguard/internal/chat"
	"chatguard/internal/flood"
	"chatguard/internal/i18n"
)

const (
	testBotID  int64 = 999
	testChatID int64 = -100123
	testUserID int64 = 42
)

type restrictCall struct {
	chatID int64
	userID int64
	until  time.Time
}

type sentMessage struct {
	chatID int64
	text   string
	opts   *chat.SendOptions
}

// mockClient records every call; expiry timers call it from other goroutines
type mockClient struct {
	mu sync.Mutex

	statuses    map[int64]chat.MemberStatus
	statusErr   error
	restrictErr error
	liftErr     error
	removeErr   error
	deleteErr   error
	sendErr     error
	nextMsgID   int

	restricts []restrictCall
	lifts     []int64
	removes   []int64
	deletes   []int
	sent      []sentMessage
	answers   []string
}

func newMockClient() *mockClient {
	return &mockClient{
		statuses:  map[int64]chat.MemberStatus{testBotID: chat.StatusAdministrator},
		nextMsgID: 500,
	}
}

func (m *mockClient) Restrict(_ context.Context, chatID, userID int64, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.restricts = append(m.restricts, restrictCall{chatID: chatID, userID: userID, until: until})
	return m.restrictErr
}

func (m *mockClient) LiftRestriction(_ context.Context, _, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lifts = append(m.lifts, userID)
	return m.liftErr
}

func (m *mockClient) RemoveMember(_ context.Context, _, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removes = append(m.removes, userID)
	return m.removeErr
}

func (m *mockClient) DeleteMessage(_ context.Context, _ int64, messageID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes = append(m.deletes, messageID)
	return m.deleteErr
}

func (m *mockClient) SendMessage(_ context.Context, chatID int64, text string, opts *chat.SendOptions) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{chatID: chatID, text: text, opts: opts})
	if m.sendErr != nil {
		return 0, m.sendErr
	}
	m.nextMsgID++
	return m.nextMsgID, nil
}

func (m *mockClient) GetMembershipStatus(_ context.Context, _, userID int64) (chat.MemberStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.statusErr != nil {
		return "", m.statusErr
	}
	if status, ok := m.statuses[userID]; ok {
		return status, nil
	}
	return chat.StatusMember, nil
}

func (m *mockClient) AnswerCallback(_ context.Context, _, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.answers = append(m.answers, text)
	return nil
}

func (m *mockClient) BotID() int64 {
	return testBotID
}

func (m *mockClient) setStatus(userID int64, status chat.MemberStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[userID] = status
}

type callCounts struct {
	restricts, lifts, removes, deletes, sent, answers int
}

func (m *mockClient) counts() callCounts {
	m.mu.Lock()
	defer m.mu.Unlock()
	return callCounts{
		restricts: len(m.restricts),
		lifts:     len(m.lifts),
		removes:   len(m.removes),
		deletes:   len(m.deletes),
		sent:      len(m.sent),
		answers:   len(m.answers),
	}
}

func (m *mockClient) lastSent() sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return sentMessage{}
	}
	return m.sent[len(m.sent)-1]
}

func (m *mockClient) lastAnswer() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.answers) == 0 {
		return ""
	}
	return m.answers[len(m.answers)-1]
}

type mockStore struct {
	mu        sync.Mutex
	settings  map[int64]ChatSettings
	stopwords []string
	err       error
}

func newMockStore() *mockStore {
	return &mockStore{settings: make(map[int64]ChatSettings)}
}

func (s *mockStore) GetChatSettings(_ context.Context, chatID int64) (ChatSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return ChatSettings{}, s.err
	}
	if settings, ok := s.settings[chatID]; ok {
		return settings, nil
	}
	settings := DefaultChatSettings(chatID)
	s.settings[chatID] = settings
	return settings, nil
}

func (s *mockStore) UpdateChatSettings(ctx context.Context, chatID int64, patch SettingsPatch) (ChatSettings, error) {
	settings, err := s.GetChatSettings(ctx, chatID)
	if err != nil {
		return ChatSettings{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	patch.Apply(&settings)
	s.settings[chatID] = settings
	return settings, nil
}

func (s *mockStore) GetStopwords(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return append([]string(nil), s.stopwords...), nil
}

func (s *mockStore) AddStopword(_ context.Context, word string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	for _, w := range s.stopwords {
		if strings.EqualFold(w, word) {
			return false, nil
		}
	}
	s.stopwords = append(s.stopwords, word)
	return true, nil
}

func (s *mockStore) RemoveStopword(_ context.Context, word string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	for i, w := range s.stopwords {
		if strings.EqualFold(w, word) {
			s.stopwords = append(s.stopwords[:i], s.stopwords[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *mockStore) Close() error { return nil }

func (s *mockStore) setSettings(settings ChatSettings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[settings.ChatID] = settings
}

var errMock = errors.New("mock failure")

// recordingMetrics counts captcha outcomes and rule matches
type recordingMetrics struct {
	nopMetrics
	mu           sync.Mutex
	rules        map[string]int
	captchas     map[string]int
	floodWindows int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{rules: make(map[string]int), captchas: make(map[string]int)}
}

func (r *recordingMetrics) IncRuleMatch(rule string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules[rule]++
}

func (r *recordingMetrics) IncCaptcha(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.captchas[outcome]++
}

func (r *recordingMetrics) SetFloodWindows(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.floodWindows = n
}

func (r *recordingMetrics) windows() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.floodWindows
}

func (r *recordingMetrics) rule(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rules[name]
}

func (r *recordingMetrics) captcha(outcome string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.captchas[outcome]
}

type testPipeline struct {
	*Pipeline
	client   *mockClient
	store    *mockStore
	metrics  *recordingMetrics
	captchas *captcha.Registry
}

func newTestPipeline(t *testing.T, captchaTimeout time.Duration) *testPipeline {
	t.Helper()

	config := DefaultConfig().Moderation
	client := newMockClient()
	store := newMockStore()
	metrics := newRecordingMetrics()
	floodgate := flood.New(config.FloodMaxMessages, config.FloodWindow)
	registry := captcha.NewRegistry(captchaTimeout, zap.NewNop())
	t.Cleanup(func() {
		floodgate.Stop()
		registry.Stop()
	})

	p := NewPipeline(&config, client, store, floodgate, registry,
		i18n.NewLocalizer(i18n.DefaultLanguage), metrics, zap.NewNop())

	return &testPipeline{Pipeline: p, client: client, store: store, metrics: metrics, captchas: registry}
}

func textEvent(messageID int, message string) *chat.Event {
	return &chat.Event{
		Kind:      chat.EventTextMessage,
		ChatID:    testChatID,
		IsGroup:   true,
		UserID:    testUserID,
		UserName:  "Alice",
		MessageID: messageID,
		Text:      message,
	}
}

func joinEvent(userID int64) *chat.Event {
	return &chat.Event{
		Kind:      chat.EventMembershipChange,
		ChatID:    testChatID,
		IsGroup:   true,
		UserID:    userID,
		UserName:  "Bob",
		OldStatus: chat.StatusLeft,
		NewStatus: chat.StatusMember,
	}
}

func callbackEvent(responderID int64, data string, promptID int) *chat.Event {
	return &chat.Event{
		Kind:         chat.EventVerificationCallback,
		ChatID:       testChatID,
		IsGroup:      true,
		UserID:       responderID,
		MessageID:    promptID,
		CallbackID:   "cb-1",
		CallbackData: data,
	}
}

// waitFor polls cond until it holds or the timeout passes
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
