package store

import (
	"context"
	"sync"

	"chatguard/internal/core"
)

// MemoryStore keeps settings and stopwords in process memory. Contents are lost on restart.
type MemoryStore struct {
	mutex    sync.RWMutex
	settings map[int64]core.ChatSettings
	words    []string          // insertion order
	keys     map[string]string // lowercase key -> stored word
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		settings: make(map[int64]core.ChatSettings),
		keys:     make(map[string]string),
	}
}

func (s *MemoryStore) GetChatSettings(_ context.Context, chatID int64) (core.ChatSettings, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if settings, ok := s.settings[chatID]; ok {
		return settings, nil
	}
	settings := core.DefaultChatSettings(chatID)
	s.settings[chatID] = settings
	return settings, nil
}

func (s *MemoryStore) UpdateChatSettings(_ context.Context, chatID int64, patch core.SettingsPatch) (core.ChatSettings, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	settings, ok := s.settings[chatID]
	if !ok {
		settings = core.DefaultChatSettings(chatID)
	}
	patch.Apply(&settings)
	s.settings[chatID] = settings
	return settings, nil
}

func (s *MemoryStore) GetStopwords(_ context.Context) ([]string, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	words := make([]string, len(s.words))
	copy(words, s.words)
	return words, nil
}

func (s *MemoryStore) AddStopword(_ context.Context, word string) (bool, error) {
	normalized, key, err := wordKey(word)
	if err != nil {
		return false, err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.keys[key]; exists {
		return false, nil
	}
	s.keys[key] = normalized
	s.words = append(s.words, normalized)
	return true, nil
}

func (s *MemoryStore) RemoveStopword(_ context.Context, word string) (bool, error) {
	_, key, err := wordKey(word)
	if err != nil {
		return false, err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	stored, exists := s.keys[key]
	if !exists {
		return false, nil
	}
	delete(s.keys, key)
	for i, w := range s.words {
		if w == stored {
			s.words = append(s.words[:i], s.words[i+1:]...)
			break
		}
	}
	return true, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
