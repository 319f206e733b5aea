package store

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"chatguard/internal/core"
)

// DefaultRedisPrefix namespaces every key the store writes
const DefaultRedisPrefix = "chatguard:"

const (
	fieldCaptcha   = "captcha"
	fieldLinks     = "links"
	fieldUpdatedAt = "updated_at"
)

// RedisStore keeps settings and stopwords in Redis so several bot instances can share them.
//
// Layout: one hash per chat at <prefix>chat:<id>, and one hash <prefix>stopwords
// mapping the lowercase word to the word as entered.
type RedisStore struct {
	Client *redis.Client
	prefix string
}

func NewRedisStore(ctx context.Context, redisURL, prefix string) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{Client: rdb, prefix: prefix}, nil
}

func (s *RedisStore) chatKey(chatID int64) string {
	return s.prefix + "chat:" + strconv.FormatInt(chatID, 10)
}

func (s *RedisStore) stopwordsKey() string {
	return s.prefix + "stopwords"
}

func (s *RedisStore) GetChatSettings(ctx context.Context, chatID int64) (core.ChatSettings, error) {
	key := s.chatKey(chatID)
	defaults := core.DefaultChatSettings(chatID)

	// Fill in whatever is missing without clobbering concurrent writers
	multi := s.Client.TxPipeline()
	multi.HSetNX(ctx, key, fieldCaptcha, formatBool(defaults.CaptchaEnabled))
	multi.HSetNX(ctx, key, fieldLinks, formatBool(defaults.LinksFilterEnabled))
	multi.HSetNX(ctx, key, fieldUpdatedAt, defaults.UpdatedAt.Unix())
	fields := multi.HGetAll(ctx, key)
	if _, err := multi.Exec(ctx); err != nil {
		return core.ChatSettings{}, fmt.Errorf("fetch chat settings: %w", err)
	}

	return parseSettings(chatID, fields.Val())
}

func (s *RedisStore) UpdateChatSettings(ctx context.Context, chatID int64, patch core.SettingsPatch) (core.ChatSettings, error) {
	settings, err := s.GetChatSettings(ctx, chatID)
	if err != nil {
		return core.ChatSettings{}, err
	}
	patch.Apply(&settings)

	values := map[string]any{fieldUpdatedAt: settings.UpdatedAt.Unix()}
	if patch.CaptchaEnabled != nil {
		values[fieldCaptcha] = formatBool(settings.CaptchaEnabled)
	}
	if patch.LinksFilterEnabled != nil {
		values[fieldLinks] = formatBool(settings.LinksFilterEnabled)
	}

	if err := s.Client.HSet(ctx, s.chatKey(chatID), values).Err(); err != nil {
		return core.ChatSettings{}, fmt.Errorf("save chat settings: %w", err)
	}
	return settings, nil
}

func (s *RedisStore) GetStopwords(ctx context.Context) ([]string, error) {
	words, err := s.Client.HVals(ctx, s.stopwordsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list stopwords: %w", err)
	}
	sort.Strings(words)
	return words, nil
}

func (s *RedisStore) AddStopword(ctx context.Context, word string) (bool, error) {
	normalized, key, err := wordKey(word)
	if err != nil {
		return false, err
	}

	added, err := s.Client.HSetNX(ctx, s.stopwordsKey(), key, normalized).Result()
	if err != nil {
		return false, fmt.Errorf("add stopword: %w", err)
	}
	return added, nil
}

func (s *RedisStore) RemoveStopword(ctx context.Context, word string) (bool, error) {
	_, key, err := wordKey(word)
	if err != nil {
		return false, err
	}

	n, err := s.Client.HDel(ctx, s.stopwordsKey(), key).Result()
	if err != nil {
		return false, fmt.Errorf("remove stopword: %w", err)
	}
	return n > 0, nil
}

func (s *RedisStore) Close() error {
	return s.Client.Close()
}

func formatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func parseSettings(chatID int64, fields map[string]string) (core.ChatSettings, error) {
	settings := core.ChatSettings{
		ChatID:             chatID,
		CaptchaEnabled:     fields[fieldCaptcha] == "1",
		LinksFilterEnabled: fields[fieldLinks] == "1",
	}

	if raw, ok := fields[fieldUpdatedAt]; ok {
		ts, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return core.ChatSettings{}, fmt.Errorf("parse updated_at %q: %w", raw, err)
		}
		settings.UpdatedAt = time.Unix(ts, 0).UTC()
	}
	return settings, nil
}
