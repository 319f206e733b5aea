package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"chatguard/internal/core"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS chat_settings (
	chat_id              INTEGER PRIMARY KEY,
	captcha_enabled      INTEGER NOT NULL,
	links_filter_enabled INTEGER NOT NULL,
	updated_at           INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS stopwords (
	word_key   TEXT PRIMARY KEY,
	word       TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
`

// SQLiteStore persists settings and stopwords in a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and applies the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}

	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("create store directory: %w", err)
			}
		}
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	// A single connection keeps :memory: databases shared and serializes writers
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite store: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) GetChatSettings(ctx context.Context, chatID int64) (core.ChatSettings, error) {
	settings, err := s.readSettings(ctx, s.db, chatID)
	if err == nil {
		return settings, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return core.ChatSettings{}, err
	}

	settings = core.DefaultChatSettings(chatID)
	if _, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO chat_settings (chat_id, captcha_enabled, links_filter_enabled, updated_at)
		VALUES (?, ?, ?, ?)
	`, chatID, settings.CaptchaEnabled, settings.LinksFilterEnabled, settings.UpdatedAt.Unix()); err != nil {
		return core.ChatSettings{}, fmt.Errorf("create chat settings: %w", err)
	}

	// Another writer may have won the insert
	return s.readSettings(ctx, s.db, chatID)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLiteStore) readSettings(ctx context.Context, q queryRower, chatID int64) (core.ChatSettings, error) {
	var (
		captcha   bool
		links     bool
		updatedAt int64
	)

	row := q.QueryRowContext(ctx, `
		SELECT captcha_enabled, links_filter_enabled, updated_at
		FROM chat_settings
		WHERE chat_id = ?
	`, chatID)
	if err := row.Scan(&captcha, &links, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.ChatSettings{}, err
		}
		return core.ChatSettings{}, fmt.Errorf("fetch chat settings: %w", err)
	}

	return core.ChatSettings{
		ChatID:             chatID,
		CaptchaEnabled:     captcha,
		LinksFilterEnabled: links,
		UpdatedAt:          time.Unix(updatedAt, 0).UTC(),
	}, nil
}

func (s *SQLiteStore) UpdateChatSettings(ctx context.Context, chatID int64, patch core.SettingsPatch) (core.ChatSettings, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.ChatSettings{}, fmt.Errorf("begin settings update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	settings, err := s.readSettings(ctx, tx, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		settings = core.DefaultChatSettings(chatID)
	} else if err != nil {
		return core.ChatSettings{}, err
	}

	patch.Apply(&settings)

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO chat_settings (chat_id, captcha_enabled, links_filter_enabled, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(chat_id) DO UPDATE SET
			captcha_enabled = excluded.captcha_enabled,
			links_filter_enabled = excluded.links_filter_enabled,
			updated_at = excluded.updated_at
	`, chatID, settings.CaptchaEnabled, settings.LinksFilterEnabled, settings.UpdatedAt.Unix()); err != nil {
		return core.ChatSettings{}, fmt.Errorf("save chat settings: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return core.ChatSettings{}, fmt.Errorf("commit settings update: %w", err)
	}
	return settings, nil
}

func (s *SQLiteStore) GetStopwords(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT word FROM stopwords ORDER BY created_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("list stopwords: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var words []string
	for rows.Next() {
		var word string
		if err := rows.Scan(&word); err != nil {
			return nil, fmt.Errorf("scan stopword: %w", err)
		}
		words = append(words, word)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list stopwords: %w", err)
	}
	return words, nil
}

func (s *SQLiteStore) AddStopword(ctx context.Context, word string) (bool, error) {
	normalized, key, err := wordKey(word)
	if err != nil {
		return false, err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO stopwords (word_key, word, created_at) VALUES (?, ?, ?)
	`, key, normalized, time.Now().UnixNano())
	if err != nil {
		return false, fmt.Errorf("add stopword: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("add stopword: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) RemoveStopword(ctx context.Context, word string) (bool, error) {
	_, key, err := wordKey(word)
	if err != nil {
		return false, err
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM stopwords WHERE word_key = ?`, key)
	if err != nil {
		return false, fmt.Errorf("remove stopword: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove stopword: %w", err)
	}
	return n > 0, nil
}

// Close releases database resources.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
