package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // SQLite driver registration.

	"rss_relay/internal/model"
	"rss_relay/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements Storage backed by a SQLite database.
//
// The pool is capped at a single connection, so every statement is
// serialized and read-modify-write statements cannot interleave.
type SQLite struct {
	db *sqlx.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if err := migrations.Run(db.DB); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// AnnouncementState returns the global announcement toggle, creating it
// enabled if it does not exist yet.
func (s *SQLite) AnnouncementState(ctx context.Context) (model.AnnouncementState, error) {
	var enabled bool
	err := s.db.GetContext(ctx, &enabled, `SELECT enabled FROM announcement_state WHERE id = 1`)
	if errors.Is(err, sql.ErrNoRows) {
		if _, err := s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO announcement_state (id, enabled) VALUES (1, 1)`,
		); err != nil {
			return model.AnnouncementState{}, fmt.Errorf("create announcement state: %w", err)
		}
		return model.AnnouncementState{Enabled: true}, nil
	}
	if err != nil {
		return model.AnnouncementState{}, fmt.Errorf("get announcement state: %w", err)
	}
	return model.AnnouncementState{Enabled: enabled}, nil
}

// ToggleAnnouncements flips the global toggle and returns the new state.
func (s *SQLite) ToggleAnnouncements(ctx context.Context) (model.AnnouncementState, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return model.AnnouncementState{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO announcement_state (id, enabled) VALUES (1, 1)`,
	); err != nil {
		return model.AnnouncementState{}, fmt.Errorf("create announcement state: %w", err)
	}

	var enabled bool
	if err := tx.GetContext(ctx, &enabled,
		`UPDATE announcement_state SET enabled = 1 - enabled WHERE id = 1 RETURNING enabled`,
	); err != nil {
		return model.AnnouncementState{}, fmt.Errorf("toggle announcements: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return model.AnnouncementState{}, fmt.Errorf("commit toggle: %w", err)
	}
	return model.AnnouncementState{Enabled: enabled}, nil
}

// SetSubscription upserts the subscription flag of a chat.
func (s *SQLite) SetSubscription(ctx context.Context, chatID int64, subscribed bool) error {
	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subscriptions (chat_id, subscribed, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (chat_id) DO UPDATE SET
		     subscribed = excluded.subscribed,
		     updated_at = excluded.updated_at`,
		chatID, boolToInt(subscribed), now,
	)
	if err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}
	return nil
}

// GetSubscription returns the subscription of a chat. A chat without a
// record is reported as unsubscribed.
func (s *SQLite) GetSubscription(ctx context.Context, chatID int64) (model.Subscription, error) {
	var sub model.Subscription
	err := s.db.GetContext(ctx, &sub,
		`SELECT chat_id, subscribed FROM subscriptions WHERE chat_id = ?`, chatID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Subscription{ChatID: chatID}, nil
	}
	if err != nil {
		return model.Subscription{}, fmt.Errorf("get subscription: %w", err)
	}
	return sub, nil
}

// ListSubscribedChats returns the IDs of all chats currently subscribed.
func (s *SQLite) ListSubscribedChats(ctx context.Context) ([]int64, error) {
	var ids []int64
	if err := s.db.SelectContext(ctx, &ids,
		`SELECT chat_id FROM subscriptions WHERE subscribed = 1 ORDER BY chat_id`,
	); err != nil {
		return nil, fmt.Errorf("list subscribed chats: %w", err)
	}
	return ids, nil
}

// RegisterChat records that the bot has seen a chat.
func (s *SQLite) RegisterChat(ctx context.Context, chat model.Chat) error {
	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chats (chat_id, type, title, first_seen_at, last_seen_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (chat_id) DO UPDATE SET
		     type = excluded.type,
		     title = excluded.title,
		     last_seen_at = excluded.last_seen_at`,
		chat.ChatID, chat.Type, chat.Title, now, now,
	)
	if err != nil {
		return fmt.Errorf("register chat: %w", err)
	}
	return nil
}

// UnregisterChat drops a chat the bot was removed from and turns off its
// subscription. A subscription record, if any, is kept.
func (s *SQLite) UnregisterChat(ctx context.Context, chatID int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chats WHERE chat_id = ?`, chatID); err != nil {
		return fmt.Errorf("delete chat: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE subscriptions SET subscribed = 0, updated_at = ? WHERE chat_id = ?`,
		time.Now().UTC().Format(timeLayout), chatID,
	); err != nil {
		return fmt.Errorf("unsubscribe chat: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit unregister: %w", err)
	}
	return nil
}

// ListChats returns the IDs of every chat the bot has seen.
func (s *SQLite) ListChats(ctx context.Context) ([]int64, error) {
	var ids []int64
	if err := s.db.SelectContext(ctx, &ids, `SELECT chat_id FROM chats ORDER BY chat_id`); err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	return ids, nil
}

// GetSetting returns the value stored under key and whether it exists.
func (s *SQLite) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.GetContext(ctx, &value, `SELECT value FROM settings WHERE key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get setting %s: %w", key, err)
	}
	return value, true, nil
}

// SetSetting upserts a setting.
func (s *SQLite) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

// DeleteSetting removes a setting. Removing a missing key is not an error.
func (s *SQLite) DeleteSetting(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete setting %s: %w", key, err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
