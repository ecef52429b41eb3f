// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"

	"rss_relay/internal/model"
)

// Keys of the settings table.
const (
	KeyLastSeenLink = "last_seen_link"
	KeyFeedURL      = "feed_url"
	KeyPollInterval = "poll_interval_seconds"
)

// Storage is the interface for all persistence operations.
type Storage interface {
	AnnouncementState(ctx context.Context) (model.AnnouncementState, error)
	ToggleAnnouncements(ctx context.Context) (model.AnnouncementState, error)

	SetSubscription(ctx context.Context, chatID int64, subscribed bool) error
	GetSubscription(ctx context.Context, chatID int64) (model.Subscription, error)
	ListSubscribedChats(ctx context.Context) ([]int64, error)

	RegisterChat(ctx context.Context, chat model.Chat) error
	UnregisterChat(ctx context.Context, chatID int64) error
	ListChats(ctx context.Context) ([]int64, error)

	GetSetting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
	DeleteSetting(ctx context.Context, key string) error

	Close() error
}
