// Package model defines the domain types used across the application.
package model

import (
	"errors"
	"time"
)

// ErrRecipientUnreachable marks a delivery failure that will not succeed on retry,
// e.g. the bot was blocked or removed from the chat.
var ErrRecipientUnreachable = errors.New("recipient unreachable")

// DeliveryMode selects how the recipient set of an announcement is resolved.
type DeliveryMode string

// Supported delivery modes.
const (
	// ModeGlobal sends to every known chat, gated by the global AnnouncementState.
	ModeGlobal DeliveryMode = "global"
	// ModeSubscriber sends only to chats that opted in with /annonces on.
	ModeSubscriber DeliveryMode = "subscriber"
)

// FirstPollPolicy decides what happens to the first entry seen when no watermark exists.
type FirstPollPolicy string

// Supported first poll policies.
const (
	FirstPollBaseline FirstPollPolicy = "baseline"
	FirstPollAnnounce FirstPollPolicy = "announce"
)

// AnnouncementState is the singleton global announcement toggle.
type AnnouncementState struct {
	Enabled bool
}

// Subscription is the per-chat opt-in record used in subscriber mode.
type Subscription struct {
	ChatID     int64 `db:"chat_id"`
	Subscribed bool  `db:"subscribed"`
}

// Chat is a chat the bot has observed at least once.
type Chat struct {
	ChatID int64  `db:"chat_id"`
	Type   string `db:"type"`
	Title  string `db:"title"`
}

// FeedEntry is the newest entry of the polled feed. It is never persisted.
type FeedEntry struct {
	ID        string
	Title     string
	Link      string
	Author    string
	Published *time.Time
}
