// Package dedup remembers the last announced feed entry so that an entry is
// announced at most once.
package dedup

import (
	"context"
	"log/slog"
	"sync"

	"rss_relay/internal/model"
	"rss_relay/internal/storage"
)

// Store persists the watermark.
type Store interface {
	GetSetting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
}

// Verdict classifies a polled entry against the watermark.
type Verdict int

// Possible verdicts.
const (
	// Seen means the entry matches the watermark and must be ignored.
	Seen Verdict = iota
	// Baseline means no watermark exists yet and the entry only sets it.
	Baseline
	// Novel means the entry must be announced.
	Novel
)

func (v Verdict) String() string {
	switch v {
	case Seen:
		return "seen"
	case Baseline:
		return "baseline"
	case Novel:
		return "novel"
	default:
		return "unknown"
	}
}

// Tracker holds the LastSeenLink watermark. It is loaded lazily from the
// store and written back on every MarkSeen.
type Tracker struct {
	mu     sync.Mutex
	store  Store
	policy model.FirstPollPolicy
	log    *slog.Logger

	loaded bool
	last   string
}

// New creates a Tracker. A nil store keeps the watermark in memory only.
func New(store Store, policy model.FirstPollPolicy, log *slog.Logger) *Tracker {
	return &Tracker{store: store, policy: policy, log: log}
}

// Classify reports whether entry is seen, novel or only establishes the baseline.
// While the persisted watermark cannot be read every entry is reported as Seen.
func (t *Tracker) Classify(ctx context.Context, entry model.FeedEntry) Verdict {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.loadLocked(ctx) {
		return Seen
	}

	switch {
	case t.last == entry.ID:
		return Seen
	case t.last == "" && t.policy != model.FirstPollAnnounce:
		return Baseline
	default:
		return Novel
	}
}

// IsNovel reports whether entry must be announced.
func (t *Tracker) IsNovel(ctx context.Context, entry model.FeedEntry) bool {
	return t.Classify(ctx, entry) == Novel
}

// MarkSeen moves the watermark to entry. The in-memory watermark advances
// even if persisting it fails, so the entry is not re-announced in this run.
func (t *Tracker) MarkSeen(ctx context.Context, entry model.FeedEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.last = entry.ID
	t.loaded = true
	if t.store == nil {
		return
	}
	if err := t.store.SetSetting(ctx, storage.KeyLastSeenLink, entry.ID); err != nil {
		t.log.Error("persist watermark", "link", entry.ID, "error", err)
	}
}

// LastSeen returns the current watermark, or "" if none is set.
func (t *Tracker) LastSeen(ctx context.Context) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.loadLocked(ctx)
	return t.last
}

func (t *Tracker) loadLocked(ctx context.Context) bool {
	if t.loaded || t.store == nil {
		return true
	}
	link, ok, err := t.store.GetSetting(ctx, storage.KeyLastSeenLink)
	if err != nil {
		t.log.Error("load watermark", "error", err)
		return false
	}
	t.loaded = true
	if ok {
		t.last = link
	}
	return true
}
