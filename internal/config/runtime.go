package config

import (
	"errors"
	"sync"
	"time"
)

// Runtime holds the settings an admin may change while the service runs.
// It is shared by the scheduler and the command handler.
type Runtime struct {
	mu        sync.RWMutex
	feedURL   string
	interval  time.Duration
	listeners []func(time.Duration)
}

// NewRuntime creates a Runtime seeded from the startup configuration.
func NewRuntime(feedURL string, interval time.Duration) *Runtime {
	return &Runtime{feedURL: feedURL, interval: interval}
}

// FeedURL returns the feed currently polled.
func (r *Runtime) FeedURL() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.feedURL
}

// PollInterval returns the current poll period.
func (r *Runtime) PollInterval() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.interval
}

// SetFeedURL replaces the polled feed. It takes effect on the next poll.
func (r *Runtime) SetFeedURL(raw string) error {
	if err := ValidateFeedURL(raw); err != nil {
		return err
	}
	r.mu.Lock()
	r.feedURL = raw
	r.mu.Unlock()
	return nil
}

// SetPollInterval replaces the poll period and notifies every listener
// registered with OnPollIntervalChange.
func (r *Runtime) SetPollInterval(d time.Duration) error {
	if d < time.Second {
		return errors.New("interval must be at least one second")
	}
	r.mu.Lock()
	r.interval = d
	listeners := append([]func(time.Duration){}, r.listeners...)
	r.mu.Unlock()

	for _, fn := range listeners {
		fn(d)
	}
	return nil
}

// OnPollIntervalChange registers fn to run after every interval change.
func (r *Runtime) OnPollIntervalChange(fn func(time.Duration)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}
