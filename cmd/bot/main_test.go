package main

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"log/slog"
	"testing"
	"time"

	"rss_relay/internal/bot"
	"rss_relay/internal/config"
	"rss_relay/internal/storage"
)

func TestApplyOverrides(t *testing.T) {
	tests := []struct {
		name         string
		settings     map[string]string
		wantURL      string
		wantInterval time.Duration
	}{
		{
			name:         "none stored",
			wantURL:      "https://example.com/feed.xml",
			wantInterval: 10 * time.Minute,
		},
		{
			name:         "both stored",
			settings:     map[string]string{storage.KeyFeedURL: "https://other.example.com/rss", storage.KeyPollInterval: "45"},
			wantURL:      "https://other.example.com/rss",
			wantInterval: 45 * time.Second,
		},
		{
			name:         "invalid values ignored",
			settings:     map[string]string{storage.KeyFeedURL: "not a url", storage.KeyPollInterval: "0"},
			wantURL:      "https://example.com/feed.xml",
			wantInterval: 10 * time.Minute,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store, err := storage.NewSQLite(":memory:")
			if err != nil {
				t.Fatalf("new sqlite: %v", err)
			}
			defer func() { _ = store.Close() }()
			for k, v := range tt.settings {
				if err := store.SetSetting(ctx, k, v); err != nil {
					t.Fatalf("set %s: %v", k, err)
				}
			}

			rt := config.NewRuntime("https://example.com/feed.xml", 10*time.Minute)
			applyOverrides(ctx, store, rt, slog.New(slog.NewTextHandler(io.Discard, nil)))

			if got := rt.FeedURL(); got != tt.wantURL {
				t.Errorf("feed url = %q, want %q", got, tt.wantURL)
			}
			if got := rt.PollInterval(); got != tt.wantInterval {
				t.Errorf("interval = %v, want %v", got, tt.wantInterval)
			}
		})
	}
}

func TestRunReturnsBotError(t *testing.T) {
	errToken := errors.New("unauthorized")
	orig := createBot
	t.Cleanup(func() { createBot = orig })

	var gotStore storage.Storage
	createBot = func(_ *config.Config, _ *config.Runtime, store storage.Storage, _ *slog.Logger) (*bot.Bot, error) {
		gotStore = store
		return nil, errToken
	}

	cfg := &config.Config{
		FeedURL:      "https://example.com/feed.xml",
		PollInterval: time.Minute,
		DatabasePath: filepath.Join(t.TempDir(), "data", "bot.db"),
	}
	err := run(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if !errors.Is(err, errToken) {
		t.Fatalf("run error = %v, want %v", err, errToken)
	}
	if gotStore == nil {
		t.Fatal("bot constructor was not called")
	}
	if _, err := gotStore.AnnouncementState(context.Background()); err == nil {
		t.Error("store was left open after run returned")
	}
}
