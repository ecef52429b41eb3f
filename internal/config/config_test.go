package config

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"rss_relay/internal/model"
)

var envKeys = []string{
	"BOT_TOKEN", "TELEGRAM_TOKEN", "FEED_URL", "RSS_URL", "POLL_INTERVAL_SECONDS",
	"DATABASE_LOCATION", "DELIVERY_MODE", "FIRST_POLL", "FETCH_TIMEOUT_SECONDS",
	"SEND_TIMEOUT_SECONDS", "SEND_RATE_PER_SECOND", "SEND_RETRIES", "LOG_LEVEL",
}

var required = map[string]string{
	"BOT_TOKEN":             "tok",
	"FEED_URL":              "https://example.com/rss",
	"POLL_INTERVAL_SECONDS": "600",
	"DATABASE_LOCATION":     "/tmp/relay.db",
}

func withRequired(extra map[string]string) map[string]string {
	env := make(map[string]string, len(required)+len(extra))
	for k, v := range required {
		env[k] = v
	}
	for k, v := range extra {
		env[k] = v
	}
	return env
}

func TestLoad(t *testing.T) {
	defaults := &Config{
		BotToken:     "tok",
		FeedURL:      "https://example.com/rss",
		PollInterval: 600 * time.Second,
		DatabasePath: "/tmp/relay.db",
		Mode:         model.ModeGlobal,
		FirstPoll:    model.FirstPollBaseline,
		FetchTimeout: 20 * time.Second,
		SendTimeout:  30 * time.Second,
		SendRate:     20,
		SendRetries:  2,
		LogLevel:     "info",
	}

	tests := []struct {
		name    string
		env     map[string]string
		want    *Config
		wantErr []string
	}{
		{
			name:    "nothing set",
			env:     map[string]string{},
			wantErr: []string{"BOT_TOKEN", "FEED_URL", "POLL_INTERVAL_SECONDS", "DATABASE_LOCATION"},
		},
		{
			name: "required only, defaults applied",
			env:  withRequired(nil),
			want: defaults,
		},
		{
			name: "legacy variable names",
			env: map[string]string{
				"TELEGRAM_TOKEN":        "tok",
				"RSS_URL":               "https://example.com/rss",
				"POLL_INTERVAL_SECONDS": "600",
				"DATABASE_LOCATION":     "/tmp/relay.db",
			},
			want: defaults,
		},
		{
			name: "all values set",
			env: withRequired(map[string]string{
				"DELIVERY_MODE":         "Subscriber",
				"FIRST_POLL":            "announce",
				"FETCH_TIMEOUT_SECONDS": "5",
				"SEND_TIMEOUT_SECONDS":  "15",
				"SEND_RATE_PER_SECOND":  "3",
				"SEND_RETRIES":          "0",
				"LOG_LEVEL":             "debug",
			}),
			want: &Config{
				BotToken:     "tok",
				FeedURL:      "https://example.com/rss",
				PollInterval: 600 * time.Second,
				DatabasePath: "/tmp/relay.db",
				Mode:         model.ModeSubscriber,
				FirstPoll:    model.FirstPollAnnounce,
				FetchTimeout: 5 * time.Second,
				SendTimeout:  15 * time.Second,
				SendRate:     3,
				SendRetries:  0,
				LogLevel:     "debug",
			},
		},
		{
			name:    "non-integer interval",
			env:     withRequired(map[string]string{"POLL_INTERVAL_SECONDS": "ten"}),
			wantErr: []string{"POLL_INTERVAL_SECONDS"},
		},
		{
			name:    "zero interval",
			env:     withRequired(map[string]string{"POLL_INTERVAL_SECONDS": "0"}),
			wantErr: []string{"POLL_INTERVAL_SECONDS"},
		},
		{
			name:    "relative feed url",
			env:     withRequired(map[string]string{"FEED_URL": "example.com/rss"}),
			wantErr: []string{"FEED_URL"},
		},
		{
			name:    "unknown mode and policy",
			env:     withRequired(map[string]string{"DELIVERY_MODE": "broadcast", "FIRST_POLL": "never"}),
			wantErr: []string{"DELIVERY_MODE", "FIRST_POLL"},
		},
		{
			name:    "bad tuning values",
			env:     withRequired(map[string]string{"SEND_RATE_PER_SECOND": "-1", "SEND_RETRIES": "x"}),
			wantErr: []string{"SEND_RATE_PER_SECOND", "SEND_RETRIES"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range envKeys {
				t.Setenv(key, "")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			got, err := Load()
			if len(tt.wantErr) > 0 {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !errors.Is(err, ErrInvalid) {
					t.Errorf("error %v does not wrap ErrInvalid", err)
				}
				for _, want := range tt.wantErr {
					if !strings.Contains(err.Error(), want) {
						t.Errorf("error %q does not mention %s", err, want)
					}
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Load() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseInterval(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: "30", want: 30 * time.Second},
		{in: " 600 ", want: 10 * time.Minute},
		{in: "0", wantErr: true},
		{in: "-5", wantErr: true},
		{in: "1.5", wantErr: true},
		{in: "soon", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseInterval(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseInterval(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseInterval(%q) (-want +got):\n%s", tt.in, diff)
			}
		})
	}
}

func TestRuntime(t *testing.T) {
	rt := NewRuntime("https://a.example/rss", 10*time.Minute)

	var mu sync.Mutex
	var notified []time.Duration
	rt.OnPollIntervalChange(func(d time.Duration) {
		mu.Lock()
		notified = append(notified, d)
		mu.Unlock()
	})

	if err := rt.SetPollInterval(30 * time.Second); err != nil {
		t.Fatalf("set interval: %v", err)
	}
	if err := rt.SetPollInterval(0); err == nil {
		t.Error("expected error for zero interval")
	}
	if err := rt.SetFeedURL("ftp://b.example/rss"); err == nil {
		t.Error("expected error for ftp url")
	}
	if err := rt.SetFeedURL("https://b.example/rss"); err != nil {
		t.Fatalf("set feed url: %v", err)
	}

	if diff := cmp.Diff(30*time.Second, rt.PollInterval()); diff != "" {
		t.Errorf("interval (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff("https://b.example/rss", rt.FeedURL()); diff != "" {
		t.Errorf("feed url (-want +got):\n%s", diff)
	}
	mu.Lock()
	defer mu.Unlock()
	if diff := cmp.Diff([]time.Duration{30 * time.Second}, notified); diff != "" {
		t.Errorf("notifications (-want +got):\n%s", diff)
	}
}
