// Package config handles application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"rss_relay/internal/model"
)

// ErrInvalid wraps every configuration problem reported by Load.
var ErrInvalid = errors.New("invalid configuration")

// Config holds the application configuration.
type Config struct {
	BotToken     string
	FeedURL      string
	PollInterval time.Duration
	DatabasePath string

	Mode      model.DeliveryMode
	FirstPoll model.FirstPollPolicy

	FetchTimeout time.Duration
	SendTimeout  time.Duration
	SendRate     int
	SendRetries  int
	LogLevel     string
}

// Load reads configuration from the environment, after loading a .env file
// from the working directory if one exists. All problems are reported together.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var errs []error
	cfg := &Config{
		BotToken:     firstEnv("BOT_TOKEN", "TELEGRAM_TOKEN"),
		FeedURL:      firstEnv("FEED_URL", "RSS_URL"),
		DatabasePath: os.Getenv("DATABASE_LOCATION"),
		LogLevel:     envOrDefault("LOG_LEVEL", "info"),
	}

	if cfg.BotToken == "" {
		errs = append(errs, errors.New("BOT_TOKEN is required"))
	}
	if cfg.FeedURL == "" {
		errs = append(errs, errors.New("FEED_URL is required"))
	} else if err := ValidateFeedURL(cfg.FeedURL); err != nil {
		errs = append(errs, fmt.Errorf("FEED_URL: %w", err))
	}
	if cfg.DatabasePath == "" {
		errs = append(errs, errors.New("DATABASE_LOCATION is required"))
	}

	if raw := os.Getenv("POLL_INTERVAL_SECONDS"); raw == "" {
		errs = append(errs, errors.New("POLL_INTERVAL_SECONDS is required"))
	} else if d, err := ParseInterval(raw); err != nil {
		errs = append(errs, fmt.Errorf("POLL_INTERVAL_SECONDS: %w", err))
	} else {
		cfg.PollInterval = d
	}

	switch mode := model.DeliveryMode(strings.ToLower(envOrDefault("DELIVERY_MODE", string(model.ModeGlobal)))); mode {
	case model.ModeGlobal, model.ModeSubscriber:
		cfg.Mode = mode
	default:
		errs = append(errs, fmt.Errorf("DELIVERY_MODE must be %q or %q, got %q", model.ModeGlobal, model.ModeSubscriber, mode))
	}

	switch policy := model.FirstPollPolicy(strings.ToLower(envOrDefault("FIRST_POLL", string(model.FirstPollBaseline)))); policy {
	case model.FirstPollBaseline, model.FirstPollAnnounce:
		cfg.FirstPoll = policy
	default:
		errs = append(errs, fmt.Errorf("FIRST_POLL must be %q or %q, got %q", model.FirstPollBaseline, model.FirstPollAnnounce, policy))
	}

	cfg.FetchTimeout = time.Duration(positiveInt("FETCH_TIMEOUT_SECONDS", 20, &errs)) * time.Second
	cfg.SendTimeout = time.Duration(positiveInt("SEND_TIMEOUT_SECONDS", 30, &errs)) * time.Second
	cfg.SendRate = positiveInt("SEND_RATE_PER_SECOND", 20, &errs)

	retries, err := strconv.Atoi(envOrDefault("SEND_RETRIES", "2"))
	if err != nil || retries < 0 {
		errs = append(errs, errors.New("SEND_RETRIES must be a non-negative integer"))
	}
	cfg.SendRetries = retries

	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return cfg, nil
}

// ValidateFeedURL checks that raw is an absolute http(s) URL.
func ValidateFeedURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL %q must use http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("URL %q has no host", raw)
	}
	return nil
}

// ParseInterval parses a poll interval given in whole seconds.
func ParseInterval(raw string) (time.Duration, error) {
	secs, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%q is not an integer", raw)
	}
	if secs < 1 {
		return 0, fmt.Errorf("interval must be a positive number of seconds, got %d", secs)
	}
	return time.Duration(secs) * time.Second, nil
}

func positiveInt(key string, def int, errs *[]error) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		*errs = append(*errs, fmt.Errorf("%s must be a positive integer, got %q", key, raw))
		return def
	}
	return v
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
