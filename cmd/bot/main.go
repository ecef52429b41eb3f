package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/coreos/go-systemd/v22/daemon"

	"rss_relay/internal/bot"
	"rss_relay/internal/config"
	"rss_relay/internal/dedup"
	"rss_relay/internal/dispatch"
	"rss_relay/internal/fetcher"
	"rss_relay/internal/scheduler"
	"rss_relay/internal/storage"
	"rss_relay/migrations"
)

var createBot = bot.New

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)
	migrations.SetLogger(log)

	if err := run(cfg, log); err != nil {
		log.Error("bot failed", "error", err)
		os.Exit(1)
	}
	log.Info("bot stopped")
}

func run(cfg *config.Config, log *slog.Logger) error {
	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create data directory %s: %w", dir, err)
		}
	}

	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open database %s: %w", cfg.DatabasePath, err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("close database", "error", err)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rt := config.NewRuntime(cfg.FeedURL, cfg.PollInterval)
	applyOverrides(ctx, store, rt, log)

	b, err := createBot(cfg, rt, store, log)
	if err != nil {
		return fmt.Errorf("create bot: %w", err)
	}
	b.OnShutdown(cancel)

	poller := fetcher.NewPoller(fetcher.New(http.DefaultClient, cfg.FetchTimeout), rt, log)
	tracker := dedup.New(store, cfg.FirstPoll, log)
	dispatcher := dispatch.New(b, store, cfg.Mode, dispatch.Options{
		RatePerSec: cfg.SendRate,
		Retries:    cfg.SendRetries,
	}, log)
	sched := scheduler.New(poller, tracker, dispatcher, rt.PollInterval(), log)
	rt.OnPollIntervalChange(sched.Reschedule)

	log.Info("starting bot",
		"feed", rt.FeedURL(),
		"interval", rt.PollInterval(),
		"mode", cfg.Mode,
		"first_poll", cfg.FirstPoll,
	)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sched.Run(ctx)
	}()

	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.Debug("sd_notify ready", "error", err)
	}

	b.Run(ctx)

	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	log.Info("stopping, waiting for the current poll to finish")
	wg.Wait()
	return nil
}

// applyOverrides restores settings an admin changed in a previous run.
func applyOverrides(ctx context.Context, store storage.Storage, rt *config.Runtime, log *slog.Logger) {
	if raw, ok, err := store.GetSetting(ctx, storage.KeyFeedURL); err != nil {
		log.Error("read stored feed url", "error", err)
	} else if ok {
		if err := rt.SetFeedURL(raw); err != nil {
			log.Warn("ignoring stored feed url", "value", raw, "error", err)
		}
	}

	if raw, ok, err := store.GetSetting(ctx, storage.KeyPollInterval); err != nil {
		log.Error("read stored poll interval", "error", err)
	} else if ok {
		d, err := config.ParseInterval(raw)
		if err == nil {
			err = rt.SetPollInterval(d)
		}
		if err != nil {
			log.Warn("ignoring stored poll interval", "value", raw, "error", err)
		}
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
