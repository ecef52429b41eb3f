// Package dispatch fans an announcement out to every current recipient.
package dispatch

//go:generate mockgen -source=dispatch.go -destination=mocks/mock_dispatch.go -package=mocks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/samber/lo"
	"golang.org/x/time/rate"

	"rss_relay/internal/model"
)

// Sender delivers a text message to a chat.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// Store resolves recipients.
type Store interface {
	AnnouncementState(ctx context.Context) (model.AnnouncementState, error)
	ListChats(ctx context.Context) ([]int64, error)
	ListSubscribedChats(ctx context.Context) ([]int64, error)
}

// Options tunes delivery pacing and retries.
type Options struct {
	RatePerSec     int
	Retries        int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Report summarizes one fan-out.
type Report struct {
	Recipients int
	Delivered  int
	Failed     []int64
}

// Dispatcher sends announcements sequentially, one recipient at a time.
type Dispatcher struct {
	sender  Sender
	store   Store
	mode    model.DeliveryMode
	opts    Options
	limiter *rate.Limiter
	log     *slog.Logger
}

// New creates a Dispatcher for the given delivery mode.
func New(sender Sender, store Store, mode model.DeliveryMode, opts Options, log *slog.Logger) *Dispatcher {
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = 20
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = 500 * time.Millisecond
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 5 * time.Second
	}
	return &Dispatcher{
		sender:  sender,
		store:   store,
		mode:    mode,
		opts:    opts,
		limiter: rate.NewLimiter(rate.Limit(opts.RatePerSec), opts.RatePerSec),
		log:     log,
	}
}

// Mode returns the delivery mode the dispatcher was built for.
func (d *Dispatcher) Mode() model.DeliveryMode {
	return d.mode
}

// Recipients returns the chats an announcement goes to right now. Store
// failures are logged and yield no recipients.
func (d *Dispatcher) Recipients(ctx context.Context) []int64 {
	if d.mode == model.ModeSubscriber {
		ids, err := d.store.ListSubscribedChats(ctx)
		if err != nil {
			d.log.Error("list subscribed chats", "error", err)
			return nil
		}
		return lo.Uniq(ids)
	}

	state, err := d.store.AnnouncementState(ctx)
	if err != nil {
		d.log.Error("read announcement state, treating as disabled", "error", err)
		return nil
	}
	if !state.Enabled {
		d.log.Info("announcements disabled, skipping dispatch")
		return nil
	}
	ids, err := d.store.ListChats(ctx)
	if err != nil {
		d.log.Error("list chats", "error", err)
		return nil
	}
	return lo.Uniq(ids)
}

// Announce resolves the recipients and dispatches entry to them.
func (d *Dispatcher) Announce(ctx context.Context, entry model.FeedEntry) Report {
	return d.Dispatch(ctx, entry, d.Recipients(ctx))
}

// Dispatch sends entry to each recipient. A failed recipient is logged and
// skipped; it never stops delivery to the others.
func (d *Dispatcher) Dispatch(ctx context.Context, entry model.FeedEntry, recipients []int64) Report {
	recipients = lo.Uniq(recipients)
	report := Report{Recipients: len(recipients)}
	if len(recipients) == 0 {
		return report
	}

	text := FormatAnnouncement(entry)
	for _, chatID := range recipients {
		if err := d.send(ctx, chatID, text); err != nil {
			d.log.Error("deliver announcement", "chat_id", chatID, "link", entry.Link, "error", err)
			report.Failed = append(report.Failed, chatID)
			continue
		}
		report.Delivered++
	}

	d.log.Info("announcement dispatched",
		"link", entry.Link,
		"recipients", report.Recipients,
		"delivered", report.Delivered,
		"failed", len(report.Failed),
	)
	return report
}

func (d *Dispatcher) send(ctx context.Context, chatID int64, text string) error {
	op := func() error {
		if err := d.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(fmt.Errorf("rate limit wait: %w", err))
		}
		err := d.sender.SendMessage(ctx, chatID, text)
		if errors.Is(err, model.ErrRecipientUnreachable) {
			return backoff.Permanent(err)
		}
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.opts.InitialBackoff
	b.MaxInterval = d.opts.MaxBackoff

	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, uint64(d.opts.Retries)), ctx))
}

// FormatAnnouncement renders the fixed announcement template.
func FormatAnnouncement(entry model.FeedEntry) string {
	var b strings.Builder
	title := entry.Title
	if title == "" {
		title = "(untitled)"
	}
	b.WriteString("New article: ")
	b.WriteString(title)
	if entry.Author != "" {
		b.WriteString("\nby ")
		b.WriteString(entry.Author)
	}
	if entry.Link != "" {
		b.WriteString("\n")
		b.WriteString(entry.Link)
	}
	return b.String()
}
