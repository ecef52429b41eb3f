// Package scheduler runs the poll cycle on a fixed, reconfigurable interval.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"rss_relay/internal/dedup"
	"rss_relay/internal/dispatch"
	"rss_relay/internal/model"
)

const cycleTimeout = 5 * time.Minute

// Poller returns the newest feed entry, or nil if there is none this round.
type Poller interface {
	Poll(ctx context.Context) *model.FeedEntry
}

// Tracker decides whether an entry is new.
type Tracker interface {
	Classify(ctx context.Context, entry model.FeedEntry) dedup.Verdict
	MarkSeen(ctx context.Context, entry model.FeedEntry)
}

// Announcer delivers a new entry to its recipients.
type Announcer interface {
	Announce(ctx context.Context, entry model.FeedEntry) dispatch.Report
}

// Scheduler polls the feed every interval and announces new entries.
type Scheduler struct {
	poller    Poller
	tracker   Tracker
	announcer Announcer
	log       *slog.Logger

	mu       sync.Mutex
	cron     *cron.Cron
	job      cron.Job
	entryID  cron.EntryID
	interval time.Duration
	ctx      context.Context
	running  bool
}

// New creates a Scheduler that polls every interval.
func New(poller Poller, tracker Tracker, announcer Announcer, interval time.Duration, log *slog.Logger) *Scheduler {
	cl := cronLogger{log: log}
	s := &Scheduler{
		poller:    poller,
		tracker:   tracker,
		announcer: announcer,
		log:       log,
		cron:      cron.New(cron.WithLogger(cl)),
		interval:  interval,
		ctx:       context.Background(),
	}
	s.job = cron.NewChain(cron.SkipIfStillRunning(cl)).Then(cron.FuncJob(s.tick))
	return s
}

// Run polls once immediately, then on every tick until ctx is cancelled.
// It returns after the in-flight cycle, if any, has finished.
func (s *Scheduler) Run(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.entryID = s.cron.Schedule(cron.Every(s.interval), s.job)
	s.running = true
	s.cron.Start()
	s.mu.Unlock()

	s.log.Info("scheduler started", "interval", s.interval)

	s.job.Run()

	<-ctx.Done()

	s.mu.Lock()
	stopped := s.cron.Stop()
	s.running = false
	s.mu.Unlock()

	<-stopped.Done()
	s.log.Info("scheduler stopped")
}

// Reschedule replaces the poll period. The next poll happens one new
// period from now, not at the end of the old period.
func (s *Scheduler) Reschedule(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.interval = d
	if !s.running {
		return
	}
	s.cron.Remove(s.entryID)
	s.entryID = s.cron.Schedule(cron.Every(d), s.job)
	s.log.Info("poll interval changed", "interval", d)
}

// Interval returns the current poll period.
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// NextRun returns when the next poll is due, or the zero time if the
// scheduler is not running.
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}

func (s *Scheduler) tick() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	s.cycle(ctx)
}

// cycle runs one poll: fetch, compare against the watermark, announce.
func (s *Scheduler) cycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, cycleTimeout)
	defer cancel()

	entry := s.poller.Poll(ctx)
	if entry == nil {
		return
	}

	switch s.tracker.Classify(ctx, *entry) {
	case dedup.Seen:
		s.log.Debug("no new entry", "link", entry.ID)
	case dedup.Baseline:
		s.tracker.MarkSeen(ctx, *entry)
		s.log.Info("watermark initialized, not announcing", "link", entry.ID)
	case dedup.Novel:
		s.tracker.MarkSeen(ctx, *entry)
		s.log.Info("new entry", "link", entry.ID, "title", entry.Title)
		s.announcer.Announce(ctx, *entry)
	}
}

type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
