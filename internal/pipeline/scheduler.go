package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/donaldgifford/listing-aggregator/internal/metrics"
	"github.com/donaldgifford/listing-aggregator/internal/notify"
	domain "github.com/donaldgifford/listing-aggregator/pkg/types"
)

// Runner executes one search. *Pipeline satisfies it.
type Runner interface {
	Run(ctx context.Context, req Request) (*Result, error)
}

// Scheduler re-runs one saved search on a fixed interval. Every run is a
// full replace of the stored result set.
type Scheduler struct {
	cron     *cron.Cron
	runner   Runner
	req      Request
	timeout  time.Duration
	entryID  cron.EntryID
	notifier notify.Notifier
	topN     int
	log      *slog.Logger
}

// SchedulerOption configures the Scheduler.
type SchedulerOption func(*Scheduler)

// WithNotifier sends a summary of every successful run, including the
// first topN listings.
func WithNotifier(n notify.Notifier, topN int) SchedulerOption {
	return func(s *Scheduler) {
		s.notifier = n
		s.topN = topN
	}
}

// NewScheduler creates a Scheduler running req every interval. A run that
// is still in progress when the next tick fires causes that tick to be
// skipped.
func NewScheduler(
	r Runner,
	req Request,
	interval time.Duration,
	log *slog.Logger,
	opts ...SchedulerOption,
) (*Scheduler, error) {
	if log == nil {
		log = slog.Default()
	}

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("scheduled search: %w", err)
	}

	c := cron.New(cron.WithChain(
		cron.Recover(cronLogger{log}),
		cron.SkipIfStillRunning(cronLogger{log}),
	))

	s := &Scheduler{
		cron:    c,
		runner:  r,
		req:     req,
		timeout: interval,
		log:     log,
	}
	for _, opt := range opts {
		opt(s)
	}

	id, err := c.AddFunc("@every "+interval.String(), s.runSearch)
	if err != nil {
		return nil, fmt.Errorf("registering scheduled search: %w", err)
	}
	s.entryID = id

	return s, nil
}

// Start begins running scheduled searches.
func (s *Scheduler) Start() {
	s.log.Info("scheduler started", "query", s.req.Query, "sort", s.req.Mode)
	s.cron.Start()
	s.SyncNextRunTimestamp()
}

// Stop gracefully stops the scheduler. The returned context is done once
// any running search has finished.
func (s *Scheduler) Stop() context.Context {
	s.log.Info("scheduler stopping")
	return s.cron.Stop()
}

// Entries returns the registered cron entries for inspection.
func (s *Scheduler) Entries() []cron.Entry {
	return s.cron.Entries()
}

// Request returns the saved search.
func (s *Scheduler) Request() Request {
	return s.req
}

// SyncNextRunTimestamp publishes the next planned run as a gauge.
func (s *Scheduler) SyncNextRunTimestamp() {
	next := s.cron.Entry(s.entryID).Next
	if next.IsZero() {
		return
	}
	metrics.SchedulerNextRunTimestamp.Set(float64(next.Unix()))
}

// RunNow executes the saved search immediately, outside the cron loop.
func (s *Scheduler) RunNow(ctx context.Context) (*Result, error) {
	return s.runner.Run(ctx, s.req)
}

func (s *Scheduler) runSearch() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	s.log.Info("scheduled search starting", "query", s.req.Query)
	res, err := s.runner.Run(ctx, s.req)
	if err != nil {
		s.log.Error("scheduled search failed", "query", s.req.Query, "error", err)
	} else {
		s.log.Info("scheduled search finished",
			"query", s.req.Query,
			"count", len(res.Listings),
			"saved", res.Saved,
			"failed", len(res.Failed),
		)
		s.notify(ctx, res)
	}
	s.SyncNextRunTimestamp()
}

func (s *Scheduler) notify(ctx context.Context, res *Result) {
	if s.notifier == nil {
		return
	}

	top := make([]domain.Listing, max(0, min(s.topN, len(res.Listings))))
	copy(top, res.Listings)
	for i := range top {
		top[i].Ranking = i + 1
	}

	err := s.notifier.Notify(ctx, &notify.Summary{
		Query:    res.Query,
		Mode:     res.Mode,
		Count:    len(res.Listings),
		Saved:    res.Saved,
		Failed:   len(res.Failed),
		Top:      top,
		Duration: res.Duration,
	})
	if err != nil {
		s.log.Warn("sending search summary failed", "query", res.Query, "error", err)
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append(keysAndValues, "error", err)...)
}
