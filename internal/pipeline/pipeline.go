// Package pipeline runs a search end to end: fetch from the configured
// sources, sort, and optionally persist and export the ranked result.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/donaldgifford/listing-aggregator/internal/metrics"
	"github.com/donaldgifford/listing-aggregator/internal/source"
	"github.com/donaldgifford/listing-aggregator/internal/store"
	"github.com/donaldgifford/listing-aggregator/pkg/sorter"
	domain "github.com/donaldgifford/listing-aggregator/pkg/types"
)

// Exporter receives every persisted result set, for example as a CSV copy.
type Exporter interface {
	Export(ctx context.Context, listings []domain.Listing) error
}

// Result is the outcome of one Run.
type Result struct {
	Query    string           `json:"query"`
	Mode     domain.SortMode  `json:"sort"`
	Listings []domain.Listing `json:"listings"`

	// Persisted is true when the listings were handed to the store.
	Persisted bool             `json:"persisted"`
	Saved     int              `json:"saved"`
	Failed    []store.RowError `json:"-"`

	Duration time.Duration `json:"-"`
}

// Pipeline wires one source to the sorter and an optional store.
type Pipeline struct {
	source   source.Adapter
	sorter   *sorter.Sorter
	store    store.Store
	exporter Exporter
	log      *slog.Logger
	nowFunc  func() time.Time
}

// Option configures the Pipeline.
type Option func(*Pipeline)

// WithStore enables persistence for requests that ask for it.
func WithStore(s store.Store) Option {
	return func(p *Pipeline) {
		p.store = s
	}
}

// WithExporter adds a copy of every persisted result set.
func WithExporter(e Exporter) Option {
	return func(p *Pipeline) {
		p.exporter = e
	}
}

// WithSorter replaces the default nulls-last sorter.
func WithSorter(s *sorter.Sorter) Option {
	return func(p *Pipeline) {
		p.sorter = s
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		p.log = l
	}
}

// WithNowFunc overrides the clock used for durations.
func WithNowFunc(f func() time.Time) Option {
	return func(p *Pipeline) {
		p.nowFunc = f
	}
}

// New creates a Pipeline reading from src.
func New(src source.Adapter, opts ...Option) *Pipeline {
	p := &Pipeline{
		source:  src,
		log:     slog.Default(),
		nowFunc: time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.sorter == nil {
		p.sorter = sorter.New(sorter.WithLogger(p.log))
	}
	return p
}

// Source returns the adapter the pipeline reads from.
func (p *Pipeline) Source() source.Adapter {
	return p.source
}

// Run executes one search. Invalid requests and source failures are
// returned as errors; individual rows the store rejects are reported in
// Result.Failed and do not fail the run.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	start := p.nowFunc()

	res, err := p.run(ctx, req)

	elapsed := p.nowFunc().Sub(start)
	metrics.PipelineDuration.Observe(elapsed.Seconds())
	if err != nil {
		metrics.PipelineRunsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.PipelineRunsTotal.WithLabelValues("success").Inc()

	res.Duration = elapsed
	p.log.Info("search completed",
		"query", res.Query,
		"sort", res.Mode,
		"count", len(res.Listings),
		"saved", res.Saved,
		"failed", len(res.Failed),
		"duration", elapsed,
	)
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, req Request) (*Result, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	listings, err := p.source.Fetch(ctx, req.Query, req.Limit)
	if err != nil {
		return nil, fmt.Errorf("fetching listings: %w", err)
	}

	res := &Result{
		Query:    req.Query,
		Mode:     req.Mode,
		Listings: p.sorter.Sort(listings, req.Mode),
	}
	if res.Listings == nil {
		res.Listings = []domain.Listing{}
	}

	if !req.Persist {
		return res, nil
	}
	if p.store == nil {
		p.log.Warn("persistence requested but no store is configured")
		return res, nil
	}

	saved, err := p.store.ReplaceListings(ctx, res.Listings)
	if err != nil {
		return nil, fmt.Errorf("%w: saving listings: %w", domain.ErrPersistence, err)
	}
	res.Persisted = true
	res.Saved = saved.Saved
	res.Failed = saved.Failed

	for i := range saved.Failed {
		f := &saved.Failed[i]
		p.log.Warn("listing insert failed", "ranking", f.Ranking, "title", f.Title, "error", f.Err)
	}

	if p.exporter != nil {
		if err := p.exporter.Export(ctx, res.Listings); err != nil {
			p.log.Warn("exporting listings failed", "error", err)
		}
	}

	return res, nil
}
