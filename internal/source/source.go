// Package source defines the listing source contract and builds the
// configured set of sources.
package source

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	domain "github.com/donaldgifford/listing-aggregator/pkg/types"
)

// Adapter fetches one page of listings for a query from a single upstream.
//
// Fetch returns at most limit listings (limit <= 0 means
// domain.DefaultLimit). Endpoint-level failures are returned as errors
// wrapping domain.ErrConfig, domain.ErrAuth or domain.ErrUpstream; field
// level problems never surface as errors.
type Adapter interface {
	Name() string
	Fetch(ctx context.Context, query string, limit int) ([]domain.Listing, error)
}

// Multi fetches from several adapters one after another and concatenates
// their results in adapter order. The first failing adapter aborts the run.
type Multi struct {
	adapters []Adapter
	log      *slog.Logger
}

// MultiOption configures Multi.
type MultiOption func(*Multi)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) MultiOption {
	return func(m *Multi) {
		m.log = l
	}
}

// NewMulti creates a Multi over adapters.
func NewMulti(adapters []Adapter, opts ...MultiOption) *Multi {
	m := &Multi{
		adapters: adapters,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Name joins the adapter names with '+'.
func (m *Multi) Name() string {
	names := make([]string, len(m.adapters))
	for i, a := range m.adapters {
		names[i] = a.Name()
	}
	return strings.Join(names, "+")
}

// Adapters returns the wrapped adapters.
func (m *Multi) Adapters() []Adapter {
	return m.adapters
}

// Fetch asks every adapter for up to limit listings. The combined result
// may therefore hold up to len(adapters)*limit listings.
func (m *Multi) Fetch(ctx context.Context, query string, limit int) ([]domain.Listing, error) {
	var all []domain.Listing
	for _, a := range m.adapters {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		listings, err := a.Fetch(ctx, query, limit)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", a.Name(), err)
		}

		m.log.Debug("source fetched", "source", a.Name(), "query", query, "count", len(listings))
		all = append(all, listings...)
	}

	if all == nil {
		all = []domain.Listing{}
	}
	return all, nil
}
