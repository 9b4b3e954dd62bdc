// Package store defines the listing datastore abstraction. Business logic
// depends on the Store interface, never on a concrete database, so the
// pipeline and the HTTP handlers can be tested with mocks.
package store

import (
	"context"
	"fmt"

	domain "github.com/donaldgifford/listing-aggregator/pkg/types"
)

// ListingQuery defines optional filters for listing queries.
type ListingQuery struct {
	MinPrice  *float64
	MaxPrice  *float64
	MinRating *float64
	Source    *string
	Limit     int // default 50
	Offset    int
	OrderBy   string // "ranking", "price", "rating"
}

// SaveResult reports the outcome of ReplaceListings.
type SaveResult struct {
	Saved  int
	Failed []RowError
}

// RowError is one listing the store could not insert. The remaining rows
// are still attempted.
type RowError struct {
	Ranking int
	Title   string
	Err     error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("saving listing #%d %q: %v", e.Ranking, e.Title, e.Err)
}

// Unwrap exposes both domain.ErrPersistence and the driver error.
func (e *RowError) Unwrap() []error {
	return []error{domain.ErrPersistence, e.Err}
}

// Store defines the data access operations for listings.
type Store interface {
	// ReplaceListings deletes every stored listing and inserts listings in
	// order, assigning ranking 1..n. A failing row is reported in the
	// result and does not stop the others; the returned error is reserved
	// for failures that affect the whole batch.
	ReplaceListings(ctx context.Context, listings []domain.Listing) (*SaveResult, error)

	// ListListings returns one page of stored listings and the total count
	// matching the filters.
	ListListings(ctx context.Context, opts *ListingQuery) ([]domain.Listing, int, error)

	// Migrations
	Migrate(ctx context.Context) error

	// Health
	Ping(ctx context.Context) error

	Close()
}
