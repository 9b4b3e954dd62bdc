// Package notify delivers summaries of scheduled searches to chat webhooks.
package notify

import (
	"context"
	"time"

	domain "github.com/donaldgifford/listing-aggregator/pkg/types"
)

// Summary describes one finished scheduled search. Top holds the first
// listings of the sorted result, already ranked.
type Summary struct {
	Query    string
	Mode     domain.SortMode
	Count    int
	Saved    int
	Failed   int
	Top      []domain.Listing
	Duration time.Duration
}

// Notifier sends search summaries somewhere a human will see them.
type Notifier interface {
	Notify(ctx context.Context, s *Summary) error
}
