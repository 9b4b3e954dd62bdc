// Package sorter orders normalized listings by price or rating.
package sorter

import (
	"cmp"
	"log/slog"
	"slices"

	domain "github.com/donaldgifford/listing-aggregator/pkg/types"
)

// Sorter is a stable, total-order sorter over listings.
//
// Descending modes flip the comparator rather than reversing the output, so
// listings with equal keys keep their input order in both directions.
type Sorter struct {
	policy domain.NullPolicy
	log    *slog.Logger
}

// Option configures a Sorter.
type Option func(*Sorter)

// WithNullPolicy sets how unrated listings are ordered. Default NullsLast.
func WithNullPolicy(p domain.NullPolicy) Option {
	return func(s *Sorter) {
		s.policy = p
	}
}

// WithLogger sets the logger used for unrecognized-mode warnings.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sorter) {
		s.log = l
	}
}

// New creates a Sorter.
func New(opts ...Option) *Sorter {
	s := &Sorter{
		policy: domain.NullsLast,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Policy returns the configured null policy.
func (s *Sorter) Policy() domain.NullPolicy {
	return s.policy
}

// Sort returns a new slice holding listings ordered by mode. The input slice
// is left untouched. SortNone and unrecognized modes return the input order;
// an unrecognized mode also logs a warning.
func (s *Sorter) Sort(listings []domain.Listing, mode domain.SortMode) []domain.Listing {
	out := slices.Clone(listings)

	var compare func(a, b domain.Listing) int
	switch mode {
	case domain.SortPriceAsc:
		compare = byPrice
	case domain.SortPriceDesc:
		compare = reverse(byPrice)
	case domain.SortRatingAsc:
		compare = s.byRating(false)
	case domain.SortRatingDesc:
		compare = s.byRating(true)
	case domain.SortNone:
		return out
	default:
		s.log.Warn("unrecognized sort mode, keeping source order", "mode", string(mode))
		return out
	}

	slices.SortStableFunc(out, compare)
	return out
}

func byPrice(a, b domain.Listing) int {
	return cmp.Compare(a.Price, b.Price)
}

func reverse(f func(a, b domain.Listing) int) func(a, b domain.Listing) int {
	return func(a, b domain.Listing) int {
		return f(b, a)
	}
}

// byRating builds the rating comparator for the configured policy.
//
// NullsAsSentinel compares nil as domain.NullSentinel and flips the whole
// comparator when descending. NullsLast only flips the numeric comparison, so
// nil ratings stay after every number in both directions.
func (s *Sorter) byRating(desc bool) func(a, b domain.Listing) int {
	if s.policy == domain.NullsAsSentinel {
		sentinel := func(a, b domain.Listing) int {
			return cmp.Compare(a.RatingOr(domain.NullSentinel), b.RatingOr(domain.NullSentinel))
		}
		if desc {
			return reverse(sentinel)
		}
		return sentinel
	}

	return func(a, b domain.Listing) int {
		switch {
		case a.Rating == nil && b.Rating == nil:
			return 0
		case a.Rating == nil:
			return 1
		case b.Rating == nil:
			return -1
		case desc:
			return cmp.Compare(*b.Rating, *a.Rating)
		default:
			return cmp.Compare(*a.Rating, *b.Rating)
		}
	}
}
