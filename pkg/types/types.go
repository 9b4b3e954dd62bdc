// Package domain defines the core types shared by every listing source,
// the sorter, and the listing store.
package domain

import (
	"fmt"
	"strings"
)

// MaxTitleLength is the longest title, in runes, that the listings table
// accepts.
const MaxTitleLength = 255

// DefaultLimit is used when a caller asks for zero or a negative number of
// results.
const DefaultLimit = 10

// NotAvailable is the sentinel scraped sources use for a missing title or link.
const NotAvailable = "N/A"

// Listing is a normalized product listing.
//
// Listings are values: sources build them once, the sorter reorders copies,
// and the store persists them. Nothing mutates a Listing after a source
// returns it.
type Listing struct {
	// Ranking is the 1-based position assigned at persistence time.
	// Zero for listings that have not been stored.
	Ranking int `json:"ranking,omitempty" db:"ranking"`

	Title string  `json:"title"  db:"title"`
	Price float64 `json:"price"  db:"price"`

	// Rating is nil when the source carried no trust signal. Its scale is
	// source-specific: eBay reports seller feedback percentage (0-100),
	// Amazon reports product stars (0-5).
	Rating *float64 `json:"rating" db:"rating"`

	Link   string `json:"link"   db:"link"`
	Source string `json:"source" db:"source"`
}

// HasRating reports whether the listing carries a rating value.
func (l *Listing) HasRating() bool {
	return l.Rating != nil
}

// RatingOr returns the rating, or def when it is absent.
func (l *Listing) RatingOr(def float64) float64 {
	if l.Rating == nil {
		return def
	}
	return *l.Rating
}

// Float returns a pointer to v. Handy for building optional ratings.
func Float(v float64) *float64 {
	return &v
}

// SortMode selects the field and direction used to order listings.
type SortMode string

// Sort mode constants.
const (
	SortPriceAsc   SortMode = "price_asc"
	SortPriceDesc  SortMode = "price_desc"
	SortRatingAsc  SortMode = "rating_asc"
	SortRatingDesc SortMode = "rating_desc"
	SortNone       SortMode = "none"
)

// DefaultSortMode is applied when the caller's choice is not recognized.
const DefaultSortMode = SortPriceAsc

// SortModes lists every recognized mode in menu order.
var SortModes = []SortMode{SortPriceAsc, SortPriceDesc, SortRatingAsc, SortRatingDesc, SortNone}

// menuChoices maps the interactive menu digits onto modes.
var menuChoices = map[string]SortMode{
	"1": SortPriceAsc,
	"2": SortPriceDesc,
	"3": SortRatingAsc,
	"4": SortRatingDesc,
}

// ParseSortMode converts a mode name or menu digit ("1"-"4") into a SortMode.
// Names are matched case-insensitively and may use '-' in place of '_'.
func ParseSortMode(s string) (SortMode, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.ReplaceAll(key, "-", "_")

	if m, ok := menuChoices[key]; ok {
		return m, nil
	}
	for _, m := range SortModes {
		if string(m) == key {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown sort mode %q", s)
}

// Descending reports whether the mode orders from high to low.
func (m SortMode) Descending() bool {
	return m == SortPriceDesc || m == SortRatingDesc
}

// ByRating reports whether the mode orders by rating.
func (m SortMode) ByRating() bool {
	return m == SortRatingAsc || m == SortRatingDesc
}

// NullPolicy controls where listings without a rating land when sorting by
// rating.
type NullPolicy string

// Null policy constants.
const (
	// NullsLast places unrated listings after every rated listing in both
	// directions.
	NullsLast NullPolicy = "nulls_last"

	// NullsAsSentinel treats an unrated listing as rating -1: first when
	// ascending, last when descending.
	NullsAsSentinel NullPolicy = "sentinel"
)

// NullSentinel is the rating unrated listings compare as under NullsAsSentinel.
const NullSentinel = -1.0

// ParseNullPolicy converts a config string into a NullPolicy.
func ParseNullPolicy(s string) (NullPolicy, error) {
	switch NullPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case NullsLast, "":
		return NullsLast, nil
	case NullsAsSentinel:
		return NullsAsSentinel, nil
	default:
		return "", fmt.Errorf("unknown null policy %q (want nulls_last or sentinel)", s)
	}
}
