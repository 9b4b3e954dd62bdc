package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/donaldgifford/listing-aggregator/internal/store"
	domain "github.com/donaldgifford/listing-aggregator/pkg/types"
)

// Output formats.
const (
	outputTable  = "table"
	outputDetail = "detail"
	outputJSON   = "json"
	outputCSV    = "csv"
)

const titleWidth = 60

// tabWriter wraps tabwriter with error tracking.
type tabWriter struct {
	*tabwriter.Writer
	err error
}

func newTabWriter(w io.Writer) *tabWriter {
	return &tabWriter{Writer: tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)}
}

func (tw *tabWriter) writef(format string, args ...any) {
	if tw.err != nil {
		return
	}
	_, tw.err = fmt.Fprintf(tw.Writer, format, args...)
}

func (tw *tabWriter) finish() error {
	if tw.err != nil {
		return tw.err
	}
	return tw.Flush()
}

// writeListings renders listings in format. v is what the json format
// encodes, so callers can wrap the listings with totals.
func writeListings(w io.Writer, format string, listings []domain.Listing, v any) error {
	switch format {
	case outputTable, "":
		return printListingsTable(w, listings)
	case outputDetail:
		return printListingDetails(w, listings)
	case outputJSON:
		return outputJSONTo(w, v)
	case outputCSV:
		return store.WriteCSV(w, listings)
	default:
		return fmt.Errorf("unknown output format %q (want table, detail, json or csv)", format)
	}
}

func printListingsTable(w io.Writer, listings []domain.Listing) error {
	tw := newTabWriter(w)
	tw.writef("#\tTITLE\tPRICE\tRATING\tSOURCE\tLINK\n")
	for i := range listings {
		l := &listings[i]
		tw.writef("%d\t%s\t$%.2f\t%s\t%s\t%s\n",
			rank(l, i),
			truncate(l.Title, titleWidth),
			l.Price,
			formatRating(l.Rating),
			l.Source,
			l.Link,
		)
	}
	return tw.finish()
}

// printListingDetails prints one block per listing.
func printListingDetails(w io.Writer, listings []domain.Listing) error {
	tw := newTabWriter(w)
	for i := range listings {
		l := &listings[i]
		tw.writef("\n#%d\n", rank(l, i))
		tw.writef("Title:\t%s\n", l.Title)
		tw.writef("Price:\t%.2f\n", l.Price)
		tw.writef("Rating:\t%s\n", formatRating(l.Rating))
		tw.writef("Link:\t%s\n", l.Link)
		tw.writef("Source:\t%s\n", l.Source)
	}
	return tw.finish()
}

func outputJSONTo(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// rank is the stored ranking, or the position in the slice for listings
// that have not been persisted.
func rank(l *domain.Listing, i int) int {
	if l.Ranking > 0 {
		return l.Ranking
	}
	return i + 1
}

func formatRating(r *float64) string {
	if r == nil {
		return "-"
	}
	return strconv.FormatFloat(*r, 'f', -1, 64)
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
