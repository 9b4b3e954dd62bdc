package ebay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/donaldgifford/listing-aggregator/internal/metrics"
	"github.com/donaldgifford/listing-aggregator/pkg/normalize"
	domain "github.com/donaldgifford/listing-aggregator/pkg/types"
)

// APIAdapter is the eBay listing source. It runs one Browse search per Fetch
// and converts up to limit item summaries.
//
// Rating policy: seller feedback percentage in [0, 100], nil when the seller
// object or its feedbackPercentage is absent or unparseable. A reported 0 is
// kept as 0.
type APIAdapter struct {
	client EbayClient
	log    *slog.Logger
}

// AdapterOption configures the APIAdapter.
type AdapterOption func(*APIAdapter)

// WithAdapterLogger sets the logger used for field fallback diagnostics.
func WithAdapterLogger(l *slog.Logger) AdapterOption {
	return func(a *APIAdapter) {
		a.log = l
	}
}

// NewAPIAdapter creates an adapter over client.
func NewAPIAdapter(client EbayClient, opts ...AdapterOption) *APIAdapter {
	a := &APIAdapter{
		client: client,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name returns SourceName.
func (a *APIAdapter) Name() string {
	return SourceName
}

// Fetch searches for query and returns at most limit normalized listings.
// Endpoint failures are returned; field-level coercion failures only fall
// back to defaults.
func (a *APIAdapter) Fetch(ctx context.Context, query string, limit int) ([]domain.Listing, error) {
	if limit <= 0 {
		limit = domain.DefaultLimit
	}

	resp, err := a.client.Search(ctx, SearchRequest{Query: query, Limit: limit})
	if err != nil {
		return nil, err
	}

	items := resp.Items
	if len(items) > limit {
		items = items[:limit]
	}

	listings := make([]domain.Listing, 0, len(items))
	for i := range items {
		l, diags := ToListing(&items[i])
		a.report(items[i].ItemID, diags)
		listings = append(listings, l)
	}

	metrics.ListingsFetchedTotal.WithLabelValues(SourceName).Add(float64(len(listings)))
	return listings, nil
}

func (a *APIAdapter) report(itemID string, diags []error) {
	for _, d := range diags {
		field := "unknown"
		var pe *normalize.ParseError
		if errors.As(d, &pe) {
			field = pe.Field
		}
		metrics.ParseFallbacksTotal.WithLabelValues(SourceName, field).Inc()
		a.log.Debug("field fell back to default",
			"source", SourceName,
			"item_id", itemID,
			"field", field,
			"error", d,
		)
	}
}

// ToListings converts item summaries, discarding diagnostics.
func ToListings(items []ItemSummary) []domain.Listing {
	listings := make([]domain.Listing, 0, len(items))
	for i := range items {
		l, _ := ToListing(&items[i])
		listings = append(listings, l)
	}
	return listings
}

// ToListing converts one item summary. The returned errors are
// *normalize.ParseError values for fields that were present but unusable;
// the listing always carries a usable value for every field.
func ToListing(item *ItemSummary) (domain.Listing, []error) {
	var diags []error

	l := domain.Listing{
		Title:  normalize.Title(item.Title, domain.MaxTitleLength),
		Link:   firstNonEmpty(item.ItemWebURL, item.ItemHref),
		Source: SourceName,
	}

	price, err := normalize.Price(pickPrice(item.Price, item.MinPrice))
	if err != nil {
		diags = append(diags, err)
	}
	l.Price = price

	if item.Seller != nil {
		rating, err := normalize.FeedbackPercentage(item.Seller.FeedbackPercentage)
		if err != nil {
			diags = append(diags, err)
		}
		l.Rating = rating
	}

	return l, diags
}

// pickPrice returns the first fragment that carries a price. When none do,
// the first non-null fragment is returned so its diagnostic is kept.
func pickPrice(raws ...json.RawMessage) json.RawMessage {
	for _, r := range raws {
		if !normalize.PriceEmpty(r) {
			return r
		}
	}
	for _, r := range raws {
		r = bytes.TrimSpace(r)
		if len(r) > 0 && !bytes.Equal(r, []byte("null")) {
			return r
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
