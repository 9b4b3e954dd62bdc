// Package ebay provides the eBay listing source: bearer token providers, a
// Browse API search client, and the adapter that turns item summaries into
// normalized listings.
package ebay

import (
	"context"
)

// SourceName identifies listings produced by this package.
const SourceName = "ebay"

// MaxSearchLimit is the most item summaries the Browse API returns per call.
const MaxSearchLimit = 200

// SearchRequest defines the parameters for an eBay search. Only the first
// page is ever requested.
type SearchRequest struct {
	Query string
	Limit int
}

// SearchResponse holds the results of an eBay search.
type SearchResponse struct {
	Items []ItemSummary
	Total int
}

// EbayClient defines the interface for interacting with the eBay API.
type EbayClient interface {
	Search(ctx context.Context, req SearchRequest) (*SearchResponse, error)
}

// TokenProvider defines the interface for obtaining bearer tokens.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}
