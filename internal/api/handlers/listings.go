package handlers

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/donaldgifford/listing-aggregator/internal/store"
	domain "github.com/donaldgifford/listing-aggregator/pkg/types"
)

// ListingsHandler serves the persisted result set.
type ListingsHandler struct {
	store store.Store
}

// NewListingsHandler creates a ListingsHandler reading from s.
func NewListingsHandler(s store.Store) *ListingsHandler {
	return &ListingsHandler{store: s}
}

// ListListingsInput filters and pages the stored listings. Zero values mean
// no filter.
type ListListingsInput struct {
	MinPrice  float64 `query:"min_price"  minimum:"0"                        doc:"Lowest price to include"`
	MaxPrice  float64 `query:"max_price"  minimum:"0"                        doc:"Highest price to include"`
	MinRating float64 `query:"min_rating" minimum:"0" maximum:"100"          doc:"Lowest rating to include; unrated listings are excluded"`
	Source    string  `query:"source"     enum:"ebay,amazon,"                doc:"Only listings from this source"`
	Limit     int     `query:"limit"      minimum:"1" maximum:"500" default:"50" doc:"Page size"`
	Offset    int     `query:"offset"     minimum:"0"                        doc:"Rows to skip"`
	OrderBy   string  `query:"order_by"   enum:"ranking,price,rating,"       doc:"Sort column, ranking when empty"`
}

// Resolve rejects an inverted price range.
func (in *ListListingsInput) Resolve(huma.Context) []error {
	if in.MaxPrice != 0 && in.MinPrice > in.MaxPrice {
		return []error{&huma.ErrorDetail{
			Location: "query.min_price",
			Message:  "min_price must not exceed max_price",
			Value:    in.MinPrice,
		}}
	}
	return nil
}

// ListListingsOutput is one page of stored listings.
type ListListingsOutput struct {
	Body struct {
		Listings []domain.Listing `json:"listings"`
		Total    int              `json:"total"  doc:"Rows matching the filters, ignoring paging"`
		Limit    int              `json:"limit"`
		Offset   int              `json:"offset"`
	}
}

// ListListings pages through the stored listings.
func (h *ListingsHandler) ListListings(ctx context.Context, in *ListListingsInput) (*ListListingsOutput, error) {
	q := &store.ListingQuery{
		MinPrice:  nonZero(in.MinPrice),
		MaxPrice:  nonZero(in.MaxPrice),
		MinRating: nonZero(in.MinRating),
		Limit:     in.Limit,
		Offset:    in.Offset,
		OrderBy:   in.OrderBy,
	}
	if in.Source != "" {
		q.Source = &in.Source
	}

	listings, total, err := h.store.ListListings(ctx, q)
	if err != nil {
		return nil, huma.Error500InternalServerError("querying listings: " + err.Error())
	}
	if listings == nil {
		listings = []domain.Listing{}
	}

	out := &ListListingsOutput{}
	out.Body.Listings = listings
	out.Body.Total = total
	out.Body.Limit = q.Limit
	out.Body.Offset = q.Offset
	return out, nil
}

func nonZero(v float64) *float64 {
	if v == 0 {
		return nil
	}
	return &v
}

// RegisterListingRoutes mounts GET /api/v1/listings.
func RegisterListingRoutes(api huma.API, h *ListingsHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "list-listings",
		Method:      http.MethodGet,
		Path:        "/api/v1/listings",
		Summary:     "List stored listings",
		Description: "Pages through the last persisted result set, filtered by price, rating and source.",
		Tags:        []string{"listings"},
		Errors:      []int{http.StatusUnprocessableEntity, http.StatusInternalServerError},
	}, h.ListListings)
}
