package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/donaldgifford/listing-aggregator/internal/pipeline"
	domain "github.com/donaldgifford/listing-aggregator/pkg/types"
)

// SearchHandler runs ad-hoc searches through the pipeline.
type SearchHandler struct {
	runner pipeline.Runner
	log    *slog.Logger
}

// NewSearchHandler creates a new SearchHandler.
func NewSearchHandler(r pipeline.Runner, log *slog.Logger) *SearchHandler {
	if log == nil {
		log = slog.Default()
	}
	return &SearchHandler{runner: r, log: log}
}

// SearchInput is the request body for the search endpoint.
type SearchInput struct {
	Body struct {
		Query   string `json:"query"             minLength:"1" maxLength:"500" doc:"Search term"                                         example:"wireless mouse"`
		Limit   int    `json:"limit,omitempty"   minimum:"0"                   doc:"Listings per source (default 10)"                    example:"10"`
		Sort    string `json:"sort,omitempty"                                  doc:"price_asc, price_desc, rating_asc, rating_desc or 1-4" example:"price_asc"`
		Persist bool   `json:"persist,omitempty"                               doc:"Replace the stored listings with this result"`
	}
}

// SearchOutput is the response body for the search endpoint.
type SearchOutput struct {
	Body struct {
		Query     string           `json:"query"     doc:"Normalized search term"`
		Sort      domain.SortMode  `json:"sort"      doc:"Sort mode applied"`
		Count     int              `json:"count"     doc:"Number of listings returned"`
		Listings  []domain.Listing `json:"listings"  doc:"Sorted listings"`
		Persisted bool             `json:"persisted" doc:"Whether the result replaced the stored listings"`
		Saved     int              `json:"saved"     doc:"Rows written to the store"`
		Failed    int              `json:"failed"    doc:"Rows the store rejected"`
	}
}

// Search fetches, sorts and optionally persists listings for a query. An
// unrecognized sort choice falls back to price_asc.
func (h *SearchHandler) Search(ctx context.Context, input *SearchInput) (*SearchOutput, error) {
	res, err := h.runner.Run(ctx, pipeline.Request{
		Query:   input.Body.Query,
		Limit:   input.Body.Limit,
		Mode:    pipeline.ResolveMode(input.Body.Sort, h.log),
		Persist: input.Body.Persist,
	})
	if err != nil {
		return nil, searchError(err)
	}

	out := &SearchOutput{}
	out.Body.Query = res.Query
	out.Body.Sort = res.Mode
	out.Body.Count = len(res.Listings)
	out.Body.Listings = res.Listings
	out.Body.Persisted = res.Persisted
	out.Body.Saved = res.Saved
	out.Body.Failed = len(res.Failed)
	return out, nil
}

func searchError(err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, domain.ErrConfig), errors.Is(err, domain.ErrPersistence):
		return huma.Error500InternalServerError(err.Error())
	default:
		return huma.Error502BadGateway("source error: " + err.Error())
	}
}

// RegisterSearchRoutes registers search endpoints with the Huma API.
func RegisterSearchRoutes(api huma.API, h *SearchHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "search-listings",
		Method:      http.MethodPost,
		Path:        "/api/v1/search",
		Summary:     "Search listings",
		Description: "Fetches listings from the configured sources, sorts them and optionally " +
			"replaces the stored result set.",
		Tags: []string{"search"},
		Errors: []int{
			http.StatusBadRequest,
			http.StatusInternalServerError,
			http.StatusBadGateway,
		},
	}, h.Search)
}
