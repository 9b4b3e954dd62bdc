package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	domain "github.com/donaldgifford/listing-aggregator/pkg/types"
)

// validate is safe for concurrent use and caches struct metadata.
var validate = validator.New()

// Request is one search: the query, how many listings each source should
// return, how to order them, and whether to persist the result.
type Request struct {
	Query   string          `json:"query"   validate:"required,max=500"`
	Limit   int             `json:"limit"   validate:"min=1"`
	Mode    domain.SortMode `json:"sort"    validate:"oneof=price_asc price_desc rating_asc rating_desc none"`
	Persist bool            `json:"persist"`
}

// Normalize trims the query and fills defaults: a limit of zero or less
// becomes domain.DefaultLimit and an empty mode becomes
// domain.DefaultSortMode.
func (r *Request) Normalize() {
	r.Query = strings.TrimSpace(r.Query)
	if r.Limit <= 0 {
		r.Limit = domain.DefaultLimit
	}
	if r.Mode == "" {
		r.Mode = domain.DefaultSortMode
	}
}

// Validate checks the request after Normalize. Failures wrap
// domain.ErrInvalidInput.
func (r *Request) Validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		f := ve[0]
		return fmt.Errorf("%w: %s failed %q", domain.ErrInvalidInput, strings.ToLower(f.Field()), f.Tag())
	}
	return fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
}

// ResolveMode parses a user-supplied sort choice. Unrecognized input falls
// back to domain.DefaultSortMode with a warning; empty input is the default
// without one.
func ResolveMode(choice string, log *slog.Logger) domain.SortMode {
	if strings.TrimSpace(choice) == "" {
		return domain.DefaultSortMode
	}

	mode, err := domain.ParseSortMode(choice)
	if err != nil {
		if log == nil {
			log = slog.Default()
		}
		log.Warn("invalid sort choice, sorting by lowest price",
			"choice", choice,
			"fallback", domain.DefaultSortMode,
		)
		return domain.DefaultSortMode
	}
	return mode
}
