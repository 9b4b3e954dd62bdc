package pipeline

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/donaldgifford/listing-aggregator/pkg/types"
)

func TestRequest_Normalize(t *testing.T) {
	t.Parallel()

	r := Request{Query: "\t usb hub \n", Limit: -3}
	r.Normalize()

	assert.Equal(t, "usb hub", r.Query)
	assert.Equal(t, domain.DefaultLimit, r.Limit)
	assert.Equal(t, domain.DefaultSortMode, r.Mode)

	kept := Request{Query: "hub", Limit: 25, Mode: domain.SortRatingDesc}
	kept.Normalize()
	assert.Equal(t, 25, kept.Limit)
	assert.Equal(t, domain.SortRatingDesc, kept.Mode)
}

func TestRequest_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		req     Request
		wantErr string
	}{
		{
			name: "valid",
			req:  Request{Query: "mouse", Limit: 10, Mode: domain.SortPriceAsc},
		},
		{
			name: "source order",
			req:  Request{Query: "mouse", Limit: 1, Mode: domain.SortNone},
		},
		{
			name:    "missing query",
			req:     Request{Limit: 10, Mode: domain.SortPriceAsc},
			wantErr: `query failed "required"`,
		},
		{
			name:    "query too long",
			req:     Request{Query: strings.Repeat("q", 501), Limit: 10, Mode: domain.SortPriceAsc},
			wantErr: `query failed "max"`,
		},
		{
			name:    "zero limit",
			req:     Request{Query: "mouse", Mode: domain.SortPriceAsc},
			wantErr: `limit failed "min"`,
		},
		{
			name:    "unknown mode",
			req:     Request{Query: "mouse", Limit: 10, Mode: "best"},
			wantErr: `mode failed "oneof"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.req.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.ErrorIs(t, err, domain.ErrInvalidInput)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestResolveMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		choice   string
		want     domain.SortMode
		wantWarn bool
	}{
		{name: "empty", choice: "", want: domain.SortPriceAsc},
		{name: "menu digit", choice: "3", want: domain.SortRatingAsc},
		{name: "named", choice: "rating_desc", want: domain.SortRatingDesc},
		{name: "padded digit", choice: " 2 ", want: domain.SortPriceDesc},
		{name: "out of range digit", choice: "9", want: domain.SortPriceAsc, wantWarn: true},
		{name: "garbage", choice: "cheapest please", want: domain.SortPriceAsc, wantWarn: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			log := slog.New(slog.NewTextHandler(&buf, nil))

			assert.Equal(t, tt.want, ResolveMode(tt.choice, log))
			if tt.wantWarn {
				assert.Contains(t, buf.String(), "invalid sort choice")
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}
