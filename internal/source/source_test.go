package source_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/listing-aggregator/internal/config"
	"github.com/donaldgifford/listing-aggregator/internal/ebay"
	"github.com/donaldgifford/listing-aggregator/internal/scrape"
	"github.com/donaldgifford/listing-aggregator/internal/source"
	"github.com/donaldgifford/listing-aggregator/internal/source/mocks"
	domain "github.com/donaldgifford/listing-aggregator/pkg/types"
)

func TestMulti_Fetch(t *testing.T) {
	t.Parallel()

	first := mocks.NewMockAdapter(t)
	second := mocks.NewMockAdapter(t)

	var order []string
	first.EXPECT().Name().Return("ebay").Maybe()
	first.EXPECT().
		Fetch(mock.Anything, "mouse", 2).
		Run(func(_ context.Context, _ string, _ int) { order = append(order, "ebay") }).
		Return([]domain.Listing{{Title: "a", Source: "ebay"}, {Title: "b", Source: "ebay"}}, nil)
	second.EXPECT().Name().Return("amazon").Maybe()
	second.EXPECT().
		Fetch(mock.Anything, "mouse", 2).
		Run(func(_ context.Context, _ string, _ int) { order = append(order, "amazon") }).
		Return([]domain.Listing{{Title: "c", Source: "amazon"}}, nil)

	m := source.NewMulti([]source.Adapter{first, second})
	assert.Equal(t, "ebay+amazon", m.Name())

	got, err := m.Fetch(context.Background(), "mouse", 2)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"ebay", "amazon"}, order)
	assert.Equal(t, "c", got[2].Title)
}

func TestMulti_Fetch_FirstErrorAborts(t *testing.T) {
	t.Parallel()

	failing := mocks.NewMockAdapter(t)
	never := mocks.NewMockAdapter(t)

	failing.EXPECT().Name().Return("ebay")
	failing.EXPECT().
		Fetch(mock.Anything, mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("%w: status 500", domain.ErrUpstream))

	m := source.NewMulti([]source.Adapter{failing, never})
	got, err := m.Fetch(context.Background(), "q", 5)
	require.ErrorIs(t, err, domain.ErrUpstream)
	assert.Contains(t, err.Error(), "source ebay")
	assert.Nil(t, got)
}

func TestMulti_Fetch_CanceledContext(t *testing.T) {
	t.Parallel()

	never := mocks.NewMockAdapter(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := source.NewMulti([]source.Adapter{never}).Fetch(ctx, "q", 5)
	require.ErrorIs(t, err, context.Canceled)
}

func TestMulti_Fetch_EmptyIsNotNil(t *testing.T) {
	t.Parallel()

	empty := mocks.NewMockAdapter(t)
	empty.EXPECT().Name().Return("amazon").Maybe()
	empty.EXPECT().Fetch(mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)

	got, err := source.NewMulti([]source.Adapter{empty}).Fetch(context.Background(), "q", 5)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestFromConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		mutate   func(*config.Config)
		wantName string
		wantType any
		wantErr  error
	}{
		{
			name:     "ebay only",
			mutate:   func(c *config.Config) { c.Sources = []string{"ebay"} },
			wantName: "ebay",
			wantType: &ebay.APIAdapter{},
		},
		{
			name:     "amazon only",
			mutate:   func(c *config.Config) { c.Sources = []string{"amazon"} },
			wantName: "amazon",
			wantType: &scrape.Adapter{},
		},
		{
			name:     "both in order",
			mutate:   func(c *config.Config) { c.Sources = []string{"amazon", "ebay"} },
			wantName: "amazon+ebay",
			wantType: &source.Multi{},
		},
		{
			name:    "none",
			mutate:  func(c *config.Config) { c.Sources = nil },
			wantErr: domain.ErrConfig,
		},
		{
			name:    "unknown source",
			mutate:  func(c *config.Config) { c.Sources = []string{"walmart"} },
			wantErr: domain.ErrConfig,
		},
		{
			name: "bad rating policy",
			mutate: func(c *config.Config) {
				c.Sources = []string{"amazon"}
				c.Scrape.RatingPolicy = "maybe"
			},
			wantErr: domain.ErrConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg, err := config.Default("")
			require.NoError(t, err)
			tt.mutate(cfg)

			a, err := source.FromConfig(cfg, nil)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, a.Name())
			assert.IsType(t, tt.wantType, a)
		})
	}
}

func TestTokenProvider(t *testing.T) {
	t.Parallel()

	cfg, err := config.Default("")
	require.NoError(t, err)

	cfg.Ebay.TokenProxyURL = ""
	assert.IsType(t, &ebay.OAuthTokenProvider{}, source.TokenProvider(&cfg.Ebay))

	cfg.Ebay.TokenProxyURL = "http://localhost:5000/get-ebay-token"
	assert.IsType(t, &ebay.ProxyTokenProvider{}, source.TokenProvider(&cfg.Ebay))
}

func TestCheckCredentials(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		sources []string
		id      string
		secret  string
		proxy   string
		wantErr bool
	}{
		{name: "credentials present", sources: []string{config.SourceEbay}, id: "id", secret: "secret"},
		{name: "missing secret", sources: []string{config.SourceEbay}, id: "id", wantErr: true},
		{name: "missing both", sources: []string{config.SourceAmazon, config.SourceEbay}, wantErr: true},
		{name: "token proxy", sources: []string{config.SourceEbay}, proxy: "http://localhost:5000/get-ebay-token"},
		{name: "scrape only", sources: []string{config.SourceAmazon}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg, err := config.Default("")
			require.NoError(t, err)
			cfg.Sources = tt.sources
			cfg.Ebay.ClientID = tt.id
			cfg.Ebay.ClientSecret = tt.secret
			cfg.Ebay.TokenProxyURL = tt.proxy

			err = source.CheckCredentials(cfg)
			if tt.wantErr {
				require.ErrorIs(t, err, domain.ErrConfig)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestNewShared(t *testing.T) {
	t.Parallel()

	cfg, err := config.Default("")
	require.NoError(t, err)

	cfg.Ebay.RateLimit.PerSecond = 0
	assert.Nil(t, source.NewShared(&cfg.Ebay).Limiter)

	cfg.Ebay.RateLimit.PerSecond = 5
	cfg.Ebay.RateLimit.Burst = 2
	cfg.Ebay.RateLimit.DailyLimit = 100
	sh := source.NewShared(&cfg.Ebay)
	require.NotNil(t, sh.Limiter)
	assert.Equal(t, int64(100), sh.Limiter.MaxDaily())
	assert.NotNil(t, sh.Tokens)
}
