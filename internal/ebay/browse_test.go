package ebay_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/listing-aggregator/internal/ebay"
	"github.com/donaldgifford/listing-aggregator/internal/ebay/mocks"
	domain "github.com/donaldgifford/listing-aggregator/pkg/types"
)

const emptySearchJSON = `{"itemSummaries":[],"total":0}`

// searchOnce serves one Browse response from h and runs a single Search.
func searchOnce(
	t *testing.T,
	h http.HandlerFunc,
	req ebay.SearchRequest,
	opts ...ebay.BrowseOption,
) (*ebay.SearchResponse, error) {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	tokens := mocks.NewMockTokenProvider(t)
	tokens.EXPECT().Token(mock.Anything).Return("test-token", nil).Once()

	client := ebay.NewBrowseClient(tokens, append([]ebay.BrowseOption{ebay.WithBrowseURL(srv.URL)}, opts...)...)
	return client.Search(context.Background(), req)
}

func writeEmpty(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte(emptySearchJSON))
}

func TestBrowseClient_Search(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		req        ebay.SearchRequest
		handler    http.HandlerFunc
		tokenErr   error
		wantErr    error
		errContain string
		wantItems  int
	}{
		{
			name: "successful search with results",
			req:  ebay.SearchRequest{Query: "wireless mouse", Limit: 10},
			handler: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
				assert.Equal(t, "EBAY_US", r.Header.Get("X-EBAY-C-MARKETPLACE-ID"))
				assert.Equal(t, "wireless mouse", r.URL.Query().Get("q"))
				assert.Equal(t, "10", r.URL.Query().Get("limit"))

				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{
					"itemSummaries": [
						{"itemId": "v1|1|0", "title": "Item 1", "price": {"value": "10.00", "currency": "USD"}, "itemWebUrl": "https://ebay.com/1"},
						{"itemId": "v1|2|0", "title": "Item 2", "price": {"value": "20.00", "currency": "USD"}, "itemWebUrl": "https://ebay.com/2"}
					],
					"total": 100
				}`))
			},
			wantItems: 2,
		},
		{
			name: "missing itemSummaries is an empty result",
			req:  ebay.SearchRequest{Query: "nonexistent item xyz"},
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"total": 0}`))
			},
			wantItems: 0,
		},
		{
			name: "401 unauthorized response",
			req:  ebay.SearchRequest{Query: "test"},
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"errors": [{"message": "Invalid access token"}]}`))
			},
			wantErr:    domain.ErrUpstream,
			errContain: "status 401",
		},
		{
			name: "429 rate limited response",
			req:  ebay.SearchRequest{Query: "test"},
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
			},
			wantErr:    domain.ErrUpstream,
			errContain: "status 429",
		},
		{
			name: "500 server error response",
			req:  ebay.SearchRequest{Query: "test"},
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			wantErr:    domain.ErrUpstream,
			errContain: "status 500",
		},
		{
			name:       "token config error keeps its identity",
			req:        ebay.SearchRequest{Query: "test"},
			handler:    func(_ http.ResponseWriter, _ *http.Request) {},
			tokenErr:   domain.ErrConfig,
			wantErr:    domain.ErrConfig,
			errContain: "getting auth token",
		},
		{
			name:       "token auth error keeps its identity",
			req:        ebay.SearchRequest{Query: "test"},
			handler:    func(_ http.ResponseWriter, _ *http.Request) {},
			tokenErr:   domain.ErrAuth,
			wantErr:    domain.ErrAuth,
			errContain: "getting auth token",
		},
		{
			name: "invalid JSON response",
			req:  ebay.SearchRequest{Query: "test"},
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte("not valid json"))
			},
			wantErr:    domain.ErrUpstream,
			errContain: "parsing search response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			mockTokens := mocks.NewMockTokenProvider(t)
			if tt.tokenErr != nil {
				mockTokens.EXPECT().
					Token(mock.Anything).
					Return("", tt.tokenErr)
			} else {
				mockTokens.EXPECT().
					Token(mock.Anything).
					Return("test-token", nil)
			}

			client := ebay.NewBrowseClient(
				mockTokens,
				ebay.WithBrowseURL(srv.URL),
			)

			resp, err := client.Search(context.Background(), tt.req)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Contains(t, err.Error(), tt.errContain)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, resp)
			assert.Len(t, resp.Items, tt.wantItems)
		})
	}
}

func TestBrowseClient_Search_LimitIsCapped(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		limit     int
		wantLimit string
	}{
		{name: "within range", limit: 25, wantLimit: "25"},
		{name: "at ceiling", limit: 200, wantLimit: "200"},
		{name: "above ceiling", limit: 500, wantLimit: "200"},
		{name: "zero uses default", limit: 0, wantLimit: "10"},
		{name: "negative uses default", limit: -3, wantLimit: "10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := searchOnce(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, tt.wantLimit, r.URL.Query().Get("limit"))
				writeEmpty(w, r)
			}, ebay.SearchRequest{Query: "q", Limit: tt.limit})
			require.NoError(t, err)
		})
	}
}

func TestBrowseClient_Search_Marketplace(t *testing.T) {
	t.Parallel()

	_, err := searchOnce(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "EBAY_DE", r.Header.Get("X-EBAY-C-MARKETPLACE-ID"))
		writeEmpty(w, r)
	}, ebay.SearchRequest{Query: "q"}, ebay.WithMarketplace("EBAY_DE"))
	require.NoError(t, err)
}

func TestBrowseClient_Search_DeadlineIsUpstreamError(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		_, _ = w.Write([]byte(emptySearchJSON))
	}))
	defer srv.Close()
	defer close(release)

	mockTokens := mocks.NewMockTokenProvider(t)
	mockTokens.EXPECT().Token(mock.Anything).Return("test-token", nil)

	client := ebay.NewBrowseClient(
		mockTokens,
		ebay.WithBrowseURL(srv.URL),
		ebay.WithBrowseHTTPClient(&http.Client{Timeout: 50 * time.Millisecond}),
	)

	_, err := client.Search(context.Background(), ebay.SearchRequest{Query: "slow"})
	require.ErrorIs(t, err, domain.ErrUpstream)
	assert.Contains(t, err.Error(), "executing search request")
}

func TestBrowseClient_Search_OneRequestNoRetry(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	_, err := searchOnce(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}, ebay.SearchRequest{Query: "q"})

	require.ErrorIs(t, err, domain.ErrUpstream)
	assert.Equal(t, int32(1), calls.Load())
}

func TestBrowseClient_Search_RateLimited(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(emptySearchJSON))
	}))
	defer srv.Close()

	mockTokens := mocks.NewMockTokenProvider(t)
	mockTokens.EXPECT().
		Token(mock.Anything).
		Return("test-token", nil).
		Once()

	// Rate limiter with daily limit of 1.
	rl := ebay.NewRateLimiter(100, 10, 1)
	client := ebay.NewBrowseClient(
		mockTokens,
		ebay.WithBrowseURL(srv.URL),
		ebay.WithRateLimiter(rl),
	)

	_, err := client.Search(context.Background(), ebay.SearchRequest{Query: "test"})
	require.NoError(t, err)

	// Second call hits daily limit before asking for a token.
	_, err = client.Search(context.Background(), ebay.SearchRequest{Query: "test"})
	require.ErrorIs(t, err, ebay.ErrDailyLimitReached)
	require.ErrorIs(t, err, domain.ErrUpstream)
	assert.Contains(t, err.Error(), "rate limit:")
}

func TestBrowseClient_Search_NonJSONBodies(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		contentType string
		body        string
	}{
		{name: "html error page", contentType: "text/html", body: `<!DOCTYPE html><html><body><h1>Service Unavailable</h1></body></html>`},
		{name: "truncated json", contentType: "application/json", body: `{"itemSummaries":[{"title":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := searchOnce(t, func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				_, _ = w.Write([]byte(tt.body))
			}, ebay.SearchRequest{Query: "test"})

			require.ErrorIs(t, err, domain.ErrUpstream)
			assert.Contains(t, err.Error(), "parsing search response")
		})
	}
}

func TestBrowseClient_Search_ErrorBodyIsTruncated(t *testing.T) {
	t.Parallel()

	_, err := searchOnce(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(strings.Repeat("x", 4096)))
	}, ebay.SearchRequest{Query: "test"})

	require.ErrorIs(t, err, domain.ErrUpstream)
	assert.Less(t, len(err.Error()), 700)
	assert.True(t, strings.HasSuffix(err.Error(), "..."))
}
