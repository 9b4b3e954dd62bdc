package ebay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/donaldgifford/listing-aggregator/internal/metrics"
	domain "github.com/donaldgifford/listing-aggregator/pkg/types"
)

const (
	defaultBrowseURL   = "https://api.ebay.com/buy/browse/v1/item_summary/search"
	defaultMarketplace = "EBAY_US"

	// maxErrorBody bounds how much of a failed response ends up in an error.
	maxErrorBody = 512
)

// BrowseClient implements EbayClient using the eBay Browse API.
type BrowseClient struct {
	tokens      TokenProvider
	browseURL   string
	marketplace string
	client      *http.Client
	rateLimiter *RateLimiter
}

// BrowseOption configures the BrowseClient.
type BrowseOption func(*BrowseClient)

// WithBrowseURL overrides the default Browse API endpoint.
func WithBrowseURL(u string) BrowseOption {
	return func(c *BrowseClient) {
		c.browseURL = u
	}
}

// WithMarketplace overrides the default marketplace.
func WithMarketplace(m string) BrowseOption {
	return func(c *BrowseClient) {
		c.marketplace = m
	}
}

// WithBrowseHTTPClient overrides the default HTTP client. Its Timeout is the
// per-call deadline.
func WithBrowseHTTPClient(hc *http.Client) BrowseOption {
	return func(c *BrowseClient) {
		c.client = hc
	}
}

// WithRateLimiter injects a rate limiter. When set, every Search call goes
// through Wait first.
func WithRateLimiter(r *RateLimiter) BrowseOption {
	return func(c *BrowseClient) {
		c.rateLimiter = r
	}
}

// NewBrowseClient creates a new eBay Browse API client.
func NewBrowseClient(tokens TokenProvider, opts ...BrowseOption) *BrowseClient {
	c := &BrowseClient{
		tokens:      tokens,
		browseURL:   defaultBrowseURL,
		marketplace: defaultMarketplace,
		client:      &http.Client{Timeout: 20 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type browseAPIResponse struct {
	ItemSummaries []ItemSummary `json:"itemSummaries"`
	Total         int           `json:"total"`
}

// Search issues exactly one GET for the first page of results.
//
// Token failures are returned wrapped but keep their domain.ErrConfig or
// domain.ErrAuth identity. Everything that goes wrong after the token is in
// hand (quota, transport, deadline, status, body) is domain.ErrUpstream.
func (c *BrowseClient) Search(
	ctx context.Context,
	req SearchRequest,
) (*SearchResponse, error) {
	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: rate limit: %w", domain.ErrUpstream, err)
		}
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting auth token: %w", err)
	}

	start := time.Now()
	resp, err := c.do(ctx, token, req)
	metrics.SourceRequestDuration.WithLabelValues(SourceName).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SourceRequestsTotal.WithLabelValues(SourceName, "error").Inc()
		return nil, err
	}
	metrics.SourceRequestsTotal.WithLabelValues(SourceName, "success").Inc()
	return resp, nil
}

func (c *BrowseClient) do(ctx context.Context, token string, req SearchRequest) (*SearchResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.buildSearchURL(req), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: creating HTTP request: %w", domain.ErrUpstream, err)
	}

	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("X-EBAY-C-MARKETPLACE-ID", c.marketplace)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: executing search request: %w", domain.ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response body: %w", domain.ErrUpstream, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf(
			"%w: eBay API error (status %d): %s",
			domain.ErrUpstream,
			resp.StatusCode,
			truncate(body, maxErrorBody),
		)
	}

	var apiResp browseAPIResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("%w: parsing search response: %w", domain.ErrUpstream, err)
	}

	return &SearchResponse{
		Items: apiResp.ItemSummaries,
		Total: apiResp.Total,
	}, nil
}

// buildSearchURL clamps the limit into [1, MaxSearchLimit]; a non-positive
// limit asks for domain.DefaultLimit.
func (c *BrowseClient) buildSearchURL(req SearchRequest) string {
	limit := req.Limit
	if limit <= 0 {
		limit = domain.DefaultLimit
	}
	limit = min(limit, MaxSearchLimit)

	params := url.Values{}
	params.Set("q", req.Query)
	params.Set("limit", strconv.Itoa(limit))

	return c.browseURL + "?" + params.Encode()
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
