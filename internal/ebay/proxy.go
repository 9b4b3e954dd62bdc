package ebay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/donaldgifford/listing-aggregator/internal/metrics"
	domain "github.com/donaldgifford/listing-aggregator/pkg/types"
)

// ProxyTokenProvider implements TokenProvider by asking a token proxy for a
// bearer token instead of holding client credentials. The proxy answers a
// GET with {"access_token": "...", "expires_in": N}; expires_in is optional.
//
// With expires_in the token is cached under the same RefreshMargin rule as
// OAuthTokenProvider. Without it every Token call asks the proxy again.
type ProxyTokenProvider struct {
	proxyURL string
	client   *http.Client

	mu      sync.Mutex
	token   string
	expiry  time.Time
	nowFunc func() time.Time
}

// ProxyOption configures the ProxyTokenProvider.
type ProxyOption func(*ProxyTokenProvider)

// WithProxyHTTPClient overrides the default HTTP client.
func WithProxyHTTPClient(c *http.Client) ProxyOption {
	return func(p *ProxyTokenProvider) {
		p.client = c
	}
}

// WithProxyNowFunc overrides the time function for testing.
func WithProxyNowFunc(f func() time.Time) ProxyOption {
	return func(p *ProxyTokenProvider) {
		p.nowFunc = f
	}
}

// NewProxyTokenProvider creates a provider backed by the proxy at proxyURL.
func NewProxyTokenProvider(proxyURL string, opts ...ProxyOption) *ProxyTokenProvider {
	p := &ProxyTokenProvider{
		proxyURL: proxyURL,
		client:   &http.Client{Timeout: 10 * time.Second},
		nowFunc:  time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type proxyResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	Error       string `json:"error"`
}

// Token returns a bearer token from the cache or the proxy.
func (p *ProxyTokenProvider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token != "" && p.nowFunc().Before(p.expiry.Add(-RefreshMargin)) {
		return p.token, nil
	}

	if p.proxyURL == "" {
		return "", fmt.Errorf("%w: token proxy URL is empty", domain.ErrConfig)
	}

	token, err := p.fetchLocked(ctx)
	if err != nil {
		metrics.TokenRefreshesTotal.WithLabelValues("proxy", "error").Inc()
		return "", err
	}
	metrics.TokenRefreshesTotal.WithLabelValues("proxy", "success").Inc()
	return token, nil
}

func (p *ProxyTokenProvider) fetchLocked(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.proxyURL, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("%w: creating proxy request: %w", domain.ErrAuth, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: executing proxy request: %w", domain.ErrAuth, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: reading proxy response: %w", domain.ErrAuth, err)
	}

	var pr proxyResponse
	parseErr := json.Unmarshal(body, &pr)

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf(
			"%w: token proxy failed (status %d): %s",
			domain.ErrAuth, resp.StatusCode, pr.Error,
		)
	}
	if parseErr != nil {
		return "", fmt.Errorf("%w: parsing proxy response: %w", domain.ErrAuth, parseErr)
	}
	if pr.AccessToken == "" {
		return "", fmt.Errorf("%w: proxy response has no access_token", domain.ErrAuth)
	}

	p.token = pr.AccessToken
	if pr.ExpiresIn > 0 {
		p.expiry = p.nowFunc().Add(time.Duration(pr.ExpiresIn) * time.Second)
	} else {
		p.expiry = time.Time{}
	}

	return p.token, nil
}
