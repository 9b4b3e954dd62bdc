package ebay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/donaldgifford/listing-aggregator/internal/metrics"
	domain "github.com/donaldgifford/listing-aggregator/pkg/types"
)

const (
	defaultTokenURL = "https://api.ebay.com/identity/v1/oauth2/token" //nolint:gosec // not a credential
	defaultScope    = "https://api.ebay.com/oauth/api_scope"

	// RefreshMargin is how long before expiry a cached token stops being
	// handed out.
	RefreshMargin = 30 * time.Second
)

// OAuthTokenProvider implements TokenProvider using the eBay OAuth2
// client credentials flow. Each instance owns its cached token; the cache is
// guarded by a mutex so one provider can serve concurrent requests.
type OAuthTokenProvider struct {
	clientID     string
	clientSecret string
	tokenURL     string
	scope        string
	client       *http.Client

	mu      sync.Mutex
	token   string
	expiry  time.Time
	nowFunc func() time.Time // for testing
}

// OAuthOption configures the OAuthTokenProvider.
type OAuthOption func(*OAuthTokenProvider)

// WithTokenURL overrides the default eBay token endpoint.
func WithTokenURL(u string) OAuthOption {
	return func(p *OAuthTokenProvider) {
		p.tokenURL = u
	}
}

// WithScope overrides the requested OAuth scope.
func WithScope(s string) OAuthOption {
	return func(p *OAuthTokenProvider) {
		p.scope = s
	}
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(c *http.Client) OAuthOption {
	return func(p *OAuthTokenProvider) {
		p.client = c
	}
}

// WithNowFunc overrides the time function for testing.
func WithNowFunc(f func() time.Time) OAuthOption {
	return func(p *OAuthTokenProvider) {
		p.nowFunc = f
	}
}

// NewOAuthTokenProvider creates a new eBay OAuth2 token provider. Empty
// credentials are accepted here and reported by Token.
func NewOAuthTokenProvider(
	clientID, clientSecret string,
	opts ...OAuthOption,
) *OAuthTokenProvider {
	p := &OAuthTokenProvider{
		clientID:     clientID,
		clientSecret: clientSecret,
		tokenURL:     defaultTokenURL,
		scope:        defaultScope,
		client:       &http.Client{Timeout: 10 * time.Second},
		nowFunc:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

type tokenErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// Token returns the cached access token while it is more than RefreshMargin
// from expiry. Otherwise it performs exactly one client-credentials exchange.
//
// Missing credentials fail with domain.ErrConfig before any request is made.
// A rejected exchange, a transport failure, or a response without
// access_token fails with domain.ErrAuth.
func (p *OAuthTokenProvider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token != "" && p.nowFunc().Before(p.expiry.Add(-RefreshMargin)) {
		return p.token, nil
	}

	if p.clientID == "" || p.clientSecret == "" {
		return "", fmt.Errorf("%w: eBay client id and client secret are required", domain.ErrConfig)
	}

	token, err := p.refreshLocked(ctx)
	if err != nil {
		metrics.TokenRefreshesTotal.WithLabelValues("oauth", "error").Inc()
		return "", err
	}
	metrics.TokenRefreshesTotal.WithLabelValues("oauth", "success").Inc()
	return token, nil
}

// Expiry returns the expiry of the cached token. Zero before the first
// successful exchange.
func (p *OAuthTokenProvider) Expiry() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.expiry
}

func (p *OAuthTokenProvider) refreshLocked(
	ctx context.Context,
) (string, error) {
	form := url.Values{
		"grant_type": {"client_credentials"},
		"scope":      {p.scope},
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		p.tokenURL,
		strings.NewReader(form.Encode()),
	)
	if err != nil {
		return "", fmt.Errorf("%w: creating token request: %w", domain.ErrAuth, err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(p.clientID, p.clientSecret)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: executing token request: %w", domain.ErrAuth, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: reading token response: %w", domain.ErrAuth, err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp tokenErrorResponse
		_ = json.Unmarshal(body, &errResp) //nolint:errcheck // best-effort error parsing
		return "", fmt.Errorf(
			"%w: token request failed (status %d): %s - %s",
			domain.ErrAuth,
			resp.StatusCode,
			errResp.Error,
			errResp.ErrorDescription,
		)
	}

	var tokenResp tokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", fmt.Errorf("%w: parsing token response: %w", domain.ErrAuth, err)
	}
	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("%w: token response has no access_token", domain.ErrAuth)
	}

	p.token = tokenResp.AccessToken
	p.expiry = p.nowFunc().Add(
		time.Duration(tokenResp.ExpiresIn) * time.Second,
	)

	return p.token, nil
}
