package source

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/donaldgifford/listing-aggregator/internal/config"
	"github.com/donaldgifford/listing-aggregator/internal/ebay"
	"github.com/donaldgifford/listing-aggregator/internal/scrape"
	"github.com/donaldgifford/listing-aggregator/pkg/logger"
	domain "github.com/donaldgifford/listing-aggregator/pkg/types"
)

// TokenProvider returns the eBay token provider described by cfg: the
// token proxy when TokenProxyURL is set, the client-credentials exchange
// otherwise.
func TokenProvider(cfg *config.EbayConfig) ebay.TokenProvider {
	hc := &http.Client{Timeout: cfg.TokenTimeout}

	if cfg.TokenProxyURL != "" {
		return ebay.NewProxyTokenProvider(cfg.TokenProxyURL, ebay.WithProxyHTTPClient(hc))
	}

	return OAuth(cfg)
}

// OAuth returns a client-credentials token provider for cfg.
func OAuth(cfg *config.EbayConfig) *ebay.OAuthTokenProvider {
	return ebay.NewOAuthTokenProvider(
		cfg.ClientID,
		cfg.ClientSecret,
		ebay.WithTokenURL(cfg.TokenURL),
		ebay.WithScope(cfg.Scope),
		ebay.WithHTTPClient(&http.Client{Timeout: cfg.TokenTimeout}),
	)
}

// RateLimiter returns the Browse API limiter described by cfg, or nil when
// rate limiting is disabled.
func RateLimiter(cfg *config.EbayConfig) *ebay.RateLimiter {
	if cfg.RateLimit.PerSecond <= 0 {
		return nil
	}
	return ebay.NewRateLimiter(cfg.RateLimit.PerSecond, cfg.RateLimit.Burst, cfg.RateLimit.DailyLimit)
}

// Shared holds the eBay clients that the HTTP server exposes alongside the
// sources: the token proxy serves Tokens and the quota endpoint reads
// Limiter.
type Shared struct {
	Tokens  ebay.TokenProvider
	Limiter *ebay.RateLimiter
}

// NewShared builds the token provider and rate limiter for cfg.
func NewShared(cfg *config.EbayConfig) *Shared {
	return &Shared{
		Tokens:  TokenProvider(cfg),
		Limiter: RateLimiter(cfg),
	}
}

// Ebay builds the eBay API adapter over the shared token provider and
// optional rate limiter.
func Ebay(cfg *config.EbayConfig, sh *Shared, log *slog.Logger) *ebay.APIAdapter {
	opts := []ebay.BrowseOption{
		ebay.WithBrowseURL(cfg.BrowseURL),
		ebay.WithMarketplace(cfg.Marketplace),
		ebay.WithBrowseHTTPClient(&http.Client{Timeout: cfg.Timeout}),
	}
	if sh.Limiter != nil {
		opts = append(opts, ebay.WithRateLimiter(sh.Limiter))
	}

	return ebay.NewAPIAdapter(
		ebay.NewBrowseClient(sh.Tokens, opts...),
		ebay.WithAdapterLogger(logger.Component(log, ebay.SourceName)),
	)
}

// Scrape builds the HTML search-result adapter.
func Scrape(cfg *config.ScrapeConfig, log *slog.Logger) (*scrape.Adapter, error) {
	policy, err := scrape.ParseRatingPolicy(cfg.RatingPolicy)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrConfig, err)
	}

	return scrape.NewAdapter(cfg.BaseURL,
		scrape.WithUserAgent(cfg.UserAgent),
		scrape.WithAcceptLanguage(cfg.AcceptLanguage),
		scrape.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		scrape.WithRatingPolicy(policy),
		scrape.WithLogger(logger.Component(log, scrape.SourceName)),
	)
}

// CheckCredentials fails with domain.ErrConfig when the eBay source is
// enabled but neither a token proxy nor client credentials are configured.
// Callers run it before opening any connection.
func CheckCredentials(cfg *config.Config) error {
	for _, name := range cfg.Sources {
		if name != config.SourceEbay || cfg.Ebay.TokenProxyURL != "" {
			continue
		}
		if cfg.Ebay.ClientID == "" || cfg.Ebay.ClientSecret == "" {
			return fmt.Errorf("%w: eBay client id and client secret are required", domain.ErrConfig)
		}
	}
	return nil
}

// FromConfig builds the sources listed in cfg.Sources, in order. A single
// source is returned as is; several are wrapped in a Multi.
func FromConfig(cfg *config.Config, log *slog.Logger) (Adapter, error) {
	return Build(cfg, NewShared(&cfg.Ebay), log)
}

// Build is FromConfig with caller-owned eBay clients.
func Build(cfg *config.Config, sh *Shared, log *slog.Logger) (Adapter, error) {
	if log == nil {
		log = slog.Default()
	}

	adapters := make([]Adapter, 0, len(cfg.Sources))
	for _, name := range cfg.Sources {
		switch name {
		case config.SourceEbay:
			adapters = append(adapters, Ebay(&cfg.Ebay, sh, log))
		case config.SourceAmazon:
			a, err := Scrape(&cfg.Scrape, log)
			if err != nil {
				return nil, err
			}
			adapters = append(adapters, a)
		default:
			return nil, fmt.Errorf("%w: unknown source %q", domain.ErrConfig, name)
		}
	}

	switch len(adapters) {
	case 0:
		return nil, fmt.Errorf("%w: no sources configured", domain.ErrConfig)
	case 1:
		return adapters[0], nil
	default:
		return NewMulti(adapters, WithLogger(log)), nil
	}
}
