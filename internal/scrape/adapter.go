// Package scrape implements the HTML search-result listing source: one GET of
// a marketplace search page, parsed with goquery into normalized listings.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/donaldgifford/listing-aggregator/internal/metrics"
	"github.com/donaldgifford/listing-aggregator/pkg/normalize"
	domain "github.com/donaldgifford/listing-aggregator/pkg/types"
)

// SourceName identifies listings produced by this adapter.
const SourceName = "amazon"

// Defaults for the search page request.
const (
	DefaultBaseURL        = "https://www.amazon.com"
	DefaultUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	DefaultAcceptLanguage = "en-US,en;q=0.9"
	defaultAccept         = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	defaultTimeout        = 20 * time.Second
)

// Selectors for one search-result card and its fields.
const (
	cardSelector   = `div[data-component-type="s-search-result"]`
	titleSelector  = "h2"
	priceSelector  = "span.a-price span.a-offscreen"
	ratingSelector = "span.a-icon-alt"
)

// linkSelectors are tried in order; the first anchor found wins.
var linkSelectors = []string{"a.a-link-normal[href]", "h2 a[href]", "a[href]"}

// RatingPolicy decides what an absent or unparseable star rating becomes.
type RatingPolicy string

// Rating policies.
const (
	// RatingZero stores 0.0, which cannot be told apart from a real zero.
	RatingZero RatingPolicy = "zero"
	// RatingNull stores no rating.
	RatingNull RatingPolicy = "null"
)

// ParseRatingPolicy converts a config string into a RatingPolicy. Empty
// means RatingZero.
func ParseRatingPolicy(s string) (RatingPolicy, error) {
	switch RatingPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case RatingZero, "":
		return RatingZero, nil
	case RatingNull:
		return RatingNull, nil
	default:
		return "", fmt.Errorf("unknown rating policy %q (want zero or null)", s)
	}
}

var errRatingMissing = errors.New("rating element missing")

// Adapter scrapes one page of marketplace search results.
type Adapter struct {
	baseURL        string
	userAgent      string
	acceptLanguage string
	policy         RatingPolicy
	client         *http.Client
	canon          *Canonicalizer
	log            *slog.Logger
}

// Option configures the Adapter.
type Option func(*Adapter)

// WithHTTPClient overrides the default HTTP client. Its Timeout bounds the
// whole request.
func WithHTTPClient(c *http.Client) Option {
	return func(a *Adapter) {
		a.client = c
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(a *Adapter) {
		if ua != "" {
			a.userAgent = ua
		}
	}
}

// WithAcceptLanguage overrides the Accept-Language header.
func WithAcceptLanguage(lang string) Option {
	return func(a *Adapter) {
		if lang != "" {
			a.acceptLanguage = lang
		}
	}
}

// WithRatingPolicy sets how missing ratings are represented.
func WithRatingPolicy(p RatingPolicy) Option {
	return func(a *Adapter) {
		a.policy = p
	}
}

// WithLogger sets the logger used for field fallback diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) {
		a.log = l
	}
}

// NewAdapter creates an Adapter for the marketplace at baseURL. An empty
// baseURL means DefaultBaseURL.
func NewAdapter(baseURL string, opts ...Option) (*Adapter, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	canon, err := NewCanonicalizer(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrConfig, err)
	}

	a := &Adapter{
		baseURL:        canon.Origin(),
		userAgent:      DefaultUserAgent,
		acceptLanguage: DefaultAcceptLanguage,
		policy:         RatingZero,
		client:         &http.Client{Timeout: defaultTimeout},
		canon:          canon,
		log:            slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Name returns SourceName.
func (a *Adapter) Name() string {
	return SourceName
}

// SearchURL returns the search page URL for query.
func (a *Adapter) SearchURL(query string) string {
	return a.baseURL + "/s?k=" + url.QueryEscape(query)
}

// Fetch downloads the search page for query and parses at most limit result
// cards. Transport failures and non-200 responses are ErrUpstream; a page
// with no recognizable cards is an empty result.
func (a *Adapter) Fetch(ctx context.Context, query string, limit int) ([]domain.Listing, error) {
	if limit <= 0 {
		limit = domain.DefaultLimit
	}

	start := time.Now()
	doc, err := a.download(ctx, a.SearchURL(query))
	metrics.SourceRequestDuration.WithLabelValues(SourceName).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SourceRequestsTotal.WithLabelValues(SourceName, "error").Inc()
		return nil, err
	}
	metrics.SourceRequestsTotal.WithLabelValues(SourceName, "success").Inc()

	listings := a.parse(doc, limit)
	metrics.ListingsFetchedTotal.WithLabelValues(SourceName).Add(float64(len(listings)))
	return listings, nil
}

func (a *Adapter) download(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: creating search request: %w", domain.ErrUpstream, err)
	}
	req.Header.Set("User-Agent", a.userAgent)
	req.Header.Set("Accept", defaultAccept)
	req.Header.Set("Accept-Language", a.acceptLanguage)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching search page: %w", domain.ErrUpstream, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, fmt.Errorf("%w: search page returned status %d", domain.ErrUpstream, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing search page: %w", domain.ErrUpstream, err)
	}
	return doc, nil
}

// Parse converts the result cards of an already downloaded page.
func (a *Adapter) Parse(r io.Reader, limit int) ([]domain.Listing, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}
	if limit <= 0 {
		limit = domain.DefaultLimit
	}
	return a.parse(doc, limit), nil
}

func (a *Adapter) parse(doc *goquery.Document, limit int) []domain.Listing {
	listings := make([]domain.Listing, 0, limit)
	doc.Find(cardSelector).EachWithBreak(func(_ int, card *goquery.Selection) bool {
		listings = append(listings, a.card(card))
		return len(listings) < limit
	})
	return listings
}

func (a *Adapter) card(card *goquery.Selection) domain.Listing {
	asin, _ := card.Attr("data-asin")

	l := domain.Listing{
		Title:  a.title(card),
		Link:   a.link(card, asin),
		Source: SourceName,
	}

	if el := card.Find(priceSelector).First(); el.Length() > 0 {
		price, err := normalize.PriceText(el.Text())
		if err != nil {
			a.report(asin, normalize.FieldPrice, err)
		}
		l.Price = price
	}

	l.Rating = a.rating(card, asin)
	return l
}

func (a *Adapter) title(card *goquery.Selection) string {
	h := card.Find(titleSelector).First()
	if h.Length() == 0 {
		return domain.NotAvailable
	}
	t := normalize.Title(normalize.CollapseSpace(h.Text()), domain.MaxTitleLength)
	if t == "" {
		return domain.NotAvailable
	}
	return t
}

func (a *Adapter) link(card *goquery.Selection, asin string) string {
	for _, sel := range linkSelectors {
		href, ok := card.Find(sel).First().Attr("href")
		if !ok {
			continue
		}
		if link, ok := a.canon.Resolve(href); ok {
			return link
		}
	}
	if asin = strings.TrimSpace(asin); asin != "" {
		return a.baseURL + "/dp/" + asin
	}
	return domain.NotAvailable
}

func (a *Adapter) rating(card *goquery.Selection, asin string) *float64 {
	el := card.Find(ratingSelector).First()

	var err error
	if el.Length() > 0 {
		var stars float64
		stars, err = normalize.StarRating(el.Text())
		if err == nil {
			return &stars
		}
	} else {
		err = &normalize.ParseError{Field: normalize.FieldRating, Err: errRatingMissing}
	}

	a.report(asin, normalize.FieldRating, err)
	if a.policy == RatingNull {
		return nil
	}
	return domain.Float(0)
}

func (a *Adapter) report(asin, field string, err error) {
	metrics.ParseFallbacksTotal.WithLabelValues(SourceName, field).Inc()
	a.log.Debug("field fell back to default",
		"source", SourceName,
		"asin", asin,
		"field", field,
		"error", err,
	)
}
