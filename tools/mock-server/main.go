// Package main implements a mock listing server for local development.
// It answers the eBay OAuth token and Browse search endpoints and serves an
// Amazon-style search results page, so the CLI can run end to end without
// credentials or network access.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

type browseAPIResponse struct {
	ItemSummaries []json.RawMessage `json:"itemSummaries"`
	Total         int               `json:"total"`
	Limit         int               `json:"limit"`
}

type itemSummary struct {
	Title string `json:"title"`
}

// defaultItems mixes every price and feedback shape the Browse API has been
// seen to return.
var defaultItems = []string{
	`{"itemId":"v1|1001|0","title":"Logitech M185 Wireless Mouse","price":{"value":"14.99","currency":"USD"},` +
		`"seller":{"feedbackPercentage":"99.6"},"itemWebUrl":"https://www.ebay.com/itm/1001"}`,
	`{"itemId":"v1|1002|0","title":"Wireless Mouse 2.4G Ergonomic","price":{"value":8.5,"currency":"USD"},` +
		`"seller":{"feedbackPercentage":"97.1%"},"itemWebUrl":"https://www.ebay.com/itm/1002"}`,
	`{"itemId":"v1|1003|0","title":"Razer Viper Mini Gaming Mouse","minPrice":{"price":"24.00"},` +
		`"seller":{"feedbackPercentage":100},"itemHref":"https://api.ebay.com/buy/browse/v1/item/v1|1003|0"}`,
	`{"itemId":"v1|1004|0","title":"USB C Hub 7-in-1 Adapter","price":"31.25",` +
		`"seller":{},"itemWebUrl":"https://www.ebay.com/itm/1004"}`,
	`{"itemId":"v1|1005|0","title":"Anker USB C Hub","price":{"value":"not listed"},` +
		`"seller":{"feedbackPercentage":"n/a"},"itemWebUrl":"https://www.ebay.com/itm/1005"}`,
	`{"itemId":"v1|1006|0","title":"Mechanical Keyboard Wireless","price":{"value":"59.99"},` +
		`"seller":{"feedbackPercentage":"98.9"},"itemWebUrl":"https://www.ebay.com/itm/1006"}`,
}

type product struct {
	ASIN   string
	Title  string
	Price  string
	Rating string
	Href   string
}

var defaultProducts = []product{
	{
		ASIN:   "B004YAVF8I",
		Title:  "Logitech M185 Wireless Mouse, 2.4GHz",
		Price:  "$12.99",
		Rating: "4.5 out of 5 stars",
		Href:   "/Logitech-M185-Wireless-Mouse/dp/B004YAVF8I/ref=sr_1_1?keywords=mouse",
	},
	{
		ASIN:   "B07W4DGC27",
		Title:  "Sponsored Wireless Mouse",
		Price:  "$1,019.00",
		Rating: "3.9 out of 5 stars",
		Href:   "/sspa/click?ie=UTF8&url=%2FErgo-Mouse%2Fdp%2FB07W4DGC27%2Fref%3Dsr_1_2_sspa",
	},
	{
		ASIN:  "B08HUB0001",
		Title: "USB C Hub Multiport Adapter",
		Price: "$29.99",
		Href:  "/gp/product/B08HUB0001",
	},
	{
		ASIN:  "B0KEYB0ARD",
		Title: "Wireless Keyboard",
	},
}

var searchPage = template.Must(template.New("search").Parse(`<!DOCTYPE html>
<html><head><title>Search results</title></head>
<body>
<div class="s-main-slot">
{{- range . }}
  <div data-component-type="s-search-result" data-asin="{{ .ASIN }}">
    <h2><span>{{ .Title }}</span></h2>
    {{- if .Href }}<a class="a-link-normal" href="{{ .Href }}">view</a>{{ end }}
    {{- if .Price }}<span class="a-price"><span class="a-offscreen">{{ .Price }}</span></span>{{ end }}
    {{- if .Rating }}<span class="a-icon-alt">{{ .Rating }}</span>{{ end }}
  </div>
{{- end }}
</div>
</body></html>
`))

func main() {
	port := flag.Int("port", 8089, "port to listen on")
	fixtureFile := flag.String("fixture", "", "optional Browse API search response fixture")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	items, err := loadItems(*fixtureFile)
	if err != nil {
		logger.Error("failed to load fixture", "path", *fixtureFile, "error", err)
		os.Exit(1)
	}
	logger.Info("loaded items", "ebay", len(items), "amazon", len(defaultProducts))

	addr := fmt.Sprintf(":%d", *port)
	logger.Info("starting mock listing server", "addr", addr)

	srv := &http.Server{
		Addr:         addr,
		Handler:      requestLogger(logger, newMux(logger, items, defaultProducts)),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func newMux(logger *slog.Logger, items []json.RawMessage, products []product) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /identity/v1/oauth2/token", tokenHandler(logger))
	mux.HandleFunc("GET /buy/browse/v1/item_summary/search", searchHandler(logger, items))
	mux.HandleFunc("GET /s", scrapeHandler(logger, products))
	return mux
}

// loadItems reads itemSummaries from a fixture, or returns the built-in
// items when path is empty.
func loadItems(path string) ([]json.RawMessage, error) {
	if path == "" {
		items := make([]json.RawMessage, 0, len(defaultItems))
		for _, s := range defaultItems {
			items = append(items, json.RawMessage(s))
		}
		return items, nil
	}

	data, err := os.ReadFile(path) //nolint:gosec // fixture path from trusted CLI flag
	if err != nil {
		return nil, fmt.Errorf("reading fixture: %w", err)
	}
	var resp browseAPIResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parsing fixture: %w", err)
	}
	return resp.ItemSummaries, nil
}

func requestLogger(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("request", "method", r.Method, "path", r.URL.Path, "query", r.URL.RawQuery)
		next.ServeHTTP(w, r)
	})
}

func tokenHandler(logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Basic Auth must be present; credentials are not checked.
		if _, _, ok := r.BasicAuth(); !ok {
			logger.Warn("token request missing Basic Auth header")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			//nolint:errcheck,gosec // best-effort write to HTTP response in mock server
			json.NewEncoder(w).Encode(map[string]string{
				"error":             "invalid_client",
				"error_description": "client authentication failed",
			})
			return
		}

		if err := r.ParseForm(); err != nil || r.PostForm.Get("grant_type") != "client_credentials" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			//nolint:errcheck,gosec // best-effort write to HTTP response in mock server
			json.NewEncoder(w).Encode(map[string]string{
				"error":             "unsupported_grant_type",
				"error_description": "grant type must be client_credentials",
			})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		//nolint:errcheck,gosec // best-effort write to HTTP response in mock server
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "mock-token-v1-" + strconv.FormatInt(int64(os.Getpid()), 16),
			"expires_in":   7200,
			"token_type":   "Application Access Token",
		})
		logger.Info("issued mock token")
	}
}

func searchHandler(logger *slog.Logger, raw []json.RawMessage) http.HandlerFunc {
	type indexedItem struct {
		raw   json.RawMessage
		title string
	}
	items := make([]indexedItem, 0, len(raw))
	for _, r := range raw {
		var s itemSummary
		//nolint:errcheck,gosec // fixture data is trusted; title extraction is best-effort
		json.Unmarshal(r, &s)
		items = append(items, indexedItem{raw: r, title: strings.ToLower(s.Title)})
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		q := strings.ToLower(r.URL.Query().Get("q"))
		limit := 50
		if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
			limit = v
		}

		matched := []json.RawMessage{}
		for _, item := range items {
			if matchesQuery(item.title, q) {
				matched = append(matched, item.raw)
			}
		}
		total := len(matched)

		resp := browseAPIResponse{Total: total, Limit: limit}
		// The real API omits itemSummaries when nothing matched.
		if total > 0 {
			resp.ItemSummaries = matched[:min(limit, total)]
		}

		w.Header().Set("Content-Type", "application/json")
		//nolint:errcheck,gosec // best-effort write to HTTP response in mock server
		json.NewEncoder(w).Encode(resp)
		logger.Info("search", "query", q, "matched", total, "returned", len(resp.ItemSummaries), "limit", limit)
	}
}

func scrapeHandler(logger *slog.Logger, products []product) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := strings.ToLower(r.URL.Query().Get("k"))

		var matched []product
		for _, p := range products {
			if matchesQuery(strings.ToLower(p.Title), q) {
				matched = append(matched, p)
			}
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := searchPage.Execute(w, matched); err != nil {
			logger.Error("rendering search page", "error", err)
			return
		}
		logger.Info("scrape", "query", q, "returned", len(matched))
	}
}

// matchesQuery reports whether every word of q appears in title.
func matchesQuery(title, q string) bool {
	for _, word := range strings.Fields(q) {
		if !strings.Contains(title, word) {
			return false
		}
	}
	return true
}
