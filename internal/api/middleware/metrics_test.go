package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	ptestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	mw "github.com/donaldgifford/listing-aggregator/internal/api/middleware"
	"github.com/donaldgifford/listing-aggregator/internal/metrics"
)

func requestCount(method, route, status string) float64 {
	return ptestutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues(method, route, status))
}

//nolint:paralleltest // shares global collectors
func TestMetricsMiddleware(t *testing.T) {
	tests := []struct {
		name      string
		method    string
		route     string
		target    string
		handler   echo.HandlerFunc
		wantRoute string
		status    string
	}{
		{
			name:   "route template is the label",
			method: http.MethodGet,
			route:  "/api/v1/listings",
			target: "/api/v1/listings?min_price=10",
			handler: func(c echo.Context) error {
				return c.JSON(http.StatusOK, []string{})
			},
			wantRoute: "/api/v1/listings",
			status:    "200",
		},
		{
			name:   "returned error counted with rendered status",
			method: http.MethodPost,
			route:  "/api/v1/search",
			target: "/api/v1/search",
			handler: func(echo.Context) error {
				return echo.NewHTTPError(http.StatusBadGateway)
			},
			wantRoute: "/api/v1/search",
			status:    "502",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			e.Use(mw.Metrics())
			e.Add(tt.method, tt.route, tt.handler)

			before := requestCount(tt.method, tt.wantRoute, tt.status)

			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.target, http.NoBody))

			assert.Equal(t, tt.status, strconv.Itoa(rec.Code))
			assert.InDelta(t, before+1, requestCount(tt.method, tt.wantRoute, tt.status), 0.0001)
			assert.Positive(t, ptestutil.CollectAndCount(metrics.HTTPRequestDuration))
		})
	}
}

//nolint:paralleltest // shares global collectors
func TestMetricsMiddleware_HealthGauges(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		status int
		gauge  prometheus.Gauge
		want   float64
	}{
		{name: "healthz up", path: "/healthz", status: http.StatusOK, gauge: metrics.HealthzUp, want: 1},
		{name: "readyz down", path: "/readyz", status: http.StatusServiceUnavailable, gauge: metrics.ReadyzUp, want: 0},
		{name: "readyz up", path: "/readyz", status: http.StatusOK, gauge: metrics.ReadyzUp, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			e.Use(mw.Metrics())
			e.GET(tt.path, func(c echo.Context) error {
				return c.NoContent(tt.status)
			})

			before := requestCount(http.MethodGet, tt.path, strconv.Itoa(tt.status))

			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, http.NoBody))

			assert.InDelta(t, tt.want, ptestutil.ToFloat64(tt.gauge), 0.0001)
			assert.InDelta(t, before, requestCount(http.MethodGet, tt.path, strconv.Itoa(tt.status)), 0.0001,
				"probe paths are not counted")
		})
	}
}
