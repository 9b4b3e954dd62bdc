// Package middleware provides Echo middleware for the listing-aggregator API.
package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/donaldgifford/listing-aggregator/internal/metrics"
)

// unmatchedRoute labels requests that hit no registered route, so probing
// random URLs cannot grow the label set.
const unmatchedRoute = "unmatched"

// probeGauges lists the operational paths kept out of the request counters.
// A non-nil gauge tracks whether the last probe on that path succeeded.
var probeGauges = map[string]prometheus.Gauge{
	"/metrics": nil,
	"/healthz": metrics.HealthzUp,
	"/readyz":  metrics.ReadyzUp,
}

// Metrics returns Echo middleware that counts requests and observes their
// duration by method, route template and status.
func Metrics() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			route := c.Path()
			if route == "" {
				route = unmatchedRoute
			}

			if gauge, probe := probeGauges[route]; probe {
				err := next(c)
				if gauge != nil {
					gauge.Set(boolToFloat(succeeded(c.Response().Status)))
				}
				return err
			}

			var status string
			timer := prometheus.NewTimer(prometheus.ObserverFunc(func(sec float64) {
				metrics.HTTPRequestDuration.WithLabelValues(c.Request().Method, route, status).Observe(sec)
			}))

			err := next(c)
			if err != nil {
				// Let echo render the error now so the recorded status is final.
				c.Error(err)
			}

			status = strconv.Itoa(c.Response().Status)
			timer.ObserveDuration()
			metrics.HTTPRequestsTotal.WithLabelValues(c.Request().Method, route, status).Inc()

			return nil
		}
	}
}

func succeeded(status int) bool {
	return status >= 200 && status < 300
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
