package middleware

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	requestIDHeader = "X-Request-ID"

	// RequestIDKey is the echo context key holding the request ID.
	RequestIDKey = "request_id"
)

// RequestLog returns Echo middleware that logs one line per request and tags
// it with an ID taken from X-Request-ID or generated. The ID is echoed in
// the response header and stored under RequestIDKey.
//
// Handler errors are rendered here so the logged status is the one the
// client sees. Statuses of 400 and above log at warn. A successful health
// probe is logged once per path; later successes are dropped.
func RequestLog(log *slog.Logger) echo.MiddlewareFunc {
	probes := &probeFilter{}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			id := requestID(c)

			if err := next(c); err != nil {
				c.Error(err)
			}

			res := c.Response()
			level := slog.LevelInfo
			switch {
			case res.Status >= 400:
				level = slog.LevelWarn
			case probes.repeat(c.Request().URL.Path):
				return nil
			}

			log.Log(c.Request().Context(), level, "request",
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"status", res.Status,
				"bytes", res.Size,
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", id,
			)
			return nil
		}
	}
}

func requestID(c echo.Context) string {
	id := c.Request().Header.Get(requestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	c.Set(RequestIDKey, id)
	c.Response().Header().Set(requestIDHeader, id)
	return id
}

// probeFilter remembers which health paths already logged a success.
type probeFilter struct {
	seen sync.Map
}

// repeat reports whether path is a health probe whose success was already
// logged.
func (f *probeFilter) repeat(path string) bool {
	if path != "/healthz" && path != "/readyz" {
		return false
	}
	_, logged := f.seen.LoadOrStore(path, struct{}{})
	return logged
}
