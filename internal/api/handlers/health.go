// Package handlers implements HTTP handlers for the listing-aggregator API.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/donaldgifford/listing-aggregator/internal/store"
)

const pingTimeout = 2 * time.Second

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	store store.Store
}

// NewHealthHandler creates a HealthHandler. s is nil when the server runs
// without persistence.
func NewHealthHandler(s store.Store) *HealthHandler {
	return &HealthHandler{store: s}
}

// Healthz answers 200 while the process is up.
func (*HealthHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, StatusResponse{Status: "ok"})
}

// Readyz answers 200 when every dependency responds and 503 otherwise. The
// store check reports "disabled" when no store is configured.
func (h *HealthHandler) Readyz(c echo.Context) error {
	checks := map[string]string{"store": h.checkStore(c.Request().Context())}

	for _, result := range checks {
		if result != checkOK && result != checkDisabled {
			return c.JSON(http.StatusServiceUnavailable, StatusResponse{Status: "unavailable", Checks: checks})
		}
	}
	return c.JSON(http.StatusOK, StatusResponse{Status: "ready", Checks: checks})
}

const (
	checkOK       = "ok"
	checkDisabled = "disabled"
)

func (h *HealthHandler) checkStore(ctx context.Context) string {
	if h.store == nil {
		return checkDisabled
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		return err.Error()
	}
	return checkOK
}
