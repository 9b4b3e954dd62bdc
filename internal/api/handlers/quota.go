package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/donaldgifford/listing-aggregator/internal/ebay"
)

// QuotaHandler reports how much of the eBay Browse API budget is spent.
type QuotaHandler struct {
	limiter *ebay.RateLimiter
}

// NewQuotaHandler creates a QuotaHandler. limiter is nil when the eBay
// source runs unthrottled.
func NewQuotaHandler(limiter *ebay.RateLimiter) *QuotaHandler {
	return &QuotaHandler{limiter: limiter}
}

// QuotaBody describes the limiter state. Only Enabled is set when no
// limiter is configured.
type QuotaBody struct {
	Enabled    bool       `json:"enabled"              doc:"Whether Browse API calls are throttled"`
	PerSecond  float64    `json:"per_second,omitempty" doc:"Sustained call rate" example:"5"`
	Burst      int        `json:"burst,omitempty"      doc:"Calls allowed back to back" example:"10"`
	DailyLimit int64      `json:"daily_limit"          doc:"Calls allowed per rolling 24 hours" example:"5000"`
	DailyUsed  int64      `json:"daily_used"           doc:"Calls spent in the current window" example:"142"`
	Remaining  int64      `json:"remaining"            doc:"Calls left in the current window" example:"4858"`
	ResetAt    *time.Time `json:"reset_at,omitempty"   doc:"End of the current window"`
}

// QuotaOutput wraps QuotaBody for huma.
type QuotaOutput struct {
	Body QuotaBody
}

// GetQuota returns a snapshot of the limiter.
func (h *QuotaHandler) GetQuota(context.Context, *struct{}) (*QuotaOutput, error) {
	out := &QuotaOutput{}
	rl := h.limiter
	if rl == nil {
		return out, nil
	}

	reset := rl.ResetAt()
	out.Body = QuotaBody{
		Enabled:    true,
		PerSecond:  rl.Rate(),
		Burst:      rl.Burst(),
		DailyLimit: rl.MaxDaily(),
		DailyUsed:  rl.DailyCount(),
		Remaining:  rl.Remaining(),
		ResetAt:    &reset,
	}
	return out, nil
}

// RegisterQuotaRoutes mounts GET /api/v1/quota.
func RegisterQuotaRoutes(api huma.API, h *QuotaHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "get-quota",
		Method:      http.MethodGet,
		Path:        "/api/v1/quota",
		Summary:     "eBay API quota",
		Description: "Shows the Browse API throttle settings and how many calls remain in the rolling daily window.",
		Tags:        []string{"ebay"},
	}, h.GetQuota)
}
