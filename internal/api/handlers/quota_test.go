package handlers_test

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/listing-aggregator/internal/api/handlers"
	"github.com/donaldgifford/listing-aggregator/internal/ebay"
)

func getQuota(t *testing.T, rl *ebay.RateLimiter) handlers.QuotaBody {
	t.Helper()

	_, api := humatest.New(t)
	handlers.RegisterQuotaRoutes(api, handlers.NewQuotaHandler(rl))

	resp := api.Get("/api/v1/quota")
	require.Equal(t, http.StatusOK, resp.Code)

	var body handlers.QuotaBody
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	return body
}

func TestGetQuota_Disabled(t *testing.T) {
	t.Parallel()

	body := getQuota(t, nil)
	assert.False(t, body.Enabled)
	assert.Zero(t, body.DailyLimit)
	assert.Nil(t, body.ResetAt)
}

func TestGetQuota_Usage(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 6, 15, 14, 30, 0, 0, time.UTC)
	rl := ebay.NewRateLimiter(100, 10, 100,
		ebay.WithRateLimiterNowFunc(func() time.Time { return now }),
	)
	for range 3 {
		require.NoError(t, rl.Wait(t.Context()))
	}

	body := getQuota(t, rl)
	assert.True(t, body.Enabled)
	assert.InDelta(t, 100.0, body.PerSecond, 0.0001)
	assert.Equal(t, 10, body.Burst)
	assert.Equal(t, int64(100), body.DailyLimit)
	assert.Equal(t, int64(3), body.DailyUsed)
	assert.Equal(t, int64(97), body.Remaining)
	require.NotNil(t, body.ResetAt)
	assert.True(t, now.Add(24*time.Hour).Equal(*body.ResetAt))
}
