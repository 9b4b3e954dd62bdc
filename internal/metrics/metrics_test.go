package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRegistered(t *testing.T) {
	t.Parallel()

	// promauto registers on package init; a nil here means a bad definition.
	assert.NotNil(t, HTTPRequestDuration)
	assert.NotNil(t, HTTPRequestsTotal)
	assert.NotNil(t, HealthzUp)
	assert.NotNil(t, ReadyzUp)
	assert.NotNil(t, TokenRefreshesTotal)
	assert.NotNil(t, SourceRequestsTotal)
	assert.NotNil(t, SourceRequestDuration)
	assert.NotNil(t, ListingsFetchedTotal)
	assert.NotNil(t, ParseFallbacksTotal)
	assert.NotNil(t, EbayDailyUsage)
	assert.NotNil(t, EbayDailyLimitHits)
	assert.NotNil(t, PipelineRunsTotal)
	assert.NotNil(t, PipelineDuration)
	assert.NotNil(t, SchedulerNextRunTimestamp)
	assert.NotNil(t, RowsSavedTotal)
	assert.NotNil(t, RowFailuresTotal)
	assert.NotNil(t, NotificationsTotal)
	assert.NotNil(t, NotificationDuration)
}

func TestParseFallbacksTotal_Labels(t *testing.T) {
	t.Parallel()

	c := ParseFallbacksTotal.WithLabelValues("metrics-test", "price")
	before := testutil.ToFloat64(c)
	c.Inc()
	assert.InDelta(t, before+1, testutil.ToFloat64(c), 0.0001)
}
