package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/fjod/storefront/internal/config"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func setupTestMetrics(t *testing.T) (*AppMetrics, *sdkmetric.ManualReader) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	m, err := New(provider.Meter("test"), "storefront-test")
	require.NoError(t, err)
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumInt(t *testing.T, agg metricdata.Aggregation) int64 {
	sum, ok := agg.(metricdata.Sum[int64])
	require.True(t, ok)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestRecordRequest(t *testing.T) {
	m, reader := setupTestMetrics(t)
	ctx := context.Background()

	m.RecordRequest(ctx, "GET", "/api/user/cart", 200, 15*time.Millisecond)
	m.RecordRequest(ctx, "POST", "/api/user/cart", 409, 5*time.Millisecond)

	data := collect(t, reader)
	assert.Equal(t, int64(2), sumInt(t, data["http.server.request.count"]))
	assert.Equal(t, int64(1), sumInt(t, data["http.server.request.error.count"]))

	hist, ok := data["http.server.request.duration"].(metricdata.Histogram[float64])
	require.True(t, ok)
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	assert.Equal(t, uint64(2), count)
}

func TestRecordPayment_RevenueOnlyWhenSettled(t *testing.T) {
	m, reader := setupTestMetrics(t)
	ctx := context.Background()

	m.RecordPayment(ctx, string(domain.TransactionDeclined), 1000)
	m.RecordPayment(ctx, string(domain.TransactionSettled), 2550)

	data := collect(t, reader)
	assert.Equal(t, int64(2), sumInt(t, data["payment_attempts_total"]))

	revenue, ok := data["revenue_total"].(metricdata.Sum[float64])
	require.True(t, ok)
	require.Len(t, revenue.DataPoints, 1)
	assert.InDelta(t, 25.50, revenue.DataPoints[0].Value, 0.001)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *AppMetrics
	assert.NotPanics(t, func() {
		m.RecordRequest(context.Background(), "GET", "/", 200, time.Millisecond)
		m.RecordOrderCreated(context.Background(), 1)
		m.CacheHit(context.Background(), "cart")
		m.RecordSessionEvent(context.Background(), events.TopicSessionLogin)
	})
}

func TestRecordSessionEvents(t *testing.T) {
	m, reader := setupTestMetrics(t)
	bus := events.NewBus()

	done := make(chan struct{})
	go func() {
		m.RecordSessionEvents(context.Background(), bus)
		close(done)
	}()

	// subscriptions are registered asynchronously with respect to this goroutine
	require.Eventually(t, func() bool {
		bus.Publish(events.Event{Topic: events.TopicSessionLogin, UserID: "u1"})
		data := collect(t, reader)
		agg, ok := data["session_events_total"]
		return ok && sumInt(t, agg) > 0
	}, 2*time.Second, 20*time.Millisecond)

	bus.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("recorder did not stop after bus close")
	}
}

func TestInitMetrics_Disabled(t *testing.T) {
	m, shutdown, err := InitMetrics(context.Background(), &config.Config{MetricsEnabled: false, OTELServiceName: "storefront"})
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.NoError(t, shutdown(context.Background()))
	m.CacheMiss(context.Background(), "cart")
}

func TestParseHeaders(t *testing.T) {
	assert.Equal(t, map[string]string{"a": "1", "signoz-ingestion-key": "x=y"}, parseHeaders(" a=1, signoz-ingestion-key=x=y,bad"))
	assert.Empty(t, parseHeaders(""))
}
