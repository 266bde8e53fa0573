package metricsource

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/predictops/autoscaler/pkg/models"
)

func testQuery(windowLength int) models.MetricsQuery {
	return models.MetricsQuery{
		ServiceName:  "web-frontend",
		WindowLength: windowLength,
	}
}

func rangeBody(values string) string {
	return fmt.Sprintf(`{"status":"success","data":{"result":[{"values":%s}]}}`, values)
}

func TestPrometheusSource_Fetch(t *testing.T) {
	end := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/query_range", r.URL.Path)
		assert.Contains(t, r.URL.Query().Get("query"), `service="web-frontend"`)
		assert.Equal(t, "60", r.URL.Query().Get("step"))

		fmt.Fprint(w, rangeBody(fmt.Sprintf(`[[%d,"100"],[%d,"150"],[%d,"200"]]`,
			end.Add(-2*time.Minute).Unix(), end.Add(-time.Minute).Unix(), end.Unix())))
	}))
	defer server.Close()

	source := NewPrometheusSource(PrometheusConfig{BaseURL: server.URL})
	source.now = func() time.Time { return end }

	window, err := source.Fetch(context.Background(), testQuery(3))
	require.NoError(t, err)
	assert.Equal(t, models.HistoryWindow{100, 150, 200}, window)
}

func TestPrometheusSource_FetchAlignsOffSlotSamples(t *testing.T) {
	end := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// One sample 25s early for the t-2m slot, one 20s late for the t-1m
	// slot, nothing close enough to the t slot.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rangeBody(fmt.Sprintf(`[[%d,"100"],[%d,"150"]]`,
			end.Add(-145*time.Second).Unix(), end.Add(-40*time.Second).Unix())))
	}))
	defer server.Close()

	source := NewPrometheusSource(PrometheusConfig{BaseURL: server.URL})
	source.now = func() time.Time { return end }

	window, err := source.Fetch(context.Background(), testQuery(3))
	require.NoError(t, err)
	assert.Equal(t, models.HistoryWindow{100, 150, 0}, window)
}

func TestPrometheusSource_FetchEmptyResultIsZeroWindow(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"success","data":{"result":[]}}`)
	}))
	defer server.Close()

	source := NewPrometheusSource(PrometheusConfig{BaseURL: server.URL})

	window, err := source.Fetch(context.Background(), testQuery(4))
	require.NoError(t, err)
	assert.Equal(t, models.HistoryWindow{0, 0, 0, 0}, window)
}

func TestPrometheusSource_FetchCoercesNaNToZero(t *testing.T) {
	end := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rangeBody(fmt.Sprintf(`[[%d,"NaN"],[%d,"150"]]`,
			end.Add(-time.Minute).Unix(), end.Unix())))
	}))
	defer server.Close()

	source := NewPrometheusSource(PrometheusConfig{BaseURL: server.URL})
	source.now = func() time.Time { return end }

	window, err := source.Fetch(context.Background(), testQuery(2))
	require.NoError(t, err)
	assert.Equal(t, models.HistoryWindow{0, 150}, window)
}

func TestPrometheusSource_FetchRetriesTransportFailures(t *testing.T) {
	var calls atomic.Int32

	end := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, rangeBody(fmt.Sprintf(`[[%d,"100"]]`, end.Unix())))
	}))
	defer server.Close()

	source := NewPrometheusSource(PrometheusConfig{BaseURL: server.URL, MaxRetries: 2})
	source.now = func() time.Time { return end }

	window, err := source.Fetch(context.Background(), testQuery(1))
	require.NoError(t, err)
	assert.Equal(t, models.HistoryWindow{100}, window)
	assert.Equal(t, int32(2), calls.Load())
}

func TestPrometheusSource_FetchDoesNotRetryQueryRejection(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, `{"status":"error","error":"parse error at char 5"}`)
	}))
	defer server.Close()

	source := NewPrometheusSource(PrometheusConfig{BaseURL: server.URL, MaxRetries: 5})

	_, err := source.Fetch(context.Background(), testQuery(3))
	assert.ErrorIs(t, err, ErrQueryFailed)
	assert.Equal(t, int32(1), calls.Load())
}

func TestPrometheusSource_FetchDoesNotRetryMalformedResponse(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, `not json`)
	}))
	defer server.Close()

	source := NewPrometheusSource(PrometheusConfig{BaseURL: server.URL, MaxRetries: 5})

	_, err := source.Fetch(context.Background(), testQuery(3))
	assert.ErrorIs(t, err, ErrInvalidResponse)
	assert.Equal(t, int32(1), calls.Load())
}

func TestPrometheusSource_HealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/query", r.URL.Path)
		fmt.Fprint(w, `{"status":"success","data":{"result":[]}}`)
	}))
	defer server.Close()

	source := NewPrometheusSource(PrometheusConfig{BaseURL: server.URL})

	require.NoError(t, source.HealthCheck(context.Background()))

	health := source.Health()
	assert.True(t, health.Healthy)
	assert.NotEmpty(t, health.LastSuccess)
}

func TestAlignWindow_ClosestSampleWins(t *testing.T) {
	end := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	samples := []models.MetricSample{
		{Timestamp: end.Add(-25 * time.Second), Value: 80},
		{Timestamp: end.Add(-5 * time.Second), Value: 95},
	}

	window := alignWindow(samples, end, 2)
	assert.Equal(t, models.HistoryWindow{0, 95}, window)
}
