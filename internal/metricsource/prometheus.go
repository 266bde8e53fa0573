package metricsource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/predictops/autoscaler/internal/logger"
	"github.com/predictops/autoscaler/pkg/models"
)

const (
	defaultQueryTemplate = `sum(rate(http_requests_total{service="{service}"}[1m])) * 60`

	// Samples further than this from their expected minute slot are ignored.
	slotTolerance = 30 * time.Second

	queryStep = time.Minute
)

type PrometheusSource struct {
	client     *http.Client
	baseURL    string
	timeout    time.Duration
	maxRetries int

	mu          sync.RWMutex
	healthy     bool
	lastSuccess time.Time

	now func() time.Time
}

type PrometheusConfig struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

func NewPrometheusSource(cfg PrometheusConfig) *PrometheusSource {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 5
	}

	return &PrometheusSource{
		client:     &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		timeout:    timeout,
		maxRetries: maxRetries,
		now:        time.Now,
	}
}

// rangeResponse matches the Prometheus HTTP API response envelope. Series
// carry either a single instant sample ("value") or a list ("values").
type rangeResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
	Data   struct {
		Result []struct {
			Value  []interface{}   `json:"value"`
			Values [][]interface{} `json:"values"`
		} `json:"result"`
	} `json:"data"`
}

func (s *PrometheusSource) Fetch(ctx context.Context, query models.MetricsQuery) (models.HistoryWindow, error) {
	template := query.QueryTemplate
	if template == "" {
		template = defaultQueryTemplate
	}
	promQL := strings.ReplaceAll(template, "{service}", query.ServiceName)

	end := s.now()
	start := end.Add(-time.Duration(query.WindowLength) * time.Minute)

	resp, err := s.executeRangeQuery(ctx, promQL, start, end)
	if err != nil {
		s.markFailure()
		return nil, err
	}
	s.markSuccess()

	samples := parseSeries(resp)
	if len(samples) == 0 {
		// The query succeeded but returned no series. Distinct from a
		// hard failure: hand back an all-zeros window.
		logger.Debugf("No series returned for service %q, using zero window", query.ServiceName)
		return make(models.HistoryWindow, query.WindowLength), nil
	}

	return alignWindow(samples, end, query.WindowLength), nil
}

func (s *PrometheusSource) executeRangeQuery(ctx context.Context, promQL string, start, end time.Time) (*rangeResponse, error) {
	params := url.Values{}
	params.Set("query", promQL)
	params.Set("start", strconv.FormatInt(start.Unix(), 10))
	params.Set("end", strconv.FormatInt(end.Unix(), 10))
	params.Set("step", strconv.Itoa(int(queryStep.Seconds())))

	queryURL := s.baseURL + "/api/v1/query_range?" + params.Encode()

	var lastErr error
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		resp, err := s.doRequest(ctx, queryURL)
		if err == nil {
			return resp, nil
		}

		// Only transport failures are worth retrying. A response we
		// could not parse, or a backend-rejected query, will not get
		// better on the next attempt.
		if !isTransient(err) {
			return nil, err
		}

		lastErr = err
		if attempt < s.maxRetries-1 {
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			logger.Warnf("Metrics fetch attempt %d/%d failed, retrying in %s: %v",
				attempt+1, s.maxRetries, backoff, err)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return nil, fmt.Errorf("%w: %d attempts: %v", ErrFetchFailed, s.maxRetries, lastErr)
}

func (s *PrometheusSource) doRequest(ctx context.Context, queryURL string) (*rangeResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, queryURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", ErrInvalidResponse, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status code %d", ErrFetchFailed, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	var parsed rangeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	if parsed.Status != "success" {
		return nil, fmt.Errorf("%w: status=%s error=%s", ErrQueryFailed, parsed.Status, parsed.Error)
	}

	return &parsed, nil
}

func isTransient(err error) bool {
	return !errors.Is(err, ErrInvalidResponse) && !errors.Is(err, ErrQueryFailed)
}

// parseSeries flattens instant and range result shapes into one sample list,
// sorted ascending by timestamp. NaN values are coerced to 0.
func parseSeries(resp *rangeResponse) []models.MetricSample {
	var samples []models.MetricSample

	for _, series := range resp.Data.Result {
		if len(series.Value) == 2 {
			if sample, ok := parsePair(series.Value); ok {
				samples = append(samples, sample)
			}
		}
		for _, pair := range series.Values {
			if sample, ok := parsePair(pair); ok {
				samples = append(samples, sample)
			}
		}
	}

	sort.Slice(samples, func(i, j int) bool {
		return samples[i].Timestamp.Before(samples[j].Timestamp)
	})

	return samples
}

func parsePair(pair []interface{}) (models.MetricSample, bool) {
	if len(pair) != 2 {
		return models.MetricSample{}, false
	}

	ts, ok := pair[0].(float64)
	if !ok {
		return models.MetricSample{}, false
	}

	str, ok := pair[1].(string)
	if !ok {
		return models.MetricSample{}, false
	}

	value, err := strconv.ParseFloat(str, 64)
	if err != nil || math.IsNaN(value) {
		value = 0
	}

	return models.MetricSample{
		Timestamp: time.Unix(int64(ts), 0),
		Value:     value,
	}, true
}

// alignWindow maps samples onto windowLength expected minute slots ending at
// end. For each slot the closest sample within the tolerance wins; slots with
// no sample close enough are filled with 0.
func alignWindow(samples []models.MetricSample, end time.Time, windowLength int) models.HistoryWindow {
	window := make(models.HistoryWindow, windowLength)

	for i := 0; i < windowLength; i++ {
		expected := end.Add(-time.Duration(windowLength-1-i) * time.Minute)

		closestDiff := time.Duration(math.MaxInt64)
		var closestValue float64

		for _, sample := range samples {
			diff := sample.Timestamp.Sub(expected)
			if diff < 0 {
				diff = -diff
			}
			if diff < closestDiff && diff <= slotTolerance {
				closestDiff = diff
				closestValue = sample.Value
			}
		}

		window[i] = closestValue
	}

	return window
}

func (s *PrometheusSource) HealthCheck(ctx context.Context) error {
	params := url.Values{}
	params.Set("query", "up")
	params.Set("time", strconv.FormatInt(s.now().Unix(), 10))

	checkURL := s.baseURL + "/api/v1/query?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, checkURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.markFailure()
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.markFailure()
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	s.markSuccess()
	return nil
}

// Health returns the current observability snapshot.
func (s *PrometheusSource) Health() Health {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h := Health{Healthy: s.healthy}
	if !s.lastSuccess.IsZero() {
		h.LastSuccess = s.lastSuccess.UTC().Format(time.RFC3339)
	}
	return h
}

func (s *PrometheusSource) markSuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.healthy = true
	s.lastSuccess = s.now()
}

func (s *PrometheusSource) markFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.healthy = false
}

func (s *PrometheusSource) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
