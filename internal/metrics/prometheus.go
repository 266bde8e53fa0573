package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/predictops/autoscaler/internal/logger"
)

type Metrics struct {
	mu sync.RWMutex

	// Counters
	fetchesTotal      map[string]int64
	fetchErrors       map[string]int64
	forecastsTotal    map[string]int64
	forecastsRejected map[string]int64
	decisionsTotal    map[string]map[string]int64 // target -> action -> count
	scalingErrors     map[string]int64
	evictionsTotal    int64
	reloadsTotal      int64

	// Gauges
	targetReplicas      map[string]int
	targetForecast      map[string]float64
	targetErrorStreak   map[string]int
	circuitBreakerState map[string]int // 0=closed, 1=open, 2=half-open

	// Histograms (simplified - just track last values)
	fetchLatency map[string]time.Duration
	cycleLatency time.Duration
}

var (
	instance *Metrics
	once     sync.Once
)

func Get() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			fetchesTotal:        make(map[string]int64),
			fetchErrors:         make(map[string]int64),
			forecastsTotal:      make(map[string]int64),
			forecastsRejected:   make(map[string]int64),
			decisionsTotal:      make(map[string]map[string]int64),
			scalingErrors:       make(map[string]int64),
			targetReplicas:      make(map[string]int),
			targetForecast:      make(map[string]float64),
			targetErrorStreak:   make(map[string]int),
			circuitBreakerState: make(map[string]int),
			fetchLatency:        make(map[string]time.Duration),
		}
	})
	return instance
}

func (m *Metrics) IncFetches(targetID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchesTotal[targetID]++
}

func (m *Metrics) IncFetchErrors(targetID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchErrors[targetID]++
}

func (m *Metrics) IncForecasts(targetID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forecastsTotal[targetID]++
}

func (m *Metrics) IncForecastsRejected(targetID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forecastsRejected[targetID]++
}

func (m *Metrics) IncDecision(targetID, action string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.decisionsTotal[targetID] == nil {
		m.decisionsTotal[targetID] = make(map[string]int64)
	}
	m.decisionsTotal[targetID][action]++
}

func (m *Metrics) IncScalingErrors(targetID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scalingErrors[targetID]++
}

func (m *Metrics) IncEvictions() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evictionsTotal++
}

func (m *Metrics) IncReloads() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reloadsTotal++
}

func (m *Metrics) SetReplicas(targetID string, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.targetReplicas[targetID] = count
}

func (m *Metrics) SetForecast(targetID string, forecast float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.targetForecast[targetID] = forecast
}

func (m *Metrics) SetErrorStreak(targetID string, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.targetErrorStreak[targetID] = count
}

func (m *Metrics) SetCircuitBreakerState(name string, state int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.circuitBreakerState[name] = state
}

func (m *Metrics) SetFetchLatency(targetID string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchLatency[targetID] = d
}

func (m *Metrics) SetCycleLatency(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cycleLatency = d
}

// RemoveTarget drops all per-target series after an eviction so stale
// gauges do not linger in the exposition.
func (m *Metrics) RemoveTarget(targetID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.targetReplicas, targetID)
	delete(m.targetForecast, targetID)
	delete(m.targetErrorStreak, targetID)
	delete(m.fetchLatency, targetID)
}

func (m *Metrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.RLock()
		defer m.mu.RUnlock()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		for target, count := range m.fetchesTotal {
			writeMetric(w, "autoscaler_window_fetches_total", map[string]string{"target_id": target}, float64(count))
		}

		for target, count := range m.fetchErrors {
			writeMetric(w, "autoscaler_window_fetch_errors_total", map[string]string{"target_id": target}, float64(count))
		}

		for target, count := range m.forecastsTotal {
			writeMetric(w, "autoscaler_forecasts_total", map[string]string{"target_id": target}, float64(count))
		}

		for target, count := range m.forecastsRejected {
			writeMetric(w, "autoscaler_forecasts_rejected_total", map[string]string{"target_id": target}, float64(count))
		}

		for target, actions := range m.decisionsTotal {
			for action, count := range actions {
				writeMetric(w, "autoscaler_decisions_total", map[string]string{"target_id": target, "action": action}, float64(count))
			}
		}

		for target, count := range m.scalingErrors {
			writeMetric(w, "autoscaler_scaling_errors_total", map[string]string{"target_id": target}, float64(count))
		}

		writeMetric(w, "autoscaler_target_evictions_total", nil, float64(m.evictionsTotal))
		writeMetric(w, "autoscaler_policy_reloads_total", nil, float64(m.reloadsTotal))

		for target, count := range m.targetReplicas {
			writeMetric(w, "autoscaler_target_replicas", map[string]string{"target_id": target}, float64(count))
		}

		for target, forecast := range m.targetForecast {
			writeMetric(w, "autoscaler_target_forecast", map[string]string{"target_id": target}, forecast)
		}

		for target, streak := range m.targetErrorStreak {
			writeMetric(w, "autoscaler_target_error_streak", map[string]string{"target_id": target}, float64(streak))
		}

		for name, state := range m.circuitBreakerState {
			writeMetric(w, "autoscaler_circuit_breaker_state", map[string]string{"name": name}, float64(state))
		}

		for target, latency := range m.fetchLatency {
			writeMetric(w, "autoscaler_window_fetch_latency_ms", map[string]string{"target_id": target}, float64(latency.Milliseconds()))
		}

		writeMetric(w, "autoscaler_cycle_latency_ms", nil, float64(m.cycleLatency.Milliseconds()))
	})
}

func writeMetric(w http.ResponseWriter, name string, labels map[string]string, value float64) {
	labelStr := ""
	if len(labels) > 0 {
		labelStr = "{"
		first := true
		for k, v := range labels {
			if !first {
				labelStr += ","
			}
			labelStr += k + `="` + v + `"`
			first = false
		}
		labelStr += "}"
	}
	w.Write([]byte(name + labelStr + " " + strconv.FormatFloat(value, 'f', -1, 64) + "\n"))
}

func StartServer(port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Get().Handler())

	addr := ":" + strconv.Itoa(port)
	logger.Infof("Prometheus metrics server listening on %s", addr)

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Errorf("Prometheus server error: %v", err)
		}
	}()
}
