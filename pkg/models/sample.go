package models

import "time"

// MetricSample is a single (timestamp, value) pair from the metrics backend.
// Values are non-negative; NaN values are coerced to 0 at parse time.
type MetricSample struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// HistoryWindow is a fixed-length, chronologically ascending sequence of
// minute-aligned workload samples used as forecast input.
type HistoryWindow []float64

// Last returns the most recent value in the window, or 0 if empty.
func (w HistoryWindow) Last() float64 {
	if len(w) == 0 {
		return 0
	}
	return w[len(w)-1]
}

// Mean returns the arithmetic mean of the window, or 0 if empty.
func (w HistoryWindow) Mean() float64 {
	if len(w) == 0 {
		return 0
	}
	var sum float64
	for _, v := range w {
		sum += v
	}
	return sum / float64(len(w))
}
