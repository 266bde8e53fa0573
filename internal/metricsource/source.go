package metricsource

import (
	"context"
	"errors"

	"github.com/predictops/autoscaler/pkg/models"
)

var (
	// ErrFetchFailed covers transport failures that exhausted all retries.
	ErrFetchFailed = errors.New("metrics fetch failed")

	// ErrInvalidResponse covers responses the backend answered but that
	// cannot be parsed. Not retried.
	ErrInvalidResponse = errors.New("invalid response from metrics backend")

	// ErrQueryFailed covers queries the backend explicitly rejected. Not retried.
	ErrQueryFailed = errors.New("metrics backend reported query failure")
)

// Source fetches a fixed-length history window for one target.
type Source interface {
	// Fetch returns exactly query.WindowLength minute-aligned samples,
	// chronologically ascending, with missing slots filled with 0.
	Fetch(ctx context.Context, query models.MetricsQuery) (models.HistoryWindow, error)

	// HealthCheck verifies the source can reach the metrics backend.
	HealthCheck(ctx context.Context) error

	// Close releases any resources held by the source.
	Close() error
}

// Health is an observability snapshot of the source's connection state.
// It never influences control decisions.
type Health struct {
	Healthy     bool   `json:"healthy"`
	LastSuccess string `json:"last_success,omitempty"`
}
