package scaler

import (
	"context"
	"errors"
)

var (
	ErrScalingFailed   = errors.New("scaling operation failed")
	ErrTargetNotFound  = errors.New("target not found")
	ErrInvalidReplicas = errors.New("invalid replica count")
	ErrTimeout         = errors.New("scaling operation timeout")
)

// Scaler is the orchestration backend boundary: read and patch the replica
// count of a workload. The wire format belongs to the backend, not to us.
type Scaler interface {
	// GetReplicas returns the current replica count for a target.
	GetReplicas(ctx context.Context, targetID string) (int, error)

	// SetReplicas patches the target's replica count.
	SetReplicas(ctx context.Context, targetID string, replicas int) error

	// Close releases resources
	Close() error
}
