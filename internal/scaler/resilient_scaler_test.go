package scaler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/predictops/autoscaler/internal/resilience"
)

// stubScaler returns canned errors per call.
type stubScaler struct {
	getErr   error
	setErr   error
	replicas int
	calls    int
}

func (s *stubScaler) GetReplicas(ctx context.Context, targetID string) (int, error) {
	s.calls++
	return s.replicas, s.getErr
}

func (s *stubScaler) SetReplicas(ctx context.Context, targetID string, replicas int) error {
	s.calls++
	return s.setErr
}

func (s *stubScaler) Close() error { return nil }

func TestResilientScaler_PassesThrough(t *testing.T) {
	stub := &stubScaler{replicas: 4}
	rs := NewResilientScaler(ResilientScalerConfig{Scaler: stub, MaxFailures: 3})

	replicas, err := rs.GetReplicas(context.Background(), "web-frontend")
	require.NoError(t, err)
	assert.Equal(t, 4, replicas)

	require.NoError(t, rs.SetReplicas(context.Background(), "web-frontend", 6))
	assert.Equal(t, resilience.StateClosed, rs.CircuitState())
}

func TestResilientScaler_OutagesTripBreaker(t *testing.T) {
	stub := &stubScaler{setErr: ErrScalingFailed}
	rs := NewResilientScaler(ResilientScalerConfig{
		Scaler:      stub,
		MaxFailures: 2,
		OpenTimeout: time.Minute,
	})

	for i := 0; i < 2; i++ {
		err := rs.SetReplicas(context.Background(), "web-frontend", 3)
		assert.ErrorIs(t, err, ErrScalingFailed)
	}
	assert.Equal(t, resilience.StateOpen, rs.CircuitState())

	// The breaker now fails fast without touching the backend.
	callsBefore := stub.calls
	err := rs.SetReplicas(context.Background(), "web-frontend", 3)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, callsBefore, stub.calls)
}

func TestResilientScaler_BackendRejectionsDoNotTrip(t *testing.T) {
	tests := []struct {
		name   string
		setErr error
	}{
		{"unknown target", ErrTargetNotFound},
		{"invalid replica count", ErrInvalidReplicas},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubScaler{setErr: tt.setErr}
			rs := NewResilientScaler(ResilientScalerConfig{
				Scaler:      stub,
				MaxFailures: 2,
				OpenTimeout: time.Minute,
			})

			// Rejections surface to the caller but never open the circuit.
			for i := 0; i < 10; i++ {
				err := rs.SetReplicas(context.Background(), "web-frontend", 3)
				assert.ErrorIs(t, err, tt.setErr)
			}
			assert.Equal(t, resilience.StateClosed, rs.CircuitState())
		})
	}
}

func TestResilientScaler_GetRejectionDoesNotTrip(t *testing.T) {
	stub := &stubScaler{getErr: ErrTargetNotFound}
	rs := NewResilientScaler(ResilientScalerConfig{
		Scaler:      stub,
		MaxFailures: 1,
		OpenTimeout: time.Minute,
	})

	_, err := rs.GetReplicas(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrTargetNotFound)
	assert.Equal(t, resilience.StateClosed, rs.CircuitState())
}
