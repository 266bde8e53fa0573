package scaler

import (
	"context"
	"errors"
	"time"

	"github.com/predictops/autoscaler/internal/resilience"
)

// ResilientScaler guards an orchestration backend with a circuit breaker.
// Orchestration verbs are never retried; an open circuit simply surfaces as
// an ordinary per-target failure and counts against the target's error
// budget like any other.
type ResilientScaler struct {
	scaler         Scaler
	circuitBreaker *resilience.CircuitBreaker
}

type ResilientScalerConfig struct {
	Scaler        Scaler
	MaxFailures   int
	OpenTimeout   time.Duration
	OnStateChange func(name string, from, to resilience.State)
}

func NewResilientScaler(cfg ResilientScalerConfig) *ResilientScaler {
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:          "orchestration",
		MaxFailures:   cfg.MaxFailures,
		OpenTimeout:   cfg.OpenTimeout,
		OnStateChange: cfg.OnStateChange,
	})

	return &ResilientScaler{
		scaler:         cfg.Scaler,
		circuitBreaker: cb,
	}
}

func (s *ResilientScaler) GetReplicas(ctx context.Context, targetID string) (int, error) {
	var replicas int
	var opErr error

	err := s.circuitBreaker.Execute(func() error {
		replicas, opErr = s.scaler.GetReplicas(ctx, targetID)
		if isBackendRejection(opErr) {
			// The backend answered; a rejection is not an outage and
			// must not trip the breaker for other targets.
			return nil
		}
		return opErr
	})
	if err != nil {
		return 0, err
	}
	return replicas, opErr
}

func (s *ResilientScaler) SetReplicas(ctx context.Context, targetID string, replicas int) error {
	var opErr error

	err := s.circuitBreaker.Execute(func() error {
		opErr = s.scaler.SetReplicas(ctx, targetID, replicas)
		if isBackendRejection(opErr) {
			return nil
		}
		return opErr
	})
	if err != nil {
		return err
	}
	return opErr
}

func isBackendRejection(err error) bool {
	return errors.Is(err, ErrTargetNotFound) || errors.Is(err, ErrInvalidReplicas)
}

func (s *ResilientScaler) CircuitState() resilience.State {
	return s.circuitBreaker.State()
}

func (s *ResilientScaler) Close() error {
	return s.scaler.Close()
}
