package models

import (
	"errors"
	"fmt"
	"time"
)

// MetricsQuery describes how the history window for a target is fetched
// from the metrics backend.
type MetricsQuery struct {
	ServiceName   string `json:"service_name"`
	QueryTemplate string `json:"query_template"`
	WindowLength  int    `json:"window_length"`
}

// ValidationThresholds bound how far a forecast may deviate from recent
// history before it is rejected.
type ValidationThresholds struct {
	MaxSpikeMultiplier      float64 `json:"max_spike_multiplier"`
	MaxHistoricalMultiplier float64 `json:"max_historical_multiplier"`
}

// ScalingPolicy holds the per-target scaling parameters.
type ScalingPolicy struct {
	MinReplicas        int           `json:"min_replicas"`
	MaxReplicas        int           `json:"max_replicas"`
	WorkloadPerReplica float64       `json:"workload_per_replica"`
	RemovalFraction    float64       `json:"removal_fraction"`
	Cooldown           time.Duration `json:"cooldown"`
}

// Policy is the full declarative configuration for one monitored target.
// It is immutable within a cycle and replaced wholesale on reload.
type Policy struct {
	TargetID   string               `json:"target_id"`
	Query      MetricsQuery         `json:"query"`
	Thresholds ValidationThresholds `json:"thresholds"`
	Scaling    ScalingPolicy        `json:"scaling"`
}

func (p *Policy) Validate() error {
	var errs []error

	if p.TargetID == "" {
		errs = append(errs, errors.New("target_id is required"))
	}
	if p.Query.ServiceName == "" {
		errs = append(errs, errors.New("query.service_name is required"))
	}
	if p.Query.WindowLength <= 0 {
		errs = append(errs, errors.New("query.window_length must be positive"))
	}
	if p.Thresholds.MaxSpikeMultiplier <= 0 {
		errs = append(errs, errors.New("thresholds.max_spike_multiplier must be positive"))
	}
	if p.Thresholds.MaxHistoricalMultiplier <= 0 {
		errs = append(errs, errors.New("thresholds.max_historical_multiplier must be positive"))
	}
	if p.Scaling.MinReplicas <= 0 {
		errs = append(errs, errors.New("scaling.min_replicas must be positive"))
	}
	if p.Scaling.MaxReplicas < p.Scaling.MinReplicas {
		errs = append(errs, errors.New("scaling.max_replicas must be >= min_replicas"))
	}
	if p.Scaling.WorkloadPerReplica <= 0 {
		errs = append(errs, errors.New("scaling.workload_per_replica must be positive"))
	}
	if p.Scaling.RemovalFraction < 0 || p.Scaling.RemovalFraction > 1 {
		errs = append(errs, errors.New("scaling.removal_fraction must be between 0 and 1"))
	}
	if p.Scaling.Cooldown < 0 {
		errs = append(errs, errors.New("scaling.cooldown must not be negative"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid policy for target %q: %v", p.TargetID, errs)
	}

	return nil
}
