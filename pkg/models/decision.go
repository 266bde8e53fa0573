package models

import "time"

type ScalingAction string

const (
	ActionScaleOut ScalingAction = "scale_out"
	ActionScaleIn  ScalingAction = "scale_in"
	ActionNone     ScalingAction = "no_action"
)

// ScalingDecision is the outcome of one decision cycle for one target.
// It is ephemeral: produced and consumed within a single cycle.
type ScalingDecision struct {
	TargetID        string        `json:"target_id"`
	Timestamp       time.Time     `json:"timestamp"`
	Action          ScalingAction `json:"action"`
	CurrentReplicas int           `json:"current_replicas"`
	TargetReplicas  int           `json:"target_replicas"`
	Forecast        float64       `json:"forecast"`
	Reason          string        `json:"reason"`
	SurplusRemoved  *int          `json:"surplus_removed,omitempty"`
	CooldownActive  bool          `json:"cooldown_active"`
}

func (d *ScalingDecision) ReplicaDelta() int {
	return d.TargetReplicas - d.CurrentReplicas
}

func (d *ScalingDecision) ShouldExecute() bool {
	return d.Action != ActionNone && !d.CooldownActive
}
