package models

import "time"

type ScalingEventStatus string

const (
	ScalingEventSuccess ScalingEventStatus = "success"
	ScalingEventFailed  ScalingEventStatus = "failed"
)

// ScalingEvent is a persisted record of an applied (or attempted) scaling action.
type ScalingEvent struct {
	ID              int                `json:"id"`
	TargetID        string             `json:"target_id"`
	Timestamp       time.Time          `json:"timestamp"`
	Action          ScalingAction      `json:"action"`
	ReplicasBefore  int                `json:"replicas_before"`
	ReplicasAfter   int                `json:"replicas_after"`
	Forecast        float64            `json:"forecast"`
	TriggerReason   string             `json:"trigger_reason"`
	SurplusRemoved  *int               `json:"surplus_removed,omitempty"`
	Status          ScalingEventStatus `json:"status"`
}

func NewScalingEvent(decision ScalingDecision, status ScalingEventStatus) *ScalingEvent {
	return &ScalingEvent{
		TargetID:       decision.TargetID,
		Timestamp:      decision.Timestamp,
		Action:         decision.Action,
		ReplicasBefore: decision.CurrentReplicas,
		ReplicasAfter:  decision.TargetReplicas,
		Forecast:       decision.Forecast,
		TriggerReason:  decision.Reason,
		SurplusRemoved: decision.SurplusRemoved,
		Status:         status,
	}
}
