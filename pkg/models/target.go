package models

import "time"

// TargetStatus is a read-only snapshot of a monitored target's loop state,
// exposed for observability. The authoritative state lives in the
// orchestrator's registry.
type TargetStatus struct {
	TargetID          string        `json:"target_id"`
	MinReplicas       int           `json:"min_replicas"`
	MaxReplicas       int           `json:"max_replicas"`
	CurrentReplicas   int           `json:"current_replicas"`
	ConsecutiveErrors int           `json:"consecutive_errors"`
	LastScaledAt      *time.Time    `json:"last_scaled_at,omitempty"`
	LastProcessedAt   *time.Time    `json:"last_processed_at,omitempty"`
	CooldownRemaining time.Duration `json:"cooldown_remaining"`
}
