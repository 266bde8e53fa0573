package scaling

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/predictops/autoscaler/internal/logger"
	"github.com/predictops/autoscaler/pkg/models"
)

// Engine converts a validated forecast into a bounded replica-count decision.
// Decide is a pure function of its inputs plus the per-target cooldown state;
// the cooldown timestamp is only advanced by RecordScaling, which callers
// invoke after a decision has actually been applied.
type Engine struct {
	lastScaleTimes map[string]time.Time
	mu             sync.RWMutex
	now            func() time.Time
}

func NewEngine() *Engine {
	return &Engine{
		lastScaleTimes: make(map[string]time.Time),
		now:            time.Now,
	}
}

func (e *Engine) Decide(targetID string, forecast float64, currentReplicas int, policy models.ScalingPolicy) *models.ScalingDecision {
	decision := &models.ScalingDecision{
		TargetID:        targetID,
		Timestamp:       e.now(),
		Action:          models.ActionNone,
		CurrentReplicas: currentReplicas,
		TargetReplicas:  currentReplicas,
		Forecast:        forecast,
	}

	// Corrupt upstream state must never escape as a crash; the decision
	// function is the last line of defense.
	if math.IsNaN(forecast) || math.IsInf(forecast, 0) || currentReplicas < 0 {
		decision.Reason = "invalid inputs, holding current replica count"
		logger.WithTarget(targetID).Warnf("Decision degraded to no_action: forecast=%v replicas=%d",
			forecast, currentReplicas)
		return decision
	}

	if remaining := e.cooldownRemaining(targetID, policy.Cooldown); remaining > 0 {
		decision.CooldownActive = true
		decision.Reason = fmt.Sprintf("in cooldown period, %ds remaining", int(remaining.Seconds()))
		logger.WithTarget(targetID).Debugf("Decision: no_action (%s)", decision.Reason)
		return decision
	}

	required := requiredReplicas(forecast, policy.WorkloadPerReplica)
	if required < policy.MinReplicas {
		required = policy.MinReplicas
	}

	switch {
	case required > currentReplicas:
		target := required
		if target > policy.MaxReplicas {
			target = policy.MaxReplicas
		}
		decision.Action = models.ActionScaleOut
		decision.TargetReplicas = target
		decision.Reason = fmt.Sprintf("forecast requires %d replicas, scaling out to %d", required, target)

	case required < currentReplicas:
		// Gradual removal: only a fraction of the surplus over the
		// floored requirement is withdrawn per cycle. The surplus pool
		// is measured against max(required, min_replicas), which can
		// remove more aggressively than the gap to required when the
		// forecast sits below the floor.
		adjusted := required
		if adjusted < policy.MinReplicas {
			adjusted = policy.MinReplicas
		}

		surplus := int(math.Ceil(float64(currentReplicas-adjusted) * policy.RemovalFraction))

		target := currentReplicas - surplus
		if target < policy.MinReplicas {
			target = policy.MinReplicas
		}

		decision.Action = models.ActionScaleIn
		decision.TargetReplicas = target
		decision.SurplusRemoved = &surplus
		decision.Reason = fmt.Sprintf("forecast requires %d replicas, removing %d of %d surplus",
			required, surplus, currentReplicas-adjusted)

	default:
		decision.Reason = "replica count matches forecast requirement"
	}

	if decision.Action != models.ActionNone {
		logger.WithTarget(targetID).Infof("Decision: %s %d -> %d replicas (forecast %.2f)",
			decision.Action, decision.CurrentReplicas, decision.TargetReplicas, forecast)
	}

	return decision
}

// requiredReplicas computes how many replicas the forecast workload needs.
// A non-positive workload-per-replica degrades to a single replica before
// the min-replicas floor is applied.
func requiredReplicas(forecast, workloadPerReplica float64) int {
	if workloadPerReplica <= 0 {
		return 1
	}

	required := int(math.Ceil(forecast / workloadPerReplica))
	if required < 1 {
		required = 1
	}
	return required
}

// RecordScaling advances the cooldown window for a target. Call only after
// a scale_out/scale_in decision has been successfully applied.
func (e *Engine) RecordScaling(targetID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastScaleTimes[targetID] = e.now()
}

// Forget drops all cooldown state for a target, e.g. on eviction.
func (e *Engine) Forget(targetID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.lastScaleTimes, targetID)
}

// CooldownRemaining reports how long until the target may scale again.
func (e *Engine) CooldownRemaining(targetID string, cooldown time.Duration) time.Duration {
	return e.cooldownRemaining(targetID, cooldown)
}

// LastScaledAt returns the time of the last applied scaling, if any.
func (e *Engine) LastScaledAt(targetID string) (time.Time, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	t, ok := e.lastScaleTimes[targetID]
	return t, ok
}

func (e *Engine) cooldownRemaining(targetID string, cooldown time.Duration) time.Duration {
	e.mu.RLock()
	defer e.mu.RUnlock()

	lastScale, exists := e.lastScaleTimes[targetID]
	if !exists {
		return 0
	}

	elapsed := e.now().Sub(lastScale)
	if elapsed >= cooldown {
		return 0
	}
	return cooldown - elapsed
}
