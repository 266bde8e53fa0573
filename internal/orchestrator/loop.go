package orchestrator

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/predictops/autoscaler/internal/logger"
	"github.com/predictops/autoscaler/internal/metrics"
	"github.com/predictops/autoscaler/internal/predictor"
	"github.com/predictops/autoscaler/pkg/models"
)

// Run drives the control loop until ctx is cancelled. The first policy load
// is best-effort: a failure leaves the target set empty and the periodic
// reload recovers once the policy backend is reachable again.
func (o *Orchestrator) Run(ctx context.Context) error {
	if err := o.reloadPolicies(ctx); err != nil {
		logger.Errorf("Initial policy load failed, starting with empty target set: %v", err)
	}

	for {
		cycleStart := o.now()

		o.runCycle(ctx)

		metrics.Get().SetCycleLatency(o.now().Sub(cycleStart))

		if o.now().Sub(o.lastReload) >= o.config.ReloadInterval {
			if err := o.reloadPolicies(ctx); err != nil {
				logger.Errorf("Policy reload failed, keeping current target set: %v", err)
			}
		}

		// Absorb cycle duration so cycles start on a fixed cadence. A cycle
		// that overran the interval is followed by the next one immediately.
		sleep := o.config.Interval - o.now().Sub(cycleStart)
		if sleep < 0 {
			sleep = 0
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}
	}
}

func (o *Orchestrator) runCycle(ctx context.Context) {
	o.mu.RLock()
	targetIDs := make([]string, 0, len(o.targets))
	for targetID := range o.targets {
		targetIDs = append(targetIDs, targetID)
	}
	o.mu.RUnlock()

	if len(targetIDs) == 0 {
		logger.Debug("No targets to process this cycle")
		return
	}

	sem := make(chan struct{}, o.config.MaxConcurrent)
	var wg sync.WaitGroup

	for _, targetID := range targetIDs {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(targetID string) {
			defer wg.Done()
			defer func() { <-sem }()
			o.safeProcessTarget(ctx, targetID)
		}(targetID)
	}

	wg.Wait()
}

// safeProcessTarget isolates one target's cycle: a panic is converted into
// a counted failure so a misbehaving target cannot take down the loop.
func (o *Orchestrator) safeProcessTarget(ctx context.Context, targetID string) {
	defer func() {
		if r := recover(); r != nil {
			logger.WithTarget(targetID).Errorf("Panic while processing target: %v\n%s", r, debug.Stack())
			o.recordFailure(targetID, fmt.Errorf("panic: %v", r))
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, o.config.TargetTimeout)
	defer cancel()

	o.processTarget(ctx, targetID)
}

func (o *Orchestrator) processTarget(ctx context.Context, targetID string) {
	o.mu.RLock()
	state, ok := o.targets[targetID]
	if !ok {
		o.mu.RUnlock()
		return
	}
	pol := state.policy
	o.mu.RUnlock()

	log := logger.WithTarget(targetID)
	m := metrics.Get()

	current, err := o.scaler.GetReplicas(ctx, targetID)
	if err != nil {
		log.Errorf("Failed to read current replicas: %v", err)
		o.publisher.Error(targetID, "Failed to read current replicas", err)
		o.recordFailure(targetID, err)
		return
	}
	m.SetReplicas(targetID, current)

	fetchStart := o.now()
	window, err := o.metricsSource.Fetch(ctx, pol.Query)
	m.SetFetchLatency(targetID, o.now().Sub(fetchStart))
	m.IncFetches(targetID)
	if err != nil {
		m.IncFetchErrors(targetID)
		log.Errorf("Failed to fetch history window: %v", err)
		o.publisher.Error(targetID, "Failed to fetch history window", err)
		o.recordFailure(targetID, err)
		return
	}
	o.publisher.WindowFetched(targetID, window)

	forecast, err := o.predictor.Predict(ctx, window)
	if err != nil {
		log.Errorf("Prediction failed: %v", err)
		o.publisher.Error(targetID, "Prediction failed", err)
		o.recordFailure(targetID, err)
		return
	}
	m.IncForecasts(targetID)
	m.SetForecast(targetID, forecast)
	o.publisher.ForecastMade(targetID, forecast)

	if err := predictor.ValidateForecast(forecast, window, pol.Thresholds); err != nil {
		// No usable forecast this cycle. Still counts against the error
		// streak so a persistently implausible model cannot hold a target
		// in limbo forever.
		m.IncForecastsRejected(targetID)
		log.Warnf("Forecast %.2f rejected: %v", forecast, err)
		o.publisher.ForecastRejected(targetID, forecast, err.Error())
		o.recordCycle(targetID, current, window, nil)
		o.markProcessed(targetID, current)
		o.recordFailure(targetID, err)
		return
	}

	decision := o.engine.Decide(targetID, forecast, current, pol.Scaling)
	m.IncDecision(targetID, string(decision.Action))
	o.publisher.DecisionMade(targetID, decision)

	if decision.ShouldExecute() {
		if err := o.applyDecision(ctx, decision); err != nil {
			// The replica count never changed, so record the observed
			// count and keep the error streak growing.
			o.recordCycle(targetID, current, window, &forecast)
			o.markProcessed(targetID, current)
			o.recordFailure(targetID, err)
			return
		}
	} else {
		log.Debugf("No scaling action: %s", decision.Reason)
	}

	o.recordCycle(targetID, decision.TargetReplicas, window, &forecast)
	o.markProcessed(targetID, decision.TargetReplicas)
	o.resetErrors(targetID)
}

func (o *Orchestrator) applyDecision(ctx context.Context, decision *models.ScalingDecision) error {
	log := logger.WithTarget(decision.TargetID)

	if err := o.scaler.SetReplicas(ctx, decision.TargetID, decision.TargetReplicas); err != nil {
		metrics.Get().IncScalingErrors(decision.TargetID)
		log.Errorf("Scaling to %d replicas failed: %v", decision.TargetReplicas, err)
		failed := models.NewScalingEvent(*decision, models.ScalingEventFailed)
		o.publisher.ScalingFailed(failed, err)
		return err
	}

	// Cooldown starts only after a successful apply.
	o.engine.RecordScaling(decision.TargetID)

	applied := models.NewScalingEvent(*decision, models.ScalingEventSuccess)
	o.publisher.ScalingApplied(applied)

	log.Infof("Scaling complete: %s %d -> %d replicas (%s)",
		decision.Action, decision.CurrentReplicas, decision.TargetReplicas, decision.Reason)
	return nil
}

func (o *Orchestrator) recordCycle(targetID string, replicas int, window models.HistoryWindow, forecast *float64) {
	if o.recorder == nil {
		return
	}
	var load *float64
	if len(window) > 0 {
		v := window.Last()
		load = &v
	}
	o.recorder.Record(targetID, replicas, load, forecast)
}

func (o *Orchestrator) markProcessed(targetID string, replicas int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if state, ok := o.targets[targetID]; ok {
		state.lastProcessedAt = o.now()
		state.lastReplicas = replicas
	}
}

func (o *Orchestrator) resetErrors(targetID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if state, ok := o.targets[targetID]; ok {
		state.consecutiveErrors = 0
		metrics.Get().SetErrorStreak(targetID, 0)
	}
}

// recordFailure bumps the target's consecutive error count and evicts the
// target once the count exceeds the configured threshold. An evicted target
// returns only through a policy reload.
func (o *Orchestrator) recordFailure(targetID string, cause error) {
	o.mu.Lock()
	state, ok := o.targets[targetID]
	if !ok {
		o.mu.Unlock()
		return
	}

	state.consecutiveErrors++
	count := state.consecutiveErrors
	metrics.Get().SetErrorStreak(targetID, count)

	if count <= o.config.ErrorThreshold {
		o.mu.Unlock()
		return
	}

	delete(o.targets, targetID)
	o.mu.Unlock()

	o.engine.Forget(targetID)
	metrics.Get().RemoveTarget(targetID)
	metrics.Get().IncEvictions()

	logger.WithTarget(targetID).Errorf(
		"Target evicted after %d consecutive errors, last error: %v", count, cause)
	o.publisher.TargetEvicted(targetID, count)
}

// reloadPolicies refreshes the target set from the policy source. The diff
// is applied in place: unchanged and updated targets keep their error and
// cooldown state, removed targets are dropped entirely.
func (o *Orchestrator) reloadPolicies(ctx context.Context) error {
	policies, err := o.policySource.ListPolicies(ctx, o.config.Namespace)
	if err != nil {
		return fmt.Errorf("failed to list policies: %w", err)
	}

	desired := make(map[string]models.Policy, len(policies))
	for _, pol := range policies {
		desired[pol.TargetID] = pol
	}

	var added, updated, removed int

	o.mu.Lock()
	for targetID, pol := range desired {
		if state, ok := o.targets[targetID]; ok {
			state.policy = pol
			updated++
			continue
		}
		o.targets[targetID] = &targetState{policy: pol}
		added++
	}
	var dropped []string
	for targetID := range o.targets {
		if _, ok := desired[targetID]; !ok {
			delete(o.targets, targetID)
			dropped = append(dropped, targetID)
			removed++
		}
	}
	o.mu.Unlock()

	for _, targetID := range dropped {
		o.engine.Forget(targetID)
		metrics.Get().RemoveTarget(targetID)
	}

	o.lastReload = o.now()
	metrics.Get().IncReloads()

	logger.Infof("Policies reloaded: %d tracked (%d added, %d updated, %d removed)",
		len(desired), added, updated, removed)
	o.publisher.PolicyReloaded(added, updated, removed)

	return nil
}
