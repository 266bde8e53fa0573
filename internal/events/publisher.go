package events

import (
	"github.com/predictops/autoscaler/pkg/models"
)

type Publisher struct {
	bus *EventBus
}

func NewPublisher(bus *EventBus) *Publisher {
	return &Publisher{bus: bus}
}

func (p *Publisher) WindowFetched(targetID string, window models.HistoryWindow) {
	event := models.NewEvent(models.EventTypeWindowFetched, targetID, "History window fetched").
		WithData(map[string]interface{}{
			"samples":      len(window),
			"current_load": window.Last(),
		})
	p.bus.Publish(event)
}

func (p *Publisher) ForecastMade(targetID string, forecast float64) {
	event := models.NewEvent(models.EventTypeForecastMade, targetID, "Forecast made").
		WithData(map[string]interface{}{"forecast": forecast})
	p.bus.Publish(event)
}

func (p *Publisher) ForecastRejected(targetID string, forecast float64, reason string) {
	event := models.NewEvent(models.EventTypeForecastRejected, targetID, "Forecast rejected: "+reason).
		WithSeverity(models.SeverityWarning).
		WithData(map[string]interface{}{
			"forecast": forecast,
			"reason":   reason,
		})
	p.bus.Publish(event)
}

func (p *Publisher) DecisionMade(targetID string, decision *models.ScalingDecision) {
	msg := "Scaling decision: " + string(decision.Action)
	event := models.NewEvent(models.EventTypeDecisionMade, targetID, msg).
		WithData(decision)
	p.bus.Publish(event)
}

func (p *Publisher) ScalingApplied(scalingEvent *models.ScalingEvent) {
	msg := "Scaling applied: " + string(scalingEvent.Action)
	event := models.NewEvent(models.EventTypeScalingApplied, scalingEvent.TargetID, msg).
		WithData(scalingEvent)
	p.bus.Publish(event)
}

func (p *Publisher) ScalingFailed(scalingEvent *models.ScalingEvent, err error) {
	msg := "Scaling failed: " + string(scalingEvent.Action)
	event := models.NewEvent(models.EventTypeScalingFailed, scalingEvent.TargetID, msg).
		WithSeverity(models.SeverityCritical).
		WithData(map[string]interface{}{
			"event": scalingEvent,
			"error": err.Error(),
		})
	p.bus.Publish(event)
}

func (p *Publisher) TargetEvicted(targetID string, consecutiveErrors int) {
	event := models.NewEvent(models.EventTypeTargetEvicted, targetID, "Target evicted from monitoring").
		WithSeverity(models.SeverityCritical).
		WithData(map[string]interface{}{
			"consecutive_errors": consecutiveErrors,
		})
	p.bus.Publish(event)
}

func (p *Publisher) PolicyReloaded(added, updated, removed int) {
	event := models.NewEvent(models.EventTypePolicyReloaded, "", "Policy set reloaded").
		WithData(map[string]interface{}{
			"added":   added,
			"updated": updated,
			"removed": removed,
		})
	p.bus.Publish(event)
}

func (p *Publisher) Error(targetID string, message string, err error) {
	event := models.NewEvent(models.EventTypeError, targetID, message).
		WithSeverity(models.SeverityCritical).
		WithData(map[string]interface{}{
			"error": err.Error(),
		})
	p.bus.Publish(event)
}
