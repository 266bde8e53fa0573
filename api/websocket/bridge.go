package websocket

import (
	"context"
	"encoding/json"
	"time"

	"github.com/predictops/autoscaler/internal/logger"
	"github.com/predictops/autoscaler/pkg/models"
)

// EventBridge forwards control loop events to WebSocket clients.
type EventBridge struct {
	hub        *Hub
	eventsChan <-chan *models.Event
	ctx        context.Context
	cancel     context.CancelFunc
}

func NewEventBridge(hub *Hub, eventsChan <-chan *models.Event) *EventBridge {
	ctx, cancel := context.WithCancel(context.Background())
	return &EventBridge{
		hub:        hub,
		eventsChan: eventsChan,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start begins listening for events and forwarding to WebSocket clients
func (b *EventBridge) Start() {
	go b.run()
	logger.Info("WebSocket event bridge started")
}

// Stop stops the event bridge
func (b *EventBridge) Stop() {
	b.cancel()
	logger.Info("WebSocket event bridge stopped")
}

func (b *EventBridge) run() {
	for {
		select {
		case <-b.ctx.Done():
			return
		case event, ok := <-b.eventsChan:
			if !ok {
				logger.Info("Event channel closed, stopping bridge")
				return
			}
			b.forwardEvent(event)
		}
	}
}

func (b *EventBridge) forwardEvent(event *models.Event) {
	// Decisions and scaling events have dedicated message shapes.
	switch event.Type {
	case models.EventTypeDecisionMade:
		if decision, ok := event.Data.(*models.ScalingDecision); ok {
			BroadcastDecision(b.hub, decision)
			return
		}
	case models.EventTypeScalingApplied:
		if scalingEvent, ok := event.Data.(*models.ScalingEvent); ok {
			BroadcastScalingEvent(b.hub, scalingEvent)
			return
		}
	}

	wsMessage := b.convertToWSMessage(event)
	if wsMessage == nil {
		return
	}

	data, err := json.Marshal(wsMessage)
	if err != nil {
		logger.Errorf("Failed to marshal WebSocket message: %v", err)
		return
	}

	if event.TargetID == "" {
		// Loop-level events (reloads) go to everyone.
		b.hub.Broadcast(data)
		return
	}

	b.hub.BroadcastToTarget(event.TargetID, data)
}

// WebSocketEvent is the message format sent to WebSocket clients
type WebSocketEvent struct {
	Type      string      `json:"type"`
	TargetID  string      `json:"target_id"`
	Timestamp time.Time   `json:"timestamp"`
	Severity  string      `json:"severity,omitempty"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

func (b *EventBridge) convertToWSMessage(event *models.Event) *WebSocketEvent {
	wsType := mapEventType(event.Type)
	if wsType == "" {
		return nil // Skip events we don't want to broadcast
	}

	return &WebSocketEvent{
		Type:      wsType,
		TargetID:  event.TargetID,
		Timestamp: event.Timestamp,
		Severity:  string(event.Severity),
		Message:   event.Message,
		Data:      event.Data,
	}
}

func mapEventType(eventType models.EventType) string {
	switch eventType {
	case models.EventTypeForecastMade:
		return string(MessageTypeForecast)
	case models.EventTypeForecastRejected:
		return "forecast_rejected"
	case models.EventTypeScalingFailed:
		return "scaling_failed"
	case models.EventTypeTargetEvicted:
		return string(MessageTypeEviction)
	case models.EventTypePolicyReloaded:
		return "policy_reloaded"
	case models.EventTypeError:
		return string(MessageTypeError)
	default:
		// Skip window_fetched and other internal events
		return ""
	}
}
