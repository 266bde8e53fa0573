package models

import "time"

type EventType string

const (
	EventTypeWindowFetched    EventType = "window_fetched"
	EventTypeForecastMade     EventType = "forecast_made"
	EventTypeForecastRejected EventType = "forecast_rejected"
	EventTypeDecisionMade     EventType = "decision_made"
	EventTypeScalingApplied   EventType = "scaling_applied"
	EventTypeScalingFailed    EventType = "scaling_failed"
	EventTypeTargetEvicted    EventType = "target_evicted"
	EventTypePolicyReloaded   EventType = "policy_reloaded"
	EventTypeError            EventType = "error"
)

type EventSeverity string

const (
	SeverityInfo     EventSeverity = "info"
	SeverityWarning  EventSeverity = "warning"
	SeverityCritical EventSeverity = "critical"
)

// Event represents an internal system event
type Event struct {
	ID        string        `json:"id"`
	Type      EventType     `json:"type"`
	Severity  EventSeverity `json:"severity"`
	TargetID  string        `json:"target_id,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	Message   string        `json:"message"`
	Data      interface{}   `json:"data,omitempty"`
}

func NewEvent(eventType EventType, targetID, message string) *Event {
	return &Event{
		ID:        NewUUID(),
		Type:      eventType,
		Severity:  SeverityInfo,
		TargetID:  targetID,
		Timestamp: time.Now(),
		Message:   message,
	}
}

func (e *Event) WithSeverity(severity EventSeverity) *Event {
	e.Severity = severity
	return e
}

func (e *Event) WithData(data interface{}) *Event {
	e.Data = data
	return e
}
