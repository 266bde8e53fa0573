package websocket

import (
	"encoding/json"
	"time"

	"github.com/predictops/autoscaler/pkg/models"
)

type MessageType string

const (
	MessageTypeForecast     MessageType = "forecast"
	MessageTypeDecision     MessageType = "decision"
	MessageTypeScalingEvent MessageType = "scaling_event"
	MessageTypeEviction     MessageType = "eviction"
	MessageTypeError        MessageType = "error"
)

type OutgoingMessage struct {
	Type      MessageType `json:"type"`
	TargetID  string      `json:"target_id"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

func NewMessage(msgType MessageType, targetID string, data interface{}) *OutgoingMessage {
	return &OutgoingMessage{
		Type:      msgType,
		TargetID:  targetID,
		Timestamp: time.Now(),
		Data:      data,
	}
}

func (m *OutgoingMessage) JSON() []byte {
	data, _ := json.Marshal(m)
	return data
}

type ForecastData struct {
	Forecast float64 `json:"forecast"`
}

type DecisionData struct {
	Action          string `json:"action"`
	CurrentReplicas int    `json:"current_replicas"`
	TargetReplicas  int    `json:"target_replicas"`
	Reason          string `json:"reason"`
}

type ScalingEventData struct {
	Action         string `json:"action"`
	ReplicasBefore int    `json:"replicas_before"`
	ReplicasAfter  int    `json:"replicas_after"`
	Reason         string `json:"reason"`
	Status         string `json:"status"`
}

func BroadcastDecision(hub *Hub, decision *models.ScalingDecision) {
	data := DecisionData{
		Action:          string(decision.Action),
		CurrentReplicas: decision.CurrentReplicas,
		TargetReplicas:  decision.TargetReplicas,
		Reason:          decision.Reason,
	}
	msg := NewMessage(MessageTypeDecision, decision.TargetID, data)
	hub.BroadcastToTarget(decision.TargetID, msg.JSON())
}

func BroadcastScalingEvent(hub *Hub, event *models.ScalingEvent) {
	data := ScalingEventData{
		Action:         string(event.Action),
		ReplicasBefore: event.ReplicasBefore,
		ReplicasAfter:  event.ReplicasAfter,
		Reason:         event.TriggerReason,
		Status:         string(event.Status),
	}
	msg := NewMessage(MessageTypeScalingEvent, event.TargetID, data)
	hub.BroadcastToTarget(event.TargetID, msg.JSON())
}
