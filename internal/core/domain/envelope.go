package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventEnvelope is the wire form of an Event once it leaves the process
// (Redis mirror, MQTT, WebSocket push).
type EventEnvelope struct {
	ID         string          `json:"id"`
	Event      EventName       `json:"event"`
	TenantID   TenantID        `json:"tenantId"`
	InstanceID string          `json:"instanceId,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
	Payload    json.RawMessage `json:"payload"`
}

func NewEventEnvelope(id string, tenantID TenantID, event Event, at time.Time) (*EventEnvelope, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", event.Name(), err)
	}
	return &EventEnvelope{
		ID:        id,
		Event:     event.Name(),
		TenantID:  tenantID,
		Timestamp: at,
		Payload:   payload,
	}, nil
}
