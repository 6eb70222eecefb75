package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// OutboundEventer defines the contract for events that are being published
// from this service to the event bus.
type OutboundEventer interface {
	GetID() string
	GetTopic() string
	// GetPartitionKey keeps every event of a room on one partition.
	GetPartitionKey() string
	ToJSON() ([]byte, error)
}

var _ OutboundEventer = (*OutboundEvent)(nil)

// OutboundEvent is a concrete implementation for publishing.
type OutboundEvent struct {
	ID         string
	Topic      string
	RoomID     string
	NodeID     string
	ReceivedAt time.Time
	Payload    any
}

// NewOutboundEvent creates a fresh event ready for publishing.
func NewOutboundEvent(topic, roomID, nodeID string, payload any) *OutboundEvent {
	return &OutboundEvent{
		ID:         uuid.NewString(),
		Topic:      topic,
		RoomID:     roomID,
		NodeID:     nodeID,
		ReceivedAt: time.Now(),
		Payload:    payload,
	}
}

func (e *OutboundEvent) GetID() string           { return e.ID }
func (e *OutboundEvent) GetTopic() string        { return e.Topic }
func (e *OutboundEvent) GetPartitionKey() string { return e.RoomID }

// ToJSON encodes only the payload; server metadata travels as message metadata.
func (e *OutboundEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e.Payload)
}
