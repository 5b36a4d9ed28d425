package protocol

import (
	"time"

	"github.com/google/uuid"
)

// EventInputUpdate is the status notification pushed to the presentation layer.
const EventInputUpdate = "input_update"

// Payload is the body of a presentation-layer event.
type Payload struct {
	Message string `json:"message"`
}

// Event is the envelope a Payload travels in over SSE and NATS.
type Event struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Timestamp int64   `json:"timestamp"`
	Payload   Payload `json:"payload"`
}

// NewEvent creates an Event with a generated ID and current timestamp.
func NewEvent(name string, payload Payload) Event {
	return Event{
		ID:        "evt_" + uuid.NewString(),
		Name:      name,
		Timestamp: time.Now().Unix(),
		Payload:   payload,
	}
}
