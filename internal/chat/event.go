package chat

import (
	"encoding/json"
	"log"
)

// Event is the wire envelope exchanged over a connection. Client requests
// that expect a reply carry a nonzero Ack number; the matching reply is an
// "ack" event with the same number and a payload shaped
// {success: bool, ...data | error}.
type Event struct {
	Type    string          `json:"type"`
	Ack     uint64          `json:"ack,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Server-to-client event types.
const (
	EventInitChat          = "initChat"
	EventNewMessage        = "newMessage"
	EventNotification      = "notification"
	EventMessageSeenUpdate = "messageSeenUpdate"
	EventAck               = "ack"
)

// NewEvent builds a push event with a marshaled payload.
func NewEvent(eventType string, payload any) Event {
	raw, err := json.Marshal(payload)
	if err != nil {
		// Payloads are server-built structs; a marshal failure is a bug.
		log.Printf("[Event] Marshal %s payload failed: %v", eventType, err)
	}
	return Event{Type: eventType, Payload: raw}
}

// Conn is a reachable client connection. The websocket gateway implements
// it; tests substitute an in-memory recorder.
type Conn interface {
	// ID uniquely identifies the connection handle, not the user.
	ID() string

	// Send queues an event for delivery. It must not block; a connection
	// that cannot keep up is dropped by its own write path.
	Send(ev Event)
}
