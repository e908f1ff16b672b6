package event

import (
	"bytes"
	"encoding/json"
	"math"
	"time"
)

// Chat Event Types
const (
	// EventMessage - peer sends a chat message; server relays it to the recipient
	EventMessage = "message"

	// EventMessageSent - acknowledgment returned to the sender
	EventMessageSent = "message-sent"

	// EventMessageError - persistence failed, nothing was relayed
	EventMessageError = "message-error"

	EventTyping     = "typing"
	EventStopTyping = "stop-typing"
)

// Presence Event Types - Server to all other peers
const (
	EventUserOnline  = "user-online"
	EventUserOffline = "user-offline"
)

// WsEvent is the frame exchanged over the socket in both directions.
type WsEvent struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// New builds an event with a JSON encoded payload.
func New(name string, payload any) (WsEvent, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return WsEvent{}, err
	}
	return WsEvent{Event: name, Payload: raw}, nil
}

// -----------------------------------------------------------------
// Chat Payloads
// -----------------------------------------------------------------

// MessagePayload is sent by a peer to deliver a chat message
type MessagePayload struct {
	To           string          `json:"to"`
	Message      string          `json:"message"`
	Type         string          `json:"type,omitempty"`
	MediaURL     string          `json:"mediaUrl,omitempty"`
	ThumbnailURL string          `json:"thumbnailUrl,omitempty"`
	Timestamp    json.RawMessage `json:"timestamp,omitempty"` // client clock: unix millis or an ISO-8601 string
}

// maxClientMillis bounds numeric timestamps to values a float64 holds exactly.
const maxClientMillis = 1 << 53

// ClientTime reads the client supplied timestamp. It reports false when the
// field is absent or cannot be read as a time.
func (p MessagePayload) ClientTime() (time.Time, bool) {
	raw := bytes.TrimSpace(p.Timestamp)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, false
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, false
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}

	var millis float64
	if err := json.Unmarshal(raw, &millis); err != nil || millis <= 0 || millis >= maxClientMillis {
		return time.Time{}, false
	}
	return time.UnixMilli(int64(math.Round(millis))), true
}

// MessageEvent is relayed to the recipient
type MessageEvent struct {
	ID           string `json:"id"`
	From         string `json:"from"`
	To           string `json:"to"`
	Message      string `json:"message"`
	Content      string `json:"content"`
	Type         string `json:"type"`
	MediaURL     string `json:"mediaUrl,omitempty"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
	Timestamp    int64  `json:"timestamp"`
	IsDelivered  bool   `json:"isDelivered"`
}

// MessageSentEvent acknowledges a send to its sender
type MessageSentEvent struct {
	ID          string `json:"id"`
	Timestamp   int64  `json:"timestamp"`
	IsDelivered bool   `json:"isDelivered"`
}

// ErrorEvent carries a human readable failure (message-error, call-failed)
type ErrorEvent struct {
	Message string `json:"message"`
}

// DirectedPayload addresses a peer; typing, call-accept and call-end use it as is.
type DirectedPayload struct {
	To string `json:"to"`
}

// FromEvent tells the recipient who produced a forwarded event.
type FromEvent struct {
	From string `json:"from"`
}

// PresenceEvent announces an online/offline transition
type PresenceEvent struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	LastSeen int64  `json:"lastSeen,omitempty"` // unix millis, offline only
}

func (p DirectedPayload) Target() string { return p.To }
func (p MessagePayload) Target() string  { return p.To }
