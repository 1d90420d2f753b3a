package websocket

import (
	"encoding/json"
	"time"
)

// Message types exchanged with clients.
const (
	MessageTypeEvent       = "event"
	MessageTypeSubscribe   = "subscribe"
	MessageTypeSubscribed  = "subscribed"
	MessageTypeUnsubscribe = "unsubscribe"
	MessageTypeHeartbeat   = "heartbeat"
	MessageTypeError       = "error"
)

// ServerMessage is sent to clients.
type ServerMessage struct {
	Type      string          `json:"type"`
	Stream    string          `json:"stream,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// ClientMessage is received from clients. Subscribe carries the streams to
// follow; an empty list follows everything.
type ClientMessage struct {
	Type    string   `json:"type"`
	Streams []string `json:"streams,omitempty"`
}

// ErrorMessage is the payload of an error message.
type ErrorMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func newServerMessage(typ, stream string, payload any) ServerMessage {
	msg := ServerMessage{Type: typ, Stream: stream, Timestamp: time.Now().UTC()}
	if payload != nil {
		if raw, err := json.Marshal(payload); err == nil {
			msg.Payload = raw
		}
	}
	return msg
}
