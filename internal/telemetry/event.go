// Package telemetry emits session-lifecycle events, best-effort, to Kafka or
// OTel logs. The worker drains the Kafka topic into Loki.
package telemetry

import (
	"encoding/json"
	"time"
)

// Event is one session-lifecycle telemetry event. The JSON field names are
// the wire format on the Kafka topic and what the worker parses for Loki
// labels.
type Event struct {
	SessionID string          `json:"sessionId,omitempty"`
	UserID    string          `json:"userId,omitempty"`
	EventType string          `json:"eventType"`
	Source    string          `json:"source"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Event types emitted by the session manager and HTTP middleware.
const (
	EventLogin            = "session_login"
	EventTokenRefresh     = "session_token_refresh"
	EventInvalidated      = "session_invalidated"
	EventSubscriptionSync = "subscription_sync"
	EventLogout           = "session_logout"
	EventHTTPRequest      = "http_request"
)

// NewEvent returns an Event stamped with the current time.
func NewEvent(eventType, source, sessionID, userID string, metadata json.RawMessage) *Event {
	return &Event{
		SessionID: sessionID,
		UserID:    userID,
		EventType: eventType,
		Source:    source,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
}
