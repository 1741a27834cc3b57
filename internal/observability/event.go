package observability

import (
	"strings"
	"time"
)

// Event represents a single observable fact about a swarm session. It is
// persisted as one JSON line in the session's event log.
type Event struct {
	Timestamp time.Time      `json:"timestamp"`
	EventType string         `json:"eventType"`
	SessionID string         `json:"sessionId"`
	Source    string         `json:"source,omitempty"`
	Payload   any            `json:"payload"`
	Metadata  *EventMetadata `json:"metadata,omitempty"`
}

// EventMetadata carries capture-assigned bookkeeping for an event.
type EventMetadata struct {
	Sequence int64    `json:"sequence"`
	Tags     []string `json:"tags,omitempty"`
}

// EventTypeUnknown is assigned when a producer emits an empty event type,
// preserving the invariant that eventType is never empty.
const EventTypeUnknown = "unknown"

// IsErrorClass reports whether an open-ended event type string denotes an
// error-class event. Types are an open tag set, so classification is by
// substring rather than a closed enum.
func IsErrorClass(eventType string) bool {
	t := strings.ToLower(eventType)
	return strings.Contains(t, "error") || strings.Contains(t, "failed")
}
