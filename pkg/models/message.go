package models

import "time"

// MessagePriority represents the urgency of a swarm message. The store
// persists it opaquely; only downstream consumers interpret it.
type MessagePriority string

const (
	PriorityLow      MessagePriority = "low"
	PriorityNormal   MessagePriority = "normal"
	PriorityHigh     MessagePriority = "high"
	PriorityCritical MessagePriority = "critical"
)

// Valid reports whether p is one of the known priority levels.
func (p MessagePriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// ShareScope classifies who may read a stored message.
type ShareScope string

const (
	ScopePrivate ShareScope = "private"
	ScopeTeam    ShareScope = "team"
	ScopePublic  ShareScope = "public"
)

// Reserved target keywords understood by the messaging store.
const (
	TargetBroadcast   = "broadcast"
	TargetAll         = "all"
	TargetCoordinator = "coordinator"
)

// Message is a note sent to one participant, the coordinator, or the whole
// swarm during a session.
type Message struct {
	SessionID      string          `json:"session_id"`
	Target         string          `json:"target"`
	Content        string          `json:"content"`
	Type           string          `json:"type"`
	Priority       MessagePriority `json:"priority"`
	ExpectResponse bool            `json:"expect_response"`
}

// IsBroadcast reports whether the message targets the entire swarm.
func (m Message) IsBroadcast() bool {
	return m.Target == TargetAll || m.Target == TargetBroadcast
}

// Scope derives the visibility scope from the message target: broadcasts are
// public, everything else stays within the team.
func (m Message) Scope() ShareScope {
	if m.IsBroadcast() {
		return ScopePublic
	}
	return ScopeTeam
}

// MessageRecord is the wire shape of one line in the per-session messages
// file (messages-<sessionID>.jsonl).
type MessageRecord struct {
	Timestamp   time.Time       `json:"timestamp"`
	SessionID   string          `json:"sessionId"`
	TargetAgent string          `json:"targetAgent"`
	Message     string          `json:"message"`
	MessageType string          `json:"messageType"`
	Priority    MessagePriority `json:"priority"`
	Broadcast   bool            `json:"broadcast"`
}
