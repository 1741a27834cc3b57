package storage

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/valter-silva-au/swarmwatch/pkg/models"
)

// EventRecorder mirrors an advisory event into a session's event log.
type EventRecorder func(eventType, source string, payload any) error

// previewLimit bounds the message content mirrored into the event log so
// large messages cannot inflate it.
const previewLimit = 100

// DeliveryAck describes the outcome of sending a message. Warning is set
// when the message was delivered but the advisory event mirror failed.
type DeliveryAck struct {
	Delivered bool              `json:"delivered"`
	Target    string            `json:"target"`
	Broadcast bool              `json:"broadcast"`
	Scope     models.ShareScope `json:"scope"`
	Warning   string            `json:"warning,omitempty"`
}

// MessageStore persists directed and broadcast messages for one session. A
// message is written to shared memory (the durability source of truth),
// appended to the per-session messages file, and mirrored as a message:sent
// event.
type MessageStore struct {
	sessionID string
	eventsDir string
	memory    MemoryStore
	record    EventRecorder

	mu sync.Mutex
}

// NewMessageStore creates a MessageStore for the given session. record may
// be nil when no event log exists to mirror into.
func NewMessageStore(sessionID, eventsDir string, memory MemoryStore, record EventRecorder) *MessageStore {
	return &MessageStore{
		sessionID: sessionID,
		eventsDir: eventsDir,
		memory:    memory,
		record:    record,
	}
}

// MessagesFileName returns the per-session messages file name.
func MessagesFileName(sessionID string) string {
	return fmt.Sprintf("messages-%s.jsonl", sessionID)
}

// MessagesNamespace returns the shared memory namespace for a session.
func MessagesNamespace(sessionID string) string {
	return "swarm:" + sessionID
}

// Send validates and persists a message. The memory and messages-file writes
// must succeed for delivery; a failing event mirror is surfaced as a warning
// on the ack, since the mirror is advisory only.
func (s *MessageStore) Send(msg models.Message) (*DeliveryAck, error) {
	if msg.Target == "" {
		return nil, fmt.Errorf("sending message for %s: target is required", s.sessionID)
	}
	if msg.Content == "" {
		return nil, fmt.Errorf("sending message for %s: content is required", s.sessionID)
	}
	if msg.Type == "" {
		msg.Type = "info"
	}
	if msg.Priority == "" {
		msg.Priority = models.PriorityNormal
	}
	if !msg.Priority.Valid() {
		return nil, fmt.Errorf("sending message for %s: invalid priority %q", s.sessionID, msg.Priority)
	}
	msg.SessionID = s.sessionID

	now := time.Now().UTC()
	rec := models.MessageRecord{
		Timestamp:   now,
		SessionID:   s.sessionID,
		TargetAgent: msg.Target,
		Message:     msg.Content,
		MessageType: msg.Type,
		Priority:    msg.Priority,
		Broadcast:   msg.IsBroadcast(),
	}
	scope := msg.Scope()

	key := fmt.Sprintf("message:%s:%d", msg.Target, now.UnixNano())
	if err := s.memory.Store(MessagesNamespace(s.sessionID), key, rec, scope); err != nil {
		return nil, fmt.Errorf("sending message for %s: storing in memory: %w", s.sessionID, err)
	}

	if err := s.appendRecord(rec); err != nil {
		return nil, fmt.Errorf("sending message for %s: %w", s.sessionID, err)
	}

	ack := &DeliveryAck{
		Delivered: true,
		Target:    msg.Target,
		Broadcast: rec.Broadcast,
		Scope:     scope,
	}

	if s.record != nil {
		payload := map[string]any{
			"target":    msg.Target,
			"type":      msg.Type,
			"priority":  string(msg.Priority),
			"broadcast": rec.Broadcast,
			"preview":   contentPreview(msg.Content),
		}
		if err := s.record("message:sent", "messenger", payload); err != nil {
			ack.Warning = fmt.Sprintf("message delivered but event mirror failed: %s", err)
		}
	}

	return ack, nil
}

func (s *MessageStore) appendRecord(rec models.MessageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.eventsDir, 0o755); err != nil {
		return fmt.Errorf("creating events dir: %w", err)
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}
	line = append(line, '\n')

	path := filepath.Join(s.eventsDir, MessagesFileName(s.sessionID))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) //nolint:gosec // G304: appending to managed messages file
	if err != nil {
		return fmt.Errorf("opening messages file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("writing message: %w", err)
	}
	return nil
}

// contentPreview bounds a message body for the event mirror.
func contentPreview(content string) string {
	runes := []rune(content)
	if len(runes) <= previewLimit {
		return content
	}
	return string(runes[:previewLimit]) + "..."
}

// History reads the per-session messages file back in order, skipping
// malformed lines. A missing file yields an empty history.
func (s *MessageStore) History() ([]models.MessageRecord, int, error) {
	path := filepath.Join(s.eventsDir, MessagesFileName(s.sessionID))
	f, err := os.Open(path) //nolint:gosec // G304: reading managed messages file
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("reading messages for %s: %w", s.sessionID, err)
	}
	defer func() { _ = f.Close() }()

	var records []models.MessageRecord
	skipped := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var rec models.MessageRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			skipped++
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return records, skipped, fmt.Errorf("scanning messages for %s: %w", s.sessionID, err)
	}
	return records, skipped, nil
}
