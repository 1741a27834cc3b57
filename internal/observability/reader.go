package observability

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ErrSessionNotFound is returned when no event log exists for a session.
// An unstarted session is a normal early state, not a fault.
var ErrSessionNotFound = errors.New("session not found")

// maxLineSize bounds a single log line during scanning. Payloads are
// previews and structured data, so 1 MiB is generous.
const maxLineSize = 1 << 20

// ReadLog parses a session event log. Blank lines are ignored; a line that
// fails to parse (including a truncated trailing line from a concurrent
// write) is skipped and counted, never aborting the read. A missing file
// yields an empty result.
func ReadLog(path string) (events []Event, skipped int, err error) {
	f, err := os.Open(path) //nolint:gosec // G304: reading session logs from managed directory
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("opening event log: %w", err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var ev Event
		if jsonErr := json.Unmarshal(line, &ev); jsonErr != nil {
			skipped++
			continue
		}
		events = append(events, ev)
	}

	if scanErr := scanner.Err(); scanErr != nil {
		return events, skipped, fmt.Errorf("scanning event log: %w", scanErr)
	}
	return events, skipped, nil
}

// FindSessionLog locates the newest event log for a session in dir,
// returning ErrSessionNotFound when none exists. A candidate file only
// counts when the segment between the session id and the extension is the
// numeric creation timestamp, so session "s1" never resolves the log of a
// session whose id merely extends it, such as "s1-extra".
func FindSessionLog(dir, sessionID string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("locating log for session %s: %w", sessionID, ErrSessionNotFound)
		}
		return "", fmt.Errorf("locating log for session %s: %w", sessionID, err)
	}

	prefix := "swarm-" + sessionID + "-"
	var matches []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".jsonl") {
			continue
		}
		stamp := strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".jsonl")
		if _, err := strconv.ParseInt(stamp, 10, 64); err != nil {
			continue
		}
		matches = append(matches, filepath.Join(dir, name))
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("locating log for session %s: %w", sessionID, ErrSessionNotFound)
	}
	// File names embed the creation timestamp, so the lexically greatest
	// match is the newest log.
	sort.Strings(matches)
	return matches[len(matches)-1], nil
}

// ReadSessionLog locates and parses the newest event log for a session.
func ReadSessionLog(dir, sessionID string) ([]Event, int, error) {
	path, err := FindSessionLog(dir, sessionID)
	if err != nil {
		return nil, 0, err
	}
	return ReadLog(path)
}

// AppendEvent appends a single event line to an existing session log. It is
// used by components that record advisory events (such as message mirrors)
// without owning a Capture.
func AppendEvent(path string, ev Event) error {
	if ev.EventType == "" {
		ev.EventType = EventTypeUnknown
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	line, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("appending event: marshaling: %w", err)
	}
	line = append(line, '\n')

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) //nolint:gosec // G304: appending to managed session log
	if err != nil {
		return fmt.Errorf("appending event: opening log: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("appending event: %w", err)
	}
	return nil
}
