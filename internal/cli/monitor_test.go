package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/valter-silva-au/swarmwatch/internal/observability"
)

// seedLog writes a short session lifecycle into dir and returns the log path.
func seedLog(t *testing.T, dir, sessionID string) string {
	t.Helper()

	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	path := filepath.Join(dir, observability.LogFileName(sessionID, created))
	events := []observability.Event{
		{Timestamp: created, EventType: "swarm.start", SessionID: sessionID, Source: "coordinator"},
		{Timestamp: created.Add(time.Minute), EventType: "agent.spawn", SessionID: sessionID, Source: "coordinator"},
		{Timestamp: created.Add(2 * time.Minute), EventType: "task.complete", SessionID: sessionID, Source: "agent-1"},
		{Timestamp: created.Add(3 * time.Minute), EventType: "swarm.complete", SessionID: sessionID, Source: "coordinator"},
	}
	for _, ev := range events {
		if err := observability.AppendEvent(path, ev); err != nil {
			t.Fatalf("seeding event log: %v", err)
		}
	}
	return path
}

func TestMonitorCommand_Registration(t *testing.T) {
	found := false
	for _, cmd := range rootCmd.Commands() {
		if cmd.Name() == "monitor" {
			found = true
			break
		}
	}
	if !found {
		t.Error("expected 'monitor' command to be registered")
	}
}

func TestMonitorCommand_JSONOutput(t *testing.T) {
	origDir := eventsDirFlag
	origTail := monitorTail
	origFormat := monitorFormat
	origFilters := monitorFilters
	defer func() {
		eventsDirFlag = origDir
		monitorTail = origTail
		monitorFormat = origFormat
		monitorFilters = origFilters
	}()

	dir := t.TempDir()
	seedLog(t, dir, "sess-1")
	eventsDirFlag = dir
	monitorTail = 2
	monitorFormat = "json"
	monitorFilters = filterFlags{}

	var buf bytes.Buffer
	monitorCmd.SetOut(&buf)
	defer monitorCmd.SetOut(nil)

	if err := monitorCmd.RunE(monitorCmd, []string{"sess-1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var events []observability.Event
	if err := json.Unmarshal(buf.Bytes(), &events); err != nil {
		t.Fatalf("parsing JSON output: %v (output: %s)", err, buf.String())
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].EventType != "task.complete" || events[1].EventType != "swarm.complete" {
		t.Errorf("unexpected tail: %s, %s", events[0].EventType, events[1].EventType)
	}
}

func TestMonitorCommand_SummaryFormat(t *testing.T) {
	origDir := eventsDirFlag
	origTail := monitorTail
	origFormat := monitorFormat
	origFilters := monitorFilters
	defer func() {
		eventsDirFlag = origDir
		monitorTail = origTail
		monitorFormat = origFormat
		monitorFilters = origFilters
	}()

	dir := t.TempDir()
	seedLog(t, dir, "sess-1")
	eventsDirFlag = dir
	monitorTail = 50
	monitorFormat = "summary"
	monitorFilters = filterFlags{}

	var buf bytes.Buffer
	monitorCmd.SetOut(&buf)
	defer monitorCmd.SetOut(nil)

	if err := monitorCmd.RunE(monitorCmd, []string{"sess-1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "Total Events: 4") {
		t.Errorf("summary output missing total:\n%s", buf.String())
	}
}

func TestMonitorCommand_SessionNotFound(t *testing.T) {
	origDir := eventsDirFlag
	origFormat := monitorFormat
	origFilters := monitorFilters
	defer func() {
		eventsDirFlag = origDir
		monitorFormat = origFormat
		monitorFilters = origFilters
	}()

	eventsDirFlag = t.TempDir()
	monitorFormat = "text"
	monitorFilters = filterFlags{}

	err := monitorCmd.RunE(monitorCmd, []string{"ghost"})
	if err == nil {
		t.Fatal("expected error for unknown session")
	}
	if !strings.Contains(err.Error(), "session ghost not found") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestMonitorCommand_UnsupportedFormat(t *testing.T) {
	origDir := eventsDirFlag
	origFormat := monitorFormat
	origFilters := monitorFilters
	defer func() {
		eventsDirFlag = origDir
		monitorFormat = origFormat
		monitorFilters = origFilters
	}()

	dir := t.TempDir()
	seedLog(t, dir, "sess-1")
	eventsDirFlag = dir
	monitorFormat = "xml"
	monitorFilters = filterFlags{}

	err := monitorCmd.RunE(monitorCmd, []string{"sess-1"})
	if err == nil {
		t.Fatal("expected error for unsupported format")
	}
	if !strings.Contains(err.Error(), "unsupported format") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestPayloadCell(t *testing.T) {
	if got := payloadCell(nil); got != "" {
		t.Errorf("payloadCell(nil) = %q, want empty", got)
	}
	if got := payloadCell(map[string]any{"a": 1}); got != `{"a":1}` {
		t.Errorf("payloadCell = %q", got)
	}
}
