package observability

import (
	"fmt"
	"testing"
	"time"

	"pgregory.net/rapid"
)

// =============================================================================
// Capture preserves arrival order and assigns contiguous sequences
// =============================================================================

// For any sequence of random events fed through a Capture, the log file
// holds every event in arrival order with sequence numbers 1..N.
func TestCaptureOrderAndSequence(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		dir := t.TempDir()
		c := NewCapture("swarm-prop", NewLocalEventSource(), CaptureOptions{
			OutputDir: dir,
			Buffering: true,
			// large enough that no async flush fires mid-run
			MaxBufferSize: 1000,
			FlushInterval: time.Hour,
		})
		if err := c.Start(); err != nil {
			t.Fatalf("starting capture: %v", err)
		}

		numEvents := rapid.IntRange(1, 40).Draw(rt, "numEvents")
		types := []string{"agent.spawn", "task.start", "task.complete", "task.failed"}
		want := make([]string, 0, numEvents)
		for i := 0; i < numEvents; i++ {
			et := rapid.SampledFrom(types).Draw(rt, fmt.Sprintf("eventType_%d", i))
			want = append(want, et)
			c.CaptureEvent(et, "agent-1", map[string]any{"index": i})
		}
		if err := c.Stop(); err != nil {
			t.Fatalf("stopping capture: %v", err)
		}

		events, skipped, err := ReadLog(c.LogPath())
		if err != nil {
			t.Fatalf("reading log: %v", err)
		}
		if skipped != 0 {
			rt.Errorf("skipped = %d, want 0", skipped)
		}
		if len(events) != numEvents {
			rt.Fatalf("read %d events, want %d", len(events), numEvents)
		}
		for i, ev := range events {
			if ev.EventType != want[i] {
				rt.Errorf("event %d type = %q, want %q", i, ev.EventType, want[i])
			}
			if ev.Metadata == nil || ev.Metadata.Sequence != int64(i+1) {
				rt.Errorf("event %d sequence mismatch: %+v", i, ev.Metadata)
			}
		}
	})
}

// =============================================================================
// Filter accounting: seen = captured + dropped
// =============================================================================

// For any mix of events and a filter that rejects a known subset, the
// capture stats always satisfy Seen == Captured + Dropped and the log
// contains exactly the accepted events.
func TestCaptureFilterAccounting(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		dir := t.TempDir()
		c := NewCapture("swarm-prop", NewLocalEventSource(), CaptureOptions{
			OutputDir:     dir,
			Buffering:     true,
			MaxBufferSize: 1000,
			FlushInterval: time.Hour,
			Filter: func(ev Event) bool {
				return ev.EventType != "debug.trace"
			},
		})
		if err := c.Start(); err != nil {
			t.Fatalf("starting capture: %v", err)
		}

		numEvents := rapid.IntRange(1, 40).Draw(rt, "numEvents")
		types := []string{"agent.spawn", "debug.trace", "task.complete"}
		accepted := 0
		for i := 0; i < numEvents; i++ {
			et := rapid.SampledFrom(types).Draw(rt, fmt.Sprintf("eventType_%d", i))
			if et != "debug.trace" {
				accepted++
			}
			c.CaptureEvent(et, "agent-1", nil)
		}
		if err := c.Stop(); err != nil {
			t.Fatalf("stopping capture: %v", err)
		}

		stats := c.Stats()
		if stats.Seen != int64(numEvents) {
			rt.Errorf("Seen = %d, want %d", stats.Seen, numEvents)
		}
		if stats.Captured != int64(accepted) {
			rt.Errorf("Captured = %d, want %d", stats.Captured, accepted)
		}
		if stats.Seen != stats.Captured+stats.Dropped {
			rt.Errorf("Seen %d != Captured %d + Dropped %d", stats.Seen, stats.Captured, stats.Dropped)
		}

		events, _, err := ReadLog(c.LogPath())
		if err != nil {
			t.Fatalf("reading log: %v", err)
		}
		if len(events) != accepted {
			rt.Errorf("log holds %d events, want %d", len(events), accepted)
		}
		for i, ev := range events {
			if ev.EventType == "debug.trace" {
				rt.Errorf("event %d: filtered type leaked into log", i)
			}
		}
	})
}
