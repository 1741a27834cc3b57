package observability

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"pgregory.net/rapid"
)

func drawEvents(rt *rapid.T) []Event {
	numEvents := rapid.IntRange(0, 50).Draw(rt, "numEvents")
	types := []string{"agent.spawn", "task.start", "task.complete", "task.failed", "error"}
	sources := []string{"agent-1", "agent-2", "coordinator", ""}
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	events := make([]Event, 0, numEvents)
	for i := 0; i < numEvents; i++ {
		minutes := rapid.IntRange(0, 600).Draw(rt, fmt.Sprintf("minutes_%d", i))
		events = append(events, Event{
			Timestamp: base.Add(time.Duration(minutes) * time.Minute),
			EventType: rapid.SampledFrom(types).Draw(rt, fmt.Sprintf("type_%d", i)),
			SessionID: "swarm-prop",
			Source:    rapid.SampledFrom(sources).Draw(rt, fmt.Sprintf("source_%d", i)),
			Payload:   map[string]any{"index": i},
		})
	}
	return events
}

// =============================================================================
// Type counts partition the event list
// =============================================================================

// For any event list, the per-type counts sum to the total number of events.
func TestCountByTypePartitions(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		events := drawEvents(rt)
		counts := CountByType(events)

		sum := 0
		for _, n := range counts {
			sum += n
		}
		if sum != len(events) {
			rt.Errorf("counts sum to %d, want %d", sum, len(events))
		}
		for name, n := range counts {
			if n <= 0 {
				rt.Errorf("type %q has non-positive count %d", name, n)
			}
		}
	})
}

// =============================================================================
// Tail is an order-preserving suffix
// =============================================================================

// For any event list and tail size, Tail returns the last min(n, len) events
// in their original order.
func TestTailIsSuffix(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		events := drawEvents(rt)
		n := rapid.IntRange(1, 60).Draw(rt, "tail")

		got := Tail(events, n)

		wantLen := n
		if len(events) < n {
			wantLen = len(events)
		}
		if len(got) != wantLen {
			rt.Fatalf("Tail returned %d events, want %d", len(got), wantLen)
		}
		offset := len(events) - wantLen
		for i, ev := range got {
			if ev.Payload.(map[string]any)["index"] != events[offset+i].Payload.(map[string]any)["index"] {
				rt.Errorf("Tail element %d is not events[%d]", i, offset+i)
			}
		}
	})
}

// =============================================================================
// Filtering yields an order-preserving matching subset
// =============================================================================

// For any event list and type filter, every returned event matches the
// filter, every matching event is returned, and order is preserved.
func TestFilterSubset(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		events := drawEvents(rt)
		wanted := rapid.SampledFrom([]string{"agent.spawn", "task.complete", "error"}).Draw(rt, "wantedType")
		f := Filter{EventTypes: []string{wanted}}

		got := f.Apply(events)

		matching := 0
		for _, ev := range events {
			if ev.EventType == wanted {
				matching++
			}
		}
		if len(got) != matching {
			rt.Fatalf("filter returned %d events, want %d", len(got), matching)
		}
		lastIndex := -1
		for i, ev := range got {
			if ev.EventType != wanted {
				rt.Errorf("result %d has type %q, want %q", i, ev.EventType, wanted)
			}
			idx := ev.Payload.(map[string]any)["index"].(int)
			if idx <= lastIndex {
				rt.Errorf("result order broken at %d: index %d after %d", i, idx, lastIndex)
			}
			lastIndex = idx
		}
	})
}

// =============================================================================
// Error rate is consistent with the event mix
// =============================================================================

// For any event list, ErrorRate reports Total == len(events), ErrorCount
// equal to the number of error-class events, and Rate == ErrorCount/Total.
func TestErrorRateConsistent(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		events := drawEvents(rt)
		stats := ErrorRate(events)

		wantErrors := 0
		for _, ev := range events {
			if IsErrorClass(ev.EventType) {
				wantErrors++
			}
		}
		if stats.Total != len(events) {
			rt.Errorf("Total = %d, want %d", stats.Total, len(events))
		}
		if stats.ErrorCount != wantErrors {
			rt.Errorf("ErrorCount = %d, want %d", stats.ErrorCount, wantErrors)
		}
		if len(events) == 0 {
			if stats.Rate != 0 {
				rt.Errorf("Rate = %v on empty input, want 0", stats.Rate)
			}
		} else if want := float64(wantErrors) / float64(len(events)); stats.Rate != want {
			rt.Errorf("Rate = %v, want %v", stats.Rate, want)
		}
	})
}

// =============================================================================
// Summaries are deterministic and report the total
// =============================================================================

// For any event list, repeated Summarize calls produce identical output
// containing the exact event total.
func TestSummarizeStable(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		events := drawEvents(rt)

		first := Summarize(events)
		for i := 0; i < 3; i++ {
			if again := Summarize(events); again != first {
				rt.Fatalf("summary changed between calls:\n%s\n---\n%s", first, again)
			}
		}
		if !strings.Contains(first, fmt.Sprintf("Total Events: %d", len(events))) {
			rt.Errorf("summary missing total:\n%s", first)
		}
	})
}
