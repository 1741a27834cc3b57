package observability

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// DefaultTailCount is the number of recent events returned when a caller
// does not specify a count.
const DefaultTailCount = 50

// Filter is an immutable descriptor of query criteria. All supplied
// criteria combine with logical AND; an absent criterion imposes no
// constraint.
type Filter struct {
	EventTypes []string
	Sources    []string
	From       *time.Time
	To         *time.Time
	Since      *time.Time
	Search     string
}

// IsZero reports whether the filter imposes no constraints.
func (f Filter) IsZero() bool {
	return len(f.EventTypes) == 0 && len(f.Sources) == 0 &&
		f.From == nil && f.To == nil && f.Since == nil && f.Search == ""
}

// Apply returns the subsequence of events matching every supplied criterion,
// in original order.
func (f Filter) Apply(events []Event) []Event {
	if f.IsZero() {
		return events
	}
	var out []Event
	for _, ev := range events {
		if f.Matches(ev) {
			out = append(out, ev)
		}
	}
	return out
}

// Matches reports whether a single event satisfies the filter.
func (f Filter) Matches(ev Event) bool {
	if len(f.EventTypes) > 0 && !containsString(f.EventTypes, ev.EventType) {
		return false
	}
	if len(f.Sources) > 0 && !containsString(f.Sources, ev.Source) {
		return false
	}
	if f.From != nil && ev.Timestamp.Before(*f.From) {
		return false
	}
	if f.To != nil && ev.Timestamp.After(*f.To) {
		return false
	}
	if f.Since != nil && ev.Timestamp.Before(*f.Since) {
		return false
	}
	if f.Search != "" {
		data, err := json.Marshal(ev)
		if err != nil {
			return false
		}
		if !strings.Contains(strings.ToLower(string(data)), strings.ToLower(f.Search)) {
			return false
		}
	}
	return true
}

// ParseSince parses a human-friendly duration string like "7d", "24h", or
// "30m" and returns the corresponding time in the past, for use as a
// Filter.Since cutoff.
func ParseSince(s string) (time.Time, error) {
	now := time.Now().UTC()
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return time.Time{}, fmt.Errorf("invalid duration %q", s)
	}

	suffix := s[len(s)-1]
	num := 0
	if _, err := fmt.Sscanf(s[:len(s)-1], "%d", &num); err != nil {
		return time.Time{}, fmt.Errorf("invalid duration %q: %w", s, err)
	}

	switch suffix {
	case 'd':
		return now.AddDate(0, 0, -num), nil
	case 'h':
		return now.Add(-time.Duration(num) * time.Hour), nil
	case 'm':
		return now.Add(-time.Duration(num) * time.Minute), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported duration suffix %q (use d, h, or m)", string(suffix))
	}
}

func containsString(set []string, s string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

// Tail returns the n most recent events in original temporal order. A
// non-positive n falls back to DefaultTailCount.
func Tail(events []Event, n int) []Event {
	if n <= 0 {
		n = DefaultTailCount
	}
	if len(events) <= n {
		return events
	}
	return events[len(events)-n:]
}

// CountByType returns a mapping of event type to occurrence count.
func CountByType(events []Event) map[string]int {
	counts := make(map[string]int)
	for _, ev := range events {
		counts[ev.EventType]++
	}
	return counts
}

// CountBySource returns a mapping of source to occurrence count. Events
// without a source count under "unknown".
func CountBySource(events []Event) map[string]int {
	counts := make(map[string]int)
	for _, ev := range events {
		source := ev.Source
		if source == "" {
			source = EventTypeUnknown
		}
		counts[source]++
	}
	return counts
}

// Timeline buckets events into hour-truncated UTC timestamps.
func Timeline(events []Event) map[string]int {
	buckets := make(map[string]int)
	for _, ev := range events {
		bucket := ev.Timestamp.UTC().Truncate(time.Hour).Format("2006-01-02T15:00")
		buckets[bucket]++
	}
	return buckets
}

// ErrorStats summarizes error-class events in a sequence.
type ErrorStats struct {
	Total      int     `json:"total"`
	ErrorCount int     `json:"errorCount"`
	Rate       float64 `json:"rate"`
}

// ErrorRate counts error-class event types and computes their ratio. An
// empty sequence yields a zero rate, never a division fault.
func ErrorRate(events []Event) ErrorStats {
	stats := ErrorStats{Total: len(events)}
	for _, ev := range events {
		if IsErrorClass(ev.EventType) {
			stats.ErrorCount++
		}
	}
	if stats.Total > 0 {
		stats.Rate = float64(stats.ErrorCount) / float64(stats.Total)
	}
	return stats
}

// rankedCount is a name/count pair ordered by descending count, ties broken
// lexically, so reports are deterministic.
type rankedCount struct {
	name  string
	count int
}

func rank(counts map[string]int) []rankedCount {
	ranked := make([]rankedCount, 0, len(counts))
	for name, count := range counts {
		ranked = append(ranked, rankedCount{name: name, count: count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].name < ranked[j].name
	})
	return ranked
}

// Summarize produces a deterministic ordered text report over an event
// sequence: total count, time range, types and sources by descending
// frequency, and an error warning when error-class events exist. The same
// input always yields the same output.
func Summarize(events []Event) string {
	var b strings.Builder

	b.WriteString("Swarm Event Summary\n")
	b.WriteString("===================\n")
	fmt.Fprintf(&b, "Total Events: %d\n", len(events))

	if len(events) == 0 {
		return b.String()
	}

	earliest, latest := events[0].Timestamp, events[0].Timestamp
	for _, ev := range events[1:] {
		if ev.Timestamp.Before(earliest) {
			earliest = ev.Timestamp
		}
		if ev.Timestamp.After(latest) {
			latest = ev.Timestamp
		}
	}
	fmt.Fprintf(&b, "Time Range: %s - %s\n", earliest.UTC().Format(time.RFC3339), latest.UTC().Format(time.RFC3339))

	b.WriteString("\nEvent Types:\n")
	for _, rc := range rank(CountByType(events)) {
		fmt.Fprintf(&b, "  %s: %d\n", rc.name, rc.count)
	}

	b.WriteString("\nSources:\n")
	for _, rc := range rank(CountBySource(events)) {
		fmt.Fprintf(&b, "  %s: %d\n", rc.name, rc.count)
	}

	if stats := ErrorRate(events); stats.ErrorCount > 0 {
		fmt.Fprintf(&b, "\nWarning: %d error events (%.1f%% error rate)\n", stats.ErrorCount, stats.Rate*100)
	}

	return b.String()
}
