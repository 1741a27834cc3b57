// Package mcp provides an MCP (Model Context Protocol) server that exposes
// swarm observability as MCP tools: monitoring recent events, querying and
// aggregating the event log, and sending messages to participants.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/valter-silva-au/swarmwatch/internal/observability"
	"github.com/valter-silva-au/swarmwatch/internal/storage"
	"github.com/valter-silva-au/swarmwatch/pkg/models"
	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Server wraps the observability services and exposes them as MCP tools.
type Server struct {
	server    *gomcp.Server
	eventsDir string
	memory    storage.MemoryStore
}

// NewServer creates a new MCP server reading session logs from eventsDir
// and persisting messages through the given memory store.
func NewServer(eventsDir string, memory storage.MemoryStore, version string) *Server {
	if version == "" {
		version = "dev"
	}

	s := &Server{
		eventsDir: eventsDir,
		memory:    memory,
	}

	s.server = gomcp.NewServer(
		&gomcp.Implementation{Name: "swarmwatch", Version: version},
		nil,
	)

	s.registerTools()

	return s
}

// Run starts the MCP server on stdio, blocking until the client disconnects
// or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &gomcp.StdioTransport{})
}

// MCPServer returns the underlying mcp.Server for testing purposes.
func (s *Server) MCPServer() *gomcp.Server {
	return s.server
}

// --- Tool input/output types ---

type monitorInput struct {
	SessionID  string   `json:"session_id" jsonschema:"required,the swarm session identifier"`
	Tail       int      `json:"tail,omitempty" jsonschema:"number of most recent events to return (default 50)"`
	Summary    bool     `json:"summary,omitempty" jsonschema:"include a deterministic text summary of the matching events"`
	EventTypes []string `json:"event_types,omitempty" jsonschema:"keep only events with one of these types"`
	Sources    []string `json:"sources,omitempty" jsonschema:"keep only events from one of these sources"`
	From       string   `json:"from,omitempty" jsonschema:"inclusive range start as RFC 3339 timestamp"`
	To         string   `json:"to,omitempty" jsonschema:"inclusive range end as RFC 3339 timestamp"`
	Since      string   `json:"since,omitempty" jsonschema:"relative cutoff (e.g. 30m, 24h, 7d)"`
	Search     string   `json:"search,omitempty" jsonschema:"case-insensitive substring match against the serialized event"`
}

type eventOutput struct {
	Timestamp string   `json:"timestamp"`
	EventType string   `json:"event_type"`
	SessionID string   `json:"session_id"`
	Source    string   `json:"source,omitempty"`
	Payload   any      `json:"payload,omitempty"`
	Sequence  int64    `json:"sequence,omitempty"`
	Tags      []string `json:"tags,omitempty"`
}

type monitorOutput struct {
	Events  []eventOutput `json:"events"`
	Count   int           `json:"count"`
	Summary string        `json:"summary,omitempty"`
}

type sendMessageInput struct {
	SessionID string `json:"session_id" jsonschema:"required,the swarm session identifier"`
	Target    string `json:"target" jsonschema:"required,a participant id, or the keyword all/broadcast/coordinator"`
	Content   string `json:"content" jsonschema:"required,the message body"`
	Type      string `json:"type,omitempty" jsonschema:"message type (default info)"`
	Priority  string `json:"priority,omitempty" jsonschema:"low, normal, high, or critical (default normal)"`
}

type sendMessageOutput struct {
	Delivered bool   `json:"delivered"`
	Target    string `json:"target"`
	Broadcast bool   `json:"broadcast"`
	Scope     string `json:"scope"`
	Warning   string `json:"warning,omitempty"`
}

type queryEventsInput struct {
	SessionID    string   `json:"session_id" jsonschema:"required,the swarm session identifier"`
	Aggregations []string `json:"aggregations,omitempty" jsonschema:"any of count-by-type, count-by-source, timeline, error-rate, summary"`
	Limit        int      `json:"limit,omitempty" jsonschema:"maximum number of events to return (0 returns all matching)"`
	EventTypes   []string `json:"event_types,omitempty" jsonschema:"keep only events with one of these types"`
	Sources      []string `json:"sources,omitempty" jsonschema:"keep only events from one of these sources"`
	From         string   `json:"from,omitempty" jsonschema:"inclusive range start as RFC 3339 timestamp"`
	To           string   `json:"to,omitempty" jsonschema:"inclusive range end as RFC 3339 timestamp"`
	Since        string   `json:"since,omitempty" jsonschema:"relative cutoff (e.g. 30m, 24h, 7d)"`
	Search       string   `json:"search,omitempty" jsonschema:"case-insensitive substring match against the serialized event"`
}

type queryEventsOutput struct {
	Events       []eventOutput  `json:"events"`
	Count        int            `json:"count"`
	TotalMatched int            `json:"total_matched"`
	SkippedLines int            `json:"skipped_lines,omitempty"`
	Aggregations map[string]any `json:"aggregations,omitempty"`
}

// --- Tool registration ---

func (s *Server) registerTools() {
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "monitor_session",
		Description: "Return the most recent events for a swarm session, optionally filtered, with an optional text summary.",
	}, s.handleMonitorSession)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "send_message",
		Description: "Send a message to a participant, the coordinator, or the whole swarm. Returns a delivery acknowledgment.",
	}, s.handleSendMessage)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "query_events",
		Description: "Filter a session's event log and compute aggregations: count-by-type, count-by-source, timeline, error-rate, summary.",
	}, s.handleQueryEvents)
}

// --- Tool handlers ---

func (s *Server) handleMonitorSession(_ context.Context, _ *gomcp.CallToolRequest, input monitorInput) (*gomcp.CallToolResult, monitorOutput, error) {
	if input.SessionID == "" {
		return errorResult("session_id is required"), monitorOutput{}, nil
	}

	filter, err := buildFilter(input.EventTypes, input.Sources, input.From, input.To, input.Since, input.Search)
	if err != nil {
		return errorResult(err.Error()), monitorOutput{}, nil
	}

	events, _, err := observability.ReadSessionLog(s.eventsDir, input.SessionID)
	if err != nil {
		return sessionErrorResult(input.SessionID, err), monitorOutput{}, nil
	}

	matched := filter.Apply(events)
	recent := observability.Tail(matched, input.Tail)

	out := monitorOutput{
		Events: toEventOutputs(recent),
		Count:  len(recent),
	}
	if input.Summary {
		out.Summary = observability.Summarize(matched)
	}
	return nil, out, nil
}

func (s *Server) handleSendMessage(_ context.Context, _ *gomcp.CallToolRequest, input sendMessageInput) (*gomcp.CallToolResult, sendMessageOutput, error) {
	if input.SessionID == "" {
		return errorResult("session_id is required"), sendMessageOutput{}, nil
	}
	if input.Target == "" {
		return errorResult("target is required"), sendMessageOutput{}, nil
	}
	if input.Content == "" {
		return errorResult("content is required"), sendMessageOutput{}, nil
	}

	logPath, err := observability.FindSessionLog(s.eventsDir, input.SessionID)
	if err != nil {
		return sessionErrorResult(input.SessionID, err), sendMessageOutput{}, nil
	}

	recorder := func(eventType, source string, payload any) error {
		return observability.AppendEvent(logPath, observability.Event{
			EventType: eventType,
			SessionID: input.SessionID,
			Source:    source,
			Payload:   payload,
		})
	}

	store := storage.NewMessageStore(input.SessionID, s.eventsDir, s.memory, recorder)
	ack, err := store.Send(models.Message{
		Target:   input.Target,
		Content:  input.Content,
		Type:     input.Type,
		Priority: models.MessagePriority(input.Priority),
	})
	if err != nil {
		return errorResult(fmt.Sprintf("sending message: %s", err)), sendMessageOutput{}, nil
	}

	out := sendMessageOutput{
		Delivered: ack.Delivered,
		Target:    ack.Target,
		Broadcast: ack.Broadcast,
		Scope:     string(ack.Scope),
		Warning:   ack.Warning,
	}
	return nil, out, nil
}

func (s *Server) handleQueryEvents(_ context.Context, _ *gomcp.CallToolRequest, input queryEventsInput) (*gomcp.CallToolResult, queryEventsOutput, error) {
	if input.SessionID == "" {
		return errorResult("session_id is required"), queryEventsOutput{}, nil
	}

	filter, err := buildFilter(input.EventTypes, input.Sources, input.From, input.To, input.Since, input.Search)
	if err != nil {
		return errorResult(err.Error()), queryEventsOutput{}, nil
	}

	events, skipped, err := observability.ReadSessionLog(s.eventsDir, input.SessionID)
	if err != nil {
		return sessionErrorResult(input.SessionID, err), queryEventsOutput{}, nil
	}

	matched := filter.Apply(events)

	limited := matched
	if input.Limit > 0 && len(limited) > input.Limit {
		limited = limited[:input.Limit]
	}

	out := queryEventsOutput{
		Events:       toEventOutputs(limited),
		Count:        len(limited),
		TotalMatched: len(matched),
		SkippedLines: skipped,
	}

	if len(input.Aggregations) > 0 {
		out.Aggregations = make(map[string]any, len(input.Aggregations))
		for _, kind := range input.Aggregations {
			switch kind {
			case "count-by-type":
				out.Aggregations[kind] = observability.CountByType(matched)
			case "count-by-source":
				out.Aggregations[kind] = observability.CountBySource(matched)
			case "timeline":
				out.Aggregations[kind] = observability.Timeline(matched)
			case "error-rate":
				out.Aggregations[kind] = observability.ErrorRate(matched)
			case "summary":
				out.Aggregations[kind] = observability.Summarize(matched)
			default:
				return errorResult(fmt.Sprintf("unknown aggregation %q: use count-by-type, count-by-source, timeline, error-rate, or summary", kind)), queryEventsOutput{}, nil
			}
		}
	}

	return nil, out, nil
}

// --- Helpers ---

func buildFilter(eventTypes, sources []string, from, to, since, search string) (observability.Filter, error) {
	filter := observability.Filter{
		EventTypes: eventTypes,
		Sources:    sources,
		Search:     search,
	}

	if from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			return filter, fmt.Errorf("parsing from timestamp: %s", err)
		}
		filter.From = &t
	}
	if to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			return filter, fmt.Errorf("parsing to timestamp: %s", err)
		}
		filter.To = &t
	}
	if since != "" {
		t, err := observability.ParseSince(since)
		if err != nil {
			return filter, fmt.Errorf("parsing since duration: %s", err)
		}
		filter.Since = &t
	}

	return filter, nil
}

func toEventOutputs(events []observability.Event) []eventOutput {
	out := make([]eventOutput, len(events))
	for i, ev := range events {
		out[i] = eventOutput{
			Timestamp: ev.Timestamp.Format(time.RFC3339),
			EventType: ev.EventType,
			SessionID: ev.SessionID,
			Source:    ev.Source,
			Payload:   ev.Payload,
		}
		if ev.Metadata != nil {
			out[i].Sequence = ev.Metadata.Sequence
			out[i].Tags = ev.Metadata.Tags
		}
	}
	return out
}

func sessionErrorResult(sessionID string, err error) *gomcp.CallToolResult {
	if errors.Is(err, observability.ErrSessionNotFound) {
		return errorResult(fmt.Sprintf("session %s not found: no event log exists yet. Check the session id, or wait for capturing to start.", sessionID))
	}
	return errorResult(fmt.Sprintf("reading session %s: %s", sessionID, err))
}

func errorResult(msg string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: msg}},
		IsError: true,
	}
}
