package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
	"github.com/valter-silva-au/swarmwatch/internal/observability"
)

var (
	monitorTail    int
	monitorFormat  string
	monitorFilters filterFlags
)

var monitorCmd = &cobra.Command{
	Use:   "monitor <session-id>",
	Short: "Show the most recent events for a session",
	Long: `Show the most recent events captured for a swarm session, newest last.

Events can be filtered by type, source, time range, and free-text search.
The text format renders a table; summary appends a deterministic report of
event types, sources, and error rate.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID := args[0]

		filter, err := monitorFilters.build()
		if err != nil {
			return err
		}

		eventsDir, err := resolveEventsDir(sessionID)
		if err != nil {
			return err
		}

		events, skipped, err := observability.ReadSessionLog(eventsDir, sessionID)
		if err != nil {
			if errors.Is(err, observability.ErrSessionNotFound) {
				return fmt.Errorf("session %s not found: no event log in %s (has the session started?)", sessionID, eventsDir)
			}
			return fmt.Errorf("reading session %s: %w", sessionID, err)
		}
		if skipped > 0 {
			fmt.Fprintf(os.Stderr, "warning: skipped %d malformed log lines\n", skipped)
		}

		matched := filter.Apply(events)
		recent := observability.Tail(matched, monitorTail)

		switch strings.ToLower(monitorFormat) {
		case "json":
			return writeEventsJSON(cmd.OutOrStdout(), recent)
		case "text":
			writeEventsTable(cmd, recent)
			return nil
		case "summary":
			writeEventsTable(cmd, recent)
			fmt.Fprintln(cmd.OutOrStdout())
			fmt.Fprint(cmd.OutOrStdout(), observability.Summarize(matched))
			return nil
		default:
			return fmt.Errorf("unsupported format %q: use json, text, or summary", monitorFormat)
		}
	},
}

func writeEventsJSON(w io.Writer, events []observability.Event) error {
	data, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return fmt.Errorf("formatting events as JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func writeEventsTable(cmd *cobra.Command, events []observability.Event) {
	if len(events) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No matching events.")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.AppendHeader(table.Row{"TIME", "SEQ", "TYPE", "SOURCE", "PAYLOAD"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "PAYLOAD", WidthMax: 48, WidthMaxEnforcer: text.Trim},
	})
	for _, ev := range events {
		var seq int64
		if ev.Metadata != nil {
			seq = ev.Metadata.Sequence
		}
		t.AppendRow(table.Row{
			ev.Timestamp.UTC().Format(time.RFC3339),
			seq,
			ev.EventType,
			ev.Source,
			payloadCell(ev.Payload),
		})
	}
	t.Render()
}

func payloadCell(payload any) string {
	if payload == nil {
		return ""
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf("%v", payload)
	}
	return string(data)
}

func init() {
	monitorCmd.Flags().IntVar(&monitorTail, "tail", observability.DefaultTailCount, "number of most recent events to show")
	monitorCmd.Flags().StringVar(&monitorFormat, "format", "text", "output format: json, text, or summary")
	monitorFilters.register(monitorCmd)
	rootCmd.AddCommand(monitorCmd)
}
