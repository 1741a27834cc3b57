package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/swarmwatch/internal/observability"
)

var (
	queryAggregations []string
	queryLimit        int
	queryJSON         bool
	queryFilters      filterFlags
)

var queryCmd = &cobra.Command{
	Use:   "query <session-id>",
	Short: "Filter a session's events and compute aggregations",
	Long: `Filter a session's event log and optionally compute aggregations over
the matching events.

Available aggregations: count-by-type, count-by-source, timeline,
error-rate, summary. Each is computed independently over the filtered
sequence.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID := args[0]

		filter, err := queryFilters.build()
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
		limited := matched
		if queryLimit > 0 && len(limited) > queryLimit {
			limited = limited[:queryLimit]
		}

		aggregations, err := computeAggregations(matched, queryAggregations)
		if err != nil {
			return err
		}

		if queryJSON {
			out := map[string]any{
				"events":        limited,
				"count":         len(limited),
				"total_matched": len(matched),
			}
			if len(aggregations) > 0 {
				out["aggregations"] = aggregations
			}
			data, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return fmt.Errorf("formatting query result as JSON: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		}

		writeEventsTable(cmd, limited)
		if len(limited) < len(matched) {
			fmt.Fprintf(cmd.OutOrStdout(), "(%d of %d matching events shown)\n", len(limited), len(matched))
		}
		writeAggregations(cmd, aggregations)
		return nil
	},
}

func computeAggregations(events []observability.Event, kinds []string) (map[string]any, error) {
	if len(kinds) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(kinds))
	for _, kind := range kinds {
		switch kind {
		case "count-by-type":
			out[kind] = observability.CountByType(events)
		case "count-by-source":
			out[kind] = observability.CountBySource(events)
		case "timeline":
			out[kind] = observability.Timeline(events)
		case "error-rate":
			out[kind] = observability.ErrorRate(events)
		case "summary":
			out[kind] = observability.Summarize(events)
		default:
			return nil, fmt.Errorf("unknown aggregation %q: use count-by-type, count-by-source, timeline, error-rate, or summary", kind)
		}
	}
	return out, nil
}

func writeAggregations(cmd *cobra.Command, aggregations map[string]any) {
	if len(aggregations) == 0 {
		return
	}

	kinds := make([]string, 0, len(aggregations))
	for kind := range aggregations {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)

	for _, kind := range kinds {
		fmt.Fprintf(cmd.OutOrStdout(), "\n%s:\n", kind)
		switch v := aggregations[kind].(type) {
		case map[string]int:
			keys := make([]string, 0, len(v))
			for k := range v {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s: %d\n", k, v[k])
			}
		case observability.ErrorStats:
			fmt.Fprintf(cmd.OutOrStdout(), "  total: %d\n  errors: %d\n  rate: %.1f%%\n", v.Total, v.ErrorCount, v.Rate*100)
		case string:
			fmt.Fprint(cmd.OutOrStdout(), indent(v, "  "))
		}
	}
}

func indent(s, prefix string) string {
	var b strings.Builder
	for _, line := range strings.Split(strings.TrimRight(s, "\n"), "\n") {
		if line != "" {
			b.WriteString(prefix)
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

func init() {
	queryCmd.Flags().StringSliceVar(&queryAggregations, "agg", nil, "aggregations to compute (repeatable)")
	queryCmd.Flags().IntVar(&queryLimit, "limit", 0, "maximum number of events to print (0 = all)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
	queryFilters.register(queryCmd)
	rootCmd.AddCommand(queryCmd)
}
