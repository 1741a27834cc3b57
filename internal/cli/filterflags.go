package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/swarmwatch/internal/observability"
)

// filterFlags collects the shared event filter flags used by the monitor,
// query, and watch commands.
type filterFlags struct {
	types   []string
	sources []string
	from    string
	to      string
	since   string
	search  string
}

func (ff *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&ff.types, "type", nil, "keep only events with these types (repeatable)")
	cmd.Flags().StringSliceVar(&ff.sources, "source", nil, "keep only events from these sources (repeatable)")
	cmd.Flags().StringVar(&ff.from, "from", "", "inclusive range start (RFC 3339)")
	cmd.Flags().StringVar(&ff.to, "to", "", "inclusive range end (RFC 3339)")
	cmd.Flags().StringVar(&ff.since, "since", "", "relative cutoff, e.g. 30m, 24h, 7d")
	cmd.Flags().StringVar(&ff.search, "search", "", "case-insensitive substring match")
}

func (ff *filterFlags) build() (observability.Filter, error) {
	filter := observability.Filter{
		EventTypes: ff.types,
		Sources:    ff.sources,
		Search:     ff.search,
	}

	if ff.from != "" {
		t, err := time.Parse(time.RFC3339, ff.from)
		if err != nil {
			return filter, fmt.Errorf("parsing --from: %w", err)
		}
		filter.From = &t
	}
	if ff.to != "" {
		t, err := time.Parse(time.RFC3339, ff.to)
		if err != nil {
			return filter, fmt.Errorf("parsing --to: %w", err)
		}
		filter.To = &t
	}
	if ff.since != "" {
		t, err := observability.ParseSince(ff.since)
		if err != nil {
			return filter, fmt.Errorf("parsing --since: %w", err)
		}
		filter.Since = &t
	}

	return filter, nil
}
