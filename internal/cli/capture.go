package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/swarmwatch/internal/observability"
)

// captureInputLine is one stdin line fed to the capture buffer.
type captureInputLine struct {
	Type    string `json:"type"`
	Source  string `json:"source"`
	Payload any    `json:"payload"`
}

var captureCmd = &cobra.Command{
	Use:   "capture <session-id>",
	Short: "Capture events for a session from stdin",
	Long: `Read event notifications from stdin, one JSON object per line
({"type": ..., "source": ..., "payload": ...}), and append them to the
session's event log through the capture buffer.

Capture stops at end of input, flushing any buffered events before the
log file is closed. Malformed input lines are skipped with a warning.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID := args[0]

		if ConfigMgr == nil {
			return fmt.Errorf("configuration manager not initialized")
		}
		cfg, err := ConfigMgr.SessionConfig(sessionID)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if eventsDirFlag != "" {
			cfg.EventsDir = eventsDirFlag
		}

		capture := observability.NewCapture(sessionID, nil, observability.CaptureOptions{
			OutputDir:     cfg.EventsDir,
			Buffering:     cfg.Buffering,
			FlushInterval: cfg.FlushInterval,
			MaxBufferSize: cfg.BufferSize,
		})
		if err := capture.Start(); err != nil {
			return err
		}

		skipped := 0
		scanner := bufio.NewScanner(cmd.InOrStdin())
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			var in captureInputLine
			if err := json.Unmarshal(line, &in); err != nil {
				skipped++
				continue
			}
			capture.CaptureEvent(in.Type, in.Source, in.Payload)
		}
		scanErr := scanner.Err()

		if err := capture.Stop(); err != nil {
			return err
		}
		if scanErr != nil {
			return fmt.Errorf("reading events from stdin: %w", scanErr)
		}
		if skipped > 0 {
			fmt.Fprintf(os.Stderr, "warning: skipped %d malformed input lines\n", skipped)
		}

		stats := capture.Stats()
		fmt.Fprintf(cmd.OutOrStdout(), "Captured %d events (%d seen, %d dropped) to %s\n",
			stats.Flushed, stats.Seen, stats.Dropped, capture.LogPath())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(captureCmd)
}
