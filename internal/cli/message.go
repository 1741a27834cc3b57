package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/swarmwatch/internal/observability"
	"github.com/valter-silva-au/swarmwatch/internal/storage"
	"github.com/valter-silva-au/swarmwatch/pkg/models"
)

var (
	messageType     string
	messagePriority string
)

var messageCmd = &cobra.Command{
	Use:   "message <session-id> <target> <content>",
	Short: "Send a message to a participant or the whole swarm",
	Long: `Send a message to one participant, the coordinator, or the whole swarm.

The target is a participant id, or one of the keywords "all", "broadcast",
or "coordinator". Broadcasts are stored with public visibility; everything
else stays team-scoped. Each sent message is mirrored into the session's
event log as a message:sent event.`,
	Args: cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID, target := args[0], args[1]
		content := strings.Join(args[2:], " ")

		if Memory == nil {
			return fmt.Errorf("memory store not initialized")
		}

		eventsDir, err := resolveEventsDir(sessionID)
		if err != nil {
			return err
		}

		logPath, err := observability.FindSessionLog(eventsDir, sessionID)
		if err != nil {
			if errors.Is(err, observability.ErrSessionNotFound) {
				return fmt.Errorf("session %s not found: no event log in %s (has the session started?)", sessionID, eventsDir)
			}
			return fmt.Errorf("locating session %s: %w", sessionID, err)
		}

		recorder := func(eventType, source string, payload any) error {
			return observability.AppendEvent(logPath, observability.Event{
				EventType: eventType,
				SessionID: sessionID,
				Source:    source,
				Payload:   payload,
			})
		}

		store := storage.NewMessageStore(sessionID, eventsDir, Memory, recorder)
		ack, err := store.Send(models.Message{
			Target:   target,
			Content:  content,
			Type:     messageType,
			Priority: models.MessagePriority(messagePriority),
		})
		if err != nil {
			return fmt.Errorf("sending message: %w", err)
		}

		if ack.Broadcast {
			fmt.Fprintf(cmd.OutOrStdout(), "Broadcast delivered to session %s (%s scope)\n", sessionID, ack.Scope)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Message delivered to %s in session %s (%s scope)\n", ack.Target, sessionID, ack.Scope)
		}
		if ack.Warning != "" {
			fmt.Fprintf(os.Stderr, "warning: %s\n", ack.Warning)
		}
		return nil
	},
}

func init() {
	messageCmd.Flags().StringVar(&messageType, "type", "info", "message type")
	messageCmd.Flags().StringVar(&messagePriority, "priority", "normal", "priority: low, normal, high, or critical")
	rootCmd.AddCommand(messageCmd)
}
