package cli

import (
	"fmt"

	"github.com/valter-silva-au/swarmwatch/internal/core"
	"github.com/valter-silva-au/swarmwatch/internal/storage"
)

// Service instances, set during app initialization in app.go.
var (
	BasePath  string
	ConfigMgr core.ConfigManager
	Memory    storage.MemoryStore
)

// eventsDirFlag overrides the configured events directory when set.
var eventsDirFlag string

// resolveEventsDir returns the events directory for a session, preferring
// the --events-dir flag over the configured (possibly session-overridden)
// value.
func resolveEventsDir(sessionID string) (string, error) {
	if eventsDirFlag != "" {
		return eventsDirFlag, nil
	}
	if ConfigMgr == nil {
		return "", fmt.Errorf("configuration manager not initialized")
	}
	cfg, err := ConfigMgr.SessionConfig(sessionID)
	if err != nil {
		return "", fmt.Errorf("loading config: %w", err)
	}
	return cfg.EventsDir, nil
}
