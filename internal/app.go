// Package internal provides the App struct that wires all components of
// swarmwatch together and initializes the CLI layer.
package internal

import (
	"os"
	"path/filepath"

	"github.com/valter-silva-au/swarmwatch/internal/cli"
	"github.com/valter-silva-au/swarmwatch/internal/core"
	"github.com/valter-silva-au/swarmwatch/internal/storage"
)

// App holds all service dependencies for swarmwatch.
type App struct {
	BasePath string

	// Configuration
	ConfigMgr core.ConfigManager

	// Storage layer
	Memory storage.MemoryStore
}

// NewApp creates and wires all components of swarmwatch. basePath is the
// root directory where configuration and the shared memory store live.
func NewApp(basePath string) (*App, error) {
	app := &App{BasePath: basePath}

	app.ConfigMgr = core.NewConfigManager(basePath)
	app.Memory = storage.NewFileMemoryStore(basePath)

	// Make services available to CLI commands.
	cli.BasePath = basePath
	cli.ConfigMgr = app.ConfigMgr
	cli.Memory = app.Memory

	return app, nil
}

// ResolveBasePath determines the base directory for configuration and the
// memory store: SWARMWATCH_HOME when set, otherwise the nearest ancestor
// directory containing .swarmwatch.yaml, falling back to the working
// directory.
func ResolveBasePath() string {
	if home := os.Getenv("SWARMWATCH_HOME"); home != "" {
		return home
	}
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	cwd := dir
	for {
		if _, err := os.Stat(filepath.Join(dir, ".swarmwatch.yaml")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return cwd
}
