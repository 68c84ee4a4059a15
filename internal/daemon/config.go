// Package daemon provides the long-running process lifecycle for vecdb
// serve: a PID file guarding against a second instance starting against
// the same data directory, and graceful-shutdown timing.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config holds configuration for the serve process lifecycle.
type Config struct {
	// PIDPath is the file path for storing the running process's PID.
	// Default: <data-dir>/vecdb.pid
	PIDPath string

	// ShutdownGracePeriod is the time to wait for in-flight autosave and
	// watcher flushes to finish after a shutdown signal is received.
	// Default: 10s
	ShutdownGracePeriod time.Duration
}

// DefaultConfig returns a Config with its PID file rooted at dataDir.
func DefaultConfig(dataDir string) Config {
	return Config{
		PIDPath:             filepath.Join(dataDir, "vecdb.pid"),
		ShutdownGracePeriod: 10 * time.Second,
	}
}

// Validate checks that the configuration is valid.
func (c Config) Validate() error {
	if c.PIDPath == "" {
		return fmt.Errorf("PID path cannot be empty")
	}
	if c.ShutdownGracePeriod <= 0 {
		return fmt.Errorf("shutdown grace period must be positive")
	}
	return nil
}

// EnsureDir creates the directory for the PID file if it doesn't exist.
func (c Config) EnsureDir() error {
	dir := filepath.Dir(c.PIDPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create PID directory: %w", err)
	}
	return nil
}
