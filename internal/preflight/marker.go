package preflight

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// MarkerFile names the sentinel written into a data directory once its
// preflight checks have passed, so subsequent `vecdb serve` runs can skip
// re-running them.
const MarkerFile = ".preflight-passed"

// NeedsCheck reports whether dataDir is missing its preflight marker.
func NeedsCheck(dataDir string) bool {
	_, err := os.Stat(markerPath(dataDir))
	return os.IsNotExist(err)
}

// MarkPassed writes the marker file, creating dataDir if necessary.
func MarkPassed(dataDir string) error {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("create marker directory: %w", err)
	}
	return os.WriteFile(markerPath(dataDir), []byte(time.Now().Format(time.RFC3339)), 0644)
}

// ClearMarker removes the marker file so the next run re-checks, treating
// an already-absent marker as success.
func ClearMarker(dataDir string) error {
	if err := os.Remove(markerPath(dataDir)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove marker file: %w", err)
	}
	return nil
}

// MarkerAge reports how long ago dataDir's preflight checks passed, or
// zero if the marker is missing or unreadable.
func MarkerAge(dataDir string) time.Duration {
	content, err := os.ReadFile(markerPath(dataDir))
	if err != nil {
		return 0
	}

	passedAt, err := time.Parse(time.RFC3339, string(content))
	if err != nil {
		return 0
	}
	return time.Since(passedAt)
}

func markerPath(dataDir string) string {
	return filepath.Join(dataDir, MarkerFile)
}
