package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLogDir(t *testing.T) {
	dir := DefaultLogDir()
	assert.NotEmpty(t, dir)
	assert.Contains(t, dir, ".vecdb")
	assert.Contains(t, dir, "logs")
}

func TestDefaultLogPath(t *testing.T) {
	path := DefaultLogPath()
	assert.Contains(t, path, "vecdb.log")
}

func TestFindLogFile_ExplicitPath(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "custom.log")
	require.NoError(t, os.WriteFile(logPath, []byte("{}\n"), 0o644))

	found, err := FindLogFile(logPath)
	require.NoError(t, err)
	assert.Equal(t, logPath, found)
}

func TestFindLogFile_ExplicitNotFound(t *testing.T) {
	_, err := FindLogFile("/nonexistent/path/to/log.log")
	assert.Error(t, err)
}

func TestSetup_WritesJSONLines(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		Level:         "debug",
		FilePath:      filepath.Join(dir, "vecdb.log"),
		MaxSizeMB:     1,
		MaxFiles:      2,
		WriteToStderr: false,
	}

	logger, cleanup, err := Setup(cfg)
	require.NoError(t, err)
	defer cleanup()

	logger.Info("collection opened", "collection", "docs", "revision", 1)

	data, err := os.ReadFile(cfg.FilePath)
	require.NoError(t, err)

	var entry map[string]any
	lines := bytes.Split(bytes.TrimSpace(data), []byte("\n"))
	require.NotEmpty(t, lines)
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &entry))
	assert.Equal(t, "collection opened", entry["msg"])
	assert.Equal(t, "docs", entry["collection"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelFromString("debug").String(), "DEBUG")
	assert.Equal(t, LevelFromString("warn").String(), "WARN")
	assert.Equal(t, LevelFromString("unknown").String(), "INFO")
}

func TestRotatingWriter_RotatesOnSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vecdb.log")

	w, err := NewRotatingWriter(path, 0, 2) // 0 MB -> any write rotates
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	_, err = w.Write([]byte("first line that is long enough to rotate\n"))
	require.NoError(t, err)
	_, err = w.Write([]byte("second line\n"))
	require.NoError(t, err)

	_, statErr := os.Stat(path + ".1")
	assert.NoError(t, statErr)
}
