package cmd

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vecdbhq/vecdb/internal/vecerrors"
)

func TestRootCmd_ShowsHelp(t *testing.T) {
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--help"})

	err := cmd.Execute()

	require.NoError(t, err)
	output := buf.String()
	assert.Contains(t, output, "vecdb", "help should mention the program name")
	assert.Contains(t, output, "Usage:", "help should show usage")
}

func TestRootCmd_ShowsVersion(t *testing.T) {
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--version"})

	err := cmd.Execute()

	require.NoError(t, err)
	output := buf.String()
	assert.True(t, strings.Contains(output, "0.") || strings.Contains(output, "dev"),
		"version output should contain a version number or 'dev'")
	assert.Contains(t, output, "vecdb")
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	cmd := NewRootCmd()
	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}

	assert.Contains(t, names, "serve")
	assert.Contains(t, names, "storage")
	assert.Contains(t, names, "snapshot")
	assert.Contains(t, names, "version")
}

func TestRootCmd_HasPersistentFlags(t *testing.T) {
	cmd := NewRootCmd()

	dataDir := cmd.PersistentFlags().Lookup("data-dir")
	require.NotNil(t, dataDir)
	assert.Equal(t, ".", dataDir.DefValue)

	debug := cmd.PersistentFlags().Lookup("debug")
	require.NotNil(t, debug)
	assert.Equal(t, "false", debug.DefValue)

	cpuProfile := cmd.PersistentFlags().Lookup("cpu-profile")
	require.NotNil(t, cpuProfile)

	heapProfile := cmd.PersistentFlags().Lookup("heap-profile")
	require.NotNil(t, heapProfile)
}

func TestStorageCmd_ShowsHelp(t *testing.T) {
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"storage", "--help"})

	err := cmd.Execute()

	require.NoError(t, err)
	assert.Contains(t, buf.String(), "storage")
}

func TestSnapshotCmd_ShowsHelp(t *testing.T) {
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"snapshot", "--help"})

	err := cmd.Execute()

	require.NoError(t, err)
	assert.Contains(t, buf.String(), "snapshot")
}

func TestExitCodeFor_UsageError(t *testing.T) {
	assert.Equal(t, ExitUsage, exitCodeFor(newUsageError("bad args")))
}

func TestExitCodeFor_ArchiveCorruption(t *testing.T) {
	err := vecerrors.ArchiveCorrupt("/tmp/x.vecdb", errors.New("bad checksum"))
	assert.Equal(t, ExitArchiveError, exitCodeFor(err))
}

func TestExitCodeFor_ConfigError(t *testing.T) {
	err := vecerrors.New(vecerrors.CodeConfigInvalid, "bad config", nil)
	assert.Equal(t, ExitConfigError, exitCodeFor(err))
}

func TestExitCodeFor_IOError(t *testing.T) {
	err := vecerrors.IoError("disk full", errors.New("ENOSPC"))
	assert.Equal(t, ExitIOError, exitCodeFor(err))
}

func TestExitCodeFor_UnknownErrorDefaultsToUsage(t *testing.T) {
	// An error that isn't a usageError or *vecerrors.EngineError, such as
	// a cobra flag/argument parsing failure raised before a RunE ran, maps
	// to ExitUsage.
	assert.Equal(t, ExitUsage, exitCodeFor(errors.New("unknown flag: --bogus")))
}
