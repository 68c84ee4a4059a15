package cmd

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeCmd_HasFlags(t *testing.T) {
	cmd := newServeCmd()

	watch := cmd.Flags().Lookup("watch")
	require.NotNil(t, watch)

	pidFile := cmd.Flags().Lookup("pid-file")
	require.NotNil(t, pidFile)
	assert.Equal(t, "false", pidFile.DefValue)
}

func TestRunServe_PreflightFailureOnUnwritableDataDir(t *testing.T) {
	// A data dir nested under a path that doesn't exist fails the
	// write-permissions preflight check before vectorstore.Open is ever
	// reached, so this doesn't need a real embedder model or signal setup.
	dataDirFlag = filepath.Join(t.TempDir(), "missing", "nested")
	defer func() { dataDirFlag = "." }()

	cmd := newServeCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)

	err := runServe(cmd, nil)

	require.Error(t, err)
	assert.Equal(t, ExitUsage, exitCodeFor(err))
}
