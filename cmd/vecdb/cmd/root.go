// Package cmd provides the vecdb CLI commands.
package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vecdbhq/vecdb/internal/logging"
	"github.com/vecdbhq/vecdb/internal/profiling"
	"github.com/vecdbhq/vecdb/internal/vecerrors"
	"github.com/vecdbhq/vecdb/pkg/version"
)

// Exit codes per spec.md §6.
const (
	ExitSuccess      = 0
	ExitUsage        = 2
	ExitConfigError  = 3
	ExitArchiveError = 4
	ExitIOError      = 5
)

var (
	dataDirFlag     string
	debugFlag       bool
	cpuProfileFlag  string
	heapProfileFlag string
	loggingCleanup  func()
	stopCPUProfile  func()
	profiler        = profiling.NewProfiler()
)

// NewRootCmd builds the vecdb root command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "vecdb",
		Short:         "Self-hosted vector database and semantic search engine",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetVersionTemplate("vecdb version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", ".", "data directory containing vecdb.yaml and the .vecdb archive")
	cmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "enable debug logging")
	cmd.PersistentFlags().StringVar(&cpuProfileFlag, "cpu-profile", "", "write a CPU profile to this path for the command's duration")
	cmd.PersistentFlags().StringVar(&heapProfileFlag, "heap-profile", "", "write a heap profile to this path on exit")

	cmd.PersistentPreRunE = setupRun
	cmd.PersistentPostRunE = teardownRun

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newStorageCmd())
	cmd.AddCommand(newSnapshotCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func setupRun(*cobra.Command, []string) error {
	cfg := logging.DefaultConfig()
	if debugFlag {
		cfg = logging.DebugConfig()
	}
	logger, cleanup, err := logging.Setup(cfg)
	if err != nil {
		return err
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)

	if cpuProfileFlag != "" {
		cleanup, err := profiler.StartCPU(cpuProfileFlag)
		if err != nil {
			return err
		}
		stopCPUProfile = cleanup
	}
	return nil
}

func teardownRun(*cobra.Command, []string) error {
	if stopCPUProfile != nil {
		stopCPUProfile()
		stopCPUProfile = nil
	}
	if heapProfileFlag != "" {
		if err := profiler.WriteHeap(heapProfileFlag); err != nil {
			slog.Warn("failed to write heap profile", "error", err)
		}
	}
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return exitCodeFor(err)
	}
	return ExitSuccess
}

// exitCodeFor maps an error to spec.md §6's exit code contract.
func exitCodeFor(err error) int {
	var usageErr usageError
	if errors.As(err, &usageErr) {
		return ExitUsage
	}

	var ee *vecerrors.EngineError
	if errors.As(err, &ee) {
		switch {
		case ee.Code == vecerrors.CodeArchiveCorrupt || ee.Code == vecerrors.CodeArchiveVersionUnsupported:
			return ExitArchiveError
		case ee.Category == vecerrors.CategoryConfig:
			return ExitConfigError
		case ee.Category == vecerrors.CategoryIO:
			return ExitIOError
		}
	}

	// Anything else, such as a cobra flag/argument parsing error raised
	// before a RunE ran, an EngineError of another category, or a plain
	// error, maps to ExitUsage.
	return ExitUsage
}

// usageError marks an error as a bad-usage error (exit code 2) rather
// than a runtime failure, for argument/flag validation failures raised
// by subcommands before any engine operation runs.
type usageError struct{ error }

func newUsageError(format string, args ...any) error {
	return usageError{fmt.Errorf(format, args...)}
}
