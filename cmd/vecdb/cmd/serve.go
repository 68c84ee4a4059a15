package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vecdbhq/vecdb/internal/async"
	"github.com/vecdbhq/vecdb/internal/daemon"
	"github.com/vecdbhq/vecdb/internal/output"
	"github.com/vecdbhq/vecdb/internal/preflight"
	"github.com/vecdbhq/vecdb/internal/vectorstore"
)

var (
	serveWatchPaths []string
	servePIDFile    bool
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Open the data directory and run until signaled",
		Long: `serve opens the .vecdb archive in --data-dir, reconstructs every
collection it contains, starts the auto-save scheduler, and (when
--watch paths are given) watches those directories for changes,
indexing them incrementally. It blocks until SIGINT/SIGTERM.`,
		RunE: runServe,
	}
	cmd.Flags().StringSliceVar(&serveWatchPaths, "watch", nil, "directories to watch and index incrementally")
	cmd.Flags().BoolVar(&servePIDFile, "pid-file", false, "write a PID file to <data-dir>/vecdb.pid while running")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	out := output.New(cmd.OutOrStdout())

	checker := preflight.New(preflight.WithOutput(cmd.ErrOrStderr()))
	results := checker.RunAll(cmd.Context(), dataDirFlag)
	if checker.HasCriticalFailures(results) {
		checker.PrintResults(results)
		return newUsageError("preflight checks failed for data directory %s", dataDirFlag)
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	vs, err := vectorstore.Open(ctx, dataDirFlag)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := vs.Close(); cerr != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), "error closing store:", cerr)
		}
	}()

	var pidFile *daemon.PIDFile
	if servePIDFile {
		daemonCfg := daemon.DefaultConfig(dataDirFlag)
		if err := daemonCfg.EnsureDir(); err != nil {
			return err
		}
		pidFile = daemon.NewPIDFile(daemonCfg.PIDPath)
		if err := pidFile.Write(); err != nil {
			return err
		}
		defer func() { _ = pidFile.Remove() }()
	}

	out.Successf("opened %s (%d collections)", dataDirFlag, len(vs.List()))
	for _, q := range vs.Quarantined() {
		out.Warningf("collection %q quarantined: %s", q.Name, q.Reason)
	}

	if len(serveWatchPaths) > 0 {
		for _, path := range serveWatchPaths {
			bg := async.NewBackgroundIndexer(async.IndexerConfig{DataDir: dataDirFlag})
			watchPath := path
			bg.IndexFunc = func(ictx context.Context, progress *async.IndexProgress) error {
				return watchAndIndex(ictx, vs, watchPath, progress)
			}
			bg.Start(ctx)
			out.Statusf("→", "watching %s", watchPath)
			go renderIndexProgress(ctx, cmd.ErrOrStderr(), watchPath, bg.Progress())
		}
	}

	<-ctx.Done()
	out.Status("•", "shutting down")
	return nil
}
