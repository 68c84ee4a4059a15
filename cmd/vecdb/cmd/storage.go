package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/vecdbhq/vecdb/internal/archive"
	"github.com/vecdbhq/vecdb/internal/output"
)

var storageFixFlag bool

func newStorageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "storage",
		Short: "Inspect and maintain the .vecdb archive",
	}
	cmd.AddCommand(newStorageInfoCmd())
	cmd.AddCommand(newStorageVerifyCmd())
	cmd.AddCommand(newStorageMigrateCmd())
	return cmd
}

func newStorageInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Report the archive's generation and per-collection vector counts",
		RunE:  runStorageInfo,
	}
}

func runStorageInfo(cmd *cobra.Command, _ []string) error {
	out := output.New(cmd.OutOrStdout())

	store, err := archive.NewStore(dataDirFlag)
	if err != nil {
		return err
	}
	loaded, err := store.Load()
	if err != nil {
		return err
	}

	out.Statusf("•", "generation %d", loaded.Generation)
	names := make([]string, 0, len(loaded.Collections))
	for name := range loaded.Collections {
		names = append(names, name)
	}
	sort.Strings(names)

	total := 0
	for _, name := range names {
		snap := loaded.Collections[name]
		count := len(snap.Values)
		total += count
		fmt.Fprintf(cmd.OutOrStdout(), "  %-24s dim=%-4d metric=%-10s vectors=%d\n",
			name, snap.Attrs.Dimension, snap.Attrs.Metric, count)
	}
	out.Statusf("•", "%d collections, %d vectors total", len(names), total)

	snaps, err := store.ListSnapshots()
	if err != nil {
		return err
	}
	out.Statusf("•", "%d retained snapshots", len(snaps))
	return nil
}

func newStorageVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Re-validate the live archive's checksums and structure",
		RunE:  runStorageVerify,
	}
	cmd.Flags().BoolVar(&storageFixFlag, "fix", false, "restore the newest valid snapshot if the live archive is corrupt")
	return cmd
}

func runStorageVerify(cmd *cobra.Command, _ []string) error {
	out := output.New(cmd.OutOrStdout())

	store, err := archive.NewStore(dataDirFlag)
	if err != nil {
		return err
	}

	verifyErr := store.Verify()
	if verifyErr == nil {
		out.Success("archive verified OK")
		return nil
	}

	if !storageFixFlag {
		return verifyErr
	}

	snaps, err := store.ListSnapshots()
	if err != nil {
		return err
	}
	if len(snaps) == 0 {
		out.Error("archive is corrupt and no snapshot is available to restore from")
		return verifyErr
	}

	newest := snaps[0]
	out.Warningf("archive is corrupt (%v); restoring snapshot %d", verifyErr, newest.CreatedAt.UnixMilli())
	if err := store.RestoreSnapshot(newest.CreatedAt.UnixMilli()); err != nil {
		return err
	}
	out.Success("restored from snapshot")
	return nil
}

func newStorageMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Rewrite the live archive at the current format version",
		RunE:  runStorageMigrate,
	}
}

func runStorageMigrate(cmd *cobra.Command, _ []string) error {
	out := output.New(cmd.OutOrStdout())

	store, err := archive.NewStore(dataDirFlag)
	if err != nil {
		return err
	}
	if err := store.Migrate(); err != nil {
		return err
	}
	out.Success("archive migrated to the current format version")
	return nil
}
