package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/vecdbhq/vecdb/internal/archive"
	"github.com/vecdbhq/vecdb/internal/output"
)

var snapshotRestoreForce bool

func newSnapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "List, create, and restore archive snapshots",
	}
	cmd.AddCommand(newSnapshotListCmd())
	cmd.AddCommand(newSnapshotCreateCmd())
	cmd.AddCommand(newSnapshotRestoreCmd())
	return cmd
}

func newSnapshotListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List retained snapshot generations, newest first",
		RunE:  runSnapshotList,
	}
}

func runSnapshotList(cmd *cobra.Command, _ []string) error {
	store, err := archive.NewStore(dataDirFlag)
	if err != nil {
		return err
	}
	snaps, err := store.ListSnapshots()
	if err != nil {
		return err
	}
	for _, s := range snaps {
		fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\n", s.CreatedAt.UnixMilli(), s.CreatedAt.Format("2006-01-02T15:04:05Z07:00"), s.Path)
	}
	return nil
}

func newSnapshotCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Commit the live archive as a new retained snapshot generation",
		RunE:  runSnapshotCreate,
	}
}

func runSnapshotCreate(cmd *cobra.Command, _ []string) error {
	out := output.New(cmd.OutOrStdout())

	store, err := archive.NewStore(dataDirFlag)
	if err != nil {
		return err
	}
	loaded, err := store.Load()
	if err != nil {
		return err
	}
	next := loaded.Generation + 1
	if err := store.Commit(next, loaded.Collections); err != nil {
		return err
	}
	out.Successf("created snapshot generation %d", next)
	return nil
}

func newSnapshotRestoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Restore a retained snapshot generation to the live archive",
		RunE:  runSnapshotRestore,
	}
	cmd.Flags().String("id", "", "snapshot timestamp (Unix milliseconds, as printed by 'snapshot list') to restore (required)")
	cmd.Flags().BoolVar(&snapshotRestoreForce, "force", false, "restore even if the live archive currently verifies OK")
	return cmd
}

func runSnapshotRestore(cmd *cobra.Command, _ []string) error {
	out := output.New(cmd.OutOrStdout())

	idFlag, err := cmd.Flags().GetString("id")
	if err != nil {
		return err
	}
	if idFlag == "" {
		return newUsageError("--id is required")
	}
	timestampMs, err := strconv.ParseInt(idFlag, 10, 64)
	if err != nil {
		return newUsageError("--id must be a snapshot timestamp in Unix milliseconds: %v", err)
	}

	store, err := archive.NewStore(dataDirFlag)
	if err != nil {
		return err
	}

	if !snapshotRestoreForce {
		if verifyErr := store.Verify(); verifyErr == nil {
			return newUsageError("live archive verifies OK; pass --force to restore anyway")
		}
	}

	if err := store.RestoreSnapshot(timestampMs); err != nil {
		return err
	}
	out.Successf("restored snapshot %d", timestampMs)
	return nil
}
