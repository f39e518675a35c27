package main

import (
	"github.com/spf13/cobra"

	"quantumcore/internal/archive"
)

func newSnapshotCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Archive and restore registry snapshots (QUANTUMCORE_ARCHIVE_* selects the backend)",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "archive",
			Short: "Write the current registries to the archive",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				ctx := a.context(cmd)
				store, err := archive.Open(ctx)
				if err != nil {
					return err
				}
				info, err := a.svc.ArchiveSnapshot(ctx, store)
				if err != nil {
					return err
				}
				return writeJSON(cmd, info)
			},
		},
		&cobra.Command{
			Use:   "restore <key>",
			Short: "Replace the registries with an archived snapshot",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx := a.context(cmd)
				store, err := archive.Open(ctx)
				if err != nil {
					return err
				}
				doc, err := a.svc.RestoreSnapshot(ctx, store, args[0])
				if err != nil {
					return err
				}
				return writeJSON(cmd, map[string]any{"restored": args[0], "taken_at": doc.TakenAt})
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List archived snapshots, oldest first",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				ctx := a.context(cmd)
				store, err := archive.Open(ctx)
				if err != nil {
					return err
				}
				infos, err := a.svc.ListSnapshots(ctx, store)
				if err != nil {
					return err
				}
				if infos == nil {
					infos = []archive.Info{}
				}
				return writeJSON(cmd, infos)
			},
		},
	)
	return cmd
}
