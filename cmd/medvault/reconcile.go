package main

import (
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"medvault/internal/service"
)

func newReconcileCmd() *cobra.Command {
	var (
		dryRun bool
		grace  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Report files without records and records without files; remove stale orphan files",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, err := openDeps(ctx)
			if err != nil {
				return err
			}
			defer d.Close()

			if !cmd.Flags().Changed("grace") {
				grace = d.cfg.Reconcile.Grace
			}
			rs := service.NewReconcileService(d.store, d.repo, grace, d.logger, nil)
			report, err := rs.RunOnce(ctx, dryRun)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Only report, never delete")
	cmd.Flags().DurationVar(&grace, "grace", time.Hour, "Minimum age of an unreferenced file before it is removed")
	return cmd
}
