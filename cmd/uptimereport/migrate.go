package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newMigrateCmd(gf *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded SQL migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, gf)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.store.RunMigrations(ctx); err != nil {
				return err
			}
			applied, err := a.store.AppliedMigrations(ctx)
			if err != nil {
				return err
			}
			a.log.Info("migrations applied", zap.Strings("files", applied))
			return nil
		},
	}
}
