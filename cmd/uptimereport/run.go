package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"store-uptime/internal/models"
)

func newRunCmd(gf *globalFlags) *cobra.Command {
	var asOf string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Create a report job and compute it in-process",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, gf)
			if err != nil {
				return err
			}
			defer a.Close()
			if asOf != "" {
				t, err := time.Parse(time.RFC3339Nano, asOf)
				if err != nil {
					return fmt.Errorf("invalid --as-of: %w", err)
				}
				a.cfg.ReferenceTime = t.UTC()
			}
			if err := a.store.RunMigrations(ctx); err != nil {
				return err
			}

			runner, err := a.runner(ctx)
			if err != nil {
				return err
			}
			job, err := a.store.CreateJob(ctx)
			if err != nil {
				return err
			}
			runErr := runner.Run(ctx, job.ID)

			job, err = a.store.GetJob(ctx, job.ID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", job.ID, job.Status)
			if runErr != nil {
				return fmt.Errorf("report failed: %w", runErr)
			}
			if job.Status != models.JobCompleted {
				return fmt.Errorf("report ended %s", job.Status)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "RFC 3339 instant the report windows end at (default: now)")
	return cmd
}
