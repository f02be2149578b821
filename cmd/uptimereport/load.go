package main

import (
	"errors"

	"github.com/spf13/cobra"

	"store-uptime/internal/loader"
)

func newLoadCmd(gf *globalFlags) *cobra.Command {
	var files loader.Files
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Bulk import the source CSV exports",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if files == (loader.Files{}) {
				return errors.New("nothing to load: pass at least one of --observations, --business-hours, --timezones")
			}
			ctx := cmd.Context()
			a, err := newApp(ctx, gf)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.store.RunMigrations(ctx); err != nil {
				return err
			}
			return loader.Load(ctx, a.store, files, a.log)
		},
	}
	cmd.Flags().StringVar(&files.Observations, "observations", "", "store status CSV (store_id,status,timestamp_utc)")
	cmd.Flags().StringVar(&files.BusinessHours, "business-hours", "", "business hours CSV (store_id,day,start_time_local,end_time_local)")
	cmd.Flags().StringVar(&files.Timezones, "timezones", "", "timezone CSV (store_id,timezone_str)")
	return cmd
}
