package main

import (
	"github.com/spf13/cobra"
)

// globalFlags holds persistent flags shared by every command.
type globalFlags struct {
	ConfigPath string
}

func newRootCmd() *cobra.Command {
	var gf globalFlags
	root := &cobra.Command{
		Use:           "uptimereport",
		Short:         "Store uptime/downtime reports over business hours",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&gf.ConfigPath, "config", "", "optional config file (yaml, toml, json); env vars override it")

	root.AddCommand(newAPICmd(&gf))
	root.AddCommand(newWorkerCmd(&gf))
	root.AddCommand(newLoadCmd(&gf))
	root.AddCommand(newRunCmd(&gf))
	root.AddCommand(newMigrateCmd(&gf))
	return root
}
