package main

import (
	"github.com/spf13/cobra"
)

var Version = "dev"

type rootFlags struct {
	config string
}

func newRootCommand() *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:           "nbadmin",
		Short:         "Metadata-driven REST API over SQL tables",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().StringVarP(&flags.config, "config", "c", "config/config.yaml", "config file (json, yaml, toml or ini)")

	cmd.AddCommand(
		newServeCommand(flags),
		newRoutesCommand(flags),
		newCheckCommand(flags),
	)
	return cmd
}
