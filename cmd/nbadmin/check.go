package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/nbti/nbadmin/app"
	"github.com/nbti/nbadmin/dic"
)

func newCheckCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Load and validate the configuration and the table dictionary",
		RunE: func(cmd *cobra.Command, args []string) error {
			options, err := app.LoadOptions(flags.config)
			if err != nil {
				return err
			}
			d, err := dic.Load(options.Dictionary.Path)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, t := range d.Tables() {
				fmt.Fprintf(out, "%-32s %-12s pk=%s fields=%d children=%d\n",
					t.Name, t.Resource, t.PrimaryKeyKey(), len(t.Fields), len(t.ChildrenTables))
			}
			fmt.Fprintln(out, color.GreenString("ok: %d tables", len(d.Tables())))
			return nil
		},
	}
}
