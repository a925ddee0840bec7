package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/nbti/nbadmin/app"
	"github.com/nbti/nbadmin/dic"
	"github.com/nbti/nbadmin/server"
)

func newRoutesCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "Print the routes generated from the table dictionary",
		RunE: func(cmd *cobra.Command, args []string) error {
			options, err := app.LoadOptions(flags.config)
			if err != nil {
				return err
			}
			d, err := dic.Load(options.Dictionary.Path)
			if err != nil {
				return err
			}
			printRoutes(cmd.OutOrStdout(), server.Routes(d))
			return nil
		},
	}
}

var methodColors = map[string]*color.Color{
	"GET":    color.New(color.FgGreen),
	"POST":   color.New(color.FgYellow),
	"PUT":    color.New(color.FgBlue),
	"DELETE": color.New(color.FgRed),
}

func printRoutes(w io.Writer, routes []server.Route) {
	for _, r := range routes {
		method := fmt.Sprintf("%-7s", r.Method)
		if c, ok := methodColors[r.Method]; ok {
			method = c.Sprint(method)
		}
		fmt.Fprintf(w, "%s %s\n", method, r.Path)
	}
}
