package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"arc72scan/internal/domain"

	"github.com/urfave/cli/v2"
)

func appStateCommand() *cli.Command {
	return &cli.Command{
		Name:      "state",
		Usage:     "Dump an application's global state",
		ArgsUsage: "<app-id>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("application id is required")
			}
			appID, err := strconv.ParseUint(c.Args().First(), 10, 64)
			if err != nil || appID == 0 {
				return fmt.Errorf("invalid application id %q", c.Args().First())
			}
			_, components, err := openComponents(c, false)
			if err != nil {
				return err
			}
			defer components.Close()

			entries, err := components.Algod.ApplicationGlobalState(c.Context, appID)
			if err != nil {
				return err
			}
			if c.Bool("json") {
				return printJSON(c.App.Writer, entries)
			}
			w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tKIND\tVALUE")
			for _, entry := range entries {
				fmt.Fprintf(w, "%q\t%s\t%s\n", entry.Key, entry.Value.Kind, formatStateValue(entry.Value))
			}
			return w.Flush()
		},
	}
}

func formatStateValue(value domain.StateValue) string {
	switch value.Kind {
	case domain.StateValueUint:
		return strconv.FormatUint(value.Uint, 10)
	case domain.StateValueAddress:
		return value.Text
	case domain.StateValueText:
		return strconv.Quote(value.Text)
	default:
		return ""
	}
}
