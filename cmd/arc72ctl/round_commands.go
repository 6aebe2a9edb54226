package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"arc72scan/internal/application"
	"arc72scan/internal/domain"

	"github.com/urfave/cli/v2"
)

func roundShowCommand() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Print the accepted transfers persisted for a round",
		ArgsUsage: "<round>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("round is required")
			}
			round, err := strconv.ParseUint(c.Args().First(), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid round %q", c.Args().First())
			}
			_, components, err := openComponents(c, false)
			if err != nil {
				return err
			}
			defer components.Close()

			events, ok, err := components.Store.ReadRound(c.Context, round)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("round %d has not been scanned", round)
			}
			if c.Bool("json") {
				return printJSON(c.App.Writer, events)
			}
			return printEvents(c, events)
		},
	}
}

func transfersCommand() *cli.Command {
	return &cli.Command{
		Name:  "transfers",
		Usage: "Query indexed transfers (needs SQLITE_PATH, DB_DSN or a database state backend)",
		Flags: []cli.Flag{
			&cli.Uint64Flag{Name: "contract", Usage: "application id"},
			&cli.StringFlag{Name: "owner", Usage: "owner address"},
			&cli.Uint64Flag{Name: "from", Usage: "first round"},
			&cli.Uint64Flag{Name: "to", Usage: "last round"},
			&cli.IntFlag{Name: "limit", Value: 100},
		},
		Action: func(c *cli.Context) error {
			filter := application.TransferQueryFilter{Owner: c.String("owner"), Limit: c.Int("limit")}
			if c.IsSet("contract") {
				v := c.Uint64("contract")
				filter.ContractID = &v
			}
			if c.IsSet("from") {
				v := c.Uint64("from")
				filter.FromRound = &v
			}
			if c.IsSet("to") {
				v := c.Uint64("to")
				filter.ToRound = &v
			}
			if filter.Owner != "" && !domain.IsValidAddress(filter.Owner) {
				return fmt.Errorf("invalid owner %q", filter.Owner)
			}

			_, components, err := openComponents(c, false)
			if err != nil {
				return err
			}
			defer components.Close()

			events, err := components.Store.QueryTransfers(c.Context, filter)
			if err != nil {
				return err
			}
			if c.Bool("json") {
				return printJSON(c.App.Writer, events)
			}
			return printEvents(c, events)
		},
	}
}

func printEvents(c *cli.Context, events []domain.TransferEvent) error {
	if len(events) == 0 {
		fmt.Fprintln(c.App.Writer, "no transfers")
		return nil
	}
	w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ROUND\tCONTRACT\tTOKEN\tOWNER")
	for _, event := range events {
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\n", event.Round, event.ContractID, event.TokenID, event.Owner)
	}
	return w.Flush()
}
