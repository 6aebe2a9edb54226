package main

import (
	"fmt"
	"strconv"

	"github.com/urfave/cli/v2"
)

func stateShowCommand() *cli.Command {
	return &cli.Command{
		Name:  "show",
		Usage: "Print the next round to scan",
		Action: func(c *cli.Context) error {
			cfg, components, err := openComponents(c, false)
			if err != nil {
				return err
			}
			defer components.Close()

			next, ok, err := components.State.LoadNextRound(c.Context)
			if err != nil {
				return err
			}
			if c.Bool("json") {
				return printJSON(c.App.Writer, map[string]any{
					"network":     cfg.Network,
					"next_round":  next,
					"has_state":   ok,
					"start_round": cfg.StartRound,
				})
			}
			if !ok {
				fmt.Fprintf(c.App.Writer, "%s: no state, next run starts at %d\n", cfg.Network, cfg.StartRound)
				return nil
			}
			fmt.Fprintf(c.App.Writer, "%s: next round %d\n", cfg.Network, next)
			return nil
		},
	}
}

func stateSetCommand() *cli.Command {
	return &cli.Command{
		Name:      "set",
		Usage:     "Set the next round to scan",
		ArgsUsage: "<round>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("round is required")
			}
			round, err := strconv.ParseUint(c.Args().First(), 10, 64)
			if err != nil || round == 0 {
				return fmt.Errorf("invalid round %q", c.Args().First())
			}
			cfg, components, err := openComponents(c, false)
			if err != nil {
				return err
			}
			defer components.Close()

			if err := components.State.SaveNextRound(c.Context, round); err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "%s: next round set to %d\n", cfg.Network, round)
			return nil
		},
	}
}

func stateResetCommand() *cli.Command {
	return &cli.Command{
		Name:  "reset",
		Usage: "Remove the stored round so the next run starts at START_ROUND",
		Action: func(c *cli.Context) error {
			cfg, components, err := openComponents(c, false)
			if err != nil {
				return err
			}
			defer components.Close()

			if err := components.State.ClearNextRound(c.Context); err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "%s: state cleared, next run starts at %d\n", cfg.Network, cfg.StartRound)
			return nil
		},
	}
}
