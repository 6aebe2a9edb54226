package main

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"arc72scan/internal/application"

	"github.com/urfave/cli/v2"
)

func scanOnceCommand() *cli.Command {
	return &cli.Command{
		Name:      "once",
		Usage:     "Scan a single round and print what was found; nothing is written",
		ArgsUsage: "<round>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "verify", Usage: "also submit candidates to the verification service"},
			&cli.BoolFlag{Name: "inner", Usage: "inspect inner transactions too"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("round is required")
			}
			round, err := strconv.ParseUint(c.Args().First(), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid round %q", c.Args().First())
			}
			verify := c.Bool("verify")
			cfg, components, err := openComponents(c, verify)
			if err != nil {
				return err
			}
			defer components.Close()
			if c.Bool("inner") {
				cfg.ScanInner = true
			}

			if verify {
				cfg.ReportEnabled = false
				scanner, err := components.Scanner(c.Context, cfg, nil)
				if err != nil {
					return err
				}
				result, err := scanner.ScanRound(c.Context, round)
				if err != nil {
					return err
				}
				if c.Bool("json") {
					return printJSON(c.App.Writer, map[string]any{
						"round":         result.Round,
						"transactions":  result.Transactions,
						"candidates":    result.Candidates,
						"accepted":      result.Events,
						"new_contracts": result.NewContracts,
					})
				}
				fmt.Fprintf(c.App.Writer, "round %d: %d txns, %d candidates, %d accepted\n", round, result.Transactions, len(result.Candidates), len(result.Events))
				return printEvents(c, result.Events)
			}

			extractor, err := components.Extractor(cfg)
			if err != nil {
				return err
			}
			block, err := components.Algod.FetchBlock(c.Context, round)
			if err != nil {
				return err
			}
			extraction := extractor.Extract(c.Context, block)
			if c.Bool("json") {
				return printJSON(c.App.Writer, map[string]any{
					"round":         round,
					"transactions":  len(block.Transactions),
					"candidates":    extraction.Candidates,
					"new_contracts": extraction.NewContracts,
				})
			}
			fmt.Fprintf(c.App.Writer, "round %d: %d txns, %d candidates, %d new contracts\n", round, len(block.Transactions), len(extraction.Candidates), len(extraction.NewContracts))
			w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
			for _, candidate := range extraction.Candidates {
				fmt.Fprintf(w, "candidate\t%d\t%s\t%s\n", candidate.ContractID, candidate.TokenID, candidate.Owner)
			}
			for _, contract := range extraction.NewContracts {
				fmt.Fprintf(w, "new contract\ttx %d\t%s\t\n", contract.TxIndex, contract.Creator)
			}
			return w.Flush()
		},
	}
}

func classifyCommand() *cli.Command {
	return &cli.Command{
		Name:      "classify",
		Usage:     "Check whether a compiled program implements ARC-72",
		ArgsUsage: "<program-file>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "base64", Usage: "the file holds base64 text, as in the apap field"},
			&cli.StringFlag{Name: "magic", Usage: "literal to look for (overrides ARC72_MAGIC)"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("program file is required")
			}
			program, err := readProgram(c.Args().First(), c.Bool("base64"))
			if err != nil {
				return err
			}
			cfg, components, err := openComponents(c, false)
			if err != nil {
				return err
			}
			defer components.Close()

			magic := cfg.MagicLiteral
			if c.String("magic") != "" {
				magic = c.String("magic")
			}
			classifier, err := application.NewSourceClassifier(components.Algod, magic)
			if err != nil {
				return err
			}
			match, err := classifier.Classify(c.Context, program)
			if err != nil {
				return fmt.Errorf("disassemble: %w", err)
			}
			if c.Bool("json") {
				return printJSON(c.App.Writer, map[string]any{"arc72": match, "magic": magic, "program_len": len(program)})
			}
			fmt.Fprintf(c.App.Writer, "arc72: %t (%d bytes, literal %s)\n", match, len(program), magic)
			return nil
		},
	}
}

func readProgram(path string, isBase64 bool) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !isBase64 {
		return raw, nil
	}
	program, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("decode base64 program: %w", err)
	}
	return program, nil
}
