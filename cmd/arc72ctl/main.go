package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"arc72scan/internal/bootstrap"
	"arc72scan/internal/config"

	"github.com/urfave/cli/v2"
)

var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "arc72ctl",
		Usage:   "Inspect and operate the ARC-72 round scanner",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime),
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "network", Usage: "mainnet or testnet (overrides NETWORK)"},
			&cli.StringFlag{Name: "state-backend", Usage: "file, sqlite or mysql (overrides STATE_BACKEND)"},
			&cli.StringFlag{Name: "output-dir", Usage: "round output directory (overrides OUTPUT_DIR)"},
			&cli.BoolFlag{Name: "json", Usage: "print JSON instead of text"},
		},
		Commands: []*cli.Command{
			{
				Name:  "state",
				Usage: "Read or move the scan cursor",
				Subcommands: []*cli.Command{
					stateShowCommand(),
					stateSetCommand(),
					stateResetCommand(),
				},
			},
			{
				Name:  "round",
				Usage: "Inspect persisted rounds",
				Subcommands: []*cli.Command{
					roundShowCommand(),
				},
			},
			transfersCommand(),
			{
				Name:  "scan",
				Usage: "Scan rounds without touching the cursor",
				Subcommands: []*cli.Command{
					scanOnceCommand(),
				},
			},
			classifyCommand(),
			{
				Name:  "app",
				Usage: "Application inspection",
				Subcommands: []*cli.Command{
					appStateCommand(),
				},
			},
			{
				Name:  "stream",
				Usage: "Round stream commands",
				Subcommands: []*cli.Command{
					streamTailCommand(),
				},
			},
		},
	}
}

// loadConfig reads the environment with global flags layered on top. Commands
// that never call the verifier load with scanning disabled so VERIFIER_URL is
// not required.
func loadConfig(c *cli.Context, needsVerifier bool) (config.Config, error) {
	overrides := config.EnvMap{}
	if !needsVerifier {
		overrides["SCAN_ENABLED"] = "false"
	}
	for flag, key := range map[string]string{
		"network":       "NETWORK",
		"state-backend": "STATE_BACKEND",
		"output-dir":    "OUTPUT_DIR",
	} {
		if value := c.String(flag); value != "" {
			overrides[key] = value
		}
	}
	return config.LoadFromEnvWith(overrides)
}

func openComponents(c *cli.Context, needsVerifier bool) (config.Config, *bootstrap.Components, error) {
	cfg, err := loadConfig(c, needsVerifier)
	if err != nil {
		return config.Config{}, nil, err
	}
	components, err := bootstrap.Open(cfg)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, components, nil
}

func printJSON(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}
