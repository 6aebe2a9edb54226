package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"arc72scan/internal/bootstrap"
	"arc72scan/internal/config"
	"arc72scan/internal/infrastructure/logging"
	"arc72scan/internal/infrastructure/telemetry"
	"arc72scan/internal/interfaces/httpapi"

	"github.com/google/uuid"
)

var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	runID := uuid.NewString()
	rotating, err := logging.Init(logging.Config{
		Level:      cfg.LogLevel,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		Attrs:      []slog.Attr{slog.String("run_id", runID), slog.String("network", cfg.Network)},
	})
	if err != nil {
		log.Fatalf("logging error: %v", err)
	}
	if rotating != nil {
		defer rotating.Close()
	}

	shutdownTracing, err := telemetry.InitTracer(context.Background(), telemetry.TracerConfig{
		ServiceName: "arc72scan",
		Version:     version,
		Network:     cfg.Network,
		RunID:       runID,
		Endpoint:    cfg.OtelEndpoint,
	})
	if err != nil {
		slog.Warn("tracing init error", "err", err)
	} else {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracing(ctx); err != nil {
				slog.Warn("tracing shutdown error", "err", err)
			}
		}()
	}

	if err := run(cfg); err != nil {
		slog.Error("scanner stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	components, err := bootstrap.Open(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := components.Close(); err != nil {
			slog.Warn("close error", "err", err)
		}
	}()

	metrics := httpapi.NewMetrics(cfg.Network)
	if cfg.HTTPAddr != "" {
		server, err := httpapi.NewServer(cfg, components.Store, components.State, components.Algod, metrics, httpapi.BuildInfo{
			Version:   version,
			Commit:    commit,
			BuildTime: buildTime,
		})
		if err != nil {
			return err
		}
		go func() {
			slog.Info("http server listening", "addr", cfg.HTTPAddr)
			if err := server.ListenAndServe(ctx, cfg.HTTPAddr); err != nil {
				slog.Error("http server error", "err", err)
				cancel()
			}
		}()
	}

	if !cfg.ScanEnabled {
		slog.Info("scanning disabled")
		if cfg.HTTPAddr != "" {
			<-ctx.Done()
		}
		return nil
	}

	scanner, err := components.Scanner(ctx, cfg, metrics)
	if err != nil {
		return err
	}
	slog.Info("scanner started",
		"start_round", cfg.StartRound,
		"scan_rounds", cfg.ScanRounds,
		"follow", cfg.Follow,
		"state_backend", cfg.StateBackend,
		"output_dir", cfg.OutputDir,
	)
	if err := scanner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
