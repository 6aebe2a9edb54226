// Package bootstrap builds the scanner's collaborators from a config.Config so
// both binaries wire storage and clients the same way.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"arc72scan/internal/application"
	"arc72scan/internal/config"
	"arc72scan/internal/infrastructure/algod"
	"arc72scan/internal/infrastructure/classifier"
	"arc72scan/internal/infrastructure/kafka"
	"arc72scan/internal/infrastructure/mysql"
	"arc72scan/internal/infrastructure/nats"
	"arc72scan/internal/infrastructure/roundfile"
	"arc72scan/internal/infrastructure/sqlite"
	"arc72scan/internal/infrastructure/storage"
	"arc72scan/internal/infrastructure/verifier"
)

// StateStore is the cursor backend plus the reset used by rescans.
type StateStore interface {
	application.StateStore
	ClearNextRound(ctx context.Context) error
}

type Components struct {
	Algod *algod.Client
	State StateStore
	Store *storage.Repository

	closers []func() error
}

// Open connects the node client and the configured storage backends.
func Open(cfg config.Config) (*Components, error) {
	node, err := algod.NewClient(algod.Config{URL: cfg.AlgodURL, Token: cfg.AlgodToken, Timeout: cfg.HTTPTimeout})
	if err != nil {
		return nil, err
	}
	c := &Components{Algod: node}

	files, err := roundfile.NewPersister(cfg.OutputDir)
	if err != nil {
		return nil, err
	}

	var index application.TransferIndex
	switch cfg.StateBackend {
	case config.StateBackendSQLite:
		repo, err := sqlite.NewRepository(cfg.SQLitePath, cfg.Network)
		if err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		c.closers = append(c.closers, repo.Close)
		c.State, index = repo, repo
	case config.StateBackendMySQL:
		repo, err := openMySQL(cfg)
		if err != nil {
			_ = c.Close()
			return nil, err
		}
		c.closers = append(c.closers, repo.Close)
		c.State, index = repo, repo
	default:
		state, err := roundfile.NewStateFile(cfg.StateFile)
		if err != nil {
			return nil, err
		}
		c.State = state
		switch {
		case cfg.SQLitePath != "":
			repo, err := sqlite.NewRepository(cfg.SQLitePath, cfg.Network)
			if err != nil {
				return nil, fmt.Errorf("sqlite: %w", err)
			}
			c.closers = append(c.closers, repo.Close)
			index = repo
		case cfg.DBDSN != "":
			repo, err := openMySQL(cfg)
			if err != nil {
				return nil, err
			}
			c.closers = append(c.closers, repo.Close)
			index = repo
		}
	}

	store, err := storage.NewRepository(files, index)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	c.Store = store
	return c, nil
}

func openMySQL(cfg config.Config) (*mysql.CachedRepository, error) {
	base, err := mysql.NewRepository(cfg.DBDSN, cfg.Network)
	if err != nil {
		return nil, fmt.Errorf("mysql: %w", err)
	}
	cached, err := mysql.NewCachedRepository(base, mysql.CacheConfig{Addr: cfg.RedisAddr, TTL: time.Hour})
	if err != nil {
		slog.Warn("redis cache disabled", "err", err)
		cached, _ = mysql.NewCachedRepository(base, mysql.CacheConfig{})
	}
	return cached, nil
}

// Classifier returns the disassembly classifier behind the process-wide memo.
func (c *Components) Classifier(cfg config.Config) (application.ContractClassifier, error) {
	source, err := application.NewSourceClassifier(c.Algod, cfg.MagicLiteral)
	if err != nil {
		return nil, err
	}
	return classifier.NewCached(source, cfg.ClassifierCacheMB)
}

func (c *Components) Extractor(cfg config.Config) (*application.TransferExtractor, error) {
	contracts, err := c.Classifier(cfg)
	if err != nil {
		return nil, err
	}
	return application.NewTransferExtractor(contracts, application.ExtractorConfig{ScanInner: cfg.ScanInner})
}

// Sinks connects the configured round streams. Connection failures are
// logged and the stream is skipped.
func (c *Components) Sinks(ctx context.Context, cfg config.Config) []application.RoundSink {
	if !cfg.ReportEnabled {
		return nil
	}
	var sinks []application.RoundSink
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(kafka.ProducerConfig{Brokers: cfg.KafkaBrokers, TopicPrefix: cfg.KafkaTopicPrefix})
		if err != nil {
			slog.Warn("kafka stream disabled", "err", err)
		} else {
			c.closers = append(c.closers, producer.Close)
			sinks = append(sinks, producer)
			slog.Info("kafka stream enabled", "topic", producer.Topic(cfg.Network))
		}
	}
	if cfg.NatsURL != "" {
		publisher, err := nats.NewPublisher(ctx, cfg.NatsURL)
		if err != nil {
			slog.Warn("nats stream disabled", "err", err)
		} else {
			c.closers = append(c.closers, publisher.Close)
			sinks = append(sinks, publisher)
		}
	}
	return sinks
}

// Scanner assembles the full round pipeline.
func (c *Components) Scanner(ctx context.Context, cfg config.Config, observer application.ScanObserver) (*application.Scanner, error) {
	extractor, err := c.Extractor(cfg)
	if err != nil {
		return nil, err
	}
	verify, err := verifier.NewClient(verifier.Config{URL: cfg.VerifierURL, Token: cfg.VerifierToken, Timeout: cfg.HTTPTimeout})
	if err != nil {
		return nil, err
	}
	cursor, err := application.NewRoundCursor(c.State, cfg.StartRound)
	if err != nil {
		return nil, err
	}
	return application.NewScanner(c.Algod, extractor, verify, c.Store, cursor, c.Sinks(ctx, cfg), observer, application.ScannerConfig{
		Network:       cfg.Network,
		MaxRounds:     cfg.ScanRounds,
		Follow:        cfg.Follow,
		PollInterval:  cfg.PollInterval,
		VerifyWorkers: cfg.VerifyWorkers,
	})
}

// Close releases every backend opened by Open and Sinks, newest first.
func (c *Components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
