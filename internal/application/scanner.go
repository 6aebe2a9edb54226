package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"arc72scan/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

type BlockSource interface {
	FetchBlock(ctx context.Context, round uint64) (domain.Block, error)
	LatestRound(ctx context.Context) (uint64, error)
}

type Verifier interface {
	Verify(ctx context.Context, candidate domain.TransferCandidate) bool
}

// RoundWriter stores the complete accepted set for a round.
type RoundWriter interface {
	WriteRound(ctx context.Context, round uint64, events []domain.TransferEvent) error
}

// RoundSink receives a round after it has been written. Sink failures are
// logged and never block the cursor.
type RoundSink interface {
	PublishRound(ctx context.Context, result RoundResult) error
}

type ScanObserver interface {
	OnLatestRound(round uint64)
	OnRoundScanned(result RoundResult)
	OnRoundFailed(round uint64, err error)
}

type ScannerConfig struct {
	Network       string
	MaxRounds     uint64
	Follow        bool
	PollInterval  time.Duration
	VerifyWorkers int
}

// RoundResult summarizes one scanned round.
type RoundResult struct {
	Network      string
	Round        uint64
	Transactions int
	Candidates   []domain.TransferCandidate
	Events       []domain.TransferEvent
	NewContracts []domain.NewContract
	Duration     time.Duration
}

// Rejected is the number of extracted candidates the verifier declined.
func (r RoundResult) Rejected() int {
	return len(r.Candidates) - len(r.Events)
}

type Scanner struct {
	source    BlockSource
	extractor *TransferExtractor
	verifier  Verifier
	writer    RoundWriter
	cursor    *RoundCursor
	sinks     []RoundSink
	observer  ScanObserver
	cfg       ScannerConfig
}

func NewScanner(source BlockSource, extractor *TransferExtractor, verifier Verifier, writer RoundWriter, cursor *RoundCursor, sinks []RoundSink, observer ScanObserver, cfg ScannerConfig) (*Scanner, error) {
	if source == nil || extractor == nil || verifier == nil || writer == nil || cursor == nil {
		return nil, errors.New("scanner dependencies must not be nil")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.VerifyWorkers <= 0 {
		cfg.VerifyWorkers = 1
	}
	return &Scanner{
		source:    source,
		extractor: extractor,
		verifier:  verifier,
		writer:    writer,
		cursor:    cursor,
		sinks:     sinks,
		observer:  observer,
		cfg:       cfg,
	}, nil
}

// Run scans rounds starting at the cursor. Without Follow it stops after
// MaxRounds rounds or at the first round that cannot be fetched. With Follow
// it waits for new rounds and stops only when ctx is done or MaxRounds is hit.
func (s *Scanner) Run(ctx context.Context) error {
	var scanned uint64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if s.cfg.MaxRounds > 0 && scanned >= s.cfg.MaxRounds {
			return nil
		}

		round := s.cursor.Next(ctx)
		if s.cfg.Follow {
			latest, err := s.source.LatestRound(ctx)
			if err != nil {
				slog.Warn("node status unavailable", "err", err)
				if err := s.wait(ctx); err != nil {
					return err
				}
				continue
			}
			if s.observer != nil {
				s.observer.OnLatestRound(latest)
			}
			if round > latest {
				if err := s.wait(ctx); err != nil {
					return err
				}
				continue
			}
		}

		if _, err := s.ProcessRound(ctx, round); err != nil {
			if !errors.Is(err, domain.ErrNetwork) && !errors.Is(err, domain.ErrDecode) {
				return err
			}
			slog.Warn("round not confirmed", "round", round, "err", err)
			if !s.cfg.Follow {
				return nil
			}
			if err := s.wait(ctx); err != nil {
				return err
			}
			continue
		}
		scanned++
	}
}

// ProcessRound scans a round, writes its accepted transfers, notifies the
// sinks and advances the cursor past it. Fetch failures are returned wrapped
// in domain.ErrNetwork or domain.ErrDecode with nothing written.
func (s *Scanner) ProcessRound(ctx context.Context, round uint64) (RoundResult, error) {
	ctx, span := otel.Tracer("arc72scan/scanner").Start(ctx, "scanner.process_round")
	defer span.End()
	span.SetAttributes(
		attribute.String("network", s.cfg.Network),
		attribute.Int64("round", int64(round)),
	)

	result, err := s.ScanRound(ctx, round)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if s.observer != nil {
			s.observer.OnRoundFailed(round, err)
		}
		return RoundResult{}, err
	}

	if err := s.writer.WriteRound(ctx, round, result.Events); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return RoundResult{}, fmt.Errorf("write round %d: %w", round, err)
	}
	for _, sink := range s.sinks {
		if err := sink.PublishRound(ctx, result); err != nil {
			slog.Error("round sink failed", "round", round, "sink", fmt.Sprintf("%T", sink), "err", err)
		}
	}
	if err := s.cursor.Advance(ctx, round+1); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return RoundResult{}, fmt.Errorf("advance cursor past %d: %w", round, err)
	}

	span.SetAttributes(
		attribute.Int("transfer.candidates", len(result.Candidates)),
		attribute.Int("transfer.accepted", len(result.Events)),
	)
	if s.observer != nil {
		s.observer.OnRoundScanned(result)
	}
	slog.Info("round scanned",
		"round", round,
		"txns", result.Transactions,
		"candidates", len(result.Candidates),
		"accepted", len(result.Events),
		"new_contracts", len(result.NewContracts),
		"duration", result.Duration,
	)
	return result, nil
}

// ScanRound fetches, extracts and verifies a round without writing anything.
func (s *Scanner) ScanRound(ctx context.Context, round uint64) (RoundResult, error) {
	start := time.Now()
	block, err := s.source.FetchBlock(ctx, round)
	if err != nil {
		return RoundResult{}, fmt.Errorf("fetch round %d: %w", round, err)
	}
	extraction := s.extractor.Extract(ctx, block)
	events := s.verifyAll(ctx, extraction.Candidates)
	return RoundResult{
		Network:      s.cfg.Network,
		Round:        round,
		Transactions: len(block.Transactions),
		Candidates:   extraction.Candidates,
		Events:       events,
		NewContracts: extraction.NewContracts,
		Duration:     time.Since(start),
	}, nil
}

// verifyAll submits every candidate and returns the accepted ones in block
// order. Each goroutine owns exactly one slot of the verdict slice.
func (s *Scanner) verifyAll(ctx context.Context, candidates []domain.TransferCandidate) []domain.TransferEvent {
	events := make([]domain.TransferEvent, 0, len(candidates))
	if len(candidates) == 0 {
		return events
	}
	verdicts := make([]bool, len(candidates))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.cfg.VerifyWorkers)
	for i, candidate := range candidates {
		group.Go(func() error {
			verdicts[i] = s.verifier.Verify(groupCtx, candidate)
			return nil
		})
	}
	_ = group.Wait()

	for i, candidate := range candidates {
		if !verdicts[i] {
			slog.Debug("transfer rejected", "round", candidate.Round, "app_id", candidate.ContractID, "token_id", candidate.TokenID.String())
			continue
		}
		events = append(events, candidate.Accept())
	}
	return events
}

func (s *Scanner) wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.cfg.PollInterval):
		return nil
	}
}
