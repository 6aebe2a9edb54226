package application

import (
	"context"
	"errors"
	"log/slog"
)

// StateStore persists the next round to scan across runs.
type StateStore interface {
	LoadNextRound(ctx context.Context) (uint64, bool, error)
	SaveNextRound(ctx context.Context, round uint64) error
}

// RoundCursor tracks which round is scanned next.
type RoundCursor struct {
	store      StateStore
	startRound uint64
}

func NewRoundCursor(store StateStore, startRound uint64) (*RoundCursor, error) {
	if store == nil {
		return nil, errors.New("state store is required")
	}
	return &RoundCursor{store: store, startRound: startRound}, nil
}

// Next returns the persisted round, or the configured start round when the
// stored value is missing, unreadable or zero.
func (c *RoundCursor) Next(ctx context.Context) uint64 {
	round, ok, err := c.store.LoadNextRound(ctx)
	if err != nil {
		slog.Warn("scan state unreadable, using start round", "err", err, "start_round", c.startRound)
		return c.startRound
	}
	if !ok || round == 0 {
		return c.startRound
	}
	return round
}

// Advance overwrites the persisted round so the next run resumes from it.
func (c *RoundCursor) Advance(ctx context.Context, round uint64) error {
	return c.store.SaveNextRound(ctx, round)
}
