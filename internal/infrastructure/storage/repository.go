package storage

import (
	"context"
	"errors"
	"fmt"

	"arc72scan/internal/application"
	"arc72scan/internal/domain"
	"arc72scan/internal/infrastructure/roundfile"
)

// ErrIndexUnavailable is returned by queries when no transfer index is configured.
var ErrIndexUnavailable = errors.New("transfer index not configured")

// Repository writes round files and mirrors them into an optional index.
// The round files stay authoritative; the index only serves queries.
type Repository struct {
	files *roundfile.Persister
	index application.TransferIndex
}

func NewRepository(files *roundfile.Persister, index application.TransferIndex) (*Repository, error) {
	if files == nil {
		return nil, errors.New("round persister is required")
	}
	return &Repository{files: files, index: index}, nil
}

func (r *Repository) WriteRound(ctx context.Context, round uint64, events []domain.TransferEvent) error {
	if err := r.files.WriteRound(ctx, round, events); err != nil {
		return err
	}
	if r.index == nil {
		return nil
	}
	if err := r.index.StoreRound(ctx, round, events); err != nil {
		return fmt.Errorf("index round %d: %w", round, err)
	}
	return nil
}

func (r *Repository) ReadRound(ctx context.Context, round uint64) ([]domain.TransferEvent, bool, error) {
	return r.files.ReadRound(ctx, round)
}

func (r *Repository) QueryTransfers(ctx context.Context, filter application.TransferQueryFilter) ([]domain.TransferEvent, error) {
	if r.index == nil {
		return nil, ErrIndexUnavailable
	}
	return r.index.QueryTransfers(ctx, filter)
}

func (r *Repository) RoundRange(ctx context.Context) (uint64, uint64, bool, error) {
	if r.index == nil {
		return 0, 0, false, ErrIndexUnavailable
	}
	return r.index.RoundRange(ctx)
}

func (r *Repository) Ping(ctx context.Context) error {
	if err := r.files.Ping(ctx); err != nil {
		return err
	}
	if r.index == nil {
		return nil
	}
	return r.index.Ping(ctx)
}
