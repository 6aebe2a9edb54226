package application

import (
	"context"

	"arc72scan/internal/domain"
)

type TransferQueryFilter struct {
	ContractID *uint64
	Owner      string
	FromRound  *uint64
	ToRound    *uint64
	Limit      int
}

// NormalizedLimit clamps Limit to (0, 1000], defaulting to 100.
func (f TransferQueryFilter) NormalizedLimit() int {
	if f.Limit <= 0 || f.Limit > 1000 {
		return 100
	}
	return f.Limit
}

// TransferIndex is a queryable mirror of the persisted rounds.
type TransferIndex interface {
	StoreRound(ctx context.Context, round uint64, events []domain.TransferEvent) error
	QueryTransfers(ctx context.Context, filter TransferQueryFilter) ([]domain.TransferEvent, error)
	RoundRange(ctx context.Context) (uint64, uint64, bool, error)
	Ping(ctx context.Context) error
}
