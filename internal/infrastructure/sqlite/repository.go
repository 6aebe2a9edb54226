package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"arc72scan/internal/application"
	"arc72scan/internal/domain"

	_ "modernc.org/sqlite"
)

// Repository mirrors persisted rounds into an embedded database and can hold
// the scan state for one network.
type Repository struct {
	db      *sql.DB
	network string
}

func NewRepository(dbPath string, network string) (*Repository, error) {
	if dbPath == "" {
		return nil, errors.New("db path is required")
	}
	if network == "" {
		return nil, errors.New("network is required")
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// a single connection keeps :memory: databases and write locking simple
	db.SetMaxOpenConns(1)
	if err := createSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repository{db: db, network: network}, nil
}

func createSchema(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS transfers (
			network TEXT NOT NULL,
			round INTEGER NOT NULL,
			position INTEGER NOT NULL,
			contract_id INTEGER NOT NULL,
			token_id TEXT NOT NULL,
			owner TEXT NOT NULL,
			PRIMARY KEY (network, round, position)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transfers_owner ON transfers (network, owner)`,
		`CREATE INDEX IF NOT EXISTS idx_transfers_contract ON transfers (network, contract_id)`,
		`CREATE TABLE IF NOT EXISTS state (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

// StoreRound replaces every row of the round with events.
func (r *Repository) StoreRound(ctx context.Context, round uint64, events []domain.TransferEvent) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM transfers WHERE network = ? AND round = ?`, r.network, round); err != nil {
		_ = tx.Rollback()
		return err
	}
	if len(events) > 0 {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO transfers (network, round, position, contract_id, token_id, owner)
			VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		defer stmt.Close()
		for i, event := range events {
			if _, err := stmt.ExecContext(ctx, r.network, round, i, event.ContractID, tokenText(event.TokenID), event.Owner); err != nil {
				_ = tx.Rollback()
				return err
			}
		}
	}
	return tx.Commit()
}

func (r *Repository) QueryTransfers(ctx context.Context, filter application.TransferQueryFilter) ([]domain.TransferEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	clauses := []string{"network = ?"}
	args := []any{r.network}

	if filter.ContractID != nil {
		clauses = append(clauses, "contract_id = ?")
		args = append(args, *filter.ContractID)
	}
	if filter.Owner != "" {
		clauses = append(clauses, "owner = ?")
		args = append(args, filter.Owner)
	}
	if filter.FromRound != nil {
		clauses = append(clauses, "round >= ?")
		args = append(args, *filter.FromRound)
	}
	if filter.ToRound != nil {
		clauses = append(clauses, "round <= ?")
		args = append(args, *filter.ToRound)
	}

	query := `SELECT round, contract_id, token_id, owner FROM transfers WHERE ` + strings.Join(clauses, " AND ") +
		` ORDER BY round ASC, position ASC LIMIT ?`
	args = append(args, filter.NormalizedLimit())

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]domain.TransferEvent, 0)
	for rows.Next() {
		var event domain.TransferEvent
		var token string
		if err := rows.Scan(&event.Round, &event.ContractID, &token, &event.Owner); err != nil {
			return nil, err
		}
		id, ok := new(big.Int).SetString(token, 10)
		if !ok {
			return nil, fmt.Errorf("%w: token id %q", domain.ErrDecode, token)
		}
		event.TokenID = id
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func (r *Repository) RoundRange(ctx context.Context) (uint64, uint64, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var min sql.NullInt64
	var max sql.NullInt64
	if err := r.db.QueryRowContext(ctx, `SELECT MIN(round), MAX(round) FROM transfers WHERE network = ?`, r.network).Scan(&min, &max); err != nil {
		return 0, 0, false, err
	}
	if !min.Valid || !max.Valid {
		return 0, 0, false, nil
	}
	return uint64(min.Int64), uint64(max.Int64), true, nil
}

func (r *Repository) stateKey() string {
	return "next_round:" + r.network
}

func (r *Repository) LoadNextRound(ctx context.Context) (uint64, bool, error) {
	var value string
	if err := r.db.QueryRowContext(ctx, `SELECT value FROM state WHERE key = ?`, r.stateKey()).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	round, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%w: state %q: %w", domain.ErrDecode, value, err)
	}
	return round, true, nil
}

func (r *Repository) SaveNextRound(ctx context.Context, round uint64) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, r.stateKey(), strconv.FormatUint(round, 10))
	return err
}

func (r *Repository) ClearNextRound(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM state WHERE key = ?`, r.stateKey())
	return err
}

func (r *Repository) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return r.db.PingContext(ctx)
}

func tokenText(id *big.Int) string {
	if id == nil {
		return "0"
	}
	return id.String()
}
