package mysql

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

	_ "github.com/go-sql-driver/mysql"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Repository struct {
	db      *sql.DB
	network string
}

func NewRepository(dsn string, network string) (*Repository, error) {
	if dsn == "" {
		return nil, errors.New("db dsn is required")
	}
	if network == "" {
		return nil, errors.New("network is required")
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := createSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repository{db: db, network: network}, nil
}

func createSchema(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS arc72_transfers (
			network VARCHAR(16) NOT NULL,
			round BIGINT UNSIGNED NOT NULL,
			position INT UNSIGNED NOT NULL,
			contract_id BIGINT UNSIGNED NOT NULL,
			token_id DECIMAL(65,0) NOT NULL,
			owner VARCHAR(58) NOT NULL,
			PRIMARY KEY (network, round, position),
			KEY transfers_owner_idx (network, owner),
			KEY transfers_contract_idx (network, contract_id)
		)`,
		`CREATE TABLE IF NOT EXISTS scan_state (
			state_key VARCHAR(64) NOT NULL,
			state_value VARCHAR(64) NOT NULL,
			PRIMARY KEY (state_key)
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
	ctx, span := startDBSpan(ctx, "mysql.StoreRound",
		attribute.String("network", r.network),
		attribute.Int64("round", int64(round)),
		attribute.Int("transfer.count", len(events)),
	)
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM arc72_transfers WHERE network = ? AND round = ?`, r.network, round); err != nil {
		_ = tx.Rollback()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if len(events) > 0 {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO arc72_transfers (network, round, position, contract_id, token_id, owner)
			VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			_ = tx.Rollback()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		defer stmt.Close()
		for i, event := range events {
			if _, err := stmt.ExecContext(ctx, r.network, round, i, event.ContractID, tokenText(event.TokenID), event.Owner); err != nil {
				_ = tx.Rollback()
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (r *Repository) QueryTransfers(ctx context.Context, filter application.TransferQueryFilter) ([]domain.TransferEvent, error) {
	ctx, span := startDBSpan(ctx, "mysql.QueryTransfers", attribute.String("network", r.network))
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query, args := buildTransferQuery(r.network, filter)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
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

func buildTransferQuery(network string, filter application.TransferQueryFilter) (string, []any) {
	clauses := []string{"network = ?"}
	args := []any{network}

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

	query := `SELECT round, contract_id, CAST(token_id AS CHAR), owner FROM arc72_transfers WHERE ` +
		strings.Join(clauses, " AND ") + ` ORDER BY round ASC, position ASC LIMIT ?`
	args = append(args, filter.NormalizedLimit())
	return query, args
}

func (r *Repository) RoundRange(ctx context.Context) (uint64, uint64, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var min sql.NullInt64
	var max sql.NullInt64
	if err := r.db.QueryRowContext(ctx, `SELECT MIN(round), MAX(round) FROM arc72_transfers WHERE network = ?`, r.network).Scan(&min, &max); err != nil {
		return 0, 0, false, err
	}
	if !min.Valid || !max.Valid {
		return 0, 0, false, nil
	}
	return uint64(min.Int64), uint64(max.Int64), true, nil
}

func (r *Repository) LoadNextRound(ctx context.Context) (uint64, bool, error) {
	var value string
	if err := r.db.QueryRowContext(ctx, `SELECT state_value FROM scan_state WHERE state_key = ?`, stateKey(r.network)).Scan(&value); err != nil {
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
	ctx, span := startDBSpan(ctx, "mysql.SaveNextRound",
		attribute.String("network", r.network),
		attribute.Int64("round", int64(round)),
	)
	defer span.End()
	_, err := r.db.ExecContext(ctx, `INSERT INTO scan_state (state_key, state_value) VALUES (?, ?)
		ON DUPLICATE KEY UPDATE state_value = VALUES(state_value)`, stateKey(r.network), strconv.FormatUint(round, 10))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (r *Repository) ClearNextRound(ctx context.Context) error {
	ctx, span := startDBSpan(ctx, "mysql.ClearNextRound", attribute.String("network", r.network))
	defer span.End()
	_, err := r.db.ExecContext(ctx, `DELETE FROM scan_state WHERE state_key = ?`, stateKey(r.network))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (r *Repository) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return r.db.PingContext(ctx)
}

func stateKey(network string) string {
	return "next_round:" + network
}

func tokenText(id *big.Int) string {
	if id == nil {
		return "0"
	}
	return id.String()
}

func startDBSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("db.system", "mysql"))
	return otel.Tracer("arc72scan/mysql").Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(attrs...))
}
