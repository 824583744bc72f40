// Package repository persists terminals, sessions, charges, events and zones in PostgreSQL.
package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"lancenter/backend/services/terminals-service/internal/apperr"
	"lancenter/backend/services/terminals-service/internal/service"
)

//go:embed schema.sql
var schema string

// Postgres error codes mapped to domain errors.
const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Migrate creates the tables and indexes if they do not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Store runs units of work in serializable transactions, one writer per tenant.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewStore wraps db.
func NewStore(db *sql.DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, logger: logger}
}

// Update runs fn inside a serializable transaction holding the tenant's advisory lock.
func (s *Store) Update(ctx context.Context, tenantID string, fn func(service.Tx) error) error {
	return s.run(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable}, func(tx *sql.Tx) error {
		const query = `SELECT pg_advisory_xact_lock(hashtext($1))`
		if _, err := tx.ExecContext(ctx, query, tenantID); err != nil {
			return fmt.Errorf("lock tenant %s: %w", tenantID, err)
		}
		return fn(newTx(tx))
	})
}

// View runs fn inside a read-only snapshot.
func (s *Store) View(ctx context.Context, tenantID string, fn func(service.Tx) error) error {
	return s.run(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}, func(tx *sql.Tx) error {
		return fn(newTx(tx))
	})
}

func (s *Store) run(ctx context.Context, opts *sql.TxOptions, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return translate(fmt.Errorf("begin transaction: %w", err))
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.Warn("rollback failed", zap.Error(rbErr))
		}
		return translate(err)
	}

	if err := tx.Commit(); err != nil {
		return translate(fmt.Errorf("commit: %w", err))
	}
	return nil
}

// translate maps constraint violations raised by a concurrent writer to precondition
// errors and leaves every other failure to be reported as storage.
func translate(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case codeUniqueViolation:
		return &apperr.Error{Kind: apperr.KindPrecondition, Message: "state changed concurrently, reload and retry", Cause: err}
	case codeSerializationFailure:
		return apperr.Storage(err)
	}
	return err
}

// pgTx implements service.Tx on top of one database transaction.
type pgTx struct {
	*TerminalRepository
	*SessionRepository
	*LedgerRepository
	*ZoneRepository
}

func newTx(q querier) *pgTx {
	return &pgTx{
		TerminalRepository: &TerminalRepository{q: q},
		SessionRepository:  &SessionRepository{q: q},
		LedgerRepository:   &LedgerRepository{q: q},
		ZoneRepository:     &ZoneRepository{q: q},
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
