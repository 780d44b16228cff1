// Package postgres implements repository.Store on PostgreSQL using pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deevxcoder/queen-001-replit-sub000/internal/repository"
)

// PostgreSQL error codes mapped onto repository errors.
const (
	codeUniqueViolation = "23505"
	codeCheckViolation  = "23514"

	balanceConstraint = "users_balance_check"
)

// dbtx is the query surface shared by *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements repository.Store on a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store on an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// WithTx runs fn inside a database transaction. The transaction commits if fn
// returns nil and rolls back otherwise.
func (s *Store) WithTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&queries{db: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// View runs fn directly on the pool.
func (s *Store) View(ctx context.Context, fn func(tx repository.Tx) error) error {
	return fn(&queries{db: s.pool})
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// queries implements repository.Tx on either the pool or an open transaction.
type queries struct {
	db dbtx
}

// mapError translates driver errors into repository errors.
func mapError(err error, op string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return fmt.Errorf("%s: %w", op, repository.ErrConflict)
		case codeCheckViolation:
			if pgErr.ConstraintName == balanceConstraint {
				return fmt.Errorf("%s: %w", op, repository.ErrNegativeBalance)
			}
		}
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

func limitOrAll(limit int) any {
	if limit <= 0 {
		return nil
	}
	return limit
}

var _ repository.Store = (*Store)(nil)
var _ repository.Tx = (*queries)(nil)
