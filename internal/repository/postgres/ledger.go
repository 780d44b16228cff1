package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/deevxcoder/queen-001-replit-sub000/internal/model"
)

const entryColumns = `id, user_id, kind, amount, status, reference, initiated_by, resolved_by, created_at, resolved_at`

func scanEntry(row pgx.Row) (*model.LedgerEntry, error) {
	var e model.LedgerEntry
	err := row.Scan(
		&e.ID,
		&e.UserID,
		&e.Kind,
		&e.Amount,
		&e.Status,
		&e.Reference,
		&e.InitiatedBy,
		&e.ResolvedBy,
		&e.CreatedAt,
		&e.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func collectEntries(rows pgx.Rows) ([]*model.LedgerEntry, error) {
	defer rows.Close()

	var entries []*model.LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger entries: %w", err)
	}
	return entries, nil
}

// CreateEntry appends a ledger entry.
func (q *queries) CreateEntry(ctx context.Context, e *model.LedgerEntry) (*model.LedgerEntry, error) {
	const query = `
		INSERT INTO ledger_entries (user_id, kind, amount, status, reference, initiated_by, resolved_by, created_at, resolved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), CASE WHEN $4::text = 'pending' THEN NULL ELSE NOW() END)
		RETURNING ` + entryColumns

	entry, err := scanEntry(q.db.QueryRow(ctx, query,
		e.UserID, e.Kind, e.Amount, e.Status, e.Reference, e.InitiatedBy, e.ResolvedBy,
	))
	if err != nil {
		return nil, mapError(err, "create ledger entry")
	}
	return entry, nil
}

// GetEntry retrieves a ledger entry by id.
func (q *queries) GetEntry(ctx context.Context, id int64) (*model.LedgerEntry, error) {
	const query = `SELECT ` + entryColumns + ` FROM ledger_entries WHERE id = $1`

	entry, err := scanEntry(q.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapError(err, "get ledger entry")
	}
	return entry, nil
}

// GetEntryForUpdate retrieves a ledger entry and locks its row.
func (q *queries) GetEntryForUpdate(ctx context.Context, id int64) (*model.LedgerEntry, error) {
	const query = `SELECT ` + entryColumns + ` FROM ledger_entries WHERE id = $1 FOR UPDATE`

	entry, err := scanEntry(q.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapError(err, "lock ledger entry")
	}
	return entry, nil
}

// ListEntriesByUser returns the user's ledger entries, newest first.
func (q *queries) ListEntriesByUser(ctx context.Context, userID int64, limit int) ([]*model.LedgerEntry, error) {
	const query = `SELECT ` + entryColumns + ` FROM ledger_entries WHERE user_id = $1 ORDER BY id DESC LIMIT $2`

	rows, err := q.db.Query(ctx, query, userID, limitOrAll(limit))
	if err != nil {
		return nil, mapError(err, "list ledger entries")
	}
	return collectEntries(rows)
}

// ListPendingEntries returns deposit and withdrawal requests awaiting approval, oldest first.
func (q *queries) ListPendingEntries(ctx context.Context, limit int) ([]*model.LedgerEntry, error) {
	const query = `SELECT ` + entryColumns + ` FROM ledger_entries WHERE status = 'pending' ORDER BY id LIMIT $1`

	rows, err := q.db.Query(ctx, query, limitOrAll(limit))
	if err != nil {
		return nil, mapError(err, "list pending entries")
	}
	return collectEntries(rows)
}

// ResolveEntry moves a pending entry to approved or rejected.
func (q *queries) ResolveEntry(ctx context.Context, id int64, status model.EntryStatus, actorID int64) (bool, error) {
	const query = `
		UPDATE ledger_entries
		SET status = $2, resolved_by = $3, resolved_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`

	tag, err := q.db.Exec(ctx, query, id, status, actorID)
	if err != nil {
		return false, mapError(err, "resolve ledger entry")
	}
	return tag.RowsAffected() == 1, nil
}

// SumApplied returns the sum of the entries reflected in the user's balance.
func (q *queries) SumApplied(ctx context.Context, userID int64) (int64, error) {
	const query = `
		SELECT COALESCE(SUM(amount), 0)::bigint
		FROM ledger_entries
		WHERE user_id = $1
		  AND (status = 'approved' OR (kind = 'withdrawal' AND status = 'pending'))
	`

	var sum int64
	if err := q.db.QueryRow(ctx, query, userID).Scan(&sum); err != nil {
		return 0, mapError(err, "sum ledger")
	}
	return sum, nil
}

// SumPending returns the absolute totals of the user's pending deposits and withdrawals.
func (q *queries) SumPending(ctx context.Context, userID int64) (int64, int64, error) {
	const query = `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE kind = 'deposit'), 0)::bigint,
			COALESCE(-SUM(amount) FILTER (WHERE kind = 'withdrawal'), 0)::bigint
		FROM ledger_entries
		WHERE user_id = $1 AND status = 'pending'
	`

	var deposits, withdrawals int64
	if err := q.db.QueryRow(ctx, query, userID).Scan(&deposits, &withdrawals); err != nil {
		return 0, 0, mapError(err, "sum pending")
	}
	return deposits, withdrawals, nil
}
