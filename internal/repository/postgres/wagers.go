package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/deevxcoder/queen-001-replit-sub000/internal/model"
)

const wagerColumns = `id, user_id, target_kind, target_id, game_type, selection, amount, odds,
	potential_winning, status, settled_at, created_at`

func scanWager(row pgx.Row) (*model.Wager, error) {
	var w model.Wager
	err := row.Scan(
		&w.ID,
		&w.UserID,
		&w.TargetKind,
		&w.TargetID,
		&w.GameType,
		&w.Selection,
		&w.Amount,
		&w.Odds,
		&w.PotentialWinning,
		&w.Status,
		&w.SettledAt,
		&w.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func collectWagers(rows pgx.Rows) ([]*model.Wager, error) {
	defer rows.Close()

	var wagers []*model.Wager
	for rows.Next() {
		w, err := scanWager(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wager: %w", err)
		}
		wagers = append(wagers, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating wagers: %w", err)
	}
	return wagers, nil
}

// CreateWager inserts a pending wager with its frozen odds.
func (q *queries) CreateWager(ctx context.Context, w *model.Wager) (*model.Wager, error) {
	const query = `
		INSERT INTO wagers (user_id, target_kind, target_id, game_type, selection, amount, odds,
			potential_winning, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8, 'pending', NOW())
		RETURNING ` + wagerColumns

	wager, err := scanWager(q.db.QueryRow(ctx, query,
		w.UserID, w.TargetKind, w.TargetID, w.GameType, w.Selection, w.Amount, w.Odds.String(), w.PotentialWinning,
	))
	if err != nil {
		return nil, mapError(err, "create wager")
	}
	return wager, nil
}

// GetWager retrieves a wager by id.
func (q *queries) GetWager(ctx context.Context, id int64) (*model.Wager, error) {
	const query = `SELECT ` + wagerColumns + ` FROM wagers WHERE id = $1`

	wager, err := scanWager(q.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapError(err, "get wager")
	}
	return wager, nil
}

// ListWagersByUser returns the user's wagers, newest first.
func (q *queries) ListWagersByUser(ctx context.Context, userID int64, limit int) ([]*model.Wager, error) {
	const query = `SELECT ` + wagerColumns + ` FROM wagers WHERE user_id = $1 ORDER BY id DESC LIMIT $2`

	rows, err := q.db.Query(ctx, query, userID, limitOrAll(limit))
	if err != nil {
		return nil, mapError(err, "list wagers")
	}
	return collectWagers(rows)
}

// ListWagersByTarget returns the wagers on a market or option game in the
// given status, in placement order.
func (q *queries) ListWagersByTarget(ctx context.Context, kind model.TargetKind, targetID int64, status model.WagerStatus) ([]*model.Wager, error) {
	const query = `
		SELECT ` + wagerColumns + `
		FROM wagers
		WHERE target_kind = $1 AND target_id = $2 AND status = $3
		ORDER BY id
	`

	rows, err := q.db.Query(ctx, query, kind, targetID, status)
	if err != nil {
		return nil, mapError(err, "list target wagers")
	}
	return collectWagers(rows)
}

// SettleWager moves a pending wager to its final status.
func (q *queries) SettleWager(ctx context.Context, id int64, status model.WagerStatus) (bool, error) {
	const query = `
		UPDATE wagers
		SET status = $2, settled_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`

	tag, err := q.db.Exec(ctx, query, id, status)
	if err != nil {
		return false, mapError(err, "settle wager")
	}
	return tag.RowsAffected() == 1, nil
}
