package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/deevxcoder/queen-001-replit-sub000/internal/model"
)

const marketColumns = `id, name, status, result_status, result_value, declared_at, created_at`

func scanMarket(row pgx.Row) (*model.Market, error) {
	var m model.Market
	err := row.Scan(
		&m.ID,
		&m.Name,
		&m.Status,
		&m.ResultStatus,
		&m.ResultValue,
		&m.DeclaredAt,
		&m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// CreateMarket inserts an upcoming market.
func (q *queries) CreateMarket(ctx context.Context, m *model.Market) (*model.Market, error) {
	const query = `
		INSERT INTO markets (name, status, result_status, created_at)
		VALUES ($1, 'upcoming', 'pending', NOW())
		RETURNING ` + marketColumns

	market, err := scanMarket(q.db.QueryRow(ctx, query, m.Name))
	if err != nil {
		return nil, mapError(err, "create market")
	}
	return market, nil
}

// GetMarket retrieves a market by id.
func (q *queries) GetMarket(ctx context.Context, id int64) (*model.Market, error) {
	const query = `SELECT ` + marketColumns + ` FROM markets WHERE id = $1`

	market, err := scanMarket(q.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapError(err, "get market")
	}
	return market, nil
}

// GetMarketForShare retrieves a market and blocks concurrent status updates
// until the transaction ends.
func (q *queries) GetMarketForShare(ctx context.Context, id int64) (*model.Market, error) {
	const query = `SELECT ` + marketColumns + ` FROM markets WHERE id = $1 FOR SHARE`

	market, err := scanMarket(q.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapError(err, "lock market")
	}
	return market, nil
}

// ListMarkets returns all markets, oldest first.
func (q *queries) ListMarkets(ctx context.Context) ([]*model.Market, error) {
	const query = `SELECT ` + marketColumns + ` FROM markets ORDER BY id`

	rows, err := q.db.Query(ctx, query)
	if err != nil {
		return nil, mapError(err, "list markets")
	}
	defer rows.Close()

	var markets []*model.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan market: %w", err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating markets: %w", err)
	}
	return markets, nil
}

// TransitionMarket moves the market status with a compare-and-set.
func (q *queries) TransitionMarket(ctx context.Context, id int64, from, to model.EntityStatus) (bool, error) {
	const query = `UPDATE markets SET status = $3 WHERE id = $1 AND status = $2`

	tag, err := q.db.Exec(ctx, query, id, from, to)
	if err != nil {
		return false, mapError(err, "transition market")
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	// Distinguish a missing market from a status mismatch.
	if _, err := q.GetMarket(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

// DeclareMarketResult is the settlement admission gate: only one caller can
// move a closed market from pending to declared.
func (q *queries) DeclareMarketResult(ctx context.Context, id int64, result string) (bool, error) {
	const query = `
		UPDATE markets
		SET result_status = 'declared', result_value = $2, declared_at = NOW()
		WHERE id = $1 AND status = 'closed' AND result_status = 'pending'
	`

	tag, err := q.db.Exec(ctx, query, id, result)
	if err != nil {
		return false, mapError(err, "declare market result")
	}
	return tag.RowsAffected() == 1, nil
}

// UpsertGameTypeConfig creates or replaces a market game-type row.
func (q *queries) UpsertGameTypeConfig(ctx context.Context, cfg *model.GameTypeConfig) error {
	const query = `
		INSERT INTO market_game_types (market_id, game_type, active, odds)
		VALUES ($1, $2, $3, $4::numeric)
		ON CONFLICT (market_id, game_type)
		DO UPDATE SET active = EXCLUDED.active, odds = EXCLUDED.odds
	`

	if _, err := q.db.Exec(ctx, query, cfg.MarketID, cfg.GameType, cfg.Active, cfg.Odds.String()); err != nil {
		return mapError(err, "upsert game type")
	}
	return nil
}

// GetGameTypeConfig retrieves one market game-type row.
func (q *queries) GetGameTypeConfig(ctx context.Context, marketID int64, gameType model.GameType) (*model.GameTypeConfig, error) {
	const query = `
		SELECT market_id, game_type, active, odds
		FROM market_game_types
		WHERE market_id = $1 AND game_type = $2
	`

	var cfg model.GameTypeConfig
	err := q.db.QueryRow(ctx, query, marketID, gameType).Scan(&cfg.MarketID, &cfg.GameType, &cfg.Active, &cfg.Odds)
	if err != nil {
		return nil, mapError(err, "get game type")
	}
	return &cfg, nil
}

// ListGameTypeConfigs returns all game-type rows of a market.
func (q *queries) ListGameTypeConfigs(ctx context.Context, marketID int64) ([]*model.GameTypeConfig, error) {
	const query = `
		SELECT market_id, game_type, active, odds
		FROM market_game_types
		WHERE market_id = $1
		ORDER BY game_type
	`

	rows, err := q.db.Query(ctx, query, marketID)
	if err != nil {
		return nil, mapError(err, "list game types")
	}
	defer rows.Close()

	var cfgs []*model.GameTypeConfig
	for rows.Next() {
		var cfg model.GameTypeConfig
		if err := rows.Scan(&cfg.MarketID, &cfg.GameType, &cfg.Active, &cfg.Odds); err != nil {
			return nil, fmt.Errorf("failed to scan game type: %w", err)
		}
		cfgs = append(cfgs, &cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating game types: %w", err)
	}
	return cfgs, nil
}
