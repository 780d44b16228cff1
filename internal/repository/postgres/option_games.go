package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/deevxcoder/queen-001-replit-sub000/internal/model"
	"github.com/deevxcoder/queen-001-replit-sub000/internal/repository"
)

const optionGameColumns = `id, team_a, team_b, status, result_status, winning_team, odds, declared_at, created_at`

func scanOptionGame(row pgx.Row) (*model.OptionGame, error) {
	var g model.OptionGame
	err := row.Scan(
		&g.ID,
		&g.TeamA,
		&g.TeamB,
		&g.Status,
		&g.ResultStatus,
		&g.WinningTeam,
		&g.Odds,
		&g.DeclaredAt,
		&g.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// CreateOptionGame inserts an upcoming option game.
func (q *queries) CreateOptionGame(ctx context.Context, g *model.OptionGame) (*model.OptionGame, error) {
	const query = `
		INSERT INTO option_games (team_a, team_b, status, result_status, odds, created_at)
		VALUES ($1, $2, 'upcoming', 'pending', $3::numeric, NOW())
		RETURNING ` + optionGameColumns

	game, err := scanOptionGame(q.db.QueryRow(ctx, query, g.TeamA, g.TeamB, g.Odds.String()))
	if err != nil {
		return nil, mapError(err, "create option game")
	}
	return game, nil
}

// GetOptionGame retrieves an option game by id.
func (q *queries) GetOptionGame(ctx context.Context, id int64) (*model.OptionGame, error) {
	const query = `SELECT ` + optionGameColumns + ` FROM option_games WHERE id = $1`

	game, err := scanOptionGame(q.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapError(err, "get option game")
	}
	return game, nil
}

// GetOptionGameForShare retrieves an option game and blocks concurrent status updates.
func (q *queries) GetOptionGameForShare(ctx context.Context, id int64) (*model.OptionGame, error) {
	const query = `SELECT ` + optionGameColumns + ` FROM option_games WHERE id = $1 FOR SHARE`

	game, err := scanOptionGame(q.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapError(err, "lock option game")
	}
	return game, nil
}

// ListOptionGames returns all option games, oldest first.
func (q *queries) ListOptionGames(ctx context.Context) ([]*model.OptionGame, error) {
	const query = `SELECT ` + optionGameColumns + ` FROM option_games ORDER BY id`

	rows, err := q.db.Query(ctx, query)
	if err != nil {
		return nil, mapError(err, "list option games")
	}
	defer rows.Close()

	var games []*model.OptionGame
	for rows.Next() {
		g, err := scanOptionGame(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan option game: %w", err)
		}
		games = append(games, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating option games: %w", err)
	}
	return games, nil
}

// TransitionOptionGame moves the option game status with a compare-and-set.
func (q *queries) TransitionOptionGame(ctx context.Context, id int64, from, to model.EntityStatus) (bool, error) {
	const query = `UPDATE option_games SET status = $3 WHERE id = $1 AND status = $2`

	tag, err := q.db.Exec(ctx, query, id, from, to)
	if err != nil {
		return false, mapError(err, "transition option game")
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	if _, err := q.GetOptionGame(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

// DeclareOptionGameResult is the settlement admission gate for option games.
func (q *queries) DeclareOptionGameResult(ctx context.Context, id int64, winner model.Team) (bool, error) {
	const query = `
		UPDATE option_games
		SET result_status = 'declared', winning_team = $2, declared_at = NOW()
		WHERE id = $1 AND status = 'closed' AND result_status = 'pending'
	`

	tag, err := q.db.Exec(ctx, query, id, winner)
	if err != nil {
		return false, mapError(err, "declare option game result")
	}
	return tag.RowsAffected() == 1, nil
}

// SetOptionGameOdds updates the odds multiplier.
func (q *queries) SetOptionGameOdds(ctx context.Context, g *model.OptionGame) error {
	const query = `UPDATE option_games SET odds = $2::numeric WHERE id = $1`

	tag, err := q.db.Exec(ctx, query, g.ID, g.Odds.String())
	if err != nil {
		return mapError(err, "set option odds")
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
