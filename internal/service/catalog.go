package service

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/deevxcoder/queen-001-replit-sub000/internal/model"
	"github.com/deevxcoder/queen-001-replit-sub000/internal/repository"
)

// CatalogService manages the lifecycle of markets and option games.
// Mutations are admin only; reads are open to every actor.
type CatalogService struct {
	store repository.Store
}

// NewCatalogService creates a new CatalogService instance.
func NewCatalogService(store repository.Store) *CatalogService {
	return &CatalogService{store: store}
}

// MarketView is a market together with its game-type configuration.
type MarketView struct {
	*model.Market
	GameTypes []*model.GameTypeConfig `json:"gameTypes"`
}

// GameTypeSetting enables or disables a game type on a market.
type GameTypeSetting struct {
	GameType model.GameType  `json:"gameType"`
	Active   bool            `json:"active"`
	Odds     decimal.Decimal `json:"odds"`
}

func (g GameTypeSetting) validate() error {
	if !slices.Contains(model.MarketGameTypes(), g.GameType) {
		return validationf("unknown market game type %q", g.GameType)
	}
	if !g.Odds.IsPositive() {
		return validationf("odds for %s must be positive", g.GameType)
	}
	return nil
}

// CreateMarket creates an upcoming market with the given game types.
func (s *CatalogService) CreateMarket(ctx context.Context, actor Actor, name string, games []GameTypeSetting) (*MarketView, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationf("market name is required")
	}
	for _, g := range games {
		if err := g.validate(); err != nil {
			return nil, err
		}
	}

	var view *MarketView
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		m, err := tx.CreateMarket(ctx, &model.Market{Name: name})
		if err != nil {
			return fmt.Errorf("failed to create market: %w", err)
		}
		for _, g := range games {
			if err := tx.UpsertGameTypeConfig(ctx, &model.GameTypeConfig{
				MarketID: m.ID, GameType: g.GameType, Active: g.Active, Odds: g.Odds,
			}); err != nil {
				return err
			}
		}
		view, err = loadMarket(ctx, tx, m.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info().Int64("admin_id", actor.ID).Int64("market_id", view.ID).Str("name", name).Msg("Market created")
	return view, nil
}

// ConfigureGameType sets the active flag and odds of one game type. Allowed
// until the market closes; wagers already placed keep the odds they were placed at.
func (s *CatalogService) ConfigureGameType(ctx context.Context, actor Actor, marketID int64, setting GameTypeSetting) (*MarketView, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := setting.validate(); err != nil {
		return nil, err
	}

	var view *MarketView
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		m, err := tx.GetMarketForShare(ctx, marketID)
		if err != nil {
			return err
		}
		if m.Status == model.StatusClosed {
			return validationf("market %d is closed", marketID)
		}
		if err := tx.UpsertGameTypeConfig(ctx, &model.GameTypeConfig{
			MarketID: marketID, GameType: setting.GameType, Active: setting.Active, Odds: setting.Odds,
		}); err != nil {
			return err
		}
		view, err = loadMarket(ctx, tx, marketID)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Int64("admin_id", actor.ID).
		Int64("market_id", marketID).
		Str("game_type", string(setting.GameType)).
		Bool("active", setting.Active).
		Str("odds", setting.Odds.String()).
		Msg("Market game type configured")
	return view, nil
}

// OpenMarket moves an upcoming market to open.
func (s *CatalogService) OpenMarket(ctx context.Context, actor Actor, marketID int64) (*MarketView, error) {
	return s.transitionMarket(ctx, actor, marketID, model.StatusOpen)
}

// CloseMarket moves an open market to closed. No wager is accepted afterwards.
func (s *CatalogService) CloseMarket(ctx context.Context, actor Actor, marketID int64) (*MarketView, error) {
	return s.transitionMarket(ctx, actor, marketID, model.StatusClosed)
}

func (s *CatalogService) transitionMarket(ctx context.Context, actor Actor, marketID int64, to model.EntityStatus) (*MarketView, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	var view *MarketView
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		m, err := tx.GetMarket(ctx, marketID)
		if err != nil {
			return err
		}
		if !m.Status.CanTransition(to) {
			return transitionError("market", marketID, m.Status, to)
		}
		ok, err := tx.TransitionMarket(ctx, marketID, m.Status, to)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: market %d changed status concurrently", ErrConflict, marketID)
		}
		view, err = loadMarket(ctx, tx, marketID)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info().Int64("admin_id", actor.ID).Int64("market_id", marketID).Str("status", string(to)).Msg("Market status changed")
	return view, nil
}

// GetMarket returns a market with its game types.
func (s *CatalogService) GetMarket(ctx context.Context, marketID int64) (*MarketView, error) {
	var view *MarketView
	err := s.store.View(ctx, func(tx repository.Tx) error {
		var err error
		view, err = loadMarket(ctx, tx, marketID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// ListMarkets returns every market with its game types.
func (s *CatalogService) ListMarkets(ctx context.Context) ([]*MarketView, error) {
	var views []*MarketView
	err := s.store.View(ctx, func(tx repository.Tx) error {
		markets, err := tx.ListMarkets(ctx)
		if err != nil {
			return err
		}
		for _, m := range markets {
			games, err := tx.ListGameTypeConfigs(ctx, m.ID)
			if err != nil {
				return err
			}
			views = append(views, &MarketView{Market: m, GameTypes: games})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return views, nil
}

func loadMarket(ctx context.Context, tx repository.Tx, marketID int64) (*MarketView, error) {
	m, err := tx.GetMarket(ctx, marketID)
	if err != nil {
		return nil, err
	}
	games, err := tx.ListGameTypeConfigs(ctx, marketID)
	if err != nil {
		return nil, err
	}
	return &MarketView{Market: m, GameTypes: games}, nil
}

// CreateOptionGame creates an upcoming option game.
func (s *CatalogService) CreateOptionGame(ctx context.Context, actor Actor, teamA, teamB string, odds decimal.Decimal) (*model.OptionGame, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	teamA, teamB = strings.TrimSpace(teamA), strings.TrimSpace(teamB)
	if teamA == "" || teamB == "" {
		return nil, validationf("both team names are required")
	}
	if strings.EqualFold(teamA, teamB) {
		return nil, validationf("teams must differ")
	}
	if !odds.IsPositive() {
		return nil, validationf("odds must be positive")
	}

	var g *model.OptionGame
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		g, err = tx.CreateOptionGame(ctx, &model.OptionGame{TeamA: teamA, TeamB: teamB, Odds: odds})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create option game: %w", err)
	}

	log.Info().Int64("admin_id", actor.ID).Int64("option_game_id", g.ID).Str("odds", odds.String()).Msg("Option game created")
	return g, nil
}

// SetOptionOdds changes the odds of an option game that is not closed.
func (s *CatalogService) SetOptionOdds(ctx context.Context, actor Actor, gameID int64, odds decimal.Decimal) (*model.OptionGame, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if !odds.IsPositive() {
		return nil, validationf("odds must be positive")
	}

	var g *model.OptionGame
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		current, err := tx.GetOptionGameForShare(ctx, gameID)
		if err != nil {
			return err
		}
		if current.Status == model.StatusClosed {
			return validationf("option game %d is closed", gameID)
		}
		current.Odds = odds
		if err := tx.SetOptionGameOdds(ctx, current); err != nil {
			return err
		}
		g, err = tx.GetOptionGame(ctx, gameID)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info().Int64("admin_id", actor.ID).Int64("option_game_id", gameID).Str("odds", odds.String()).Msg("Option odds changed")
	return g, nil
}

// OpenOptionGame moves an upcoming option game to open.
func (s *CatalogService) OpenOptionGame(ctx context.Context, actor Actor, gameID int64) (*model.OptionGame, error) {
	return s.transitionOption(ctx, actor, gameID, model.StatusOpen)
}

// CloseOptionGame moves an open option game to closed.
func (s *CatalogService) CloseOptionGame(ctx context.Context, actor Actor, gameID int64) (*model.OptionGame, error) {
	return s.transitionOption(ctx, actor, gameID, model.StatusClosed)
}

func (s *CatalogService) transitionOption(ctx context.Context, actor Actor, gameID int64, to model.EntityStatus) (*model.OptionGame, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	var g *model.OptionGame
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		current, err := tx.GetOptionGame(ctx, gameID)
		if err != nil {
			return err
		}
		if !current.Status.CanTransition(to) {
			return transitionError("option game", gameID, current.Status, to)
		}
		ok, err := tx.TransitionOptionGame(ctx, gameID, current.Status, to)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: option game %d changed status concurrently", ErrConflict, gameID)
		}
		g, err = tx.GetOptionGame(ctx, gameID)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info().Int64("admin_id", actor.ID).Int64("option_game_id", gameID).Str("status", string(to)).Msg("Option game status changed")
	return g, nil
}

// GetOptionGame returns one option game.
func (s *CatalogService) GetOptionGame(ctx context.Context, gameID int64) (*model.OptionGame, error) {
	var g *model.OptionGame
	err := s.store.View(ctx, func(tx repository.Tx) error {
		var err error
		g, err = tx.GetOptionGame(ctx, gameID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

// ListOptionGames returns every option game.
func (s *CatalogService) ListOptionGames(ctx context.Context) ([]*model.OptionGame, error) {
	var games []*model.OptionGame
	err := s.store.View(ctx, func(tx repository.Tx) error {
		var err error
		games, err = tx.ListOptionGames(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return games, nil
}

// transitionError explains a refused status change. Closing a target that
// is not open is ErrNotOpen; any other refusal is a validation error.
func transitionError(what string, id int64, current, to model.EntityStatus) error {
	if to == model.StatusClosed && current != model.StatusOpen {
		return fmt.Errorf("%w: %s %d is %s", ErrNotOpen, what, id, current)
	}
	return validationf("cannot move %s %d from %s to %s", what, id, current, to)
}
