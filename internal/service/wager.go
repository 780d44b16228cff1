package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/deevxcoder/queen-001-replit-sub000/internal/game"
	"github.com/deevxcoder/queen-001-replit-sub000/internal/metrics"
	"github.com/deevxcoder/queen-001-replit-sub000/internal/model"
	"github.com/deevxcoder/queen-001-replit-sub000/internal/notify"
	"github.com/deevxcoder/queen-001-replit-sub000/internal/repository"
)

// WagerLimits bounds a single wager amount. Max 0 means no upper bound.
type WagerLimits struct {
	Min int64
	Max int64
}

// WagerService accepts wagers against open markets and option games.
type WagerService struct {
	store    repository.Store
	ledger   *Ledger
	rules    *game.Registry
	notifier notify.Notifier
	metrics  *metrics.Metrics
	limits   WagerLimits
}

// NewWagerService creates a new WagerService instance.
func NewWagerService(
	store repository.Store,
	ledger *Ledger,
	rules *game.Registry,
	notifier notify.Notifier,
	m *metrics.Metrics,
	limits WagerLimits,
) *WagerService {
	return &WagerService{
		store:    store,
		ledger:   ledger,
		rules:    rules,
		notifier: notifier,
		metrics:  m,
		limits:   limits,
	}
}

// MarketWagerRequest is a wager on one game type of a market.
type MarketWagerRequest struct {
	MarketID  int64          `json:"marketId"`
	GameType  model.GameType `json:"gameType"`
	Selection string         `json:"selection"`
	Amount    int64          `json:"amount"`
}

// OptionWagerRequest is a wager on one team of an option game.
type OptionWagerRequest struct {
	GameID    int64  `json:"gameId"`
	Selection string `json:"selection"`
	Amount    int64  `json:"amount"`
}

// target resolves the odds of a wager inside the unit of work, failing if
// the target no longer accepts wagers.
type target func(ctx context.Context, tx repository.Tx) (decimal.Decimal, error)

// PlaceMarketWager debits the amount, appends the bet entry and creates the
// pending wager in one unit of work. The odds in effect now are frozen into
// the wager.
func (s *WagerService) PlaceMarketWager(ctx context.Context, actor Actor, req MarketWagerRequest) (*model.Wager, error) {
	if !slices.Contains(model.MarketGameTypes(), req.GameType) {
		return nil, validationf("unknown market game type %q", req.GameType)
	}

	odds := func(ctx context.Context, tx repository.Tx) (decimal.Decimal, error) {
		market, err := tx.GetMarketForShare(ctx, req.MarketID)
		if err != nil {
			return decimal.Zero, err
		}
		if market.Status != model.StatusOpen {
			return decimal.Zero, fmt.Errorf("%w: market %d is %s", ErrNotOpen, market.ID, market.Status)
		}

		cfg, err := tx.GetGameTypeConfig(ctx, market.ID, req.GameType)
		if errors.Is(err, repository.ErrNotFound) || (err == nil && !cfg.Active) {
			return decimal.Zero, validationf("market %d does not offer %s", market.ID, req.GameType)
		}
		if err != nil {
			return decimal.Zero, err
		}
		return cfg.Odds, nil
	}

	return s.place(ctx, actor, model.TargetMarket, req.MarketID, req.GameType, req.Selection, req.Amount, odds)
}

// PlaceOptionWager places a wager on team A or B of an option game.
func (s *WagerService) PlaceOptionWager(ctx context.Context, actor Actor, req OptionWagerRequest) (*model.Wager, error) {
	odds := func(ctx context.Context, tx repository.Tx) (decimal.Decimal, error) {
		g, err := tx.GetOptionGameForShare(ctx, req.GameID)
		if err != nil {
			return decimal.Zero, err
		}
		if g.Status != model.StatusOpen {
			return decimal.Zero, fmt.Errorf("%w: option game %d is %s", ErrNotOpen, g.ID, g.Status)
		}
		return g.Odds, nil
	}

	return s.place(ctx, actor, model.TargetOption, req.GameID, model.GameOption, req.Selection, req.Amount, odds)
}

func (s *WagerService) place(
	ctx context.Context,
	actor Actor,
	kind model.TargetKind,
	targetID int64,
	gameType model.GameType,
	selection string,
	amount int64,
	resolveOdds target,
) (*model.Wager, error) {
	if !actor.IsPlayer() {
		return nil, unauthorizedf("only players can place wagers")
	}
	if err := s.checkAmount(amount); err != nil {
		return nil, err
	}

	rule, ok := s.rules.Get(gameType)
	if !ok {
		return nil, validationf("no matching rule for game type %q", gameType)
	}
	normalized, err := rule.Normalize(selection)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	var (
		wager   *model.Wager
		balance int64
	)
	err = s.ledger.update(ctx, []int64{actor.ID}, func(tx repository.Tx) error {
		user, err := tx.GetUserForUpdate(ctx, actor.ID)
		if err != nil {
			return err
		}
		if user.Role != model.RolePlayer {
			return unauthorizedf("user %d is not a player", user.ID)
		}
		if user.Status != model.UserActive {
			return unauthorizedf("user %d is %s", user.ID, user.Status)
		}

		odds, err := resolveOdds(ctx, tx)
		if err != nil {
			return err
		}

		if user.Balance < amount {
			return fmt.Errorf("%w: balance %d, wager %d", ErrInsufficientBalance, user.Balance, amount)
		}
		winning, ok := model.PotentialWinning(amount, odds)
		if !ok || user.Balance-amount > math.MaxInt64-winning {
			return validationf("potential winning of %d at odds %s is out of range", amount, odds)
		}

		wager, err = tx.CreateWager(ctx, &model.Wager{
			UserID:           user.ID,
			TargetKind:       kind,
			TargetID:         targetID,
			GameType:         gameType,
			Selection:        normalized,
			Amount:           amount,
			Odds:             odds,
			PotentialWinning: winning,
		})
		if err != nil {
			return fmt.Errorf("failed to create wager: %w", err)
		}

		_, balance, err = s.ledger.post(ctx, tx, user.Balance, posting{
			UserID:    user.ID,
			Kind:      model.EntryBet,
			Amount:    -amount,
			Delta:     -amount,
			Status:    model.EntryApproved,
			Reference: wagerReference(wager.ID),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.WagersPlaced.WithLabelValues(string(kind), string(gameType)).Inc()
	s.metrics.WagerAmount.WithLabelValues(string(kind)).Add(float64(amount))

	log.Info().
		Int64("wager_id", wager.ID).
		Int64("user_id", wager.UserID).
		Str("target_kind", string(kind)).
		Int64("target_id", targetID).
		Str("game_type", string(gameType)).
		Int64("amount", amount).
		Int64("potential_winning", wager.PotentialWinning).
		Msg("Wager placed")

	s.notifier.NotifyUser(actor.ID, notify.WalletUpdate(actor.ID, -amount, balance, wagerReference(wager.ID)))
	return wager, nil
}

func (s *WagerService) checkAmount(amount int64) error {
	if amount <= 0 {
		return validationf("amount must be positive")
	}
	if amount < s.limits.Min {
		return validationf("amount %d is below the minimum of %d", amount, s.limits.Min)
	}
	if s.limits.Max > 0 && amount > s.limits.Max {
		return validationf("amount %d exceeds the maximum of %d", amount, s.limits.Max)
	}
	return nil
}

// Get returns a wager visible to actor.
func (s *WagerService) Get(ctx context.Context, actor Actor, wagerID int64) (*model.Wager, error) {
	var wager *model.Wager
	err := s.store.View(ctx, func(tx repository.Tx) error {
		w, err := tx.GetWager(ctx, wagerID)
		if err != nil {
			return err
		}
		owner, err := tx.GetUser(ctx, w.UserID)
		if err != nil {
			return err
		}
		if !canView(actor, owner) {
			return unauthorizedf("cannot view wager %d", wagerID)
		}
		wager = w
		return nil
	})
	if err != nil {
		return nil, err
	}
	return wager, nil
}

// ListByUser returns the most recent wagers of userID, newest first.
func (s *WagerService) ListByUser(ctx context.Context, actor Actor, userID int64, limit int) ([]*model.Wager, error) {
	var wagers []*model.Wager
	err := s.store.View(ctx, func(tx repository.Tx) error {
		user, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		if !canView(actor, user) {
			return unauthorizedf("cannot view wagers of user %d", userID)
		}
		wagers, err = tx.ListWagersByUser(ctx, userID, limit)
		return err
	})
	if err != nil {
		return nil, err
	}
	return wagers, nil
}

func wagerReference(id int64) string {
	return fmt.Sprintf("wager:%d", id)
}
