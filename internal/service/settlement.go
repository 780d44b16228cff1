package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/deevxcoder/queen-001-replit-sub000/internal/game"
	"github.com/deevxcoder/queen-001-replit-sub000/internal/metrics"
	"github.com/deevxcoder/queen-001-replit-sub000/internal/model"
	"github.com/deevxcoder/queen-001-replit-sub000/internal/notify"
	"github.com/deevxcoder/queen-001-replit-sub000/internal/pkg/lock"
	"github.com/deevxcoder/queen-001-replit-sub000/internal/repository"
)

// SettlementService declares results and settles the pending wagers of a
// market or option game.
//
// The pending -> declared transition is the admission gate. It runs under
// an in-process lock per target and as a compare-and-set in storage, so of
// any number of concurrent declarations exactly one proceeds to settle.
// Each wager is then settled in its own unit of work with a compare-and-set
// from pending, which makes a repeated pass harmless.
type SettlementService struct {
	store    repository.Store
	ledger   *Ledger
	rules    *game.Registry
	notifier notify.Notifier
	metrics  *metrics.Metrics

	markets *lock.KeyLock
	options *lock.KeyLock
}

// NewSettlementService creates a new SettlementService instance.
func NewSettlementService(
	store repository.Store,
	ledger *Ledger,
	rules *game.Registry,
	notifier notify.Notifier,
	m *metrics.Metrics,
) *SettlementService {
	return &SettlementService{
		store:    store,
		ledger:   ledger,
		rules:    rules,
		notifier: notifier,
		metrics:  m,
		markets:  lock.NewKeyLock(),
		options:  lock.NewKeyLock(),
	}
}

// UnresolvedWager is a wager the pass could not evaluate.
type UnresolvedWager struct {
	WagerID int64  `json:"wagerId"`
	UserID  int64  `json:"userId"`
	Reason  string `json:"reason"`
}

// FailedWager is a wager left pending because its settlement failed.
// SettleOutstanding retries it.
type FailedWager struct {
	WagerID int64  `json:"wagerId"`
	UserID  int64  `json:"userId"`
	Error   string `json:"error"`
}

// SettlementReport summarizes one settlement pass.
type SettlementReport struct {
	TargetKind model.TargetKind  `json:"targetKind"`
	TargetID   int64             `json:"targetId"`
	Result     string            `json:"result"`
	Won        int               `json:"won"`
	Lost       int               `json:"lost"`
	Paid       int64             `json:"paid"`
	Unresolved []UnresolvedWager `json:"unresolved,omitempty"`
	Failed     []FailedWager     `json:"failed,omitempty"`
}

// credit is a winning paid to one user during a pass.
type credit struct {
	amount  int64
	balance int64
}

// DeclareMarketResult records the two-digit result of a closed market and
// settles its pending wagers. Admin only.
func (s *SettlementService) DeclareMarketResult(ctx context.Context, actor Actor, marketID int64, result string) (*SettlementReport, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := game.ValidateMarketResult(result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	var report *SettlementReport
	err := s.markets.WithLock(ctx, marketID, func() error {
		err := s.store.WithTx(ctx, func(tx repository.Tx) error {
			m, err := tx.GetMarket(ctx, marketID)
			if err != nil {
				return err
			}
			if err := checkDeclarable(m.Status, m.ResultStatus, "market", marketID); err != nil {
				return err
			}
			ok, err := tx.DeclareMarketResult(ctx, marketID, result)
			if err != nil {
				return fmt.Errorf("failed to declare result: %w", err)
			}
			if !ok {
				return fmt.Errorf("%w: market %d", ErrAlreadyDeclared, marketID)
			}
			return nil
		})
		if err != nil {
			return err
		}

		log.Info().
			Int64("admin_id", actor.ID).
			Int64("market_id", marketID).
			Str("result", result).
			Msg("Market result declared")

		// Past the gate this caller owns the pass and must finish it even
		// if the request goes away.
		report, err = s.settle(context.WithoutCancel(ctx), model.TargetMarket, marketID, result)
		s.notifier.Broadcast(notify.MarketResult(marketID, result))
		return err
	})
	if err != nil {
		s.countRejected(model.TargetMarket, err)
	}
	return report, err
}

// DeclareOptionGameResult records the winning team of a closed option game
// and settles its pending wagers. Admin only.
func (s *SettlementService) DeclareOptionGameResult(ctx context.Context, actor Actor, gameID int64, winner model.Team) (*SettlementReport, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := game.ValidateOptionResult(string(winner)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	var report *SettlementReport
	err := s.options.WithLock(ctx, gameID, func() error {
		err := s.store.WithTx(ctx, func(tx repository.Tx) error {
			g, err := tx.GetOptionGame(ctx, gameID)
			if err != nil {
				return err
			}
			if err := checkDeclarable(g.Status, g.ResultStatus, "option game", gameID); err != nil {
				return err
			}
			ok, err := tx.DeclareOptionGameResult(ctx, gameID, winner)
			if err != nil {
				return fmt.Errorf("failed to declare result: %w", err)
			}
			if !ok {
				return fmt.Errorf("%w: option game %d", ErrAlreadyDeclared, gameID)
			}
			return nil
		})
		if err != nil {
			return err
		}

		log.Info().
			Int64("admin_id", actor.ID).
			Int64("option_game_id", gameID).
			Str("winner", string(winner)).
			Msg("Option game result declared")

		report, err = s.settle(context.WithoutCancel(ctx), model.TargetOption, gameID, string(winner))
		s.notifier.Broadcast(notify.OptionGameResult(gameID, winner))
		return err
	})
	if err != nil {
		s.countRejected(model.TargetOption, err)
	}
	return report, err
}

// SettleOutstanding re-runs the settlement pass for a target whose result is
// already declared. Wagers settled earlier are skipped. Admin only.
func (s *SettlementService) SettleOutstanding(ctx context.Context, actor Actor, kind model.TargetKind, targetID int64) (*SettlementReport, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	var (
		locks  *lock.KeyLock
		result func(tx repository.Tx) (string, error)
	)
	switch kind {
	case model.TargetMarket:
		locks = s.markets
		result = func(tx repository.Tx) (string, error) {
			m, err := tx.GetMarket(ctx, targetID)
			if err != nil {
				return "", err
			}
			if m.ResultStatus != model.ResultDeclared || m.ResultValue == nil {
				return "", fmt.Errorf("%w: market %d has no declared result", ErrValidation, targetID)
			}
			return *m.ResultValue, nil
		}
	case model.TargetOption:
		locks = s.options
		result = func(tx repository.Tx) (string, error) {
			g, err := tx.GetOptionGame(ctx, targetID)
			if err != nil {
				return "", err
			}
			if g.ResultStatus != model.ResultDeclared || g.WinningTeam == nil {
				return "", fmt.Errorf("%w: option game %d has no declared result", ErrValidation, targetID)
			}
			return string(*g.WinningTeam), nil
		}
	default:
		return nil, validationf("unknown target kind %q", kind)
	}

	var report *SettlementReport
	err := locks.WithLock(ctx, targetID, func() error {
		var value string
		err := s.store.View(ctx, func(tx repository.Tx) error {
			var err error
			value, err = result(tx)
			return err
		})
		if err != nil {
			return err
		}

		log.Info().
			Int64("admin_id", actor.ID).
			Str("target_kind", string(kind)).
			Int64("target_id", targetID).
			Msg("Settling outstanding wagers")

		report, err = s.settle(context.WithoutCancel(ctx), kind, targetID, value)
		return err
	})
	return report, err
}

func checkDeclarable(status model.EntityStatus, result model.ResultStatus, what string, id int64) error {
	if result == model.ResultDeclared {
		return fmt.Errorf("%w: %s %d", ErrAlreadyDeclared, what, id)
	}
	if status != model.StatusClosed {
		return fmt.Errorf("%w: %s %d is %s", ErrNotClosed, what, id, status)
	}
	return nil
}

// settle evaluates every pending wager of the target. A wager that cannot be
// evaluated becomes unresolved; a wager whose credit fails stays pending and
// is reported. Neither stops the pass. The returned error joins the credit
// failures.
func (s *SettlementService) settle(ctx context.Context, kind model.TargetKind, targetID int64, result string) (*SettlementReport, error) {
	start := time.Now()
	defer func() {
		s.metrics.SettlementDuration.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())
	}()

	var wagers []*model.Wager
	err := s.store.View(ctx, func(tx repository.Tx) error {
		var err error
		wagers, err = tx.ListWagersByTarget(ctx, kind, targetID, model.WagerPending)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list pending wagers: %w", err)
	}

	report := &SettlementReport{TargetKind: kind, TargetID: targetID, Result: result}
	credits := make(map[int64]*credit)
	var errs []error

	for _, w := range wagers {
		won, matchErr := s.match(w, result)
		if matchErr != nil {
			s.markUnresolved(ctx, report, w, matchErr)
			continue
		}

		if !won {
			settled, err := s.settleLost(ctx, w)
			if err != nil {
				report.Failed = append(report.Failed, FailedWager{WagerID: w.ID, UserID: w.UserID, Error: err.Error()})
				errs = append(errs, fmt.Errorf("wager %d: %w", w.ID, err))
				continue
			}
			if settled {
				report.Lost++
				s.metrics.WagersSettled.WithLabelValues(string(model.WagerLost)).Inc()
			}
			continue
		}

		balance, settled, err := s.settleWon(ctx, w)
		if err != nil {
			report.Failed = append(report.Failed, FailedWager{WagerID: w.ID, UserID: w.UserID, Error: err.Error()})
			errs = append(errs, fmt.Errorf("wager %d: %w", w.ID, err))
			log.Error().Err(err).Int64("wager_id", w.ID).Int64("user_id", w.UserID).Msg("Failed to credit winning wager")
			continue
		}
		if !settled {
			continue
		}
		report.Won++
		report.Paid += w.PotentialWinning
		s.metrics.WagersSettled.WithLabelValues(string(model.WagerWon)).Inc()

		c, ok := credits[w.UserID]
		if !ok {
			c = &credit{}
			credits[w.UserID] = c
		}
		c.amount += w.PotentialWinning
		c.balance = balance
	}

	for userID, c := range credits {
		s.notifier.NotifyUser(userID, notify.WalletUpdate(userID, c.amount, c.balance, fmt.Sprintf("%s:%d", kind, targetID)))
	}

	outcome := "settled"
	if len(errs) > 0 {
		outcome = "partial"
	}
	s.metrics.Settlements.WithLabelValues(string(kind), outcome).Inc()

	if len(report.Unresolved) > 0 {
		log.Warn().
			Str("target_kind", string(kind)).
			Int64("target_id", targetID).
			Int("unresolved", len(report.Unresolved)).
			Msg("Settlement finished with unresolved wagers")
	}
	log.Info().
		Str("target_kind", string(kind)).
		Int64("target_id", targetID).
		Str("result", result).
		Int("won", report.Won).
		Int("lost", report.Lost).
		Int64("paid", report.Paid).
		Int("failed", len(report.Failed)).
		Dur("elapsed", time.Since(start)).
		Msg("Settlement pass finished")

	return report, errors.Join(errs...)
}

func (s *SettlementService) match(w *model.Wager, result string) (bool, error) {
	rule, ok := s.rules.Get(w.GameType)
	if !ok {
		return false, fmt.Errorf("no matching rule for game type %q", w.GameType)
	}
	return rule.Match(w.Selection, result)
}

func (s *SettlementService) markUnresolved(ctx context.Context, report *SettlementReport, w *model.Wager, cause error) {
	log.Warn().
		Err(cause).
		Int64("wager_id", w.ID).
		Int64("user_id", w.UserID).
		Str("game_type", string(w.GameType)).
		Str("selection", w.Selection).
		Msg("Wager cannot be evaluated, marking unresolved")

	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		_, err := tx.SettleWager(ctx, w.ID, model.WagerUnresolved)
		return err
	})
	if err != nil {
		report.Failed = append(report.Failed, FailedWager{WagerID: w.ID, UserID: w.UserID, Error: err.Error()})
		return
	}
	report.Unresolved = append(report.Unresolved, UnresolvedWager{WagerID: w.ID, UserID: w.UserID, Reason: cause.Error()})
	s.metrics.WagersSettled.WithLabelValues(string(model.WagerUnresolved)).Inc()
}

func (s *SettlementService) settleLost(ctx context.Context, w *model.Wager) (bool, error) {
	var settled bool
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		settled, err = tx.SettleWager(ctx, w.ID, model.WagerLost)
		return err
	})
	return settled, err
}

// settleWon marks the wager won and credits its potential winning as one
// unit of work. settled is false if another pass already settled it.
func (s *SettlementService) settleWon(ctx context.Context, w *model.Wager) (balance int64, settled bool, err error) {
	err = s.ledger.update(ctx, []int64{w.UserID}, func(tx repository.Tx) error {
		user, err := tx.GetUserForUpdate(ctx, w.UserID)
		if err != nil {
			return err
		}
		settled, err = tx.SettleWager(ctx, w.ID, model.WagerWon)
		if err != nil || !settled {
			return err
		}
		_, balance, err = s.ledger.post(ctx, tx, user.Balance, posting{
			UserID:    w.UserID,
			Kind:      model.EntryWinning,
			Amount:    w.PotentialWinning,
			Delta:     w.PotentialWinning,
			Status:    model.EntryApproved,
			Reference: wagerReference(w.ID),
		})
		return err
	})
	if err != nil {
		return 0, false, err
	}
	return balance, settled, nil
}

func (s *SettlementService) countRejected(kind model.TargetKind, err error) {
	switch {
	case errors.Is(err, ErrAlreadyDeclared):
		s.metrics.Settlements.WithLabelValues(string(kind), "already_declared").Inc()
	case errors.Is(err, ErrNotClosed):
		s.metrics.Settlements.WithLabelValues(string(kind), "not_closed").Inc()
	}
}
