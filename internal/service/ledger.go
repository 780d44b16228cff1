package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/deevxcoder/queen-001-replit-sub000/internal/metrics"
	"github.com/deevxcoder/queen-001-replit-sub000/internal/model"
	"github.com/deevxcoder/queen-001-replit-sub000/internal/pkg/lock"
	"github.com/deevxcoder/queen-001-replit-sub000/internal/repository"
)

// Ledger owns every balance mutation. A mutation runs under the in-process
// lock of each affected user and inside one storage unit of work, so the
// balance change and its ledger entry commit together.
type Ledger struct {
	store         repository.Store
	users         *lock.KeyLock
	metrics       *metrics.Metrics
	verifyOnWrite bool

	mu          sync.Mutex
	quarantined map[int64]error
}

// LedgerOptions configures a Ledger.
type LedgerOptions struct {
	// VerifyOnWrite re-sums the user's applied entries after every posting
	// and compares the result with the new cached balance.
	VerifyOnWrite bool
}

// NewLedger creates a Ledger.
func NewLedger(store repository.Store, m *metrics.Metrics, opts LedgerOptions) *Ledger {
	return &Ledger{
		store:         store,
		users:         lock.NewKeyLock(),
		metrics:       m,
		verifyOnWrite: opts.VerifyOnWrite,
		quarantined:   make(map[int64]error),
	}
}

// posting describes one ledger entry and the balance change applied with it.
// Amount is what the entry records; Delta is what moves the cached balance
// now. They differ only for pending deposits, which apply nothing until approved.
type posting struct {
	UserID      int64
	Kind        model.EntryKind
	Amount      int64
	Delta       int64
	Status      model.EntryStatus
	Reference   string
	InitiatedBy *int64
	ResolvedBy  *int64
}

// update runs fn in one unit of work while holding the locks of userIDs.
// A quarantined user fails fast; a LedgerInconsistencyError from fn
// quarantines its user.
func (l *Ledger) update(ctx context.Context, userIDs []int64, fn func(tx repository.Tx) error) error {
	return l.users.WithLocks(ctx, userIDs, func() error {
		for _, id := range userIDs {
			if err := l.checkQuarantine(id); err != nil {
				return err
			}
		}

		err := l.store.WithTx(ctx, fn)

		var inconsistency *LedgerInconsistencyError
		if errors.As(err, &inconsistency) {
			l.quarantine(ctx, inconsistency)
		}
		return err
	})
}

// post appends p and applies its delta. The user row must already be locked
// by the caller through GetUserForUpdate; before is the balance it read.
func (l *Ledger) post(ctx context.Context, tx repository.Tx, before int64, p posting) (*model.LedgerEntry, int64, error) {
	balance, err := l.apply(ctx, tx, p.UserID, before, p.Delta, string(p.Kind))
	if err != nil {
		return nil, 0, err
	}

	entry, err := tx.CreateEntry(ctx, &model.LedgerEntry{
		UserID:      p.UserID,
		Kind:        p.Kind,
		Amount:      p.Amount,
		Status:      p.Status,
		Reference:   p.Reference,
		InitiatedBy: p.InitiatedBy,
		ResolvedBy:  p.ResolvedBy,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to append %s entry: %w", p.Kind, err)
	}

	if err := l.verify(ctx, tx, p.UserID, balance, string(p.Kind)); err != nil {
		return nil, 0, err
	}

	l.metrics.LedgerPostings.WithLabelValues(string(p.Kind), string(p.Status)).Inc()
	return entry, balance, nil
}

// apply adds delta to the cached balance and checks the store returned
// exactly before+delta.
func (l *Ledger) apply(ctx context.Context, tx repository.Tx, userID, before, delta int64, op string) (int64, error) {
	if delta == 0 {
		return before, nil
	}
	if delta > 0 && before > math.MaxInt64-delta {
		return 0, validationf("balance of user %d would overflow", userID)
	}

	balance, err := tx.AddBalance(ctx, userID, delta)
	if errors.Is(err, repository.ErrNegativeBalance) {
		return 0, ErrInsufficientBalance
	}
	if err != nil {
		return 0, fmt.Errorf("failed to update balance: %w", err)
	}

	if balance != before+delta {
		return 0, &LedgerInconsistencyError{UserID: userID, Operation: op, Expected: before + delta, Actual: balance}
	}
	return balance, nil
}

func (l *Ledger) verify(ctx context.Context, tx repository.Tx, userID, balance int64, op string) error {
	if !l.verifyOnWrite {
		return nil
	}
	sum, err := tx.SumApplied(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to sum ledger: %w", err)
	}
	if sum != balance {
		return &LedgerInconsistencyError{UserID: userID, Operation: op, Expected: sum, Actual: balance}
	}
	return nil
}

func (l *Ledger) checkQuarantine(userID int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cause, ok := l.quarantined[userID]; ok {
		return fmt.Errorf("user %d is quarantined until reconciled: %w", userID, cause)
	}
	return nil
}

// quarantine halts mutations for the user and records it in storage so a
// restart keeps the halt. The failed unit of work has already rolled back.
func (l *Ledger) quarantine(ctx context.Context, e *LedgerInconsistencyError) {
	l.mu.Lock()
	_, already := l.quarantined[e.UserID]
	l.quarantined[e.UserID] = e
	n := len(l.quarantined)
	l.mu.Unlock()

	if !already {
		l.metrics.LedgerInconsistencies.Inc()
	}
	l.metrics.QuarantinedUsers.Set(float64(n))
	log.Error().
		Int64("user_id", e.UserID).
		Str("operation", e.Operation).
		Int64("expected", e.Expected).
		Int64("actual", e.Actual).
		Msg("Ledger inconsistency detected, user quarantined")

	err := l.store.WithTx(context.WithoutCancel(ctx), func(tx repository.Tx) error {
		return tx.SetQuarantined(ctx, e.UserID, true)
	})
	if err != nil {
		log.Error().Err(err).Int64("user_id", e.UserID).Msg("Failed to persist quarantine")
	}
}

// Restore loads the users quarantined in storage. Call it once at startup
// before serving mutations.
func (l *Ledger) Restore(ctx context.Context) error {
	var ids []int64
	err := l.store.View(ctx, func(tx repository.Tx) error {
		var err error
		ids, err = tx.ListQuarantined(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to load quarantined users: %w", err)
	}

	l.mu.Lock()
	for _, id := range ids {
		if _, ok := l.quarantined[id]; !ok {
			l.quarantined[id] = fmt.Errorf("%w: quarantine recorded in storage", ErrLedgerInconsistency)
		}
	}
	n := len(l.quarantined)
	l.mu.Unlock()

	l.metrics.QuarantinedUsers.Set(float64(n))
	if len(ids) > 0 {
		log.Warn().Ints64("user_ids", ids).Msg("Quarantined users restored, reconcile to resume")
	}
	return nil
}

func (l *Ledger) release(userID int64) bool {
	l.mu.Lock()
	_, ok := l.quarantined[userID]
	delete(l.quarantined, userID)
	n := len(l.quarantined)
	l.mu.Unlock()

	l.metrics.QuarantinedUsers.Set(float64(n))
	return ok
}

// IsQuarantined reports whether balance mutations for userID are halted.
func (l *Ledger) IsQuarantined(userID int64) bool {
	return l.checkQuarantine(userID) != nil
}

// Wallet returns the balance and pending request totals of userID.
func (l *Ledger) Wallet(ctx context.Context, actor Actor, userID int64) (*model.Wallet, error) {
	var wallet *model.Wallet
	err := l.store.View(ctx, func(tx repository.Tx) error {
		user, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		if !canView(actor, user) {
			return unauthorizedf("cannot view wallet of user %d", userID)
		}

		deposits, withdrawals, err := tx.SumPending(ctx, userID)
		if err != nil {
			return err
		}
		wallet = &model.Wallet{
			UserID:             userID,
			Balance:            user.Balance,
			PendingDeposits:    deposits,
			PendingWithdrawals: withdrawals,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return wallet, nil
}

// History returns the most recent ledger entries of userID, newest first.
func (l *Ledger) History(ctx context.Context, actor Actor, userID int64, limit int) ([]*model.LedgerEntry, error) {
	var entries []*model.LedgerEntry
	err := l.store.View(ctx, func(tx repository.Tx) error {
		user, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		if !canView(actor, user) {
			return unauthorizedf("cannot view history of user %d", userID)
		}
		entries, err = tx.ListEntriesByUser(ctx, userID, limit)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Verification compares a cached balance with its ledger projection.
type Verification struct {
	UserID      int64 `json:"userId"`
	Cached      int64 `json:"cached"`
	Ledger      int64 `json:"ledger"`
	Consistent  bool  `json:"consistent"`
	Quarantined bool  `json:"quarantined"`
}

// Verify checks the balance invariant for userID. A mismatch quarantines
// the user and is returned as a *LedgerInconsistencyError along with the result.
func (l *Ledger) Verify(ctx context.Context, userID int64) (*Verification, error) {
	var v *Verification
	err := l.users.WithLock(ctx, userID, func() error {
		return l.store.View(ctx, func(tx repository.Tx) error {
			user, err := tx.GetUser(ctx, userID)
			if err != nil {
				return err
			}
			sum, err := tx.SumApplied(ctx, userID)
			if err != nil {
				return err
			}
			v = &Verification{UserID: userID, Cached: user.Balance, Ledger: sum, Consistent: user.Balance == sum}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	if !v.Consistent {
		e := &LedgerInconsistencyError{UserID: userID, Operation: "verify", Expected: v.Ledger, Actual: v.Cached}
		l.quarantine(ctx, e)
		v.Quarantined = true
		return v, e
	}
	v.Quarantined = l.IsQuarantined(userID)
	return v, nil
}

// Reconcile sets the cached balance of userID to its ledger projection and
// lifts the quarantine. Admin only.
func (l *Ledger) Reconcile(ctx context.Context, actor Actor, userID int64) (*Verification, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	var (
		v      *Verification
		lifted bool
	)
	err := l.users.WithLock(ctx, userID, func() error {
		return l.store.WithTx(ctx, func(tx repository.Tx) error {
			user, err := tx.GetUserForUpdate(ctx, userID)
			if err != nil {
				return err
			}
			sum, err := tx.SumApplied(ctx, userID)
			if err != nil {
				return err
			}
			if sum < 0 {
				return fmt.Errorf("%w: ledger of user %d sums to %d", ErrLedgerInconsistency, userID, sum)
			}
			if sum != user.Balance {
				if err := tx.SetBalance(ctx, userID, sum); err != nil {
					return fmt.Errorf("failed to reset balance: %w", err)
				}
			}
			if user.Quarantined {
				if err := tx.SetQuarantined(ctx, userID, false); err != nil {
					return fmt.Errorf("failed to lift quarantine: %w", err)
				}
				lifted = true
			}
			v = &Verification{UserID: userID, Cached: user.Balance, Ledger: sum, Consistent: user.Balance == sum}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	released := l.release(userID) || lifted
	log.Info().
		Int64("admin_id", actor.ID).
		Int64("user_id", userID).
		Int64("cached", v.Cached).
		Int64("ledger", v.Ledger).
		Bool("released", released).
		Msg("Balance reconciled")
	return v, nil
}
