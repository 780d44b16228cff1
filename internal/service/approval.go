package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/deevxcoder/queen-001-replit-sub000/internal/model"
	"github.com/deevxcoder/queen-001-replit-sub000/internal/notify"
	"github.com/deevxcoder/queen-001-replit-sub000/internal/repository"
)

// ApprovalService handles deposit and withdrawal requests and operator
// balance adjustments.
type ApprovalService struct {
	store    repository.Store
	ledger   *Ledger
	notifier notify.Notifier
}

// NewApprovalService creates a new ApprovalService instance.
func NewApprovalService(store repository.Store, ledger *Ledger, notifier notify.Notifier) *ApprovalService {
	return &ApprovalService{
		store:    store,
		ledger:   ledger,
		notifier: notifier,
	}
}

// RequestDeposit records a pending deposit for the calling player. Nothing
// is credited until an operator approves it.
func (s *ApprovalService) RequestDeposit(ctx context.Context, actor Actor, amount int64) (*model.LedgerEntry, error) {
	return s.request(ctx, actor, model.EntryDeposit, amount)
}

// RequestWithdrawal records a pending withdrawal for the calling player and
// debits the amount immediately, so concurrent requests cannot exceed the balance.
func (s *ApprovalService) RequestWithdrawal(ctx context.Context, actor Actor, amount int64) (*model.LedgerEntry, error) {
	return s.request(ctx, actor, model.EntryWithdrawal, amount)
}

func (s *ApprovalService) request(ctx context.Context, actor Actor, kind model.EntryKind, amount int64) (*model.LedgerEntry, error) {
	if !actor.IsPlayer() {
		return nil, unauthorizedf("only players can request a %s", kind)
	}
	if amount <= 0 {
		return nil, validationf("amount must be positive")
	}

	p := posting{
		UserID:      actor.ID,
		Kind:        kind,
		Amount:      amount,
		Status:      model.EntryPending,
		Reference:   string(kind) + " request",
		InitiatedBy: &actor.ID,
	}
	if kind == model.EntryWithdrawal {
		p.Amount = -amount
		p.Delta = -amount
	}

	var (
		entry   *model.LedgerEntry
		balance int64
	)
	err := s.ledger.update(ctx, []int64{actor.ID}, func(tx repository.Tx) error {
		user, err := tx.GetUserForUpdate(ctx, actor.ID)
		if err != nil {
			return err
		}
		if user.Status != model.UserActive {
			return unauthorizedf("user %d is %s", user.ID, user.Status)
		}
		if user.Balance+p.Delta < 0 {
			return fmt.Errorf("%w: balance %d, withdrawal %d", ErrInsufficientBalance, user.Balance, amount)
		}
		entry, balance, err = s.ledger.post(ctx, tx, user.Balance, p)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Int64("transaction_id", entry.ID).
		Int64("user_id", actor.ID).
		Str("kind", string(kind)).
		Int64("amount", amount).
		Msg("Transaction requested")

	s.notifier.NotifyUser(actor.ID, notify.TransactionStatus(entry, balance))
	if p.Delta != 0 {
		s.notifier.NotifyUser(actor.ID, notify.WalletUpdate(actor.ID, p.Delta, balance, entry.Reference))
	}
	return entry, nil
}

// ResolveTransaction approves or rejects a pending deposit or withdrawal.
// The actor must be an admin or the subadmin owning the wallet, and may be
// neither the wallet owner nor the one who initiated the request.
//
// Approving a deposit credits it. Rejecting a withdrawal refunds the
// pre-debit. The other two outcomes only change the entry status.
func (s *ApprovalService) ResolveTransaction(ctx context.Context, actor Actor, entryID int64, approve bool) (*model.LedgerEntry, error) {
	if !actor.IsAdmin() && !actor.IsSubadmin() {
		return nil, unauthorizedf("only admins and subadmins resolve transactions")
	}

	var userID int64
	err := s.store.View(ctx, func(tx repository.Tx) error {
		e, err := tx.GetEntry(ctx, entryID)
		if err != nil {
			return err
		}
		userID = e.UserID
		return nil
	})
	if err != nil {
		return nil, err
	}

	status := model.EntryRejected
	if approve {
		status = model.EntryApproved
	}

	var (
		entry   *model.LedgerEntry
		delta   int64
		balance int64
	)
	err = s.ledger.update(ctx, []int64{userID}, func(tx repository.Tx) error {
		e, err := tx.GetEntryForUpdate(ctx, entryID)
		if err != nil {
			return err
		}
		if !e.Kind.Requestable() {
			return validationf("%s entries are not resolvable", e.Kind)
		}
		if e.Status != model.EntryPending {
			return fmt.Errorf("%w: transaction %d is %s", ErrAlreadyResolved, e.ID, e.Status)
		}

		owner, err := tx.GetUserForUpdate(ctx, e.UserID)
		if err != nil {
			return err
		}
		if !canManage(actor, owner) {
			return unauthorizedf("actor %d cannot resolve transactions of user %d", actor.ID, owner.ID)
		}
		if e.InitiatedBy != nil && *e.InitiatedBy == actor.ID {
			return unauthorizedf("actor %d initiated transaction %d", actor.ID, e.ID)
		}

		ok, err := tx.ResolveEntry(ctx, e.ID, status, actor.ID)
		if err != nil {
			return fmt.Errorf("failed to resolve transaction: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: transaction %d", ErrAlreadyResolved, e.ID)
		}

		switch {
		case approve && e.Kind == model.EntryDeposit:
			delta = e.Amount
		case !approve && e.Kind == model.EntryWithdrawal:
			delta = -e.Amount
		}
		op := string(e.Kind) + "_" + string(status)
		if balance, err = s.ledger.apply(ctx, tx, owner.ID, owner.Balance, delta, op); err != nil {
			return err
		}
		if err := s.ledger.verify(ctx, tx, owner.ID, balance, op); err != nil {
			return err
		}

		entry, err = tx.GetEntry(ctx, e.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.ledger.metrics.LedgerPostings.WithLabelValues(string(entry.Kind), string(entry.Status)).Inc()
	log.Info().
		Int64("actor_id", actor.ID).
		Str("actor_role", actor.Role.String()).
		Int64("transaction_id", entry.ID).
		Int64("user_id", entry.UserID).
		Str("kind", string(entry.Kind)).
		Str("status", string(entry.Status)).
		Int64("amount", entry.Amount).
		Msg("Transaction resolved")

	s.notifier.NotifyUser(entry.UserID, notify.TransactionStatus(entry, balance))
	if delta != 0 {
		s.notifier.NotifyUser(entry.UserID, notify.WalletUpdate(entry.UserID, delta, balance, fmt.Sprintf("transaction:%d", entry.ID)))
	}
	return entry, nil
}

// AdjustBalance applies an immediate signed adjustment to userID's wallet.
// The actor must be an admin or the subadmin owning the wallet.
func (s *ApprovalService) AdjustBalance(ctx context.Context, actor Actor, userID, amount int64, remarks string) (*model.LedgerEntry, error) {
	if !actor.IsAdmin() && !actor.IsSubadmin() {
		return nil, unauthorizedf("only admins and subadmins adjust balances")
	}
	if amount == 0 {
		return nil, validationf("adjustment amount must be non-zero")
	}
	remarks = strings.TrimSpace(remarks)
	if remarks == "" {
		remarks = "balance adjustment"
	}
	if utf8.RuneCountInString(remarks) > model.MaxReferenceLen {
		return nil, validationf("remarks must be at most %d characters", model.MaxReferenceLen)
	}

	var (
		entry   *model.LedgerEntry
		balance int64
	)
	err := s.ledger.update(ctx, []int64{userID}, func(tx repository.Tx) error {
		user, err := tx.GetUserForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if !canManage(actor, user) {
			return unauthorizedf("actor %d cannot adjust the balance of user %d", actor.ID, userID)
		}
		if amount < 0 && user.Balance+amount < 0 {
			return fmt.Errorf("%w: balance %d, adjustment %d", ErrInsufficientBalance, user.Balance, amount)
		}
		entry, balance, err = s.ledger.post(ctx, tx, user.Balance, posting{
			UserID:      userID,
			Kind:        model.EntryAdjustment,
			Amount:      amount,
			Delta:       amount,
			Status:      model.EntryApproved,
			Reference:   remarks,
			InitiatedBy: &actor.ID,
			ResolvedBy:  &actor.ID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Int64("actor_id", actor.ID).
		Str("actor_role", actor.Role.String()).
		Int64("user_id", userID).
		Int64("amount", amount).
		Int64("new_balance", balance).
		Str("remarks", remarks).
		Msg("Balance adjusted")

	s.notifier.NotifyUser(userID, notify.WalletUpdate(userID, amount, balance, remarks))
	return entry, nil
}

// ListPending returns the deposit and withdrawal requests actor may resolve,
// oldest first. Subadmins see only the requests of their own players.
func (s *ApprovalService) ListPending(ctx context.Context, actor Actor, limit int) ([]*model.LedgerEntry, error) {
	if !actor.IsAdmin() && !actor.IsSubadmin() {
		return nil, unauthorizedf("only admins and subadmins review transactions")
	}

	var entries []*model.LedgerEntry
	err := s.store.View(ctx, func(tx repository.Tx) error {
		if actor.IsAdmin() {
			var err error
			entries, err = tx.ListPendingEntries(ctx, limit)
			return err
		}

		owned, err := tx.ListUsersByOwner(ctx, actor.ID)
		if err != nil {
			return err
		}
		ids := make(map[int64]struct{}, len(owned))
		for _, u := range owned {
			ids[u.ID] = struct{}{}
		}

		all, err := tx.ListPendingEntries(ctx, 0)
		if err != nil {
			return err
		}
		for _, e := range all {
			if _, ok := ids[e.UserID]; !ok {
				continue
			}
			entries = append(entries, e)
			if limit > 0 && len(entries) == limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}
