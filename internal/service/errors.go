package service

import (
	"errors"
	"fmt"

	"github.com/deevxcoder/queen-001-replit-sub000/internal/pkg/lock"
	"github.com/deevxcoder/queen-001-replit-sub000/internal/repository"
)

// Errors returned by the services. Callers branch with errors.Is; the
// wrapped message carries the reason.
var (
	ErrValidation          = errors.New("validation failed")
	ErrNotOpen             = errors.New("target is not open")
	ErrNotClosed           = errors.New("target is not closed")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrAlreadyDeclared     = errors.New("result already declared")
	ErrAlreadyResolved     = errors.New("transaction already resolved")
	ErrUnauthorized        = errors.New("unauthorized action")
	ErrLedgerInconsistency = errors.New("ledger inconsistency")

	ErrNotFound = repository.ErrNotFound
	ErrConflict = repository.ErrConflict
	// ErrBusy is returned when the caller gave up waiting for another
	// operation on the same user or target.
	ErrBusy = lock.ErrLockTimeout
)

// LedgerInconsistencyError reports a cached balance that no longer matches
// the ledger. The user is quarantined until an admin reconciles it.
type LedgerInconsistencyError struct {
	UserID    int64
	Operation string
	Expected  int64
	Actual    int64
}

func (e *LedgerInconsistencyError) Error() string {
	return fmt.Sprintf("ledger inconsistency for user %d during %s: expected balance %d, got %d",
		e.UserID, e.Operation, e.Expected, e.Actual)
}

func (e *LedgerInconsistencyError) Unwrap() error {
	return ErrLedgerInconsistency
}

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func unauthorizedf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnauthorized, fmt.Sprintf(format, args...))
}
