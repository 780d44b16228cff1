// Package game defines the matching-rule interface and registry used to settle wagers.
// Adding a game type means implementing Rule and registering it; settlement never
// switches on the game-type tag itself.
package game

import (
	"errors"
	"fmt"

	"github.com/deevxcoder/queen-001-replit-sub000/internal/model"
)

// ErrInvalidSelection is wrapped by every selection parse failure.
var ErrInvalidSelection = errors.New("invalid selection")

// ErrInvalidResult is wrapped by every declared-result parse failure.
var ErrInvalidResult = errors.New("invalid result")

// Rule decides whether a selection wins against a declared result.
type Rule interface {
	// Type returns the game-type tag this rule settles.
	Type() model.GameType

	// Name returns a human-readable name (e.g., "Jodi", "Cross").
	Name() string

	// Normalize validates a player's selection at placement time and
	// returns its canonical stored form.
	Normalize(selection string) (string, error)

	// Match evaluates a stored selection against the declared result.
	// An error means the wager cannot be evaluated; it never means "lost".
	Match(selection, result string) (bool, error)
}

// Selectionf builds an ErrInvalidSelection with a reason.
func Selectionf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidSelection, fmt.Sprintf(format, args...))
}

// ValidateMarketResult checks that a market result is exactly two ASCII digits.
func ValidateMarketResult(result string) error {
	if len(result) != 2 || !IsDigit(result[0]) || !IsDigit(result[1]) {
		return fmt.Errorf("%w: market result %q must be two digits", ErrInvalidResult, result)
	}
	return nil
}

// ValidateOptionResult checks that an option game result names team A or B.
func ValidateOptionResult(result string) error {
	if !model.Team(result).Valid() {
		return fmt.Errorf("%w: winning team %q must be A or B", ErrInvalidResult, result)
	}
	return nil
}

// IsDigit reports whether c is an ASCII decimal digit.
func IsDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
