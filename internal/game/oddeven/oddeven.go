// Package oddeven implements the Odd-Even rule on the numeric value of the result.
package oddeven

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/deevxcoder/queen-001-replit-sub000/internal/game"
	"github.com/deevxcoder/queen-001-replit-sub000/internal/model"
)

const (
	Odd  = "Odd"
	Even = "Even"
)

// Rule is the Odd-Even matching rule.
type Rule struct{}

// New creates the Odd-Even rule.
func New() *Rule {
	return &Rule{}
}

// Type returns model.GameOddEven.
func (r *Rule) Type() model.GameType {
	return model.GameOddEven
}

// Name returns the display name.
func (r *Rule) Name() string {
	return "Odd-Even"
}

// Normalize accepts Odd or Even in any letter case.
func (r *Rule) Normalize(selection string) (string, error) {
	s := strings.TrimSpace(selection)
	switch {
	case strings.EqualFold(s, Odd):
		return Odd, nil
	case strings.EqualFold(s, Even):
		return Even, nil
	}
	return "", game.Selectionf("odd-even selection %q must be Odd or Even", selection)
}

// Match wins iff the result's parity matches the selection.
func (r *Rule) Match(selection, result string) (bool, error) {
	sel, err := r.Normalize(selection)
	if err != nil {
		return false, err
	}
	value, err := strconv.Atoi(result)
	if err != nil {
		return false, fmt.Errorf("%w: %q is not a number", game.ErrInvalidResult, result)
	}
	return (value%2 != 0) == (sel == Odd), nil
}
