// Package jodi implements the Jodi rule: the player names the exact two-digit result.
package jodi

import (
	"strings"

	"github.com/deevxcoder/queen-001-replit-sub000/internal/game"
	"github.com/deevxcoder/queen-001-replit-sub000/internal/model"
)

// Rule is the Jodi matching rule.
type Rule struct{}

// New creates the Jodi rule.
func New() *Rule {
	return &Rule{}
}

// Type returns model.GameJodi.
func (r *Rule) Type() model.GameType {
	return model.GameJodi
}

// Name returns the display name.
func (r *Rule) Name() string {
	return "Jodi"
}

// Normalize accepts exactly two digits.
func (r *Rule) Normalize(selection string) (string, error) {
	s := strings.TrimSpace(selection)
	if len(s) != 2 || !game.IsDigit(s[0]) || !game.IsDigit(s[1]) {
		return "", game.Selectionf("jodi selection %q must be two digits", selection)
	}
	return s, nil
}

// Match wins iff the selection equals the result.
func (r *Rule) Match(selection, result string) (bool, error) {
	sel, err := r.Normalize(selection)
	if err != nil {
		return false, err
	}
	return sel == result, nil
}
