// Package option implements the binary rule for team-vs-team option games.
package option

import (
	"strings"

	"github.com/deevxcoder/queen-001-replit-sub000/internal/game"
	"github.com/deevxcoder/queen-001-replit-sub000/internal/model"
)

// Rule is the option game matching rule.
type Rule struct{}

// New creates the option rule.
func New() *Rule {
	return &Rule{}
}

// Type returns model.GameOption.
func (r *Rule) Type() model.GameType {
	return model.GameOption
}

// Name returns the display name.
func (r *Rule) Name() string {
	return "Option"
}

// Normalize accepts team A or B in any letter case.
func (r *Rule) Normalize(selection string) (string, error) {
	team := model.Team(strings.ToUpper(strings.TrimSpace(selection)))
	if !team.Valid() {
		return "", game.Selectionf("option selection %q must be A or B", selection)
	}
	return string(team), nil
}

// Match wins iff the selection names the winning team.
func (r *Rule) Match(selection, winningTeam string) (bool, error) {
	sel, err := r.Normalize(selection)
	if err != nil {
		return false, err
	}
	return sel == winningTeam, nil
}
