// Package hurf implements the Hurf rule: the player names one or both digit positions.
//
// Selections are "Left:d", "Right:d" or "Both:dd". They are parsed into a Pick
// before any comparison.
package hurf

import (
	"strings"

	"github.com/deevxcoder/queen-001-replit-sub000/internal/game"
	"github.com/deevxcoder/queen-001-replit-sub000/internal/model"
)

// Position names which digit of the result a pick targets.
type Position string

const (
	Left  Position = "Left"
	Right Position = "Right"
	Both  Position = "Both"
)

// Pick is a parsed Hurf selection. Digits has one entry for Left/Right and
// two (left, right) for Both.
type Pick struct {
	Position Position
	Digits   []byte
}

// String renders the canonical selection form.
func (p Pick) String() string {
	return string(p.Position) + ":" + string(p.Digits)
}

// Wins reports whether the pick matches a two-digit result.
func (p Pick) Wins(result string) bool {
	switch p.Position {
	case Left:
		return result[0] == p.Digits[0]
	case Right:
		return result[1] == p.Digits[0]
	case Both:
		return result[0] == p.Digits[0] && result[1] == p.Digits[1]
	}
	return false
}

// Parse turns a selection string into a Pick.
func Parse(selection string) (Pick, error) {
	pos, digits, ok := strings.Cut(strings.TrimSpace(selection), ":")
	if !ok {
		return Pick{}, game.Selectionf("hurf selection %q must be Position:digits", selection)
	}
	pos = strings.TrimSpace(pos)
	digits = strings.TrimSpace(digits)

	var p Pick
	switch {
	case strings.EqualFold(pos, string(Left)):
		p.Position = Left
	case strings.EqualFold(pos, string(Right)):
		p.Position = Right
	case strings.EqualFold(pos, string(Both)):
		p.Position = Both
	default:
		return Pick{}, game.Selectionf("hurf position %q must be Left, Right or Both", pos)
	}

	want := 1
	if p.Position == Both {
		want = 2
	}
	if len(digits) != want {
		return Pick{}, game.Selectionf("hurf %s pick needs %d digit(s), got %q", p.Position, want, digits)
	}
	for i := 0; i < len(digits); i++ {
		if !game.IsDigit(digits[i]) {
			return Pick{}, game.Selectionf("hurf pick %q contains a non-digit", digits)
		}
	}
	p.Digits = []byte(digits)
	return p, nil
}

// Rule is the Hurf matching rule.
type Rule struct{}

// New creates the Hurf rule.
func New() *Rule {
	return &Rule{}
}

// Type returns model.GameHurf.
func (r *Rule) Type() model.GameType {
	return model.GameHurf
}

// Name returns the display name.
func (r *Rule) Name() string {
	return "Hurf"
}

// Normalize parses the selection and returns its canonical form.
func (r *Rule) Normalize(selection string) (string, error) {
	p, err := Parse(selection)
	if err != nil {
		return "", err
	}
	return p.String(), nil
}

// Match parses the selection and compares the targeted positions.
func (r *Rule) Match(selection, result string) (bool, error) {
	p, err := Parse(selection)
	if err != nil {
		return false, err
	}
	if err := game.ValidateMarketResult(result); err != nil {
		return false, err
	}
	return p.Wins(result), nil
}
