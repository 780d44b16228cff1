// Package cross implements the Cross rule: the player names 2 to 4 distinct
// digits and wins on any ordered pair of two different picked digits.
package cross

import (
	"strings"

	"github.com/deevxcoder/queen-001-replit-sub000/internal/game"
	"github.com/deevxcoder/queen-001-replit-sub000/internal/model"
)

const (
	MinDigits = 2
	MaxDigits = 4
)

// Parse splits a comma-separated selection into its distinct digits.
func Parse(selection string) ([]byte, error) {
	parts := strings.Split(selection, ",")
	if len(parts) < MinDigits || len(parts) > MaxDigits {
		return nil, game.Selectionf("cross selection %q needs %d-%d digits", selection, MinDigits, MaxDigits)
	}

	digits := make([]byte, 0, len(parts))
	seen := make(map[byte]bool, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if len(part) != 1 || !game.IsDigit(part[0]) {
			return nil, game.Selectionf("cross entry %q is not a single digit", part)
		}
		if seen[part[0]] {
			return nil, game.Selectionf("cross digit %q repeated", part)
		}
		seen[part[0]] = true
		digits = append(digits, part[0])
	}
	return digits, nil
}

// Permutations returns every two-character string digits[i]digits[j] with i != j.
func Permutations(digits []byte) map[string]struct{} {
	set := make(map[string]struct{}, len(digits)*(len(digits)-1))
	for i := range digits {
		for j := range digits {
			if i == j {
				continue
			}
			set[string([]byte{digits[i], digits[j]})] = struct{}{}
		}
	}
	return set
}

// Rule is the Cross matching rule.
type Rule struct{}

// New creates the Cross rule.
func New() *Rule {
	return &Rule{}
}

// Type returns model.GameCross.
func (r *Rule) Type() model.GameType {
	return model.GameCross
}

// Name returns the display name.
func (r *Rule) Name() string {
	return "Cross"
}

// Normalize returns the digits joined by commas with whitespace removed.
func (r *Rule) Normalize(selection string) (string, error) {
	digits, err := Parse(selection)
	if err != nil {
		return "", err
	}
	parts := make([]string, len(digits))
	for i, d := range digits {
		parts[i] = string(d)
	}
	return strings.Join(parts, ","), nil
}

// Match wins iff the result is one of the permutation pairs.
func (r *Rule) Match(selection, result string) (bool, error) {
	digits, err := Parse(selection)
	if err != nil {
		return false, err
	}
	_, ok := Permutations(digits)[result]
	return ok, nil
}
