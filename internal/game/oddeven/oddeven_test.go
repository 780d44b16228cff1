package oddeven

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/deevxcoder/queen-001-replit-sub000/internal/game"
)

func TestRule_Match(t *testing.T) {
	tests := []struct {
		selection string
		result    string
		want      bool
	}{
		{"Odd", "47", true},
		{"Even", "47", false},
		{"Even", "00", true},
		{"Odd", "00", false},
		{"even", "08", true},
	}

	r := New()
	for _, tt := range tests {
		t.Run(tt.selection+"@"+tt.result, func(t *testing.T) {
			got, err := r.Match(tt.selection, tt.result)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRule_Invalid(t *testing.T) {
	r := New()

	_, err := r.Normalize("Maybe")
	assert.ErrorIs(t, err, game.ErrInvalidSelection)

	_, err = r.Match("Odd", "x7")
	assert.ErrorIs(t, err, game.ErrInvalidResult)
}

// TestExactlyOneWinsProperty checks that for every result exactly one of Odd
// and Even wins.
func TestExactlyOneWinsProperty(t *testing.T) {
	r := New()
	rapid.Check(t, func(t *rapid.T) {
		result := fmt.Sprintf("%02d", rapid.IntRange(0, 99).Draw(t, "value"))

		odd, err := r.Match(Odd, result)
		require.NoError(t, err)
		even, err := r.Match(Even, result)
		require.NoError(t, err)

		if odd == even {
			t.Fatalf("result %s: odd=%v even=%v", result, odd, even)
		}
	})
}
