package cross

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/deevxcoder/queen-001-replit-sub000/internal/game"
)

func TestPermutations_ThreeDigits(t *testing.T) {
	set := Permutations([]byte("123"))

	want := []string{"12", "13", "21", "23", "31", "32"}
	assert.Len(t, set, len(want))
	for _, pair := range want {
		assert.Contains(t, set, pair)
	}
	assert.NotContains(t, set, "11")
}

func TestRule_Match(t *testing.T) {
	tests := []struct {
		selection string
		result    string
		want      bool
	}{
		{"1,2,3", "31", true},
		{"1,2,3", "11", false},
		{"1,2,3", "14", false},
		{"1,2", "21", true},
		{"1, 2, 3, 4", "43", true},
		{"0,9", "90", true},
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

func TestParse_Invalid(t *testing.T) {
	for _, bad := range []string{"1", "1,2,3,4,5", "1,1", "1,a", "12,3", "", "1,,2"} {
		t.Run(bad, func(t *testing.T) {
			_, err := Parse(bad)
			assert.ErrorIs(t, err, game.ErrInvalidSelection)
		})
	}
}

func TestRule_Normalize(t *testing.T) {
	sel, err := New().Normalize(" 3 ,1,2")
	require.NoError(t, err)
	assert.Equal(t, "3,1,2", sel)
}

// TestPermutationSizeProperty checks that n distinct digits yield n*(n-1)
// pairs, none of which repeats a digit.
func TestPermutationSizeProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(MinDigits, MaxDigits).Draw(t, "n")
		digits := rapid.SliceOfNDistinct(rapid.ByteRange('0', '9'), n, n, rapid.ID[byte]).Draw(t, "digits")

		set := Permutations(digits)
		if len(set) != n*(n-1) {
			t.Fatalf("expected %d pairs for %q, got %d", n*(n-1), digits, len(set))
		}
		for pair := range set {
			if pair[0] == pair[1] {
				t.Fatalf("pair %q repeats a digit", pair)
			}
		}
	})
}
