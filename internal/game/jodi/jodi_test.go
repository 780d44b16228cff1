package jodi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deevxcoder/queen-001-replit-sub000/internal/game"
)

func TestRule_Match(t *testing.T) {
	tests := []struct {
		name      string
		selection string
		result    string
		want      bool
	}{
		{"exact match", "47", "47", true},
		{"off by one", "48", "47", false},
		{"reversed digits", "74", "47", false},
		{"leading zero", "05", "05", true},
		{"padded selection", " 47 ", "47", true},
	}

	r := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Match(tt.selection, tt.result)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRule_Normalize(t *testing.T) {
	r := New()

	sel, err := r.Normalize("09")
	require.NoError(t, err)
	assert.Equal(t, "09", sel)

	for _, bad := range []string{"", "4", "123", "4a", "-1"} {
		_, err := r.Normalize(bad)
		assert.ErrorIs(t, err, game.ErrInvalidSelection, bad)
	}
}
