// Package builtin wires the standard matching rules into a registry.
package builtin

import (
	"github.com/deevxcoder/queen-001-replit-sub000/internal/game"
	"github.com/deevxcoder/queen-001-replit-sub000/internal/game/cross"
	"github.com/deevxcoder/queen-001-replit-sub000/internal/game/hurf"
	"github.com/deevxcoder/queen-001-replit-sub000/internal/game/jodi"
	"github.com/deevxcoder/queen-001-replit-sub000/internal/game/oddeven"
	"github.com/deevxcoder/queen-001-replit-sub000/internal/game/option"
)

// NewRegistry returns a registry holding Jodi, Hurf, Cross, Odd-Even and Option.
func NewRegistry() *game.Registry {
	return game.NewRegistry().MustRegister(
		jodi.New(),
		hurf.New(),
		cross.New(),
		oddeven.New(),
		option.New(),
	)
}
