// Package service implements the wager lifecycle and wallet ledger engine:
// wager intake, result settlement, the deposit/withdrawal approval workflow,
// and the catalog and account operations around them.
package service

import (
	"github.com/deevxcoder/queen-001-replit-sub000/internal/model"
)

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID   int64
	Role model.Role
}

// IsAdmin reports whether the actor is an admin.
func (a Actor) IsAdmin() bool {
	return a.Role == model.RoleAdmin
}

// IsSubadmin reports whether the actor is a subadmin.
func (a Actor) IsSubadmin() bool {
	return a.Role == model.RoleSubadmin
}

// IsPlayer reports whether the actor is a player.
func (a Actor) IsPlayer() bool {
	return a.Role == model.RolePlayer
}

func requireAdmin(a Actor) error {
	if !a.IsAdmin() {
		return unauthorizedf("admin role required")
	}
	return nil
}

// canManage reports whether a may act on u's wallet as an operator:
// any admin, or the subadmin owning u. Nobody manages their own wallet.
func canManage(a Actor, u *model.User) bool {
	if a.ID == u.ID {
		return false
	}
	switch a.Role {
	case model.RoleAdmin:
		return true
	case model.RoleSubadmin:
		return u.OwnedBy(a.ID)
	default:
		return false
	}
}

// canView reports whether a may read u's wallet, wagers and history.
func canView(a Actor, u *model.User) bool {
	return a.ID == u.ID || canManage(a, u)
}
