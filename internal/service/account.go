package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/rs/zerolog/log"

	"github.com/deevxcoder/queen-001-replit-sub000/internal/model"
	"github.com/deevxcoder/queen-001-replit-sub000/internal/repository"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,32}$`)

// AccountService manages the user directory. New users start with a zero
// balance; funds only arrive through the ledger.
type AccountService struct {
	store repository.Store
}

// NewAccountService creates a new AccountService instance.
func NewAccountService(store repository.Store) *AccountService {
	return &AccountService{store: store}
}

// CreateUserRequest describes a new account.
type CreateUserRequest struct {
	Username string     `json:"username"`
	Role     model.Role `json:"role"`
	OwnerID  *int64     `json:"ownerId,omitempty"`
}

// CreateUser creates an account. Admins create any role and may assign a
// player to a subadmin; subadmins create players owned by themselves.
func (s *AccountService) CreateUser(ctx context.Context, actor Actor, req CreateUserRequest) (*model.User, error) {
	if !usernamePattern.MatchString(req.Username) {
		return nil, validationf("username must be 3-32 letters, digits or underscores")
	}
	if req.Role == model.RoleUnknown {
		return nil, validationf("role is required")
	}

	switch {
	case actor.IsAdmin():
	case actor.IsSubadmin():
		if req.Role != model.RolePlayer {
			return nil, unauthorizedf("subadmins can only create players")
		}
		req.OwnerID = &actor.ID
	default:
		return nil, unauthorizedf("only admins and subadmins create users")
	}
	if req.OwnerID != nil && req.Role != model.RolePlayer {
		return nil, validationf("only players have an owner")
	}

	var user *model.User
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		if req.OwnerID != nil {
			owner, err := tx.GetUser(ctx, *req.OwnerID)
			if errors.Is(err, repository.ErrNotFound) {
				return validationf("owner %d does not exist", *req.OwnerID)
			}
			if err != nil {
				return err
			}
			if owner.Role != model.RoleSubadmin {
				return validationf("owner %d is not a subadmin", owner.ID)
			}
		}

		var err error
		user, err = tx.CreateUser(ctx, &model.User{
			Username: req.Username,
			Role:     req.Role,
			Status:   model.UserActive,
			OwnerID:  req.OwnerID,
		})
		if errors.Is(err, repository.ErrConflict) {
			return fmt.Errorf("%w: username %q is taken", ErrConflict, req.Username)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Int64("actor_id", actor.ID).
		Int64("user_id", user.ID).
		Str("username", user.Username).
		Str("role", user.Role.String()).
		Msg("User created")
	return user, nil
}

// SetUserStatus blocks or unblocks a user. Admins manage anyone but
// themselves; subadmins manage their own players.
func (s *AccountService) SetUserStatus(ctx context.Context, actor Actor, userID int64, status model.UserStatus) (*model.User, error) {
	if status != model.UserActive && status != model.UserBlocked {
		return nil, validationf("unknown status %q", status)
	}

	var user *model.User
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		u, err := tx.GetUserForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if !canManage(actor, u) {
			return unauthorizedf("actor %d cannot manage user %d", actor.ID, userID)
		}
		if err := tx.SetUserStatus(ctx, userID, status); err != nil {
			return err
		}
		user, err = tx.GetUser(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Int64("actor_id", actor.ID).
		Int64("user_id", userID).
		Str("status", string(status)).
		Msg("User status changed")
	return user, nil
}

// GetUser returns a user visible to actor.
func (s *AccountService) GetUser(ctx context.Context, actor Actor, userID int64) (*model.User, error) {
	var user *model.User
	err := s.store.View(ctx, func(tx repository.Tx) error {
		u, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		if !canView(actor, u) {
			return unauthorizedf("cannot view user %d", userID)
		}
		user = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// ListOwned returns the players owned by the calling subadmin, or by
// ownerID when the caller is an admin.
func (s *AccountService) ListOwned(ctx context.Context, actor Actor, ownerID int64) ([]*model.User, error) {
	switch {
	case actor.IsAdmin():
	case actor.IsSubadmin():
		ownerID = actor.ID
	default:
		return nil, unauthorizedf("only admins and subadmins list players")
	}

	var users []*model.User
	err := s.store.View(ctx, func(tx repository.Tx) error {
		var err error
		users, err = tx.ListUsersByOwner(ctx, ownerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return users, nil
}

// EnsureAdmin creates the bootstrap admin account if the username is free.
// It reports whether the account was created.
func (s *AccountService) EnsureAdmin(ctx context.Context, username string) (bool, error) {
	if !usernamePattern.MatchString(username) {
		return false, validationf("invalid admin username %q", username)
	}

	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		_, err := tx.CreateUser(ctx, &model.User{Username: username, Role: model.RoleAdmin, Status: model.UserActive})
		return err
	})
	if errors.Is(err, repository.ErrConflict) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to ensure admin: %w", err)
	}

	log.Info().Str("username", username).Msg("Bootstrap admin created")
	return true, nil
}
