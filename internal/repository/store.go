// Package repository defines the storage port used by the wager and wallet services.
// Implementations live in the postgres and memory subpackages.
package repository

import (
	"context"
	"errors"

	"github.com/deevxcoder/queen-001-replit-sub000/internal/model"
)

// Common errors for repository operations.
var (
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a unique key is already taken.
	ErrConflict = errors.New("already exists")
	// ErrNegativeBalance is returned when a balance update would drop below zero.
	ErrNegativeBalance = errors.New("balance would become negative")
)

// Store is the transactional storage port.
type Store interface {
	// WithTx runs fn as one atomic unit: every write made through tx commits
	// together, or none does if fn returns an error.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// View runs fn for reads that need no atomicity with writes.
	View(ctx context.Context, fn func(tx Tx) error) error

	// Ping checks that the backing store is reachable.
	Ping(ctx context.Context) error
}

// Tx exposes every entity store inside one unit of work.
type Tx interface {
	UserStore
	MarketStore
	OptionGameStore
	WagerStore
	LedgerStore
}

// UserStore persists users and their cached balances.
type UserStore interface {
	CreateUser(ctx context.Context, u *model.User) (*model.User, error)
	GetUser(ctx context.Context, id int64) (*model.User, error)
	// GetUserForUpdate reads the user and holds its row until the unit of work ends.
	GetUserForUpdate(ctx context.Context, id int64) (*model.User, error)
	ListUsersByOwner(ctx context.Context, ownerID int64) ([]*model.User, error)
	SetUserStatus(ctx context.Context, id int64, status model.UserStatus) error
	// AddBalance atomically adds delta to the balance and returns the new value.
	AddBalance(ctx context.Context, id int64, delta int64) (int64, error)
	// SetBalance overwrites the cached balance. Used only by reconciliation.
	SetBalance(ctx context.Context, id int64, balance int64) error
	// SetQuarantined records whether balance mutations for the user are halted.
	SetQuarantined(ctx context.Context, id int64, quarantined bool) error
	ListQuarantined(ctx context.Context) ([]int64, error)
}

// MarketStore persists markets and their game-type configuration.
type MarketStore interface {
	CreateMarket(ctx context.Context, m *model.Market) (*model.Market, error)
	GetMarket(ctx context.Context, id int64) (*model.Market, error)
	// GetMarketForShare reads the market and blocks status changes until the unit of work ends.
	GetMarketForShare(ctx context.Context, id int64) (*model.Market, error)
	ListMarkets(ctx context.Context) ([]*model.Market, error)
	// TransitionMarket moves status from -> to. Returns false if the market was not in from.
	TransitionMarket(ctx context.Context, id int64, from, to model.EntityStatus) (bool, error)
	// DeclareMarketResult records the result if the market is closed and still pending.
	// Returns false without writing otherwise.
	DeclareMarketResult(ctx context.Context, id int64, result string) (bool, error)
	UpsertGameTypeConfig(ctx context.Context, cfg *model.GameTypeConfig) error
	GetGameTypeConfig(ctx context.Context, marketID int64, gameType model.GameType) (*model.GameTypeConfig, error)
	ListGameTypeConfigs(ctx context.Context, marketID int64) ([]*model.GameTypeConfig, error)
}

// OptionGameStore persists option games.
type OptionGameStore interface {
	CreateOptionGame(ctx context.Context, g *model.OptionGame) (*model.OptionGame, error)
	GetOptionGame(ctx context.Context, id int64) (*model.OptionGame, error)
	GetOptionGameForShare(ctx context.Context, id int64) (*model.OptionGame, error)
	ListOptionGames(ctx context.Context) ([]*model.OptionGame, error)
	TransitionOptionGame(ctx context.Context, id int64, from, to model.EntityStatus) (bool, error)
	DeclareOptionGameResult(ctx context.Context, id int64, winner model.Team) (bool, error)
	SetOptionGameOdds(ctx context.Context, g *model.OptionGame) error
}

// WagerStore persists market and option wagers.
type WagerStore interface {
	CreateWager(ctx context.Context, w *model.Wager) (*model.Wager, error)
	GetWager(ctx context.Context, id int64) (*model.Wager, error)
	ListWagersByUser(ctx context.Context, userID int64, limit int) ([]*model.Wager, error)
	ListWagersByTarget(ctx context.Context, kind model.TargetKind, targetID int64, status model.WagerStatus) ([]*model.Wager, error)
	// SettleWager moves a pending wager to status. Returns false if it was no longer pending.
	SettleWager(ctx context.Context, id int64, status model.WagerStatus) (bool, error)
}

// LedgerStore persists ledger entries. Entries are append-only apart from
// the pending -> approved/rejected transition.
type LedgerStore interface {
	CreateEntry(ctx context.Context, e *model.LedgerEntry) (*model.LedgerEntry, error)
	GetEntry(ctx context.Context, id int64) (*model.LedgerEntry, error)
	GetEntryForUpdate(ctx context.Context, id int64) (*model.LedgerEntry, error)
	ListEntriesByUser(ctx context.Context, userID int64, limit int) ([]*model.LedgerEntry, error)
	ListPendingEntries(ctx context.Context, limit int) ([]*model.LedgerEntry, error)
	// ResolveEntry moves a pending entry to status. Returns false if it was no longer pending.
	ResolveEntry(ctx context.Context, id int64, status model.EntryStatus, actorID int64) (bool, error)
	// SumApplied returns the sum of the user's applied entries (see model.LedgerEntry.Applied).
	SumApplied(ctx context.Context, userID int64) (int64, error)
	// SumPending returns the totals of the user's pending deposits and withdrawals.
	SumPending(ctx context.Context, userID int64) (deposits, withdrawals int64, err error)
}
