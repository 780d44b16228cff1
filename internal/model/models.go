// Package model defines the data models for the wager and wallet engine.
package model

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Role is the closed set of actor roles.
type Role uint8

const (
	RoleUnknown Role = iota
	RoleAdmin
	RoleSubadmin
	RolePlayer
)

var roleNames = map[Role]string{
	RoleAdmin:    "admin",
	RoleSubadmin: "subadmin",
	RolePlayer:   "player",
}

// String returns the stored name of the role.
func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return "unknown"
}

// ParseRole maps a stored role name back to a Role.
func ParseRole(s string) (Role, error) {
	for r, name := range roleNames {
		if name == s {
			return r, nil
		}
	}
	return RoleUnknown, fmt.Errorf("unknown role %q", s)
}

// MarshalText encodes the role by name.
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText decodes a role name.
func (r *Role) UnmarshalText(b []byte) error {
	v, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// UserStatus is the account status of a user.
type UserStatus string

const (
	UserActive  UserStatus = "active"
	UserBlocked UserStatus = "blocked"
)

// User is an account holding a wallet. Balance is a cached projection of
// the user's applied ledger entries, in minor currency units.
type User struct {
	ID       int64      `db:"id" json:"id"`
	Username string     `db:"username" json:"username"`
	Role     Role       `db:"role" json:"role"`
	Status   UserStatus `db:"status" json:"status"`
	Balance  int64      `db:"balance" json:"balance"`
	OwnerID  *int64     `db:"owner_id" json:"ownerId,omitempty"`
	// Quarantined is set when the cached balance disagreed with the ledger.
	// It is cleared only by reconciliation.
	Quarantined bool      `db:"quarantined" json:"quarantined"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

// OwnedBy reports whether the user belongs to the given subadmin.
func (u *User) OwnedBy(subadminID int64) bool {
	return u.OwnerID != nil && *u.OwnerID == subadminID
}

// EntityStatus is the betting window state shared by markets and option games.
// Transitions only go upcoming -> open -> closed.
type EntityStatus string

const (
	StatusUpcoming EntityStatus = "upcoming"
	StatusOpen     EntityStatus = "open"
	StatusClosed   EntityStatus = "closed"
)

// CanTransition reports whether next directly follows s.
func (s EntityStatus) CanTransition(next EntityStatus) bool {
	switch s {
	case StatusUpcoming:
		return next == StatusOpen
	case StatusOpen:
		return next == StatusClosed
	default:
		return false
	}
}

// ResultStatus moves once from pending to declared.
type ResultStatus string

const (
	ResultPending  ResultStatus = "pending"
	ResultDeclared ResultStatus = "declared"
)

// GameType tags the matching rule a wager is evaluated with.
type GameType string

const (
	GameJodi    GameType = "jodi"
	GameHurf    GameType = "hurf"
	GameCross   GameType = "cross"
	GameOddEven GameType = "odd_even"
	GameOption  GameType = "option"
)

// MarketGameTypes lists the game types a market can offer.
func MarketGameTypes() []GameType {
	return []GameType{GameJodi, GameHurf, GameCross, GameOddEven}
}

// Market is a number-pattern betting round. ResultValue is a two-digit
// string once the result is declared.
type Market struct {
	ID           int64        `db:"id" json:"id"`
	Name         string       `db:"name" json:"name"`
	Status       EntityStatus `db:"status" json:"status"`
	ResultStatus ResultStatus `db:"result_status" json:"resultStatus"`
	ResultValue  *string      `db:"result_value" json:"resultValue,omitempty"`
	DeclaredAt   *time.Time   `db:"declared_at" json:"declaredAt,omitempty"`
	CreatedAt    time.Time    `db:"created_at" json:"createdAt"`
}

// GameTypeConfig enables a game type on a market with its odds multiplier.
type GameTypeConfig struct {
	MarketID int64           `db:"market_id" json:"marketId"`
	GameType GameType        `db:"game_type" json:"gameType"`
	Active   bool            `db:"active" json:"active"`
	Odds     decimal.Decimal `db:"odds" json:"odds"`
}

// Team identifies a side of an option game.
type Team string

const (
	TeamA Team = "A"
	TeamB Team = "B"
)

// Valid reports whether t is A or B.
func (t Team) Valid() bool {
	return t == TeamA || t == TeamB
}

// OptionGame is a binary team-vs-team betting round with a single odds multiplier.
type OptionGame struct {
	ID           int64           `db:"id" json:"id"`
	TeamA        string          `db:"team_a" json:"teamA"`
	TeamB        string          `db:"team_b" json:"teamB"`
	Status       EntityStatus    `db:"status" json:"status"`
	ResultStatus ResultStatus    `db:"result_status" json:"resultStatus"`
	WinningTeam  *Team           `db:"winning_team" json:"winningTeam,omitempty"`
	Odds         decimal.Decimal `db:"odds" json:"odds"`
	DeclaredAt   *time.Time      `db:"declared_at" json:"declaredAt,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"createdAt"`
}

// TargetKind distinguishes market wagers from option wagers.
type TargetKind string

const (
	TargetMarket TargetKind = "market"
	TargetOption TargetKind = "option"
)

// WagerStatus moves once from pending to won, lost or unresolved.
type WagerStatus string

const (
	WagerPending    WagerStatus = "pending"
	WagerWon        WagerStatus = "won"
	WagerLost       WagerStatus = "lost"
	WagerUnresolved WagerStatus = "unresolved"
)

// Wager is a placed bet. Odds and PotentialWinning are frozen at placement.
type Wager struct {
	ID               int64           `db:"id" json:"id"`
	UserID           int64           `db:"user_id" json:"userId"`
	TargetKind       TargetKind      `db:"target_kind" json:"targetKind"`
	TargetID         int64           `db:"target_id" json:"targetId"`
	GameType         GameType        `db:"game_type" json:"gameType"`
	Selection        string          `db:"selection" json:"selection"`
	Amount           int64           `db:"amount" json:"amount"`
	Odds             decimal.Decimal `db:"odds" json:"odds"`
	PotentialWinning int64           `db:"potential_winning" json:"potentialWinning"`
	Status           WagerStatus     `db:"status" json:"status"`
	SettledAt        *time.Time      `db:"settled_at" json:"settledAt,omitempty"`
	CreatedAt        time.Time       `db:"created_at" json:"createdAt"`
}

var maxMinorUnits = decimal.NewFromInt(math.MaxInt64)

// PotentialWinning computes floor(amount × odds) in minor units. ok is false
// when the product does not fit in an int64.
func PotentialWinning(amount int64, odds decimal.Decimal) (winning int64, ok bool) {
	product := decimal.NewFromInt(amount).Mul(odds).Floor()
	if product.GreaterThan(maxMinorUnits) || product.IsNegative() {
		return 0, false
	}
	return product.IntPart(), true
}

// EntryKind categorizes a ledger entry.
type EntryKind string

const (
	EntryDeposit    EntryKind = "deposit"
	EntryWithdrawal EntryKind = "withdrawal"
	EntryBet        EntryKind = "bet"
	EntryWinning    EntryKind = "winning"
	EntryAdjustment EntryKind = "adjustment"
)

// Requestable reports whether entries of this kind go through approval.
func (k EntryKind) Requestable() bool {
	return k == EntryDeposit || k == EntryWithdrawal
}

// EntryStatus of a ledger entry. Only deposits and withdrawals are ever pending.
type EntryStatus string

const (
	EntryPending  EntryStatus = "pending"
	EntryApproved EntryStatus = "approved"
	EntryRejected EntryStatus = "rejected"
)

// MaxReferenceLen bounds LedgerEntry.Reference, in characters.
const MaxReferenceLen = 128

// LedgerEntry is an append-only record of a balance-affecting event.
// Amount is signed: withdrawals and bets are negative.
type LedgerEntry struct {
	ID          int64       `db:"id" json:"id"`
	UserID      int64       `db:"user_id" json:"userId"`
	Kind        EntryKind   `db:"kind" json:"kind"`
	Amount      int64       `db:"amount" json:"amount"`
	Status      EntryStatus `db:"status" json:"status"`
	Reference   string      `db:"reference" json:"reference"`
	InitiatedBy *int64      `db:"initiated_by" json:"initiatedBy,omitempty"`
	ResolvedBy  *int64      `db:"resolved_by" json:"resolvedBy,omitempty"`
	CreatedAt   time.Time   `db:"created_at" json:"createdAt"`
	ResolvedAt  *time.Time  `db:"resolved_at" json:"resolvedAt,omitempty"`
}

// Applied reports whether the entry's amount is reflected in the wallet
// balance. Pending withdrawals are pre-debited, so they count.
func (e *LedgerEntry) Applied() bool {
	if e.Status == EntryApproved {
		return true
	}
	return e.Kind == EntryWithdrawal && e.Status == EntryPending
}

// Wallet is the read model returned for balance queries.
type Wallet struct {
	UserID             int64 `json:"userId"`
	Balance            int64 `json:"balance"`
	PendingWithdrawals int64 `json:"pendingWithdrawals"`
	PendingDeposits    int64 `json:"pendingDeposits"`
}
