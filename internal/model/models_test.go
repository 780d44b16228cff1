package model

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	for _, r := range []Role{RoleAdmin, RoleSubadmin, RolePlayer} {
		got, err := ParseRole(r.String())
		require.NoError(t, err)
		assert.Equal(t, r, got)
	}

	_, err := ParseRole("root")
	assert.Error(t, err)
	assert.Equal(t, "unknown", RoleUnknown.String())
}

func TestEntityStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from, to EntityStatus
		want     bool
	}{
		{StatusUpcoming, StatusOpen, true},
		{StatusOpen, StatusClosed, true},
		{StatusUpcoming, StatusClosed, false},
		{StatusClosed, StatusOpen, false},
		{StatusOpen, StatusUpcoming, false},
		{StatusClosed, StatusClosed, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}
}

func TestPotentialWinning(t *testing.T) {
	tests := []struct {
		amount int64
		odds   string
		want   int64
		ok     bool
	}{
		{100, "90", 9000, true},
		{100, "1.95", 195, true},
		// floor, never round up
		{3, "0.99", 2, true},
		{math.MaxInt64, "1", math.MaxInt64, true},
		{200_000_000_000_000_000, "90", 0, false},
		{math.MaxInt64, "1.0001", 0, false},
	}

	for _, tt := range tests {
		got, ok := PotentialWinning(tt.amount, decimal.RequireFromString(tt.odds))
		assert.Equal(t, tt.ok, ok, "%d x %s", tt.amount, tt.odds)
		assert.Equal(t, tt.want, got, "%d x %s", tt.amount, tt.odds)
	}
}

func TestLedgerEntry_Applied(t *testing.T) {
	tests := []struct {
		kind   EntryKind
		status EntryStatus
		want   bool
	}{
		{EntryBet, EntryApproved, true},
		{EntryWinning, EntryApproved, true},
		{EntryAdjustment, EntryApproved, true},
		{EntryDeposit, EntryPending, false},
		{EntryDeposit, EntryApproved, true},
		{EntryDeposit, EntryRejected, false},
		{EntryWithdrawal, EntryPending, true},
		{EntryWithdrawal, EntryApproved, true},
		{EntryWithdrawal, EntryRejected, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind)+"/"+string(tt.status), func(t *testing.T) {
			e := LedgerEntry{Kind: tt.kind, Status: tt.status}
			assert.Equal(t, tt.want, e.Applied())
		})
	}
}
