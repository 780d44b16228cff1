package service

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/deevxcoder/queen-001-replit-sub000/internal/game/builtin"
	"github.com/deevxcoder/queen-001-replit-sub000/internal/metrics"
	"github.com/deevxcoder/queen-001-replit-sub000/internal/model"
	"github.com/deevxcoder/queen-001-replit-sub000/internal/notify"
	"github.com/deevxcoder/queen-001-replit-sub000/internal/repository"
	"github.com/deevxcoder/queen-001-replit-sub000/internal/repository/memory"
)

// testingT is satisfied by *testing.T and *rapid.T.
type testingT interface {
	require.TestingT
	Helper()
}

// fixture wires every service on an in-memory store with a recording notifier.
type fixture struct {
	store *memory.Store
	rec   *notify.Recorder

	ledger     *Ledger
	wagers     *WagerService
	settlement *SettlementService
	approvals  *ApprovalService
	catalog    *CatalogService
	accounts   *AccountService

	admin Actor
}

func newFixture(t testingT, opts LedgerOptions) *fixture {
	t.Helper()

	store := memory.New()
	rec := notify.NewRecorder()
	m := metrics.NewNop()
	rules := builtin.NewRegistry()
	ledger := NewLedger(store, m, opts)

	f := &fixture{
		store:      store,
		rec:        rec,
		ledger:     ledger,
		wagers:     NewWagerService(store, ledger, rules, rec, m, WagerLimits{Min: 1}),
		settlement: NewSettlementService(store, ledger, rules, rec, m),
		approvals:  NewApprovalService(store, ledger, rec),
		catalog:    NewCatalogService(store),
		accounts:   NewAccountService(store),
	}

	var admin *model.User
	require.NoError(t, store.WithTx(context.Background(), func(tx repository.Tx) error {
		var err error
		admin, err = tx.CreateUser(context.Background(), &model.User{Username: "root", Role: model.RoleAdmin})
		return err
	}))
	f.admin = Actor{ID: admin.ID, Role: model.RoleAdmin}
	return f
}

func (f *fixture) subadmin(t testingT, name string) Actor {
	t.Helper()
	u, err := f.accounts.CreateUser(context.Background(), f.admin, CreateUserRequest{Username: name, Role: model.RoleSubadmin})
	require.NoError(t, err)
	return Actor{ID: u.ID, Role: model.RoleSubadmin}
}

// player creates a player owned by owner (nil for none) funded with balance
// through an admin adjustment, and clears the recorded notifications.
func (f *fixture) player(t testingT, name string, balance int64, owner *Actor) Actor {
	t.Helper()
	ctx := context.Background()

	creator := f.admin
	if owner != nil {
		creator = *owner
	}
	u, err := f.accounts.CreateUser(ctx, creator, CreateUserRequest{Username: name, Role: model.RolePlayer})
	require.NoError(t, err)

	if balance > 0 {
		_, err = f.approvals.AdjustBalance(ctx, f.admin, u.ID, balance, "opening balance")
		require.NoError(t, err)
	}
	f.rec.Reset()
	return Actor{ID: u.ID, Role: model.RolePlayer}
}

// openMarket creates and opens a market offering each game type at its odds.
func (f *fixture) openMarket(t testingT, odds map[model.GameType]string) int64 {
	t.Helper()
	ctx := context.Background()

	var games []GameTypeSetting
	for gt, o := range odds {
		games = append(games, GameTypeSetting{GameType: gt, Active: true, Odds: decimal.RequireFromString(o)})
	}
	m, err := f.catalog.CreateMarket(ctx, f.admin, "Test Market", games)
	require.NoError(t, err)
	_, err = f.catalog.OpenMarket(ctx, f.admin, m.ID)
	require.NoError(t, err)
	return m.ID
}

func (f *fixture) closeMarket(t testingT, marketID int64) {
	t.Helper()
	_, err := f.catalog.CloseMarket(context.Background(), f.admin, marketID)
	require.NoError(t, err)
}

func (f *fixture) balance(t testingT, userID int64) int64 {
	t.Helper()
	var balance int64
	require.NoError(t, f.store.View(context.Background(), func(tx repository.Tx) error {
		u, err := tx.GetUser(context.Background(), userID)
		if err != nil {
			return err
		}
		balance = u.Balance
		return nil
	}))
	return balance
}

func (f *fixture) entries(t testingT, userID int64, kind model.EntryKind) []*model.LedgerEntry {
	t.Helper()
	var out []*model.LedgerEntry
	require.NoError(t, f.store.View(context.Background(), func(tx repository.Tx) error {
		all, err := tx.ListEntriesByUser(context.Background(), userID, 0)
		if err != nil {
			return err
		}
		for _, e := range all {
			if e.Kind == kind {
				out = append(out, e)
			}
		}
		return nil
	}))
	return out
}

func (f *fixture) wager(t testingT, id int64) *model.Wager {
	t.Helper()
	var w *model.Wager
	require.NoError(t, f.store.View(context.Background(), func(tx repository.Tx) error {
		var err error
		w, err = tx.GetWager(context.Background(), id)
		return err
	}))
	return w
}

// requireInvariant checks that the cached balance equals the sum of applied entries.
func (f *fixture) requireInvariant(t testingT, userID int64) {
	t.Helper()
	v, err := f.ledger.Verify(context.Background(), userID)
	require.NoError(t, err)
	require.True(t, v.Consistent, "balance %d != ledger %d", v.Cached, v.Ledger)
}

func (f *fixture) mustOdds(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
