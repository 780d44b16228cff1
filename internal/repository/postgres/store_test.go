// Tests use testcontainers-go to spin up a PostgreSQL container.
package postgres

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/deevxcoder/queen-001-replit-sub000/internal/model"
	"github.com/deevxcoder/queen-001-replit-sub000/internal/repository"
)

// checkDockerAvailable checks if Docker is available and running
func checkDockerAvailable() bool {
	return exec.Command("docker", "info").Run() == nil
}

// setupTestStore creates a PostgreSQL container, applies the schema and
// returns a Store. Skips the test if Docker is not available.
func setupTestStore(t *testing.T) *Store {
	t.Helper()
	if !checkDockerAvailable() {
		t.Skip("Docker is not available, skipping integration test")
	}

	ctx := context.Background()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:15-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("testuser"),
		tcpostgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	require.NoError(t, Migrate(ctx, pool))
	// Migrations are idempotent.
	require.NoError(t, Migrate(ctx, pool))

	t.Cleanup(func() {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
	})

	return New(pool)
}

func createPlayer(t *testing.T, s *Store, name string) *model.User {
	t.Helper()
	var u *model.User
	err := s.WithTx(context.Background(), func(tx repository.Tx) error {
		var err error
		u, err = tx.CreateUser(context.Background(), &model.User{Username: name, Role: model.RolePlayer})
		return err
	})
	require.NoError(t, err)
	return u
}

func TestStore_Users(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	u := createPlayer(t, s, "alice")
	assert.Equal(t, model.RolePlayer, u.Role)
	assert.Equal(t, model.UserActive, u.Status)
	assert.Equal(t, int64(0), u.Balance)

	err := s.WithTx(ctx, func(tx repository.Tx) error {
		_, err := tx.CreateUser(ctx, &model.User{Username: "alice", Role: model.RolePlayer})
		return err
	})
	assert.ErrorIs(t, err, repository.ErrConflict)

	err = s.View(ctx, func(tx repository.Tx) error {
		_, err := tx.GetUser(ctx, 999999)
		return err
	})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestStore_AddBalanceRejectsOverdraft(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	u := createPlayer(t, s, "bob")

	var balance int64
	err := s.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		balance, err = tx.AddBalance(ctx, u.ID, 500)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int64(500), balance)

	err = s.WithTx(ctx, func(tx repository.Tx) error {
		_, err := tx.AddBalance(ctx, u.ID, -501)
		return err
	})
	assert.ErrorIs(t, err, repository.ErrNegativeBalance)
}

func TestStore_WithTxRollsBack(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	u := createPlayer(t, s, "carol")

	errBoom := errors.New("boom")
	err := s.WithTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.AddBalance(ctx, u.ID, 1000); err != nil {
			return err
		}
		if _, err := tx.CreateEntry(ctx, &model.LedgerEntry{
			UserID: u.ID, Kind: model.EntryAdjustment, Amount: 1000, Status: model.EntryApproved,
		}); err != nil {
			return err
		}
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)

	err = s.View(ctx, func(tx repository.Tx) error {
		got, err := tx.GetUser(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(0), got.Balance)

		sum, err := tx.SumApplied(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(0), sum)
		return nil
	})
	require.NoError(t, err)
}

func TestStore_MarketLifecycle(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx repository.Tx) error {
		m, err := tx.CreateMarket(ctx, &model.Market{Name: "Morning"})
		require.NoError(t, err)
		assert.Equal(t, model.StatusUpcoming, m.Status)
		assert.Equal(t, model.ResultPending, m.ResultStatus)

		odds := decimal.RequireFromString("90")
		require.NoError(t, tx.UpsertGameTypeConfig(ctx, &model.GameTypeConfig{
			MarketID: m.ID, GameType: model.GameJodi, Active: true, Odds: odds,
		}))
		cfg, err := tx.GetGameTypeConfig(ctx, m.ID, model.GameJodi)
		require.NoError(t, err)
		assert.True(t, cfg.Odds.Equal(odds))

		// Declaring before close is refused.
		ok, err := tx.DeclareMarketResult(ctx, m.ID, "42")
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = tx.TransitionMarket(ctx, m.ID, model.StatusUpcoming, model.StatusOpen)
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = tx.TransitionMarket(ctx, m.ID, model.StatusUpcoming, model.StatusOpen)
		require.NoError(t, err)
		assert.False(t, ok)
		ok, err = tx.TransitionMarket(ctx, m.ID, model.StatusOpen, model.StatusClosed)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = tx.DeclareMarketResult(ctx, m.ID, "42")
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = tx.DeclareMarketResult(ctx, m.ID, "17")
		require.NoError(t, err)
		assert.False(t, ok)

		got, err := tx.GetMarket(ctx, m.ID)
		require.NoError(t, err)
		require.NotNil(t, got.ResultValue)
		assert.Equal(t, "42", *got.ResultValue)
		assert.NotNil(t, got.DeclaredAt)

		_, err = tx.TransitionMarket(ctx, 999999, model.StatusUpcoming, model.StatusOpen)
		assert.ErrorIs(t, err, repository.ErrNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestStore_WagersAndLedger(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	u := createPlayer(t, s, "dave")

	err := s.WithTx(ctx, func(tx repository.Tx) error {
		g, err := tx.CreateOptionGame(ctx, &model.OptionGame{TeamA: "Lions", TeamB: "Tigers", Odds: decimal.RequireFromString("1.95")})
		require.NoError(t, err)

		w, err := tx.CreateWager(ctx, &model.Wager{
			UserID: u.ID, TargetKind: model.TargetOption, TargetID: g.ID, GameType: model.GameOption,
			Selection: "A", Amount: 100, Odds: g.Odds, PotentialWinning: 195,
		})
		require.NoError(t, err)
		assert.Equal(t, model.WagerPending, w.Status)
		assert.True(t, w.Odds.Equal(decimal.RequireFromString("1.95")))

		pending, err := tx.ListWagersByTarget(ctx, model.TargetOption, g.ID, model.WagerPending)
		require.NoError(t, err)
		assert.Len(t, pending, 1)

		ok, err := tx.SettleWager(ctx, w.ID, model.WagerWon)
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = tx.SettleWager(ctx, w.ID, model.WagerLost)
		require.NoError(t, err)
		assert.False(t, ok)

		_, err = tx.CreateEntry(ctx, &model.LedgerEntry{UserID: u.ID, Kind: model.EntryDeposit, Amount: 1000, Status: model.EntryApproved})
		require.NoError(t, err)
		wd, err := tx.CreateEntry(ctx, &model.LedgerEntry{UserID: u.ID, Kind: model.EntryWithdrawal, Amount: -300, Status: model.EntryPending, InitiatedBy: &u.ID})
		require.NoError(t, err)
		assert.Nil(t, wd.ResolvedAt)
		_, err = tx.CreateEntry(ctx, &model.LedgerEntry{UserID: u.ID, Kind: model.EntryDeposit, Amount: 50, Status: model.EntryPending})
		require.NoError(t, err)

		sum, err := tx.SumApplied(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(700), sum)

		deposits, withdrawals, err := tx.SumPending(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(50), deposits)
		assert.Equal(t, int64(300), withdrawals)

		ok, err = tx.ResolveEntry(ctx, wd.ID, model.EntryRejected, 1)
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = tx.ResolveEntry(ctx, wd.ID, model.EntryApproved, 1)
		require.NoError(t, err)
		assert.False(t, ok)

		sum, err = tx.SumApplied(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1000), sum)

		entries, err := tx.ListPendingEntries(ctx, 0)
		require.NoError(t, err)
		assert.Len(t, entries, 1)

		history, err := tx.ListEntriesByUser(ctx, u.ID, 2)
		require.NoError(t, err)
		assert.Len(t, history, 2)
		return nil
	})
	require.NoError(t, err)
}

func TestStore_Quarantine(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	u := createPlayer(t, s, "carol")
	createPlayer(t, s, "dave")

	require.NoError(t, s.WithTx(ctx, func(tx repository.Tx) error {
		return tx.SetQuarantined(ctx, u.ID, true)
	}))

	err := s.View(ctx, func(tx repository.Tx) error {
		ids, err := tx.ListQuarantined(ctx)
		require.NoError(t, err)
		assert.Equal(t, []int64{u.ID}, ids)

		got, err := tx.GetUser(ctx, u.ID)
		require.NoError(t, err)
		assert.True(t, got.Quarantined)
		return nil
	})
	require.NoError(t, err)

	err = s.WithTx(ctx, func(tx repository.Tx) error {
		return tx.SetQuarantined(ctx, 999999, true)
	})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestStore_OnlyBalanceCheckMeansOverdraft(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	u := createPlayer(t, s, "erin")

	err := s.WithTx(ctx, func(tx repository.Tx) error {
		_, err := tx.CreateEntry(ctx, &model.LedgerEntry{
			UserID: u.ID,
			Kind:   model.EntryKind("bonus"),
			Amount: 10,
			Status: model.EntryApproved,
		})
		return err
	})
	require.Error(t, err)
	assert.NotErrorIs(t, err, repository.ErrNegativeBalance)
}
