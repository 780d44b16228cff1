package service

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deevxcoder/queen-001-replit-sub000/internal/model"
	"github.com/deevxcoder/queen-001-replit-sub000/internal/notify"
)

func TestPlaceMarketWager_DebitsAndRecordsBet(t *testing.T) {
	f := newFixture(t, LedgerOptions{VerifyOnWrite: true})
	ctx := context.Background()
	p := f.player(t, "player1", 1000, nil)
	marketID := f.openMarket(t, map[model.GameType]string{model.GameJodi: "90"})

	w, err := f.wagers.PlaceMarketWager(ctx, p, MarketWagerRequest{
		MarketID: marketID, GameType: model.GameJodi, Selection: "47", Amount: 100,
	})
	require.NoError(t, err)

	assert.Equal(t, model.WagerPending, w.Status)
	assert.Equal(t, int64(9000), w.PotentialWinning)
	assert.Equal(t, "90", w.Odds.String())
	assert.Equal(t, int64(900), f.balance(t, p.ID))

	bets := f.entries(t, p.ID, model.EntryBet)
	require.Len(t, bets, 1)
	assert.Equal(t, int64(-100), bets[0].Amount)
	assert.Equal(t, model.EntryApproved, bets[0].Status)
	assert.Equal(t, wagerReference(w.ID), bets[0].Reference)

	events := f.rec.ForUser(p.ID)
	require.Len(t, events, 1)
	assert.Equal(t, notify.EventWalletUpdate, events[0].Type)
	assert.Equal(t, int64(-100), events[0].Amount)
	assert.Equal(t, int64(900), *events[0].Balance)

	f.requireInvariant(t, p.ID)
}

func TestPlaceMarketWager_Rejections(t *testing.T) {
	f := newFixture(t, LedgerOptions{})
	ctx := context.Background()
	p := f.player(t, "player1", 100, nil)
	marketID := f.openMarket(t, map[model.GameType]string{model.GameJodi: "90", model.GameCross: "9"})
	_, err := f.catalog.ConfigureGameType(ctx, f.admin, marketID, GameTypeSetting{
		GameType: model.GameCross, Active: false, Odds: f.mustOdds("9"),
	})
	require.NoError(t, err)

	upcoming, err := f.catalog.CreateMarket(ctx, f.admin, "Later", []GameTypeSetting{{GameType: model.GameJodi, Active: true, Odds: f.mustOdds("90")}})
	require.NoError(t, err)

	tests := []struct {
		name    string
		actor   Actor
		req     MarketWagerRequest
		wantErr error
	}{
		{"insufficient balance", p, MarketWagerRequest{marketID, model.GameJodi, "47", 101}, ErrInsufficientBalance},
		{"zero amount", p, MarketWagerRequest{marketID, model.GameJodi, "47", 0}, ErrValidation},
		{"bad jodi selection", p, MarketWagerRequest{marketID, model.GameJodi, "4", 10}, ErrValidation},
		{"game type not offered", p, MarketWagerRequest{marketID, model.GameHurf, "Left:4", 10}, ErrValidation},
		{"inactive game type", p, MarketWagerRequest{marketID, model.GameCross, "1,2", 10}, ErrValidation},
		{"option type on market", p, MarketWagerRequest{marketID, model.GameOption, "A", 10}, ErrValidation},
		{"market not open", p, MarketWagerRequest{upcoming.ID, model.GameJodi, "47", 10}, ErrNotOpen},
		{"unknown market", p, MarketWagerRequest{9999, model.GameJodi, "47", 10}, ErrNotFound},
		{"admin cannot bet", f.admin, MarketWagerRequest{marketID, model.GameJodi, "47", 10}, ErrUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.wagers.PlaceMarketWager(ctx, tt.actor, tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	// No rejection left a trace.
	assert.Equal(t, int64(100), f.balance(t, p.ID))
	assert.Empty(t, f.entries(t, p.ID, model.EntryBet))
	wagers, err := f.wagers.ListByUser(ctx, p, p.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, wagers)
	assert.Empty(t, f.rec.Deliveries())
}

func TestPlaceWager_BlockedPlayer(t *testing.T) {
	f := newFixture(t, LedgerOptions{})
	ctx := context.Background()
	p := f.player(t, "player1", 100, nil)
	marketID := f.openMarket(t, map[model.GameType]string{model.GameOddEven: "1.9"})

	_, err := f.accounts.SetUserStatus(ctx, f.admin, p.ID, model.UserBlocked)
	require.NoError(t, err)

	_, err = f.wagers.PlaceMarketWager(ctx, p, MarketWagerRequest{marketID, model.GameOddEven, "Odd", 10})
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, int64(100), f.balance(t, p.ID))
}

func TestPlaceWager_ClosedMarket(t *testing.T) {
	f := newFixture(t, LedgerOptions{})
	p := f.player(t, "player1", 100, nil)
	marketID := f.openMarket(t, map[model.GameType]string{model.GameJodi: "90"})
	f.closeMarket(t, marketID)

	_, err := f.wagers.PlaceMarketWager(context.Background(), p, MarketWagerRequest{marketID, model.GameJodi, "47", 10})
	assert.ErrorIs(t, err, ErrNotOpen)
}

func TestPlaceWager_Limits(t *testing.T) {
	f := newFixture(t, LedgerOptions{})
	f.wagers.limits = WagerLimits{Min: 10, Max: 500}
	p := f.player(t, "player1", 1000, nil)
	marketID := f.openMarket(t, map[model.GameType]string{model.GameJodi: "90"})
	ctx := context.Background()

	_, err := f.wagers.PlaceMarketWager(ctx, p, MarketWagerRequest{marketID, model.GameJodi, "47", 9})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.wagers.PlaceMarketWager(ctx, p, MarketWagerRequest{marketID, model.GameJodi, "47", 501})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.wagers.PlaceMarketWager(ctx, p, MarketWagerRequest{marketID, model.GameJodi, "47", 500})
	assert.NoError(t, err)
}

func TestPlaceOptionWager_NormalizesSelection(t *testing.T) {
	f := newFixture(t, LedgerOptions{})
	ctx := context.Background()
	p := f.player(t, "player1", 1000, nil)

	g, err := f.catalog.CreateOptionGame(ctx, f.admin, "Lions", "Tigers", f.mustOdds("1.95"))
	require.NoError(t, err)

	_, err = f.wagers.PlaceOptionWager(ctx, p, OptionWagerRequest{GameID: g.ID, Selection: "A", Amount: 100})
	assert.ErrorIs(t, err, ErrNotOpen)

	_, err = f.catalog.OpenOptionGame(ctx, f.admin, g.ID)
	require.NoError(t, err)

	_, err = f.wagers.PlaceOptionWager(ctx, p, OptionWagerRequest{GameID: g.ID, Selection: "C", Amount: 100})
	assert.ErrorIs(t, err, ErrValidation)

	w, err := f.wagers.PlaceOptionWager(ctx, p, OptionWagerRequest{GameID: g.ID, Selection: " a ", Amount: 100})
	require.NoError(t, err)
	assert.Equal(t, "A", w.Selection)
	assert.Equal(t, model.GameOption, w.GameType)
	assert.Equal(t, int64(195), w.PotentialWinning)
	assert.Equal(t, int64(900), f.balance(t, p.ID))
}

func TestWagerVisibility(t *testing.T) {
	f := newFixture(t, LedgerOptions{})
	ctx := context.Background()
	sub := f.subadmin(t, "sub_one")
	owned := f.player(t, "owned", 100, &sub)
	other := f.player(t, "other", 100, nil)
	marketID := f.openMarket(t, map[model.GameType]string{model.GameJodi: "90"})

	w, err := f.wagers.PlaceMarketWager(ctx, owned, MarketWagerRequest{marketID, model.GameJodi, "12", 10})
	require.NoError(t, err)

	for _, actor := range []Actor{owned, sub, f.admin} {
		got, err := f.wagers.Get(ctx, actor, w.ID)
		require.NoError(t, err)
		assert.Equal(t, w.ID, got.ID)
	}
	_, err = f.wagers.Get(ctx, other, w.ID)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = f.wagers.ListByUser(ctx, other, owned.ID, 10)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestPlaceMarketWager_RejectsOverflowingWinning(t *testing.T) {
	f := newFixture(t, LedgerOptions{VerifyOnWrite: true})
	ctx := context.Background()
	marketID := f.openMarket(t, map[model.GameType]string{model.GameJodi: "90"})

	const stake = 200_000_000_000_000_000
	whale := f.player(t, "whale", stake, nil)
	_, err := f.wagers.PlaceMarketWager(ctx, whale, MarketWagerRequest{marketID, model.GameJodi, "47", stake})
	require.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, int64(stake), f.balance(t, whale.ID))
	assert.Empty(t, f.entries(t, whale.ID, model.EntryBet))

	// The winning fits on its own but not on top of what is left.
	rich := f.player(t, "rich", math.MaxInt64-50, nil)
	_, err = f.wagers.PlaceMarketWager(ctx, rich, MarketWagerRequest{marketID, model.GameJodi, "47", 1})
	require.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, int64(math.MaxInt64-50), f.balance(t, rich.ID))

	f.requireInvariant(t, whale.ID)
	f.requireInvariant(t, rich.ID)
}
