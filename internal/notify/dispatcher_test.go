package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deevxcoder/queen-001-replit-sub000/internal/metrics"
	"github.com/deevxcoder/queen-001-replit-sub000/internal/model"
)

type failingSink struct{}

func (failingSink) Name() string { return "failing" }

func (failingSink) Deliver(context.Context, Delivery) error { return errors.New("down") }

func TestDispatcher_DeliversToAllSinks(t *testing.T) {
	m := metrics.NewNop()
	first, second := NewRecorder(), NewRecorder()
	d := NewDispatcher(8, m, failingSink{}, first, second)

	ctx, cancel := context.WithCancel(context.Background())
	go d.Run(ctx)

	d.NotifyUser(7, WalletUpdate(7, 100, 1100, "deposit"))
	d.Broadcast(MarketResult(3, "47"))

	require.Eventually(t, func() bool { return len(second.Deliveries()) == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	<-d.Done()

	for _, r := range []*Recorder{first, second} {
		user := r.ForUser(7)
		require.Len(t, user, 1)
		assert.Equal(t, EventWalletUpdate, user[0].Type)
		require.NotNil(t, user[0].Balance)
		assert.Equal(t, int64(1100), *user[0].Balance)

		b := r.Broadcasts()
		require.Len(t, b, 1)
		assert.Equal(t, "47", b[0].ResultValue)
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(m.NotificationErrors.WithLabelValues("failing")))
}

func TestDispatcher_DropsWhenQueueFull(t *testing.T) {
	m := metrics.NewNop()
	rec := NewRecorder()
	d := NewDispatcher(2, m, rec)

	// Nothing drains the queue until Run starts.
	for i := 0; i < 5; i++ {
		d.Broadcast(OptionGameResult(1, model.TeamA))
	}
	assert.Equal(t, 3.0, testutil.ToFloat64(m.NotificationsDropped))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Run(ctx)

	// Queued events are flushed on shutdown.
	assert.Len(t, rec.Broadcasts(), 2)
}

func TestEventConstructors(t *testing.T) {
	entry := &model.LedgerEntry{ID: 9, UserID: 4, Kind: model.EntryWithdrawal, Amount: -300, Status: model.EntryRejected}
	e := TransactionStatus(entry, 1000)
	assert.Equal(t, EventTransactionStatus, e.Type)
	assert.Equal(t, int64(4), e.UserID)
	assert.Equal(t, int64(9), e.TransactionID)
	assert.Equal(t, model.EntryRejected, e.Status)
	assert.NotEmpty(t, e.ID)

	other := OptionGameResult(2, model.TeamB)
	assert.NotEqual(t, e.ID, other.ID)
	assert.Equal(t, model.TeamB, other.WinningTeam)
}
