package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deevxcoder/queen-001-replit-sub000/internal/metrics"
)

func newTestHub(t *testing.T) (*Hub, string) {
	t.Helper()
	hub := NewHub(HubConfig{SendBuffer: 4}, metrics.NewNop())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, _ := strconv.ParseInt(r.URL.Query().Get("user"), 10, 64)
		hub.ServeWS(w, r, userID)
	}))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string, userID int64) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url+"?user="+strconv.FormatInt(userID, 10), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	var e Event
	require.NoError(t, json.Unmarshal(msg, &e))
	return e
}

func TestHub_NotifyUserReachesEveryConnection(t *testing.T) {
	hub, url := newTestHub(t)

	a1 := dial(t, url, 1)
	a2 := dial(t, url, 1)
	b := dial(t, url, 2)
	require.Eventually(t, func() bool { return hub.Len() == 3 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 2, hub.Connections(1))

	ev := WalletUpdate(1, 9000, 9900, "winning")
	require.NoError(t, hub.Deliver(context.Background(), Delivery{UserID: 1, Event: ev}))

	for _, c := range []*websocket.Conn{a1, a2} {
		got := readEvent(t, c)
		assert.Equal(t, ev.ID, got.ID)
		require.NotNil(t, got.Balance)
		assert.Equal(t, int64(9900), *got.Balance)
	}

	// User 2 sees the broadcast as its first message, not the wallet update.
	result := MarketResult(5, "47")
	require.NoError(t, hub.Deliver(context.Background(), Delivery{Broadcast: true, Event: result}))
	got := readEvent(t, b)
	assert.Equal(t, EventMarketResult, got.Type)
	assert.Equal(t, int64(5), got.EntityID)
}

func TestHub_DisconnectUnregisters(t *testing.T) {
	hub, url := newTestHub(t)

	conn := dial(t, url, 3)
	require.Eventually(t, func() bool { return hub.Connections(3) == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Connections(3) == 0 }, 2*time.Second, 10*time.Millisecond)

	// Delivering to a user without connections is not an error.
	assert.NoError(t, hub.Deliver(context.Background(), Delivery{UserID: 3, Event: WalletUpdate(3, 1, 1, "")}))
}
