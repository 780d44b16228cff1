package notify

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	if exec.Command("docker", "info").Run() != nil {
		t.Skip("Docker is not available, skipping integration test")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() {
		_ = client.Close()
		_ = container.Terminate(ctx)
	})
	return client
}

func TestRedisRelay_RoundTrip(t *testing.T) {
	client := setupRedis(t)
	relay := NewRedisRelay(client, "test_events")
	local := NewRecorder()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ready := make(chan struct{})
	errCh := make(chan error, 1)
	go func() { errCh <- relay.Subscribe(ctx, local, ready) }()

	select {
	case <-ready:
	case err := <-errCh:
		t.Fatalf("subscribe failed: %v", err)
	case <-time.After(10 * time.Second):
		t.Fatal("subscription not ready")
	}

	ev := WalletUpdate(11, 500, 1500, "deposit")
	require.NoError(t, relay.Deliver(ctx, Delivery{UserID: 11, Event: ev}))

	require.Eventually(t, func() bool { return len(local.ForUser(11)) == 1 }, 5*time.Second, 20*time.Millisecond)
	got := local.ForUser(11)[0]
	assert.Equal(t, ev.ID, got.ID)
	assert.Equal(t, int64(500), got.Amount)

	cancel()
	assert.NoError(t, <-errCh)
}
