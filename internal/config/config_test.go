package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o600))
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 15*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 20, cfg.Database.PoolSize)
	assert.Equal(t, time.Hour, cfg.Database.MaxConnLifetime)
	assert.Equal(t, int64(1), cfg.Wager.MinAmount)
	assert.Zero(t, cfg.Wager.MaxAmount)
	assert.True(t, cfg.Ledger.VerifyOnWrite)
	assert.Equal(t, 1024, cfg.Notify.QueueSize)
	assert.Equal(t, "wager_events", cfg.Redis.Channel)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, "admin", cfg.Admin.Username)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	dir := writeConfig(t, `
server:
  addr: ":9090"
database:
  host: db.internal
  name: bets
wager:
  min_amount: 10
  max_amount: 50000
kafka:
  enabled: true
  brokers: ["k1:9092", "k2:9092"]
  topic: settlements
`)
	t.Setenv("DATABASE_HOST", "override.internal")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "override.internal", cfg.Database.Host)
	assert.Equal(t, "bets", cfg.Database.Name)
	assert.Equal(t, int64(10), cfg.Wager.MinAmount)
	assert.Equal(t, int64(50000), cfg.Wager.MaxAmount)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "settlements", cfg.Kafka.Topic)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "postgres://wager:@override.internal:5432/bets?sslmode=disable", cfg.Database.DSN())
}

func TestLoad_RejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"max below min", "wager:\n  min_amount: 100\n  max_amount: 10\n"},
		{"zero min", "wager:\n  min_amount: 0\n"},
		{"kafka without brokers", "kafka:\n  enabled: true\n"},
		{"empty queue", "notify:\n  queue_size: 0\n"},
		{"unknown log format", "log:\n  format: xml\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	_, err := Load(writeConfig(t, "server: [unterminated"))
	assert.Error(t, err)
}
