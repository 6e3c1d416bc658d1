package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SESSION_SECRET", "test-secret")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "casino_session", cfg.Session.CookieName)
	assert.Equal(t, int64(100000), cfg.Daily.Reward)
	assert.Equal(t, 24*time.Hour, cfg.Daily.Cooldown())
	assert.Equal(t, int64(10000), cfg.Users.StartingBalance)
	assert.Equal(t, int64(1), cfg.Games.MinBet)
	assert.Equal(t, int64(1000000), cfg.Games.MaxBet)
	assert.Equal(t, 32, cfg.Games.Roulette.MaxBets)
	assert.Equal(t, 5, cfg.Games.Mines.DefaultGridSize)
	assert.Equal(t, 5, cfg.Games.Mines.DefaultMineCount)
	assert.Equal(t, 250*time.Millisecond, cfg.Games.Crash.ClientTolerance)
	assert.False(t, cfg.Kafka.Enabled())
	assert.Equal(t, "postgres://casino:@localhost:5432/casino?sslmode=disable", cfg.Database.DSN())
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	yaml := `
server:
  addr: ":9000"
games:
  crash:
    client_tolerance: 500ms
admin:
  ids:
    - 6f1c2b9e-0000-4000-8000-000000000001
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SESSION_SECRET=from-dotenv\n"), 0o600))
	// t.Setenv restores the variable afterwards; unset it so the .env value applies
	t.Setenv("SESSION_SECRET", "")
	require.NoError(t, os.Unsetenv("SESSION_SECRET"))

	t.Setenv("DATABASE_HOST", "db.internal")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, 500*time.Millisecond, cfg.Games.Crash.ClientTolerance)
	assert.Equal(t, "from-dotenv", cfg.Session.Secret)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Kafka.Enabled())

	assert.True(t, cfg.IsAdmin("6F1C2B9E-0000-4000-8000-000000000001"))
	assert.False(t, cfg.IsAdmin("6f1c2b9e-0000-4000-8000-000000000002"))
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	assert.Error(t, cfg.Validate())

	cfg.Session.Secret = "s"
	cfg.Games.MinBet, cfg.Games.MaxBet = 10, 5
	assert.Error(t, cfg.Validate())

	cfg.Games.MaxBet = 100
	assert.NoError(t, cfg.Validate())
}
