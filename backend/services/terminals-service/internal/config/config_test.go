package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsAndEnv(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("TERMINALS_STORAGE", "memory")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("WS_PING_INTERVAL", "15s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddress())
	assert.Equal(t, StorageMemory, cfg.Storage.Driver)
	assert.Equal(t, 15*time.Second, cfg.WebSocket.PingInterval)
	assert.Equal(t, "cumulative", cfg.Pricing.AddTimePolicy)
	assert.Equal(t, 5*time.Second, cfg.OperationTimeout())
	assert.False(t, cfg.RedisEnabled())
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "terminals.yaml")
	doc := `
http:
  port: ":9090"
storage:
  driver: postgres
database:
  dsn: postgres://lan@localhost/lan
redis:
  addr: localhost:6379
jwt:
  secret: abc
pricing:
  addTimePolicy: recalculate
zones:
  cacheTTL: 2m
operationTimeoutSeconds: 3
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddress())
	assert.Equal(t, "recalculate", cfg.Pricing.AddTimePolicy)
	assert.Equal(t, 2*time.Minute, cfg.Zones.CacheTTL)
	assert.Equal(t, 3*time.Second, cfg.OperationTimeout())
	assert.True(t, cfg.RedisEnabled())
	assert.Equal(t, "terminals:changed", cfg.Redis.Channel)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{name: "postgres without dsn", mutate: func(c *Config) {}, errMsg: "DSN"},
		{name: "unknown driver", mutate: func(c *Config) { c.Storage.Driver = "bolt" }, errMsg: "storage driver"},
		{name: "missing secret", mutate: func(c *Config) { c.Storage.Driver = StorageMemory; c.JWT.Secret = "" }, errMsg: "jwt"},
		{name: "bad policy", mutate: func(c *Config) { c.Storage.Driver = StorageMemory; c.Pricing.AddTimePolicy = "free" }, errMsg: "policy"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			cfg.JWT.Secret = "abc"
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errMsg)
		})
	}
}
