package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleConfig struct {
	HTTP struct {
		Port string `yaml:"port" env:"SAMPLE_HTTP_PORT"`
	} `yaml:"http"`
	Timeout time.Duration `yaml:"timeout"`
	Origins []string      `yaml:"origins"`
	Redis   struct {
		DB int `yaml:"db"`
	} `yaml:"redis"`
}

func TestLoadConfigFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http:\n  port: \"9000\"\nredis:\n  db: 2\n"), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("SAMPLE_HTTP_PORT", "9100")
	t.Setenv("TIMEOUT", "3s")
	t.Setenv("ORIGINS", "a.local, b.local,")

	var cfg sampleConfig
	require.NoError(t, LoadConfig(&cfg))

	assert.Equal(t, "9100", cfg.HTTP.Port)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, 3*time.Second, cfg.Timeout)
	assert.Equal(t, []string{"a.local", "b.local"}, cfg.Origins)
}

func TestLoadConfigRejectsNonPointer(t *testing.T) {
	assert.Error(t, LoadConfig(nil))
	assert.Error(t, LoadConfig(sampleConfig{}))
}

func TestLoadConfigBadValue(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("REDIS_DB", "two")

	var cfg sampleConfig
	err := LoadConfig(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REDIS_DB")
}
