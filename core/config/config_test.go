package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseConfig() *Config {
	cfg := &Config{}
	cfg.Telegram.Token = "123:abc"
	cfg.Discovery.Mirrors = []string{"https://mirror.example/"}
	return cfg
}

func TestNormalizeDefaults(t *testing.T) {
	cfg := baseConfig()
	require.NoError(t, Normalize(cfg))

	assert.Equal(t, RunModeLongpoll, cfg.Telegram.RunMode)
	assert.Equal(t, SessionDriverFile, cfg.Session.Driver)
	assert.Equal(t, "sessions.json", cfg.Session.File)
	assert.Equal(t, 8, cfg.Session.TTLHours)
	assert.Equal(t, []string{"https://mirror.example"}, cfg.Discovery.Mirrors)
	assert.Equal(t, 8, cfg.Seedr.PollAttempts)
	assert.Equal(t, 2, cfg.Seedr.PollIntervalSeconds)
}

func TestNormalizePostgresRequiresDatabase(t *testing.T) {
	cfg := baseConfig()
	cfg.Session.Driver = SessionDriverPostgres

	err := Normalize(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.host")

	cfg.Database = DatabaseConfig{Host: "db.local", Name: "sessions"}
	require.NoError(t, Normalize(cfg))
	assert.Equal(t, SessionDriverPostgres, cfg.Session.Driver)
}

func TestNormalizeRejectsUnknownDriver(t *testing.T) {
	cfg := baseConfig()
	cfg.Session.Driver = "redis"

	err := Normalize(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis")
}
