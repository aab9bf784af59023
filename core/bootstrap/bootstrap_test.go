package bootstrap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/magbot/core/config"
	coredatabase "github.com/m3rciful/magbot/core/database"
)

func TestDatabaseConfigConversion(t *testing.T) {
	cfg := &coreconfig.Config{
		Database: coreconfig.DatabaseConfig{
			Host:           "db.local",
			Port:           "5433",
			User:           "magbot",
			Password:       "sekret",
			Name:           "sessions",
			SSLMode:        "disable",
			MaxConnections: 12,
		},
	}

	got := databaseConfig(cfg)
	want := coredatabase.Config{
		Host:           "db.local",
		Port:           "5433",
		User:           "magbot",
		Password:       "sekret",
		Name:           "sessions",
		SSLMode:        "disable",
		MaxConnections: 12,
	}
	assert.Equal(t, want, got)
}

func TestOpenStoreMemoryDriver(t *testing.T) {
	cfg := &coreconfig.Config{}
	cfg.Session.Driver = coreconfig.SessionDriverMemory

	store, err := openStore(cfg)
	require.NoError(t, err)
	require.NotNil(t, store)
	t.Cleanup(func() { _ = store.Close() })
}

func TestOpenStoreUnknownDriver(t *testing.T) {
	cfg := &coreconfig.Config{}
	cfg.Session.Driver = "redis"

	_, err := openStore(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis")
}
