package persistence

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/mentorship-hub/config"
	"github.com/alem-hub/mentorship-hub/internal/domain/shared"
)

func TestOpenSQLite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "booking.db")

	storage, err := Open(ctx, config.DatabaseConfig{Driver: config.DriverSQLite, SQLitePath: path}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = storage.Close() })

	assert.Equal(t, config.DriverSQLite, storage.Driver)
	require.NoError(t, storage.Ping(ctx))

	_, err = storage.Mentors.GetByID(ctx, "missing")
	assert.True(t, shared.IsNotFound(err))

	ids, err := storage.Mentors.ListIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.DatabaseConfig{Driver: "mysql"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mysql")
}

func TestRedisConfig(t *testing.T) {
	rc := RedisConfig(config.RedisConfig{
		URL:      "redis://cache:6380/2",
		Host:     "cache",
		Port:     6380,
		DB:       2,
		PoolSize: 0,
	})

	assert.Equal(t, "redis://cache:6380/2", rc.URL)
	assert.Equal(t, "cache:6380", rc.Addr())
	assert.Equal(t, 10, rc.PoolSize, "zero keeps the client default")
}

func TestOpenCacheDisabled(t *testing.T) {
	assert.Nil(t, OpenCache(context.Background(), config.RedisConfig{Disabled: true}, nil))
}
