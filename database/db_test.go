package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jerry-enebeli/offline/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewActionStore_Memory(t *testing.T) {
	store, err := NewActionStore(&config.Configuration{Storage: config.StorageConfig{Driver: "memory"}}, nil)
	require.NoError(t, err)
	assert.IsType(t, &MemoryActionStore{}, store)
}

func TestNewActionStore_RedisDrivers(t *testing.T) {
	client, mr := newTestRedis(t)

	tests := []struct {
		driver string
		want   interface{}
	}{
		{"redis", &RedisActionStore{}},
		{"redis-blob", &BlobStore{}},
		{"cache-blob", &BlobStore{}},
	}

	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			cfg := &config.Configuration{
				Redis:   config.RedisConfig{Dns: mr.Addr()},
				Storage: config.StorageConfig{Driver: tt.driver, Key: "queue_" + tt.driver},
			}

			shared, err := NewActionStore(cfg, client)
			require.NoError(t, err)
			assert.IsType(t, tt.want, shared)
			require.NoError(t, shared.PutAction(context.Background(), newTestAction("action_1")))
			assert.True(t, mr.Exists("queue_"+tt.driver))
			require.NoError(t, shared.Close())

			owned, err := NewActionStore(cfg, nil)
			require.NoError(t, err)
			loaded, err := owned.LoadActions(context.Background())
			require.NoError(t, err)
			assert.Len(t, loaded, 1)
			assert.NoError(t, owned.Close())
		})
	}
}

func TestNewActionStore_RedisUnavailable(t *testing.T) {
	cfg := &config.Configuration{
		Redis:   config.RedisConfig{Dns: "localhost:1"},
		Storage: config.StorageConfig{Driver: "redis", Key: "offline_queue"},
	}
	_, err := NewActionStore(cfg, nil)
	assert.ErrorContains(t, err, "connect redis")
}

func TestNewActionStore_SQLite(t *testing.T) {
	cfg := &config.Configuration{Storage: config.StorageConfig{
		Driver: "sqlite",
		Dns:    filepath.Join(t.TempDir(), "queue.db"),
	}}
	store, err := NewActionStore(cfg, nil)
	require.NoError(t, err)
	defer store.Close()
	assert.IsType(t, &SQLActionStore{}, store)

	require.NoError(t, store.PutAction(context.Background(), newTestAction("action_1")))
	loaded, err := store.LoadActions(context.Background())
	require.NoError(t, err)
	assert.Len(t, loaded, 1)
}

func TestNewActionStore_PostgresUnavailable(t *testing.T) {
	cfg := &config.Configuration{Storage: config.StorageConfig{
		Driver: "postgres",
		Dns:    "postgres://postgres:@localhost:1/offline?sslmode=disable&connect_timeout=1",
	}}
	_, err := NewActionStore(cfg, nil)
	assert.ErrorContains(t, err, "open postgres")
}

func TestNewActionStore_UnknownDriver(t *testing.T) {
	_, err := NewActionStore(&config.Configuration{Storage: config.StorageConfig{Driver: "dynamo"}}, nil)
	assert.ErrorIs(t, err, ErrUnknownDriver)
}
