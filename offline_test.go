package offline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/jerry-enebeli/offline/config"
	"github.com/jerry-enebeli/offline/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(driver string) *config.Configuration {
	return &config.Configuration{
		ProjectName: "Offline Test",
		Storage:     config.StorageConfig{Driver: driver, Key: "offline:test:queue"},
		Queue: config.QueueConfig{
			MaxQueueSize:      100,
			DefaultPriority:   5,
			DefaultMaxRetries: 3,
			LockTimeoutSec:    30,
		},
		Sync: config.SyncConfig{TimeoutSec: 5, PollIntervalSec: 30},
	}
}

func TestNew_Memory(t *testing.T) {
	o, err := New(context.Background(), testConfig("memory"))
	require.NoError(t, err)
	defer o.Close()

	assert.NotNil(t, o.Queue())
	assert.NotNil(t, o.Processor())
	assert.False(t, o.Processor().IsRunning())
	assert.Equal(t, "Offline Test", o.Config().ProjectName)
	assert.Equal(t, 0, o.Queue().GetPendingCount())
}

func TestNew_UnknownDriver(t *testing.T) {
	_, err := New(context.Background(), testConfig("floppy"))
	assert.Error(t, err)
}

func TestNew_RedisUnavailable(t *testing.T) {
	cfg := testConfig("redis")
	cfg.Redis.Dns = "localhost:1"
	_, err := New(context.Background(), cfg)
	assert.Error(t, err)
}

func TestNew_SQLiteSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig("sqlite")
	cfg.Storage.Dns = filepath.Join(t.TempDir(), "offline.db")

	first, err := New(ctx, cfg)
	require.NoError(t, err)
	id := first.Queue().Enqueue(ctx, model.ActionCreate, "/orders", orderPayload(), "", EnqueueOptions{})
	require.NoError(t, first.Close())

	second, err := New(ctx, cfg)
	require.NoError(t, err)
	defer second.Close()

	action, ok := second.Queue().GetAction(id)
	require.True(t, ok)
	assert.Equal(t, model.StatusPending, action.Status)
	assert.NotEmpty(t, action.TempID)
}

func TestNew_RedisReplaysOverHTTP(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	var received map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/orders", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("Idempotency-Key"))
		_ = json.NewDecoder(r.Body).Decode(&received)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"order_42"}`))
	}))
	defer server.Close()

	cfg := testConfig("redis")
	cfg.Redis.Dns = mr.Addr()
	cfg.Queue.DistributedLock = true
	cfg.Sync.BaseURL = server.URL

	o, err := New(ctx, cfg)
	require.NoError(t, err)
	defer o.Close()

	id := o.Queue().Enqueue(ctx, model.ActionCreate, "/orders", map[string]interface{}{"item": "pizza"}, "", EnqueueOptions{})
	assert.True(t, mr.Exists("offline:test:queue"))

	results := o.Queue().ProcessQueue(ctx)
	require.Len(t, results, 1)
	assert.Equal(t, id, results[0].ID)
	assert.True(t, results[0].Success)
	assert.Equal(t, "order_42", results[0].Data["id"])
	assert.Equal(t, "pizza", received["item"])
	assert.Empty(t, o.Queue().GetQueue())
	assert.False(t, mr.Exists("offline:test:queue:lock"))
}
