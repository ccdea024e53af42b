/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package config

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAndAddDefaults(t *testing.T) {
	cnf := Configuration{}
	err := cnf.validateAndAddDefaults()
	require.NoError(t, err)

	assert.Equal(t, "Offline Queue", cnf.ProjectName)
	assert.Equal(t, DEFAULT_PORT, cnf.Server.Port)
	assert.Equal(t, DEFAULT_STORAGE_DRIVER, cnf.Storage.Driver)
	assert.Equal(t, DEFAULT_STORAGE_KEY, cnf.Storage.Key)
	assert.Equal(t, DEFAULT_MAX_QUEUE_SIZE, cnf.Queue.MaxQueueSize)
	assert.Equal(t, DEFAULT_PRIORITY, cnf.Queue.DefaultPriority)
	assert.Equal(t, DEFAULT_MAX_RETRIES, cnf.Queue.DefaultMaxRetries)
	assert.Equal(t, float64(2), cnf.Queue.Backoff.Multiplier)
	assert.False(t, cnf.Queue.Backoff.Enabled)
	assert.Equal(t, DEFAULT_SYNC_TIMEOUT, cnf.Sync.TimeoutSec)
	assert.Nil(t, cnf.RateLimit.RequestsPerSecond)
	assert.Equal(t, 10800, *cnf.RateLimit.CleanupIntervalSec)
}

func TestValidateStorageDriver(t *testing.T) {
	cnf := Configuration{Storage: StorageConfig{Driver: "mongo"}}
	assert.Error(t, cnf.validateAndAddDefaults())

	cnf = Configuration{Storage: StorageConfig{Driver: "redis"}}
	err := cnf.validateAndAddDefaults()
	if assert.Error(t, err) {
		assert.Equal(t, "redis DNS is required", err.Error())
	}

	cnf = Configuration{Storage: StorageConfig{Driver: " SQLite "}}
	require.NoError(t, cnf.validateAndAddDefaults())
	assert.Equal(t, "sqlite", cnf.Storage.Driver)
	assert.Equal(t, "offline.db", cnf.Storage.Dns)

	cnf = Configuration{Storage: StorageConfig{Driver: "postgres"}}
	assert.Error(t, cnf.validateAndAddDefaults())

	cnf = Configuration{Storage: StorageConfig{Driver: "postgres", Dns: "postgres://localhost:5432/offline"}}
	assert.NoError(t, cnf.validateAndAddDefaults())
}

func TestValidateAutoSyncRequiresBaseURL(t *testing.T) {
	cnf := Configuration{Sync: SyncConfig{AutoSync: true}}
	assert.Error(t, cnf.validateAndAddDefaults())

	cnf = Configuration{Sync: SyncConfig{AutoSync: true, BaseURL: "https://api.example.com/"}}
	require.NoError(t, cnf.validateAndAddDefaults())
	assert.Equal(t, "https://api.example.com", cnf.Sync.BaseURL)
}

func TestRateLimitDefaults(t *testing.T) {
	rps := 10.0
	cnf := Configuration{RateLimit: RateLimitConfig{RequestsPerSecond: &rps}}
	require.NoError(t, cnf.validateAndAddDefaults())
	assert.Equal(t, 20, *cnf.RateLimit.Burst)

	burst := 8
	cnf = Configuration{RateLimit: RateLimitConfig{Burst: &burst}}
	require.NoError(t, cnf.validateAndAddDefaults())
	assert.Equal(t, 4.0, *cnf.RateLimit.RequestsPerSecond)
}

func TestLoadConfigFromFile(t *testing.T) {
	tmpFile, err := os.CreateTemp("", "offline.json")
	if err != nil {
		t.Fatalf("Unable to create temporary file: %v", err)
	}
	defer os.Remove(tmpFile.Name())

	sampleConfig := Configuration{
		ProjectName: "Temp Project",
		Storage:     StorageConfig{Driver: "sqlite", Dns: "queue.db"},
		Queue:       QueueConfig{MaxQueueSize: 25},
	}
	if err := json.NewEncoder(tmpFile).Encode(sampleConfig); err != nil {
		t.Fatalf("Unable to write to temporary file: %v", err)
	}
	tmpFile.Close()

	t.Setenv("OFFLINE_PROJECT_NAME", "Env Project")
	t.Setenv("OFFLINE_QUEUE_DEFAULT_MAX_RETRIES", "7")

	if err := loadConfigFromFile(tmpFile.Name()); err != nil {
		t.Fatalf("loadConfigFromFile failed: %v", err)
	}

	loadedConfig, err := Fetch()
	require.NoError(t, err)
	assert.Equal(t, "Env Project", loadedConfig.ProjectName)
	assert.Equal(t, "queue.db", loadedConfig.Storage.Dns)
	assert.Equal(t, 25, loadedConfig.Queue.MaxQueueSize)
	assert.Equal(t, 7, loadedConfig.Queue.DefaultMaxRetries)
}

func TestInitConfigWithoutFile(t *testing.T) {
	t.Setenv("OFFLINE_STORAGE_DRIVER", "memory")
	require.NoError(t, InitConfig("does-not-exist.json"))

	cnf, err := Fetch()
	require.NoError(t, err)
	assert.Equal(t, "memory", cnf.Storage.Driver)
}

func TestMockConfig(t *testing.T) {
	MockConfig(&Configuration{ProjectName: "mocked"})
	cnf, err := Fetch()
	require.NoError(t, err)
	assert.Equal(t, "mocked", cnf.ProjectName)
}
