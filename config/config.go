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
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT            = "5010"
	DEFAULT_STORAGE_DRIVER  = "memory"
	DEFAULT_STORAGE_KEY     = "offline_queue"
	DEFAULT_MAX_QUEUE_SIZE  = 100
	DEFAULT_PRIORITY        = 5
	DEFAULT_MAX_RETRIES     = 3
	DEFAULT_SYNC_TIMEOUT    = 30
	DEFAULT_POLL_INTERVAL   = 30
	DEFAULT_LOCK_TIMEOUT    = 300
	DEFAULT_BACKOFF_INITIAL = 1000
	DEFAULT_BACKOFF_MAX     = 60000
)

// StorageDrivers lists the persistence backends a queue can be opened with.
var StorageDrivers = []interface{}{"memory", "redis", "redis-blob", "cache-blob", "sqlite", "postgres"}

var ConfigStore atomic.Value

type ServerConfig struct {
	SSL       bool   `json:"ssl" envconfig:"OFFLINE_SERVER_SSL"`
	Secure    bool   `json:"secure" envconfig:"OFFLINE_SERVER_SECURE"`
	SecretKey string `json:"secret_key" envconfig:"OFFLINE_SERVER_SECRET_KEY"`
	Domain    string `json:"domain" envconfig:"OFFLINE_SERVER_SSL_DOMAIN"`
	Email     string `json:"ssl_email" envconfig:"OFFLINE_SERVER_SSL_EMAIL"`
	Port      string `json:"port" envconfig:"OFFLINE_SERVER_PORT"`
}

type RedisConfig struct {
	Dns           string `json:"dns" envconfig:"OFFLINE_REDIS_DNS"`
	SkipTLSVerify bool   `json:"skip_tls_verify" envconfig:"OFFLINE_REDIS_SKIP_TLS_VERIFY"`
}

// StorageConfig selects where queued actions are persisted. Dns is the SQLite file path
// for the sqlite driver; Key is the blob key or hash name for the key-value drivers.
type StorageConfig struct {
	Driver string `json:"driver" envconfig:"OFFLINE_STORAGE_DRIVER"`
	Dns    string `json:"dns" envconfig:"OFFLINE_STORAGE_DNS"`
	Key    string `json:"key" envconfig:"OFFLINE_STORAGE_KEY"`
}

type BackoffConfig struct {
	Enabled           bool    `json:"enabled" envconfig:"OFFLINE_QUEUE_BACKOFF_ENABLED"`
	InitialIntervalMs int     `json:"initial_interval_ms" envconfig:"OFFLINE_QUEUE_BACKOFF_INITIAL_MS"`
	MaxIntervalMs     int     `json:"max_interval_ms" envconfig:"OFFLINE_QUEUE_BACKOFF_MAX_MS"`
	Multiplier        float64 `json:"multiplier" envconfig:"OFFLINE_QUEUE_BACKOFF_MULTIPLIER"`
}

type QueueConfig struct {
	MaxQueueSize      int           `json:"max_queue_size" envconfig:"OFFLINE_QUEUE_MAX_SIZE"`
	DefaultPriority   int           `json:"default_priority" envconfig:"OFFLINE_QUEUE_DEFAULT_PRIORITY"`
	DefaultMaxRetries int           `json:"default_max_retries" envconfig:"OFFLINE_QUEUE_DEFAULT_MAX_RETRIES"`
	LockTimeoutSec    int           `json:"lock_timeout_sec" envconfig:"OFFLINE_QUEUE_LOCK_TIMEOUT_SEC"`
	DistributedLock   bool          `json:"distributed_lock" envconfig:"OFFLINE_QUEUE_DISTRIBUTED_LOCK"`
	LockWaitMs        int           `json:"lock_wait_ms" envconfig:"OFFLINE_QUEUE_LOCK_WAIT_MS"`
	NotifyOnFailure   bool          `json:"notify_on_failure" envconfig:"OFFLINE_QUEUE_NOTIFY_ON_FAILURE"`
	Backoff           BackoffConfig `json:"backoff"`
}

type SyncConfig struct {
	BaseURL         string            `json:"base_url" envconfig:"OFFLINE_SYNC_BASE_URL"`
	TimeoutSec      int               `json:"timeout_sec" envconfig:"OFFLINE_SYNC_TIMEOUT_SEC"`
	PollIntervalSec int               `json:"poll_interval_sec" envconfig:"OFFLINE_SYNC_POLL_INTERVAL_SEC"`
	AutoSync        bool              `json:"auto_sync" envconfig:"OFFLINE_SYNC_AUTO"`
	Headers         map[string]string `json:"headers"`
	AuthToken       string            `json:"auth_token" envconfig:"OFFLINE_SYNC_AUTH_TOKEN"`
	Username        string            `json:"username" envconfig:"OFFLINE_SYNC_USERNAME"`
	Password        string            `json:"password" envconfig:"OFFLINE_SYNC_PASSWORD"`
}

type RateLimitConfig struct {
	RequestsPerSecond  *float64 `json:"requests_per_second" envconfig:"OFFLINE_RATE_LIMIT_RPS"`
	Burst              *int     `json:"burst" envconfig:"OFFLINE_RATE_LIMIT_BURST"`
	CleanupIntervalSec *int     `json:"cleanup_interval_sec" envconfig:"OFFLINE_RATE_LIMIT_CLEANUP_INTERVAL_SEC"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url" envconfig:"OFFLINE_SLACK_WEBHOOK_URL"`
}

type Notification struct {
	Slack SlackWebhook `json:"slack"`
}

type Configuration struct {
	ProjectName     string          `json:"project_name" envconfig:"OFFLINE_PROJECT_NAME"`
	EnableTelemetry bool            `json:"enable_telemetry" envconfig:"OFFLINE_ENABLE_TELEMETRY"`
	EnableLogExport bool            `json:"enable_log_export" envconfig:"OFFLINE_ENABLE_LOG_EXPORT"`
	Server          ServerConfig    `json:"server"`
	Redis           RedisConfig     `json:"redis"`
	Storage         StorageConfig   `json:"storage"`
	Queue           QueueConfig     `json:"queue"`
	Sync            SyncConfig      `json:"sync"`
	RateLimit       RateLimitConfig `json:"rate_limit"`
	Notification    Notification    `json:"notification"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		defer f.Close()
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}
	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("offline", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return nil
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded. Create a json file called offline.json or set OFFLINE_* environment variables")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		cnf.ProjectName = "Offline Queue"
	}

	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)
	cnf.Storage.Driver = strings.ToLower(strings.TrimSpace(cnf.Storage.Driver))
	cnf.Storage.Dns = strings.TrimSpace(cnf.Storage.Dns)
	cnf.Sync.BaseURL = strings.TrimRight(strings.TrimSpace(cnf.Sync.BaseURL), "/")

	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
	}

	if cnf.Storage.Driver == "" {
		cnf.Storage.Driver = DEFAULT_STORAGE_DRIVER
	}
	if cnf.Storage.Key == "" {
		cnf.Storage.Key = DEFAULT_STORAGE_KEY
	}

	err := validation.ValidateStruct(&cnf.Storage,
		validation.Field(&cnf.Storage.Driver, validation.Required, validation.In(StorageDrivers...)),
	)
	if err != nil {
		return err
	}

	switch cnf.Storage.Driver {
	case "redis", "redis-blob", "cache-blob":
		if cnf.Redis.Dns == "" {
			log.Printf("Error: Redis DNS is empty. It's required by the %s storage driver.", cnf.Storage.Driver)
			return errors.New("redis DNS is required")
		}
	case "sqlite":
		if cnf.Storage.Dns == "" {
			cnf.Storage.Dns = "offline.db"
			log.Printf("Warning: SQLite path not specified. Setting default path: %s", cnf.Storage.Dns)
		}
	case "postgres":
		if cnf.Storage.Dns == "" {
			return errors.New("storage DNS is required by the postgres storage driver")
		}
	}

	if cnf.Queue.DistributedLock && cnf.Redis.Dns == "" {
		return errors.New("redis DNS is required for the distributed queue lock")
	}

	if cnf.Queue.MaxQueueSize <= 0 {
		cnf.Queue.MaxQueueSize = DEFAULT_MAX_QUEUE_SIZE
	}
	if cnf.Queue.DefaultPriority == 0 {
		cnf.Queue.DefaultPriority = DEFAULT_PRIORITY
	}
	if cnf.Queue.DefaultMaxRetries <= 0 {
		cnf.Queue.DefaultMaxRetries = DEFAULT_MAX_RETRIES
	}
	if cnf.Queue.LockTimeoutSec <= 0 {
		cnf.Queue.LockTimeoutSec = DEFAULT_LOCK_TIMEOUT
	}
	if cnf.Queue.Backoff.InitialIntervalMs <= 0 {
		cnf.Queue.Backoff.InitialIntervalMs = DEFAULT_BACKOFF_INITIAL
	}
	if cnf.Queue.Backoff.MaxIntervalMs <= 0 {
		cnf.Queue.Backoff.MaxIntervalMs = DEFAULT_BACKOFF_MAX
	}
	if cnf.Queue.Backoff.Multiplier <= 1 {
		cnf.Queue.Backoff.Multiplier = 2
	}

	if cnf.Sync.TimeoutSec <= 0 {
		cnf.Sync.TimeoutSec = DEFAULT_SYNC_TIMEOUT
	}
	if cnf.Sync.PollIntervalSec <= 0 {
		cnf.Sync.PollIntervalSec = DEFAULT_POLL_INTERVAL
	}
	if cnf.Sync.AutoSync && cnf.Sync.BaseURL == "" {
		return errors.New("sync base URL is required when auto sync is enabled")
	}

	// Rate limiting is disabled by default (when both RPS and Burst are nil)
	if cnf.RateLimit.RequestsPerSecond != nil && cnf.RateLimit.Burst == nil {
		defaultBurst := 2 * int(*cnf.RateLimit.RequestsPerSecond)
		cnf.RateLimit.Burst = &defaultBurst
	}
	if cnf.RateLimit.RequestsPerSecond == nil && cnf.RateLimit.Burst != nil {
		defaultRPS := float64(*cnf.RateLimit.Burst) / 2
		cnf.RateLimit.RequestsPerSecond = &defaultRPS
	}
	if cnf.RateLimit.CleanupIntervalSec == nil {
		defaultCleanup := 10800 // 3 hours
		cnf.RateLimit.CleanupIntervalSec = &defaultCleanup
	}

	return nil
}

// SyncTimeout returns the per-call replay timeout.
func (s SyncConfig) SyncTimeout() time.Duration {
	return time.Duration(s.TimeoutSec) * time.Second
}

// PollInterval returns how often the sync processor drains the queue.
func (s SyncConfig) PollInterval() time.Duration {
	return time.Duration(s.PollIntervalSec) * time.Second
}

// LockWait returns how long a ProcessQueue run waits for a lock held elsewhere.
func (q QueueConfig) LockWait() time.Duration {
	return time.Duration(q.LockWaitMs) * time.Millisecond
}

// LockTimeout returns how long a ProcessQueue run may hold the distributed lock.
func (q QueueConfig) LockTimeout() time.Duration {
	return time.Duration(q.LockTimeoutSec) * time.Second
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
