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

package offline

import (
	"context"
	"fmt"

	"github.com/jerry-enebeli/offline/config"
	"github.com/jerry-enebeli/offline/database"
	redis_db "github.com/jerry-enebeli/offline/internal/redis-db"
	"github.com/jerry-enebeli/offline/internal/replay"
	"github.com/redis/go-redis/v9"
)

// Offline wires a QueueManager to its store, the HTTP replay client and the sync processor
// according to a Configuration.
type Offline struct {
	cfg       *config.Configuration
	queue     *QueueManager
	processor *SyncProcessor
	redis     *redis_db.Redis
}

// New opens the configured store, loads the persisted queue and prepares the sync
// processor. The processor is not started.
func New(ctx context.Context, cfg *config.Configuration) (*Offline, error) {
	var rdb *redis_db.Redis
	var client redis.UniversalClient
	if cfg.Redis.Dns != "" {
		var err error
		rdb, err = redis_db.NewRedisClient([]string{cfg.Redis.Dns}, cfg.Redis.SkipTLSVerify)
		if err != nil {
			return nil, fmt.Errorf("error connecting to redis: %w", err)
		}
		client = rdb.Client()
	}

	store, err := database.NewActionStore(cfg, client)
	if err != nil {
		closeRedis(rdb)
		return nil, fmt.Errorf("error opening queue store: %w", err)
	}

	opts := []QueueOption{
		WithMaxQueueSize(cfg.Queue.MaxQueueSize),
		WithDefaultPriority(cfg.Queue.DefaultPriority),
		WithDefaultMaxRetries(cfg.Queue.DefaultMaxRetries),
		WithBackoff(cfg.Queue.Backoff),
		WithFailureNotification(cfg.Queue.NotifyOnFailure),
	}
	if cfg.Queue.DistributedLock && client != nil {
		opts = append(opts,
			WithDistributedLock(client, cfg.Storage.Key+":lock", cfg.Queue.LockTimeout()),
			WithLockWait(cfg.Queue.LockWait()),
		)
	}
	if cfg.Sync.BaseURL != "" {
		opts = append(opts, WithSyncFunc(replay.NewClient(cfg.Sync, nil).Sync))
	}

	queue := NewQueueManager(store, opts...)
	if err := queue.Load(ctx); err != nil {
		_ = store.Close()
		closeRedis(rdb)
		return nil, fmt.Errorf("error loading queue: %w", err)
	}

	return &Offline{
		cfg:       cfg,
		queue:     queue,
		processor: NewSyncProcessor(queue, cfg.Sync.PollInterval()),
		redis:     rdb,
	}, nil
}

func (o *Offline) Queue() *QueueManager { return o.queue }

func (o *Offline) Processor() *SyncProcessor { return o.processor }

func (o *Offline) Config() *config.Configuration { return o.cfg }

// Close stops the processor and releases the store and Redis connection.
func (o *Offline) Close() error {
	o.processor.Stop()
	err := o.queue.Close()
	closeRedis(o.redis)
	return err
}

func closeRedis(r *redis_db.Redis) {
	if r != nil {
		_ = r.Close()
	}
}
