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

package database

import (
	"io"
	"time"

	"github.com/jerry-enebeli/offline/config"
	"github.com/jerry-enebeli/offline/internal/cache"
	redis_db "github.com/jerry-enebeli/offline/internal/redis-db"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	migrate "github.com/rubenv/sql-migrate"
	"github.com/sirupsen/logrus"
)

// ErrUnknownDriver is returned by NewActionStore for a storage driver it does not know.
var ErrUnknownDriver = errors.New("unknown storage driver")

// localCacheTTL bounds how long the cache-blob driver trusts its in-process copy.
const localCacheTTL = 5 * time.Second

// NewActionStore opens the store selected by cfg.Storage.Driver. The Redis backed drivers
// use rdb when it is not nil, otherwise they dial cfg.Redis.Dns and own the connection.
func NewActionStore(cfg *config.Configuration, rdb redis.UniversalClient) (ActionStore, error) {
	switch cfg.Storage.Driver {
	case "", "memory":
		return NewMemoryActionStore(), nil

	case "redis", "redis-blob", "cache-blob":
		client, closer, err := redisClient(cfg, rdb)
		if err != nil {
			return nil, err
		}
		switch cfg.Storage.Driver {
		case "redis":
			return NewRedisActionStore(client, cfg.Storage.Key, closer != nil), nil
		case "redis-blob":
			return NewBlobStore(NewRedisKV(client), cfg.Storage.Key, closer), nil
		default:
			kv := NewCacheKV(cache.NewCache(client, cache.DefaultLocalSize, localCacheTTL))
			return NewBlobStore(kv, cfg.Storage.Key, closer), nil
		}

	case "sqlite", "postgres":
		dialect := SQLiteDialect
		if cfg.Storage.Driver == "postgres" {
			dialect = PostgresDialect
		}
		db, err := Open(dialect, cfg.Storage.Dns)
		if err != nil {
			return nil, errors.Wrapf(err, "open %s", cfg.Storage.Driver)
		}
		n, err := Migrate(db, dialect, migrate.Up)
		if err != nil {
			_ = db.Close()
			return nil, errors.Wrapf(err, "migrate %s", cfg.Storage.Driver)
		}
		if n > 0 {
			logrus.Infof("applied %d %s migrations", n, cfg.Storage.Driver)
		}
		return NewSQLActionStore(db, dialect), nil
	}

	return nil, errors.Wrapf(ErrUnknownDriver, "%q", cfg.Storage.Driver)
}

func redisClient(cfg *config.Configuration, rdb redis.UniversalClient) (redis.UniversalClient, io.Closer, error) {
	if rdb != nil {
		return rdb, nil, nil
	}
	r, err := redis_db.NewRedisClient([]string{cfg.Redis.Dns}, cfg.Redis.SkipTLSVerify)
	if err != nil {
		return nil, nil, errors.Wrap(err, "connect redis")
	}
	return r.Client(), r, nil
}
