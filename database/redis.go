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
	"context"
	"encoding/json"
	"time"

	"github.com/jerry-enebeli/offline/internal/cache"
	"github.com/jerry-enebeli/offline/model"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisKV is a KeyValueStore over plain Redis strings without expiry.
type RedisKV struct {
	client redis.UniversalClient
}

func NewRedisKV(client redis.UniversalClient) *RedisKV {
	return &RedisKV{client: client}
}

func (r *RedisKV) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *RedisKV) Set(ctx context.Context, key, value string) error {
	return r.client.Set(ctx, key, value, 0).Err()
}

func (r *RedisKV) Remove(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

// blobTTL is how long the cache-blob driver keeps an untouched queue in Redis.
const blobTTL = 30 * 24 * time.Hour

// CacheKV is a KeyValueStore backed by the Redis cache with a local TinyLFU layer.
// Reads of an unchanged queue are served from process memory.
type CacheKV struct {
	cache cache.Cache
	ttl   time.Duration
}

func NewCacheKV(c cache.Cache) *CacheKV {
	return &CacheKV{cache: c, ttl: blobTTL}
}

func (c *CacheKV) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	found, err := c.cache.Get(ctx, key, &v)
	if err != nil || !found {
		return "", false, err
	}
	return v, true, nil
}

func (c *CacheKV) Set(ctx context.Context, key, value string) error {
	return c.cache.Set(ctx, key, value, c.ttl)
}

func (c *CacheKV) Remove(ctx context.Context, key string) error {
	return c.cache.Delete(ctx, key)
}

// RedisActionStore keeps one hash field per action, so a mutation writes only the
// record it touched.
type RedisActionStore struct {
	client redis.UniversalClient
	key    string
	owned  bool
}

// NewRedisActionStore stores actions in the hash named key. When owned is true the client
// is closed with the store.
func NewRedisActionStore(client redis.UniversalClient, key string, owned bool) *RedisActionStore {
	return &RedisActionStore{client: client, key: key, owned: owned}
}

func (r *RedisActionStore) LoadActions(ctx context.Context) ([]*model.QueuedAction, error) {
	fields, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, errors.Wrap(err, "load actions")
	}

	actions := make([]*model.QueuedAction, 0, len(fields))
	for id, raw := range fields {
		var a model.QueuedAction
		if err := json.Unmarshal([]byte(raw), &a); err != nil {
			logrus.WithError(err).WithField("action_id", id).Error("skipping unreadable queued action")
			continue
		}
		actions = append(actions, &a)
	}
	return actions, nil
}

func (r *RedisActionStore) PutAction(ctx context.Context, action *model.QueuedAction) error {
	raw, err := json.Marshal(action)
	if err != nil {
		return errors.Wrap(err, "encode action")
	}
	return errors.Wrapf(r.client.HSet(ctx, r.key, action.ID, raw).Err(), "put action %s", action.ID)
}

func (r *RedisActionStore) DeleteActions(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	return errors.Wrap(r.client.HDel(ctx, r.key, ids...).Err(), "delete actions")
}

func (r *RedisActionStore) Close() error {
	if !r.owned {
		return nil
	}
	return r.client.Close()
}
