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
	"io"
	"sync"

	"github.com/jerry-enebeli/offline/model"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// BlobStore keeps the whole queue as one JSON array under a single key of a KeyValueStore.
// Every mutation rewrites the array.
type BlobStore struct {
	mu     sync.Mutex
	kv     KeyValueStore
	key    string
	closer io.Closer
}

// NewBlobStore stores the queue under key in kv. closer, when not nil, is closed with the store.
func NewBlobStore(kv KeyValueStore, key string, closer io.Closer) *BlobStore {
	return &BlobStore{kv: kv, key: key, closer: closer}
}

func (b *BlobStore) LoadActions(ctx context.Context) ([]*model.QueuedAction, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.read(ctx)
}

func (b *BlobStore) PutAction(ctx context.Context, action *model.QueuedAction) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	actions, err := b.read(ctx)
	if err != nil {
		return err
	}

	replaced := false
	for i, a := range actions {
		if a.ID == action.ID {
			actions[i] = action
			replaced = true
			break
		}
	}
	if !replaced {
		actions = append(actions, action)
	}
	return b.write(ctx, actions)
}

func (b *BlobStore) DeleteActions(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	actions, err := b.read(ctx)
	if err != nil {
		return err
	}

	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	kept := actions[:0]
	for _, a := range actions {
		if _, ok := drop[a.ID]; !ok {
			kept = append(kept, a)
		}
	}
	if len(kept) == 0 {
		return errors.Wrap(b.kv.Remove(ctx, b.key), "remove queue blob")
	}
	return b.write(ctx, kept)
}

// ReplaceAll rewrites the blob with actions. An empty list removes the key.
func (b *BlobStore) ReplaceAll(ctx context.Context, actions []*model.QueuedAction) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(actions) == 0 {
		return errors.Wrap(b.kv.Remove(ctx, b.key), "remove queue blob")
	}
	return b.write(ctx, actions)
}

func (b *BlobStore) Close() error {
	if b.closer == nil {
		return nil
	}
	return b.closer.Close()
}

// read returns an empty queue when the key is missing or the blob cannot be decoded.
// A corrupt blob is logged and discarded rather than blocking start-up.
func (b *BlobStore) read(ctx context.Context) ([]*model.QueuedAction, error) {
	raw, found, err := b.kv.Get(ctx, b.key)
	if err != nil {
		return nil, errors.Wrap(err, "read queue blob")
	}
	if !found || raw == "" {
		return []*model.QueuedAction{}, nil
	}

	var actions []*model.QueuedAction
	if err := json.Unmarshal([]byte(raw), &actions); err != nil {
		logrus.WithError(err).WithField("key", b.key).Error("discarding unreadable queue blob")
		return []*model.QueuedAction{}, nil
	}
	return actions, nil
}

func (b *BlobStore) write(ctx context.Context, actions []*model.QueuedAction) error {
	raw, err := json.Marshal(actions)
	if err != nil {
		return errors.Wrap(err, "encode queue blob")
	}
	return errors.Wrap(b.kv.Set(ctx, b.key, string(raw)), "write queue blob")
}
