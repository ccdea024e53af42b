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

	"github.com/jerry-enebeli/offline/model"
)

// KeyValueStore is an asynchronous string-keyed store. Get reports found=false for a
// missing key instead of returning an error.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// ActionStore persists queued actions across restarts.
type ActionStore interface {
	// LoadActions returns every persisted action in no particular order.
	LoadActions(ctx context.Context) ([]*model.QueuedAction, error)
	// PutAction inserts or replaces the record with action.ID.
	PutAction(ctx context.Context, action *model.QueuedAction) error
	// DeleteActions removes the given ids. Unknown ids are ignored.
	DeleteActions(ctx context.Context, ids ...string) error
	Close() error
}

// SnapshotStore is an ActionStore that persists the whole queue as one value. The queue
// manager hands it the full list after every mutation, so a write that failed earlier is
// repaired by the next one that succeeds.
type SnapshotStore interface {
	ActionStore
	// ReplaceAll overwrites the stored queue with actions.
	ReplaceAll(ctx context.Context, actions []*model.QueuedAction) error
}
