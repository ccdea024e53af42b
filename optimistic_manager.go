package offline

import (
	"sync"

	"github.com/jerry-enebeli/offline/model"
	"github.com/sirupsen/logrus"
)

// QueueSubscriber is the part of QueueManager an OptimisticManager binds to.
type QueueSubscriber interface {
	Subscribe(listener Listener) func()
}

// OptimisticManager is an ordered collection of optimistic items of one entity type,
// newest first. It is safe for concurrent use.
type OptimisticManager[T model.Entity[T]] struct {
	mu    sync.RWMutex
	items []model.OptimisticItem[T]
}

// NewOptimisticManager seeds the collection with entities already known to the server.
// An entity without an id is tracked under a generated temp id.
func NewOptimisticManager[T model.Entity[T]](initial ...T) *OptimisticManager[T] {
	m := &OptimisticManager[T]{}
	for _, data := range initial {
		m.items = append(m.items, WrapOptimistic(data, model.PendingNone, WrapOptions{ServerID: data.EntityID()}))
	}
	return m
}

// AddOptimistic prepends data in creating state under a fresh temp id and returns it.
// The temp id is also written into data.
func (m *OptimisticManager[T]) AddOptimistic(data T) string {
	tempID := model.GenerateTempID()
	item := WrapOptimistic(data.WithEntityID(tempID), model.PendingCreating, WrapOptions{TempID: tempID})

	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append([]model.OptimisticItem[T]{item}, m.items...)
	return tempID
}

// AttachQueueID links the item found by key to the queued action replaying it.
func (m *OptimisticManager[T]) AttachQueueID(key, queueID string) bool {
	return m.update(key, func(i model.OptimisticItem[T]) model.OptimisticItem[T] {
		i.QueueID = queueID
		return i
	})
}

// UpdateOptimistic replaces the data of the item found by key and marks it updating.
// The item keeps its id.
func (m *OptimisticManager[T]) UpdateOptimistic(key string, data T, queueID string) bool {
	return m.update(key, func(i model.OptimisticItem[T]) model.OptimisticItem[T] {
		i.Data = data.WithEntityID(i.Data.EntityID())
		return MarkAsUpdating(i, queueID)
	})
}

func (m *OptimisticManager[T]) DeleteOptimistic(key, queueID string) bool {
	return m.update(key, func(i model.OptimisticItem[T]) model.OptimisticItem[T] {
		return MarkAsDeleting(i, queueID)
	})
}

// ConfirmSync reconciles the item created under tempID with its server identity. When
// serverData is given it replaces the local data, otherwise only the embedded id changes.
// Either way the data ends up carrying serverID.
func (m *OptimisticManager[T]) ConfirmSync(tempID, serverID string, serverData *T) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.indexLocked(func(i model.OptimisticItem[T]) bool { return tempID != "" && i.TempID() == tempID })
	if idx < 0 {
		return false
	}
	if serverData != nil {
		merged := MergeWithServerData(m.items[idx], (*serverData).WithEntityID(serverID))
		m.items[idx] = MarkAsSynced(merged, serverID)
	} else {
		m.items[idx] = ReplaceTempID(m.items[idx], serverID)
	}
	return true
}

// MarkFailed fails the item found by entity id, temp id, server id or queue id.
func (m *OptimisticManager[T]) MarkFailed(key, errMsg string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.indexLocked(func(i model.OptimisticItem[T]) bool { return m.matches(i, key) || (key != "" && i.QueueID == key) })
	if idx < 0 {
		return false
	}
	m.items[idx] = MarkAsFailed(m.items[idx], errMsg)
	return true
}

func (m *OptimisticManager[T]) Remove(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.indexLocked(func(i model.OptimisticItem[T]) bool { return m.matches(i, key) })
	if idx < 0 {
		return false
	}
	m.items = append(m.items[:idx], m.items[idx+1:]...)
	return true
}

// Cleanup drops settled items and items being deleted, and returns how many went.
func (m *OptimisticManager[T]) Cleanup() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.items[:0]
	for _, i := range m.items {
		if i.PendingStatus != model.PendingSuccess && i.PendingStatus != model.PendingDeleting {
			kept = append(kept, i)
		}
	}
	removed := len(m.items) - len(kept)
	m.items = kept
	return removed
}

// Items returns a copy of the collection.
func (m *OptimisticManager[T]) Items() []model.OptimisticItem[T] {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]model.OptimisticItem[T](nil), m.items...)
}

// Bind follows queue snapshots: an item whose queued action succeeded is reconciled
// (or dropped, for a delete), and one whose action failed for good is marked failed. Items are matched by queue id,
// then by temp id. The returned function stops following.
func (m *OptimisticManager[T]) Bind(queue QueueSubscriber) func() {
	return queue.Subscribe(m.apply)
}

func (m *OptimisticManager[T]) apply(snapshot []*model.QueuedAction) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, action := range snapshot {
		if action.Status != model.StatusSuccess && action.Status != model.StatusFailed {
			continue
		}
		idx := m.indexLocked(func(i model.OptimisticItem[T]) bool {
			return i.PendingStatus.IsPending() && i.QueueID == action.ID
		})
		if idx < 0 && action.TempID != "" {
			idx = m.indexLocked(func(i model.OptimisticItem[T]) bool {
				return i.PendingStatus.IsPending() && i.TempID() == action.TempID
			})
		}
		if idx < 0 {
			continue
		}

		item := m.items[idx]
		if action.Status == model.StatusSuccess && action.Type == model.ActionDelete {
			m.items = append(m.items[:idx], m.items[idx+1:]...)
			logrus.WithField("action_id", action.ID).Debug("optimistic item deleted")
			continue
		}
		switch {
		case action.Status == model.StatusFailed:
			m.items[idx] = MarkAsFailed(item, action.Error)
		case action.Type == model.ActionCreate && action.ServerID != "":
			m.items[idx] = ReplaceTempID(item, action.ServerID)
		default:
			m.items[idx] = MarkAsSynced(item, "")
		}
		logrus.WithFields(logrus.Fields{
			"action_id": action.ID,
			"status":    m.items[idx].PendingStatus,
		}).Debug("optimistic item reconciled")
	}
}

func (m *OptimisticManager[T]) update(key string, fn func(model.OptimisticItem[T]) model.OptimisticItem[T]) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.indexLocked(func(i model.OptimisticItem[T]) bool { return m.matches(i, key) })
	if idx < 0 {
		return false
	}
	m.items[idx] = fn(m.items[idx])
	return true
}

// matches locates an item by the id embedded in its data or either identity key.
func (m *OptimisticManager[T]) matches(i model.OptimisticItem[T], key string) bool {
	return key != "" && (i.Data.EntityID() == key || i.Identity.Matches(key))
}

func (m *OptimisticManager[T]) indexLocked(match func(model.OptimisticItem[T]) bool) int {
	for idx, i := range m.items {
		if match(i) {
			return idx
		}
	}
	return -1
}
