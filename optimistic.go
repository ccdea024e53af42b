package offline

import (
	"sort"

	"github.com/jerry-enebeli/offline/model"
)

// WrapOptions sets the correlation keys of a newly wrapped item.
type WrapOptions struct {
	TempID   string
	ServerID string
	QueueID  string
	Error    string
}

// WrapOptimistic tags data with a pending status. An item wrapped without any id gets a
// fresh temp id so it can always be addressed and serialized.
func WrapOptimistic[T any](data T, status model.PendingStatus, opts WrapOptions) model.OptimisticItem[T] {
	var identity model.Identity
	switch {
	case opts.TempID != "" && opts.ServerID != "":
		identity = model.TempIdentity(opts.TempID).Resolve(opts.ServerID)
	case opts.ServerID != "":
		identity = model.ServerIdentity(opts.ServerID)
	case opts.TempID != "":
		identity = model.TempIdentity(opts.TempID)
	default:
		identity = model.TempIdentity(model.GenerateTempID())
	}
	return model.OptimisticItem[T]{
		Data:          data,
		PendingStatus: status,
		Identity:      identity,
		QueueID:       opts.QueueID,
		Error:         opts.Error,
		LastUpdated:   model.Now(),
	}
}

// MarkAsCreating returns item in creating state. An item without a temp id gets a fresh
// one; a server id it already carries is kept.
func MarkAsCreating[T any](item model.OptimisticItem[T], queueID string) model.OptimisticItem[T] {
	if item.Identity.TempID() == "" {
		tempID := model.TempIdentity(model.GenerateTempID())
		if serverID := item.Identity.ServerID(); serverID != "" {
			tempID = tempID.Resolve(serverID)
		}
		item.Identity = tempID
	}
	return transition(item, model.PendingCreating, queueID)
}

func MarkAsUpdating[T any](item model.OptimisticItem[T], queueID string) model.OptimisticItem[T] {
	return transition(item, model.PendingUpdating, queueID)
}

func MarkAsDeleting[T any](item model.OptimisticItem[T], queueID string) model.OptimisticItem[T] {
	return transition(item, model.PendingDeleting, queueID)
}

func transition[T any](item model.OptimisticItem[T], status model.PendingStatus, queueID string) model.OptimisticItem[T] {
	item.PendingStatus = status
	if queueID != "" {
		item.QueueID = queueID
	}
	item.Error = ""
	item.LastUpdated = model.Now()
	return item
}

// MarkAsSynced settles item. The queue id and error are cleared; serverID, when given,
// resolves the identity.
func MarkAsSynced[T any](item model.OptimisticItem[T], serverID string) model.OptimisticItem[T] {
	if serverID != "" {
		item.Identity = item.Identity.Resolve(serverID)
	}
	item.PendingStatus = model.PendingSuccess
	item.QueueID = ""
	item.Error = ""
	item.LastUpdated = model.Now()
	return item
}

func MarkAsFailed[T any](item model.OptimisticItem[T], errMsg string) model.OptimisticItem[T] {
	item.PendingStatus = model.PendingFailed
	item.Error = errMsg
	item.LastUpdated = model.Now()
	return item
}

// ReplaceTempID rewrites the id embedded in the data to serverID and settles the item.
// The former temp id stays on the identity so lookups by it keep working.
func ReplaceTempID[T model.Entity[T]](item model.OptimisticItem[T], serverID string) model.OptimisticItem[T] {
	item.Data = item.Data.WithEntityID(serverID)
	return MarkAsSynced(item, serverID)
}

// MergeWithServerData replaces the data with the authoritative server copy.
func MergeWithServerData[T any](item model.OptimisticItem[T], serverData T) model.OptimisticItem[T] {
	item.Data = serverData
	item.LastUpdated = model.Now()
	return item
}

func FindByTempID[T any](items []model.OptimisticItem[T], tempID string) (model.OptimisticItem[T], bool) {
	return findItem(items, func(i model.OptimisticItem[T]) bool { return tempID != "" && i.TempID() == tempID })
}

func FindByServerID[T any](items []model.OptimisticItem[T], serverID string) (model.OptimisticItem[T], bool) {
	return findItem(items, func(i model.OptimisticItem[T]) bool { return serverID != "" && i.ServerID() == serverID })
}

func FindByQueueID[T any](items []model.OptimisticItem[T], queueID string) (model.OptimisticItem[T], bool) {
	return findItem(items, func(i model.OptimisticItem[T]) bool { return queueID != "" && i.QueueID == queueID })
}

func findItem[T any](items []model.OptimisticItem[T], match func(model.OptimisticItem[T]) bool) (model.OptimisticItem[T], bool) {
	for _, i := range items {
		if match(i) {
			return i, true
		}
	}
	var zero model.OptimisticItem[T]
	return zero, false
}

// FilterDeleted drops items that are being deleted, for rendering.
func FilterDeleted[T any](items []model.OptimisticItem[T]) []model.OptimisticItem[T] {
	out := make([]model.OptimisticItem[T], 0, len(items))
	for _, i := range items {
		if i.PendingStatus != model.PendingDeleting {
			out = append(out, i)
		}
	}
	return out
}

// SortByPendingStatus returns a copy of items with settled items first. Relative order
// is otherwise kept.
func SortByPendingStatus[T any](items []model.OptimisticItem[T]) []model.OptimisticItem[T] {
	out := append([]model.OptimisticItem[T](nil), items...)
	sort.SliceStable(out, func(a, b int) bool {
		return !out[a].PendingStatus.IsPending() && out[b].PendingStatus.IsPending()
	})
	return out
}

func GetPendingCount[T any](items []model.OptimisticItem[T]) int {
	n := 0
	for _, i := range items {
		if i.PendingStatus.IsPending() {
			n++
		}
	}
	return n
}

func GetFailedCount[T any](items []model.OptimisticItem[T]) int {
	n := 0
	for _, i := range items {
		if i.PendingStatus == model.PendingFailed {
			n++
		}
	}
	return n
}
