package model

import "time"

// PendingStatus tags an OptimisticItem with where it is in its round trip to the server.
type PendingStatus string

const (
	PendingNone     PendingStatus = "none"
	PendingCreating PendingStatus = "creating"
	PendingUpdating PendingStatus = "updating"
	PendingDeleting PendingStatus = "deleting"
	PendingFailed   PendingStatus = "failed"
	PendingSuccess  PendingStatus = "success"
)

// IsPending reports whether the item is waiting on the server.
func (s PendingStatus) IsPending() bool {
	return s == PendingCreating || s == PendingUpdating || s == PendingDeleting
}

// Entity is implemented by domain values that embed their own id, so a reconciled
// server id can be written back into the data.
type Entity[T any] interface {
	EntityID() string
	WithEntityID(id string) T
}

// OptimisticItem wraps a domain value with its pending-sync metadata. It is correlated
// with a QueuedAction only through Identity and QueueID.
type OptimisticItem[T any] struct {
	Data          T             `json:"data"`
	PendingStatus PendingStatus `json:"pendingStatus"`
	Identity      Identity      `json:"identity"`
	QueueID       string        `json:"queueId,omitempty"`
	Error         string        `json:"error,omitempty"`
	LastUpdated   time.Time     `json:"lastUpdated"`
}

func (i OptimisticItem[T]) TempID() string   { return i.Identity.TempID() }
func (i OptimisticItem[T]) ServerID() string { return i.Identity.ServerID() }
