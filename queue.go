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
	"maps"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jerry-enebeli/offline/config"
	"github.com/jerry-enebeli/offline/database"
	"github.com/jerry-enebeli/offline/model"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// SyncFunc replays one queued action against the backend. It returns the server response
// on success and an error on any failure. For CREATE actions the response should carry an
// "id" field holding the server-assigned identity.
type SyncFunc func(ctx context.Context, action *model.QueuedAction) (map[string]interface{}, error)

// Listener receives a snapshot of the whole queue after every mutation. Snapshots are
// copies and may be kept or modified freely.
type Listener func(queue []*model.QueuedAction)

// EnqueueOptions carries the optional fields of Enqueue. Nil pointers take the manager
// defaults.
type EnqueueOptions struct {
	Priority   *int
	MaxRetries *int
	// TempID correlates the action with an optimistic item. CREATE actions get a
	// generated one when it is empty.
	TempID string
	// DedupeKey coalesces this action into a pending action of the same type and key.
	DedupeKey string
}

// QueueStats is a count of queued actions per status.
type QueueStats struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Success    int `json:"success"`
	Failed     int `json:"failed"`
}

type listenerEntry struct {
	id int
	fn Listener
}

type processLock struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
	wait   time.Duration
}

// QueueManager buffers mutation intents while the backend is unreachable and replays
// them in priority order. All state is guarded by mu; listeners and the sync function
// are always called without it.
type QueueManager struct {
	mu             sync.Mutex
	store          database.ActionStore
	snapshots      database.SnapshotStore
	actions        []*model.QueuedAction
	sequence       int64
	syncFn         SyncFunc
	listeners      []listenerEntry
	nextListenerID int

	processing atomic.Bool

	maxQueueSize      int
	defaultPriority   int
	defaultMaxRetries int
	backoff           *config.BackoffConfig
	lock              *processLock
	notifyOnFailure   bool
	tracer            trace.Tracer
}

// QueueOption configures a QueueManager.
type QueueOption func(*QueueManager)

func WithMaxQueueSize(n int) QueueOption {
	return func(q *QueueManager) {
		if n > 0 {
			q.maxQueueSize = n
		}
	}
}

func WithDefaultPriority(p int) QueueOption {
	return func(q *QueueManager) { q.defaultPriority = p }
}

func WithDefaultMaxRetries(n int) QueueOption {
	return func(q *QueueManager) {
		if n > 0 {
			q.defaultMaxRetries = n
		}
	}
}

func WithSyncFunc(fn SyncFunc) QueueOption {
	return func(q *QueueManager) { q.syncFn = fn }
}

// WithBackoff delays retries of failed actions on an exponential schedule.
func WithBackoff(cfg config.BackoffConfig) QueueOption {
	return func(q *QueueManager) {
		if cfg.Enabled {
			c := cfg
			q.backoff = &c
		}
	}
}

// WithDistributedLock makes ProcessQueue hold a Redis lock for the duration of a run, so
// several processes sharing one store never replay the same action twice.
func WithDistributedLock(client redis.UniversalClient, key string, ttl time.Duration) QueueOption {
	return func(q *QueueManager) {
		if client != nil {
			q.lock = &processLock{client: client, key: key, ttl: ttl}
		}
	}
}

// WithLockWait makes ProcessQueue wait up to d for a lock held by another process
// instead of returning at once. It has no effect without WithDistributedLock.
func WithLockWait(d time.Duration) QueueOption {
	return func(q *QueueManager) {
		if q.lock != nil {
			q.lock.wait = d
		}
	}
}

// WithFailureNotification reports actions that exhaust their retries through the
// notification package.
func WithFailureNotification(enabled bool) QueueOption {
	return func(q *QueueManager) { q.notifyOnFailure = enabled }
}

// NewQueueManager returns an empty manager persisting to store. Call Load to hydrate it
// from records persisted by a previous run.
func NewQueueManager(store database.ActionStore, opts ...QueueOption) *QueueManager {
	if store == nil {
		store = database.NewMemoryActionStore()
	}
	q := &QueueManager{
		store:             store,
		actions:           []*model.QueuedAction{},
		maxQueueSize:      config.DEFAULT_MAX_QUEUE_SIZE,
		defaultPriority:   config.DEFAULT_PRIORITY,
		defaultMaxRetries: config.DEFAULT_MAX_RETRIES,
		tracer:            otel.Tracer("offline.queue"),
	}
	if snapshots, ok := store.(database.SnapshotStore); ok {
		q.snapshots = snapshots
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// SetSyncFunc registers the function ProcessQueue replays actions with.
func (q *QueueManager) SetSyncFunc(fn SyncFunc) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.syncFn = fn
}

// Load replaces the in-memory queue with the records in the store. Records left in
// processing by an interrupted run go back to pending.
func (q *QueueManager) Load(ctx context.Context) error {
	loaded, err := q.store.LoadActions(ctx)
	if err != nil {
		return err
	}

	q.mu.Lock()
	var seq int64
	var reset []*model.QueuedAction
	for _, a := range loaded {
		if a.Sequence > seq {
			seq = a.Sequence
		}
		if a.Status == model.StatusProcessing {
			a.Status = model.StatusPending
			a.UpdatedAt = model.Now()
			reset = append(reset, a)
		}
	}
	sort.SliceStable(loaded, func(i, j int) bool { return loaded[i].Before(loaded[j]) })
	q.actions = loaded
	q.sequence = seq
	for _, a := range reset {
		q.persistLocked(ctx, a)
	}
	snap := q.snapshotLocked()
	q.mu.Unlock()

	logrus.WithField("count", len(loaded)).Info("queued actions loaded")
	q.notify(snap)
	return nil
}

// Enqueue records a mutation intent and returns its id. It never fails: persistence
// errors are logged and the action stays queued in memory.
func (q *QueueManager) Enqueue(ctx context.Context, actionType model.ActionType, endpoint string, payload map[string]interface{}, method string, opts EnqueueOptions) string {
	if method == "" {
		method = actionType.DefaultMethod()
	}
	now := model.Now()

	q.mu.Lock()
	if opts.DedupeKey != "" {
		if existing := q.findPendingDuplicateLocked(actionType, opts.DedupeKey); existing != nil {
			existing.Endpoint = endpoint
			existing.Method = method
			existing.Payload = maps.Clone(payload)
			existing.UpdatedAt = now
			q.persistLocked(ctx, existing)
			snap := q.snapshotLocked()
			q.mu.Unlock()

			logrus.WithFields(logrus.Fields{"action_id": existing.ID, "dedupe_key": opts.DedupeKey}).Debug("enqueue coalesced into pending action")
			q.notify(snap)
			return existing.ID
		}
	}

	q.sequence++
	action := &model.QueuedAction{
		ID:         model.GenerateUUIDWithSuffix(model.ActionIDPrefix),
		Type:       actionType,
		Endpoint:   endpoint,
		Method:     method,
		Payload:    maps.Clone(payload),
		Status:     model.StatusPending,
		MaxRetries: q.defaultMaxRetries,
		Priority:   q.defaultPriority,
		Timestamp:  now,
		Sequence:   q.sequence,
		TempID:     opts.TempID,
		DedupeKey:  opts.DedupeKey,
		UpdatedAt:  now,
	}
	if opts.Priority != nil {
		action.Priority = *opts.Priority
	}
	if opts.MaxRetries != nil {
		action.MaxRetries = *opts.MaxRetries
	}
	if actionType == model.ActionCreate && action.TempID == "" {
		action.TempID = model.GenerateTempID()
	}

	idx := sort.Search(len(q.actions), func(i int) bool { return action.Before(q.actions[i]) })
	q.actions = append(q.actions, nil)
	copy(q.actions[idx+1:], q.actions[idx:])
	q.actions[idx] = action

	dropped := q.trimLocked()
	kept := true
	for _, d := range dropped {
		if d.ID == action.ID {
			kept = false
		}
	}
	if kept {
		q.persistLocked(ctx, action)
	}
	q.deleteLocked(ctx, dropped)
	snap := q.snapshotLocked()
	q.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"action_id": action.ID,
		"type":      action.Type,
		"endpoint":  action.Endpoint,
		"priority":  action.Priority,
	}).Debug("action enqueued")
	q.notify(snap)
	return action.ID
}

// Dequeue removes the action with id regardless of its status. It does not cancel a
// replay already handed to the sync function.
func (q *QueueManager) Dequeue(ctx context.Context, id string) bool {
	q.mu.Lock()
	idx := q.indexLocked(id)
	if idx < 0 {
		q.mu.Unlock()
		return false
	}
	removed := q.actions[idx]
	q.actions = append(q.actions[:idx], q.actions[idx+1:]...)
	q.deleteLocked(ctx, []*model.QueuedAction{removed})
	snap := q.snapshotLocked()
	q.mu.Unlock()

	q.notify(snap)
	return true
}

// RetryAll moves failed actions that still have retries left back to pending.
func (q *QueueManager) RetryAll(ctx context.Context) {
	q.mu.Lock()
	changed := false
	for _, a := range q.actions {
		if a.Status == model.StatusFailed && a.CanRetry() {
			a.Status = model.StatusPending
			a.Error = ""
			a.NextRetryAt = time.Time{}
			a.UpdatedAt = model.Now()
			q.persistLocked(ctx, a)
			changed = true
		}
	}
	snap := q.snapshotLocked()
	q.mu.Unlock()

	if changed {
		logrus.Info("failed actions moved back to pending")
	}
	q.notify(snap)
}

// GetQueue returns a copy of every action in replay order.
func (q *QueueManager) GetQueue() []*model.QueuedAction {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.snapshotLocked()
}

// GetAction returns a copy of the action with id.
func (q *QueueManager) GetAction(id string) (*model.QueuedAction, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	idx := q.indexLocked(id)
	if idx < 0 {
		return nil, false
	}
	return q.actions[idx].Clone(), true
}

func (q *QueueManager) GetActionsByStatus(status model.ActionStatus) []*model.QueuedAction {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := []*model.QueuedAction{}
	for _, a := range q.actions {
		if a.Status == status {
			out = append(out, a.Clone())
		}
	}
	return out
}

func (q *QueueManager) GetPendingCount() int {
	return q.countStatus(model.StatusPending)
}

func (q *QueueManager) GetFailedCount() int {
	return q.countStatus(model.StatusFailed)
}

func (q *QueueManager) HasPending() bool {
	return q.GetPendingCount() > 0
}

func (q *QueueManager) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	s := QueueStats{Total: len(q.actions)}
	for _, a := range q.actions {
		switch a.Status {
		case model.StatusPending:
			s.Pending++
		case model.StatusProcessing:
			s.Processing++
		case model.StatusSuccess:
			s.Success++
		case model.StatusFailed:
			s.Failed++
		}
	}
	return s
}

// ClearSynced drops every action in success and returns how many were removed.
func (q *QueueManager) ClearSynced(ctx context.Context) int {
	return q.removeWhere(ctx, func(a *model.QueuedAction) bool { return a.Status == model.StatusSuccess })
}

// ClearFailed drops every action in failed and returns how many were removed.
func (q *QueueManager) ClearFailed(ctx context.Context) int {
	return q.removeWhere(ctx, func(a *model.QueuedAction) bool { return a.Status == model.StatusFailed })
}

// ClearAll empties the queue.
func (q *QueueManager) ClearAll(ctx context.Context) int {
	return q.removeWhere(ctx, func(*model.QueuedAction) bool { return true })
}

// Subscribe registers listener and returns a function that unregisters it.
func (q *QueueManager) Subscribe(listener Listener) func() {
	q.mu.Lock()
	q.nextListenerID++
	id := q.nextListenerID
	q.listeners = append(q.listeners, listenerEntry{id: id, fn: listener})
	q.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			q.mu.Lock()
			defer q.mu.Unlock()
			for i, l := range q.listeners {
				if l.id == id {
					q.listeners = append(q.listeners[:i], q.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// Close releases the underlying store.
func (q *QueueManager) Close() error {
	return q.store.Close()
}

func (q *QueueManager) countStatus(status model.ActionStatus) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, a := range q.actions {
		if a.Status == status {
			n++
		}
	}
	return n
}

func (q *QueueManager) removeWhere(ctx context.Context, match func(*model.QueuedAction) bool) int {
	q.mu.Lock()
	var removed []*model.QueuedAction
	kept := q.actions[:0]
	for _, a := range q.actions {
		if match(a) {
			removed = append(removed, a)
		} else {
			kept = append(kept, a)
		}
	}
	q.actions = kept
	q.deleteLocked(ctx, removed)
	snap := q.snapshotLocked()
	q.mu.Unlock()

	q.notify(snap)
	return len(removed)
}

func (q *QueueManager) findPendingDuplicateLocked(actionType model.ActionType, key string) *model.QueuedAction {
	for _, a := range q.actions {
		if a.Status == model.StatusPending && a.Type == actionType && a.DedupeKey == key {
			return a
		}
	}
	return nil
}

// trimLocked drops actions from the tail of the replay order until the queue fits.
func (q *QueueManager) trimLocked() []*model.QueuedAction {
	if len(q.actions) <= q.maxQueueSize {
		return nil
	}
	dropped := append([]*model.QueuedAction(nil), q.actions[q.maxQueueSize:]...)
	q.actions = q.actions[:q.maxQueueSize]
	for _, d := range dropped {
		logrus.WithFields(logrus.Fields{
			"action_id": d.ID,
			"max_size":  q.maxQueueSize,
		}).Warn("queue is full, dropping lowest priority action")
	}
	return dropped
}

func (q *QueueManager) indexLocked(id string) int {
	for i, a := range q.actions {
		if a.ID == id {
			return i
		}
	}
	return -1
}

func (q *QueueManager) persistLocked(ctx context.Context, a *model.QueuedAction) {
	if q.snapshots != nil {
		q.writeSnapshotLocked(ctx)
		return
	}
	if err := q.store.PutAction(ctx, a); err != nil {
		logrus.WithError(err).WithField("action_id", a.ID).Error("failed to persist queued action")
	}
}

func (q *QueueManager) deleteLocked(ctx context.Context, removed []*model.QueuedAction) {
	if len(removed) == 0 {
		return
	}
	if q.snapshots != nil {
		q.writeSnapshotLocked(ctx)
		return
	}
	ids := make([]string, len(removed))
	for i, a := range removed {
		ids[i] = a.ID
	}
	if err := q.store.DeleteActions(ctx, ids...); err != nil {
		logrus.WithError(err).WithField("count", len(ids)).Error("failed to delete queued actions")
	}
}

// writeSnapshotLocked persists the whole in-memory queue to a snapshot store.
func (q *QueueManager) writeSnapshotLocked(ctx context.Context) {
	if err := q.snapshots.ReplaceAll(ctx, q.actions); err != nil {
		logrus.WithError(err).WithField("count", len(q.actions)).Error("failed to persist queue snapshot")
	}
}

func (q *QueueManager) snapshotLocked() []*model.QueuedAction {
	return cloneActions(q.actions)
}

func cloneActions(actions []*model.QueuedAction) []*model.QueuedAction {
	out := make([]*model.QueuedAction, len(actions))
	for i, a := range actions {
		out[i] = a.Clone()
	}
	return out
}

// notify calls every listener with snap. A panicking listener is logged and skipped.
func (q *QueueManager) notify(snap []*model.QueuedAction) {
	q.mu.Lock()
	listeners := make([]listenerEntry, len(q.listeners))
	copy(listeners, q.listeners)
	q.mu.Unlock()

	for i, l := range listeners {
		view := snap
		if i > 0 {
			view = cloneActions(snap)
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					logrus.WithField("listener", l.id).Errorf("queue listener panicked: %v", r)
				}
			}()
			l.fn(view)
		}()
	}
}
