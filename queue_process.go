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
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jerry-enebeli/offline/config"
	redlock "github.com/jerry-enebeli/offline/internal/lock"
	"github.com/jerry-enebeli/offline/internal/notification"
	"github.com/jerry-enebeli/offline/model"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ProcessQueue replays every pending action once, strictly one at a time, in replay
// order. A call made while another run is in progress returns an empty result at once.
// Failures are reported in the results and never returned as an error.
func (q *QueueManager) ProcessQueue(ctx context.Context) []model.SyncResult {
	results := []model.SyncResult{}
	if !q.processing.CompareAndSwap(false, true) {
		logrus.Debug("queue is already being processed")
		return results
	}
	defer q.processing.Store(false)

	ctx, span := q.tracer.Start(ctx, "ProcessQueue")
	defer span.End()

	var lockHeld *redlock.Locker
	if q.lock != nil {
		locker := redlock.NewLocker(q.lock.client, q.lock.key, workerID())
		var err error
		if q.lock.wait > 0 {
			err = locker.WaitLock(ctx, q.lock.ttl, q.lock.wait)
		} else {
			err = locker.Lock(ctx, q.lock.ttl)
		}
		if err != nil {
			if errors.Is(err, redlock.ErrLockHeld) {
				span.AddEvent("queue lock held elsewhere")
				logrus.WithError(err).Debug("skipping queue run, lock held by another worker")
			} else {
				span.RecordError(err)
				logrus.WithError(err).Warn("skipping queue run, could not take queue lock")
			}
			return results
		}
		defer func() {
			if err := locker.Unlock(context.WithoutCancel(ctx)); err != nil {
				logrus.WithError(err).Warn("failed to release queue lock")
			}
		}()
		lockHeld = locker
	}

	q.mu.Lock()
	syncFn := q.syncFn
	now := model.Now()
	var batch []string
	for _, a := range q.actions {
		if a.ReadyAt(now) {
			batch = append(batch, a.ID)
		}
	}
	q.mu.Unlock()

	if syncFn == nil {
		if len(batch) > 0 {
			logrus.Warn("no sync function registered, pending actions left in queue")
		}
		return results
	}
	span.SetAttributes(attribute.Int("queue.batch_size", len(batch)))

	for _, id := range batch {
		if ctx.Err() != nil {
			span.AddEvent("queue run cancelled")
			break
		}
		if result, ok := q.processOne(ctx, syncFn, id); ok {
			results = append(results, result)
		}
		if lockHeld != nil {
			if err := lockHeld.ExtendLock(ctx, q.lock.ttl); err != nil {
				logrus.WithError(err).Warn("failed to extend queue lock")
			}
		}
	}

	span.SetAttributes(attribute.Int("queue.results", len(results)))
	return results
}

// processOne replays the action with id. ok is false when the action was removed or
// changed state before its turn came.
func (q *QueueManager) processOne(ctx context.Context, syncFn SyncFunc, id string) (model.SyncResult, bool) {
	q.mu.Lock()
	idx := q.indexLocked(id)
	if idx < 0 || q.actions[idx].Status != model.StatusPending {
		q.mu.Unlock()
		return model.SyncResult{}, false
	}
	current := q.actions[idx]
	current.Status = model.StatusProcessing
	current.UpdatedAt = model.Now()
	q.persistLocked(ctx, current)
	work := current.Clone()
	snap := q.snapshotLocked()
	q.mu.Unlock()
	q.notify(snap)

	data, err := q.replay(ctx, syncFn, work)
	if err != nil {
		return q.recordFailure(ctx, work, err), true
	}
	return q.recordSuccess(ctx, work, data), true
}

func (q *QueueManager) replay(ctx context.Context, syncFn SyncFunc, action *model.QueuedAction) (data map[string]interface{}, err error) {
	ctx, span := q.tracer.Start(ctx, "ReplayAction", trace.WithAttributes(
		attribute.String("action.id", action.ID),
		attribute.String("action.type", string(action.Type)),
		attribute.String("action.endpoint", action.Endpoint),
		attribute.Int("action.retry_count", action.RetryCount),
	))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sync function panicked: %v", r)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	return syncFn(ctx, action)
}

func (q *QueueManager) recordSuccess(ctx context.Context, work *model.QueuedAction, data map[string]interface{}) model.SyncResult {
	result := model.SyncResult{ID: work.ID, Success: true, Data: data}

	q.mu.Lock()
	idx := q.indexLocked(work.ID)
	if idx < 0 {
		q.mu.Unlock()
		return result
	}
	current := q.actions[idx]
	current.Status = model.StatusSuccess
	current.Error = ""
	current.UpdatedAt = model.Now()
	if current.Type == model.ActionCreate {
		if serverID := serverIDFrom(data); serverID != "" {
			current.ServerID = serverID
		}
	}
	settled := q.snapshotLocked()

	q.actions = append(q.actions[:idx], q.actions[idx+1:]...)
	q.deleteLocked(ctx, []*model.QueuedAction{current})
	snap := q.snapshotLocked()
	q.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"action_id": current.ID,
		"server_id": current.ServerID,
	}).Info("queued action synced")

	// listeners see the settled record with its server id before it leaves the queue
	q.notify(settled)
	q.notify(snap)
	return result
}

func (q *QueueManager) recordFailure(ctx context.Context, work *model.QueuedAction, cause error) model.SyncResult {
	result := model.SyncResult{ID: work.ID, Success: false, Error: cause.Error()}

	q.mu.Lock()
	idx := q.indexLocked(work.ID)
	if idx < 0 {
		q.mu.Unlock()
		return result
	}
	current := q.actions[idx]
	current.RetryCount++
	current.Error = cause.Error()
	current.UpdatedAt = model.Now()
	terminal := !current.CanRetry()
	if terminal {
		current.Status = model.StatusFailed
		current.NextRetryAt = time.Time{}
	} else {
		current.Status = model.StatusPending
		if q.backoff != nil {
			current.NextRetryAt = current.UpdatedAt.Add(retryDelay(*q.backoff, current.RetryCount))
		}
	}
	q.persistLocked(ctx, current)
	failed := current.Clone()
	snap := q.snapshotLocked()
	q.mu.Unlock()

	entry := logrus.WithFields(logrus.Fields{
		"action_id":   failed.ID,
		"retry_count": failed.RetryCount,
		"max_retries": failed.MaxRetries,
	}).WithError(cause)
	if terminal {
		entry.Error("queued action failed, retries exhausted")
		if q.notifyOnFailure {
			notification.NotifyError(fmt.Errorf("queued action %s (%s %s) failed after %d attempts: %w",
				failed.ID, failed.Method, failed.Endpoint, failed.RetryCount, cause))
		}
	} else {
		entry.Warn("queued action failed, will retry")
	}

	q.notify(snap)
	return result
}

// retryDelay is the wait before attempt retryCount+1 under cfg. Jitter is disabled so
// the schedule is predictable across restarts.
func retryDelay(cfg config.BackoffConfig, retryCount int) time.Duration {
	if cfg.InitialIntervalMs <= 0 {
		cfg.InitialIntervalMs = config.DEFAULT_BACKOFF_INITIAL
	}
	if cfg.MaxIntervalMs <= 0 {
		cfg.MaxIntervalMs = config.DEFAULT_BACKOFF_MAX
	}
	if cfg.Multiplier <= 1 {
		cfg.Multiplier = 2
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Duration(cfg.InitialIntervalMs) * time.Millisecond
	b.MaxInterval = time.Duration(cfg.MaxIntervalMs) * time.Millisecond
	b.Multiplier = cfg.Multiplier
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()

	d := b.InitialInterval
	for i := 0; i < retryCount; i++ {
		d = b.NextBackOff()
	}
	return d
}

// serverIDFrom reads the "id" field of a sync response.
func serverIDFrom(data map[string]interface{}) string {
	v, ok := data["id"]
	if !ok || v == nil {
		return ""
	}
	switch id := v.(type) {
	case string:
		return id
	case float64:
		return fmt.Sprintf("%.0f", id)
	default:
		return fmt.Sprint(id)
	}
}

func workerID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "offline"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
