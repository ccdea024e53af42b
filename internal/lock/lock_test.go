package redlock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniredis(t *testing.T) (*miniredis.Miniredis, redis.UniversalClient) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestLocker_Lock(t *testing.T) {
	db, mock := redismock.NewClientMock()
	locker := NewLocker(db, "offline:queue:lock", "host-1")

	mock.ExpectSetNX("offline:queue:lock", "host-1", 5*time.Second).SetVal(true)
	mock.ExpectSetNX("offline:queue:lock", "host-1", 5*time.Second).SetVal(false)
	mock.ExpectSetNX("offline:queue:lock", "host-1", 5*time.Second).SetErr(errors.New("connection refused"))

	assert.NoError(t, locker.Lock(context.Background(), 5*time.Second))

	err := locker.Lock(context.Background(), 5*time.Second)
	assert.ErrorIs(t, err, ErrLockHeld)
	assert.ErrorContains(t, err, "offline:queue:lock")

	err = locker.Lock(context.Background(), 5*time.Second)
	assert.EqualError(t, err, "connection refused")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLocker_UnlockOnlyByHolder(t *testing.T) {
	mr, client := newMiniredis(t)
	ctx := context.Background()

	owner := NewLocker(client, "offline:queue:lock", "host-1")
	other := NewLocker(client, "offline:queue:lock", "host-2")
	require.NoError(t, owner.Lock(ctx, time.Minute))

	assert.ErrorIs(t, other.Unlock(ctx), ErrNotHolder)
	assert.True(t, mr.Exists("offline:queue:lock"))

	assert.NoError(t, owner.Unlock(ctx))
	assert.False(t, mr.Exists("offline:queue:lock"))
	assert.ErrorIs(t, owner.Unlock(ctx), ErrNotHolder)
}

func TestLocker_ExtendLock(t *testing.T) {
	mr, client := newMiniredis(t)
	ctx := context.Background()

	owner := NewLocker(client, "offline:queue:lock", "host-1")
	require.NoError(t, owner.Lock(ctx, time.Second))

	require.NoError(t, owner.ExtendLock(ctx, time.Minute))
	assert.Equal(t, time.Minute, mr.TTL("offline:queue:lock"))

	other := NewLocker(client, "offline:queue:lock", "host-2")
	assert.ErrorIs(t, other.ExtendLock(ctx, time.Hour), ErrNotHolder)

	mr.FastForward(2 * time.Minute)
	assert.ErrorIs(t, owner.ExtendLock(ctx, time.Minute), ErrNotHolder)
}

func TestLocker_WaitLock(t *testing.T) {
	mr, client := newMiniredis(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("offline:queue:lock", "host-2"))
	mr.SetTTL("offline:queue:lock", time.Minute)

	locker := NewLocker(client, "offline:queue:lock", "host-1")
	err := locker.WaitLock(ctx, time.Minute, 100*time.Millisecond)
	assert.ErrorIs(t, err, ErrLockHeld)

	go func() {
		time.Sleep(50 * time.Millisecond)
		mr.Del("offline:queue:lock")
	}()
	require.NoError(t, locker.WaitLock(ctx, time.Minute, 2*time.Second))

	holder, err := mr.Get("offline:queue:lock")
	require.NoError(t, err)
	assert.Equal(t, locker.Holder(), holder)
	assert.Equal(t, "offline:queue:lock", locker.Key())
}

func TestLocker_WaitLockStopsOnRedisError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	locker := NewLocker(db, "offline:queue:lock", "host-1")

	mock.ExpectSetNX("offline:queue:lock", "host-1", 5*time.Second).SetErr(errors.New("connection refused"))

	start := time.Now()
	err := locker.WaitLock(context.Background(), 5*time.Second, 2*time.Second)
	assert.EqualError(t, err, "connection refused")
	assert.Less(t, time.Since(start), time.Second)
	assert.NoError(t, mock.ExpectationsWereMet())
}
