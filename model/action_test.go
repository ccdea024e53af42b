package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionTypeDefaultMethod(t *testing.T) {
	assert.Equal(t, MethodPost, ActionCreate.DefaultMethod())
	assert.Equal(t, MethodPut, ActionUpdate.DefaultMethod())
	assert.Equal(t, MethodDelete, ActionDelete.DefaultMethod())
	assert.Equal(t, MethodPatch, ActionPatch.DefaultMethod())
	assert.True(t, ActionPatch.Valid())
	assert.False(t, ActionType("UPSERT").Valid())
}

func TestActionStatusIsTerminal(t *testing.T) {
	assert.True(t, StatusSuccess.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, StatusProcessing.IsTerminal())
	assert.False(t, StatusConflict.IsTerminal())
}

func TestQueuedActionBefore(t *testing.T) {
	now := time.Now()
	high := &QueuedAction{Priority: 5, Timestamp: now.Add(time.Second)}
	low := &QueuedAction{Priority: 1, Timestamp: now}
	assert.True(t, high.Before(low))
	assert.False(t, low.Before(high))

	early := &QueuedAction{Priority: 3, Timestamp: now, Sequence: 2}
	late := &QueuedAction{Priority: 3, Timestamp: now.Add(time.Millisecond), Sequence: 1}
	assert.True(t, early.Before(late))

	tieA := &QueuedAction{Priority: 3, Timestamp: now, Sequence: 1}
	tieB := &QueuedAction{Priority: 3, Timestamp: now, Sequence: 2}
	assert.True(t, tieA.Before(tieB))
}

func TestQueuedActionClone(t *testing.T) {
	a := &QueuedAction{ID: "action_1", Payload: map[string]interface{}{"total": 100}}
	c := a.Clone()
	c.Payload["total"] = 200
	assert.Equal(t, 100, a.Payload["total"])
	assert.Nil(t, (*QueuedAction)(nil).Clone())
}

func TestQueuedActionReadyAt(t *testing.T) {
	now := time.Now()
	a := &QueuedAction{Status: StatusPending}
	assert.True(t, a.ReadyAt(now))
	a.NextRetryAt = now.Add(time.Minute)
	assert.False(t, a.ReadyAt(now))
	assert.True(t, a.ReadyAt(now.Add(time.Minute)))
	a.Status = StatusFailed
	assert.False(t, a.ReadyAt(now.Add(time.Hour)))
}

func TestQueuedActionJSONRoundTrip(t *testing.T) {
	a := QueuedAction{
		ID:         "action_1",
		Type:       ActionCreate,
		Endpoint:   "/orders",
		Method:     MethodPost,
		Payload:    map[string]interface{}{"total": float64(100)},
		Status:     StatusPending,
		MaxRetries: 3,
		Priority:   5,
		Timestamp:  time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		TempID:     "temp_1",
	}
	data, err := json.Marshal(a)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"tempId":"temp_1"`)
	assert.NotContains(t, string(data), `"serverId"`)

	var decoded QueuedAction
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, a.Payload, decoded.Payload)
	assert.True(t, a.Timestamp.Equal(decoded.Timestamp))
}
