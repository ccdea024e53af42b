package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityLifecycle(t *testing.T) {
	id := TempIdentity("temp_1")
	assert.True(t, id.IsTemp())
	assert.False(t, id.IsServer())
	assert.Equal(t, "temp_1", id.Key())

	resolved := id.Resolve("srv_9")
	assert.False(t, resolved.IsTemp())
	assert.True(t, resolved.IsServer())
	assert.Equal(t, "srv_9", resolved.Key())
	assert.True(t, resolved.Matches("temp_1"))
	assert.True(t, resolved.Matches("srv_9"))
	assert.False(t, resolved.Matches(""))
	assert.Equal(t, "server:srv_9", resolved.String())
}

func TestIdentityZero(t *testing.T) {
	var id Identity
	assert.True(t, id.IsZero())
	assert.False(t, id.Matches(""))
	assert.Equal(t, "identity(none)", id.String())
}

func TestIdentityJSON(t *testing.T) {
	data, err := json.Marshal(TempIdentity("temp_1").Resolve("srv_1"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"tempId":"temp_1","serverId":"srv_1"}`, string(data))

	var decoded Identity
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "temp_1", decoded.TempID())
	assert.Equal(t, "srv_1", decoded.ServerID())

	assert.Error(t, json.Unmarshal([]byte(`{}`), &decoded))
}

func TestQueuedActionIdentity(t *testing.T) {
	a := &QueuedAction{TempID: "temp_1"}
	assert.True(t, a.Identity().IsTemp())
	a.ServerID = "srv_1"
	assert.Equal(t, "srv_1", a.Identity().Key())
	assert.True(t, a.Identity().Matches("temp_1"))
	assert.True(t, (&QueuedAction{}).Identity().IsZero())
}
