package model

import (
	"encoding/json"
	"errors"
)

// Identity correlates a client-side record with the server. It is either a temporary
// client-generated id, or a server id (optionally remembering the temp id it replaced).
// Values built through TempIdentity or ServerIdentity always carry at least one key.
type Identity struct {
	temp   string
	server string
}

// TempIdentity returns an identity that has not been acknowledged by the server.
func TempIdentity(tempID string) Identity {
	return Identity{temp: tempID}
}

// ServerIdentity returns an identity assigned by the server.
func ServerIdentity(serverID string) Identity {
	return Identity{server: serverID}
}

// Resolve returns the identity after the server assigned serverID. The temp id is kept
// so lookups by the old placeholder keep working until the record is cleaned up.
func (i Identity) Resolve(serverID string) Identity {
	return Identity{temp: i.temp, server: serverID}
}

func (i Identity) TempID() string   { return i.temp }
func (i Identity) ServerID() string { return i.server }

// IsTemp reports whether the identity is still waiting for a server id.
func (i Identity) IsTemp() bool { return i.server == "" && i.temp != "" }

// IsServer reports whether the server has assigned an id.
func (i Identity) IsServer() bool { return i.server != "" }

// IsZero reports whether neither key is set.
func (i Identity) IsZero() bool { return i.temp == "" && i.server == "" }

// Key returns the authoritative key: the server id when known, the temp id otherwise.
func (i Identity) Key() string {
	if i.server != "" {
		return i.server
	}
	return i.temp
}

// Matches reports whether key equals either the temp or the server id.
func (i Identity) Matches(key string) bool {
	if key == "" {
		return false
	}
	return key == i.temp || key == i.server
}

func (i Identity) String() string {
	switch {
	case i.IsZero():
		return "identity(none)"
	case i.IsServer():
		return "server:" + i.server
	default:
		return "temp:" + i.temp
	}
}

type identityJSON struct {
	TempID   string `json:"tempId,omitempty"`
	ServerID string `json:"serverId,omitempty"`
}

func (i Identity) MarshalJSON() ([]byte, error) {
	return json.Marshal(identityJSON{TempID: i.temp, ServerID: i.server})
}

func (i *Identity) UnmarshalJSON(data []byte) error {
	var raw identityJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.TempID == "" && raw.ServerID == "" {
		return errors.New("identity requires a tempId or a serverId")
	}
	i.temp, i.server = raw.TempID, raw.ServerID
	return nil
}
