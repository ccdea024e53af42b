package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	ActionIDPrefix = "action"
	TempIDPrefix   = "temp"
)

// GenerateUUIDWithSuffix generates a UUID with a given module name as a suffix.
// This is useful for creating unique identifiers with context-specific prefixes.
func GenerateUUIDWithSuffix(module string) string {
	return fmt.Sprintf("%s_%s", module, uuid.New().String())
}

// GenerateTempID returns a client-side placeholder identity for an entity the server
// has not acknowledged yet.
func GenerateTempID() string {
	return GenerateUUIDWithSuffix(TempIDPrefix)
}

// IsTempID reports whether id was produced by GenerateTempID.
func IsTempID(id string) bool {
	return len(id) > len(TempIDPrefix)+1 && id[:len(TempIDPrefix)+1] == TempIDPrefix+"_"
}

// Now is the clock used for timestamps. Tests may replace it.
var Now = func() time.Time {
	return time.Now().UTC()
}
