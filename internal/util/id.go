package util

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

// NewDocID mints an id for a persisted document (monster, feature, combat
// session). UUID format, matching ids minted by the legacy application.
func NewDocID() string {
	return uuid.NewString()
}

// NewID mints a prefixed random id for tokens and request tracing.
func NewID(prefix string) string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	if prefix == "" {
		return hex.EncodeToString(bytes)
	}
	return prefix + "_" + hex.EncodeToString(bytes)
}
