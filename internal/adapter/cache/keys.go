package cache

import (
	"fmt"
	"strings"

	"github.com/voltgrid/csms/internal/ports"
)

// Key builders. Every cached document lives under an entity-type namespace
// so invalidation can drop a whole family with one prefix delete.

const (
	statusKeyPrefix      = "status:"
	sessionListKeyPrefix = "sessions:list:"
)

// DeviceStatusKey is the live per-device status snapshot pushed by the
// protocol layer.
func DeviceStatusKey(deviceID string) string {
	return statusKeyPrefix + deviceID
}

// SessionListKey encodes a session listing's filter parameters into a
// deterministic cache key.
func SessionListKey(f ports.SessionFilter) string {
	parts := []string{
		"c=" + f.CustomerID,
		"d=" + f.DeviceID,
		"s=" + string(f.Status),
		fmt.Sprintf("l=%d", f.Limit),
		fmt.Sprintf("o=%d", f.Offset),
	}
	return sessionListKeyPrefix + strings.Join(parts, ":")
}

// SessionListPrefix covers every memoized session listing.
func SessionListPrefix() string {
	return sessionListKeyPrefix
}
