package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewID generates a UUIDv7 string for application-owned entities.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// NewSessionID allocates an export session id: start time plus a short random
// suffix, sortable by start order and unique across restarts.
func NewSessionID(now time.Time) string {
	return fmt.Sprintf("export-%d-%s", now.UnixMilli(), uuid.NewString()[:8])
}
