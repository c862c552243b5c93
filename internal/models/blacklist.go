package models

import (
	"time"
)

// Access token revoked before its natural expiry.
// The row is pointless once ExpiresAt passed: the token fails verification anyway.
type BlacklistEntry struct {
	ID        int64
	Token     string
	ExpiresAt time.Time
}
