package security

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// IsExpired reports whether expiresAt has been reached according to clock.
// A record is expired from the instant now >= expiresAt; there is no grace period.
// A zero expiresAt never expires.
func IsExpired(clock clockwork.Clock, expiresAt time.Time) bool {
	if expiresAt.IsZero() {
		return false
	}
	return !clock.Now().Before(expiresAt)
}

// ExpiresIn returns the seconds remaining until expiresAt, rounded up and
// floored at zero. A fresh one hour token reports 3600.
func ExpiresIn(clock clockwork.Clock, expiresAt time.Time) int64 {
	remaining := expiresAt.Sub(clock.Now())
	if remaining <= 0 {
		return 0
	}
	return int64((remaining + time.Second - 1) / time.Second)
}
