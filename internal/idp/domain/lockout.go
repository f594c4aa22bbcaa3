package domain

import (
	"fmt"
	"time"
)

// PrincipalKey identifies the lockout scope for one principal in one
// provider of one zone. Different keys never contend with each other.
type PrincipalKey struct {
	ZoneID    string
	Origin    string
	Principal string
}

func (k PrincipalKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.ZoneID, k.Origin, k.Principal)
}

// LockoutPolicy configures the sliding-window failure counter.
// Exactly one policy is effective per attempt: the zone's override when
// configured, else the global default.
type LockoutPolicy struct {
	// MaxFailures is the failure count that triggers a lock. Zero or
	// negative disables lockout entirely.
	MaxFailures int

	// Window is the rolling interval over which failures are counted.
	Window time.Duration

	// LockoutPeriod is how long a locked principal stays rejected.
	LockoutPeriod time.Duration
}

// DefaultLockoutPolicy mirrors the classic identity-provider defaults:
// five failures within an hour lock the account for five minutes.
var DefaultLockoutPolicy = LockoutPolicy{
	MaxFailures:   5,
	Window:        time.Hour,
	LockoutPeriod: 5 * time.Minute,
}

// Enabled reports whether the policy counts failures at all.
func (p LockoutPolicy) Enabled() bool {
	return p.MaxFailures > 0 && p.Window > 0
}

// LockoutRecord is the per-key failure state. Mutated only by the lockout
// tracker; Failures holds only timestamps within the policy window.
type LockoutRecord struct {
	Key         PrincipalKey
	Failures    []time.Time
	LockedUntil time.Time
}

// Locked reports whether the record is locked at the given instant.
func (r LockoutRecord) Locked(now time.Time) bool {
	return !r.LockedUntil.IsZero() && now.Before(r.LockedUntil)
}

// FailureCount returns the number of windowed failures on record.
func (r LockoutRecord) FailureCount() int {
	return len(r.Failures)
}
