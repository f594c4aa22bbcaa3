package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidCredentials means the presented credential was bad. The
	// caller may retry with different credentials.
	ErrInvalidCredentials = errors.New("idp: invalid credentials")

	// ErrAccountLocked means the principal is locked out. Recoverable only
	// after the lockout period elapses.
	ErrAccountLocked = errors.New("idp: account locked")

	// ErrUnknownZone is a configuration error: the zone is missing or
	// disabled. Not retryable without an operator fix.
	ErrUnknownZone = errors.New("idp: unknown or disabled zone")

	// ErrUnknownProvider means a provider exists but no backend is wired
	// for its type. Also a configuration error.
	ErrUnknownProvider = errors.New("idp: no validator for provider")
)

// AccountLockedError carries the lockout deadline alongside ErrAccountLocked.
type AccountLockedError struct {
	Key         PrincipalKey
	LockedUntil time.Time
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("idp: account %s locked until %s", e.Key, e.LockedUntil.UTC().Format(time.RFC3339))
}

func (e *AccountLockedError) Unwrap() error { return ErrAccountLocked }
