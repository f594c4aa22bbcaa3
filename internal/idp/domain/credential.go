package domain

import (
	"fmt"
	"time"
)

// CredentialRequest is one authentication attempt. It is ephemeral: created
// per attempt, never persisted by the core.
type CredentialRequest struct {
	ZoneID    string
	Origin    string
	Principal string

	// Secret is the presented secret material: a password, a client secret,
	// or a serialized assertion depending on the provider type.
	Secret string

	// Passcode is the optional one-time code for principals with a second
	// factor enrolled.
	Passcode string

	RequestedScopes []string
}

// Outcome classifies an authentication attempt.
type Outcome int

const (
	OutcomeFailure Outcome = iota
	OutcomeSuccess
	OutcomeLocked
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeLocked:
		return "locked"
	default:
		return "failure"
	}
}

// AuthenticationResult is returned synchronously to the caller; it is not
// persisted.
type AuthenticationResult struct {
	Outcome            Outcome
	PrincipalID        string
	GrantedAuthorities []string

	// FailureReason carries a backend-specific reason for audit. Empty on
	// success.
	FailureReason string

	// LockedUntil is set when Outcome is OutcomeLocked.
	LockedUntil time.Time
}

// Succeeded reports whether the attempt authenticated the principal.
func (r AuthenticationResult) Succeeded() bool {
	return r.Outcome == OutcomeSuccess
}

// SuccessResult builds a successful result for a principal.
func SuccessResult(principalID string, authorities []string) AuthenticationResult {
	return AuthenticationResult{
		Outcome:            OutcomeSuccess,
		PrincipalID:        principalID,
		GrantedAuthorities: authorities,
	}
}

// FailureResult builds a failed result with a reason for audit.
func FailureResult(reason string) AuthenticationResult {
	return AuthenticationResult{
		Outcome:       OutcomeFailure,
		FailureReason: reason,
	}
}

// LockedResult builds a rejection for a principal that is locked out.
func LockedResult(until time.Time) AuthenticationResult {
	return AuthenticationResult{
		Outcome:       OutcomeLocked,
		FailureReason: "account locked",
		LockedUntil:   until,
	}
}

// Err translates the result into the sentinel errors for callers that prefer
// error flow over outcome inspection. Success maps to nil, a lockout to
// AccountLockedError, and any other failure to ErrInvalidCredentials.
func (r AuthenticationResult) Err(key PrincipalKey) error {
	switch r.Outcome {
	case OutcomeSuccess:
		return nil
	case OutcomeLocked:
		return &AccountLockedError{Key: key, LockedUntil: r.LockedUntil}
	default:
		return fmt.Errorf("%w: %s", ErrInvalidCredentials, r.FailureReason)
	}
}
