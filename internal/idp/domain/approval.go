package domain

import "time"

// ApprovalStatus records the user's decision for one (client, scope) pair.
type ApprovalStatus string

const (
	ApprovalApproved ApprovalStatus = "APPROVED"
	ApprovalDenied   ApprovalStatus = "DENIED"
)

// Approval is recorded user consent for a client to hold a given scope.
// The key (UserID, ClientID, Scope) is unique; upserts overwrite.
type Approval struct {
	UserID   string
	ClientID string
	Scope    string
	Status   ApprovalStatus

	ExpiresAt     time.Time
	LastUpdatedAt time.Time
}

// ApprovalKey is the unique key of an approval record.
type ApprovalKey struct {
	UserID   string
	ClientID string
	Scope    string
}

// Key returns the approval's unique key.
func (a Approval) Key() ApprovalKey {
	return ApprovalKey{UserID: a.UserID, ClientID: a.ClientID, Scope: a.Scope}
}

// Expired reports whether the approval should be treated as absent.
// Expiry is lazy: expired rows may linger in storage until a sweep runs.
func (a Approval) Expired(now time.Time) bool {
	return !a.ExpiresAt.IsZero() && !now.Before(a.ExpiresAt)
}

// GrantsScope reports whether the approval currently grants its scope.
func (a Approval) GrantsScope(now time.Time) bool {
	return a.Status == ApprovalApproved && !a.Expired(now)
}
