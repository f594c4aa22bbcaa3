// Package approval tracks per-(user, client, scope) consent with expiry.
package approval

import (
	"context"
	"iter"
	"time"

	"github.com/zonegate/identity/internal/idp/domain"
	"github.com/zonegate/identity/internal/idp/store"
)

// Service applies consent semantics over the approvals repository: upserts
// are idempotent, expiry is lazy (expired rows are treated as absent, not
// eagerly deleted), and revocation is a no-op when nothing matches.
type Service struct {
	approvals store.Approvals
	clock     func() time.Time
}

type Option func(*Service)

// WithClock injects the time source, for tests.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

func NewService(approvals store.Approvals, opts ...Option) *Service {
	s := &Service{
		approvals: approvals,
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Upsert records or overwrites the approval for its (user, client, scope)
// key, refreshing LastUpdatedAt. Upserting the same approval twice yields
// one record.
func (s *Service) Upsert(ctx context.Context, a domain.Approval) error {
	a.LastUpdatedAt = s.clock()
	return s.approvals.Upsert(ctx, a)
}

// Approvals returns the live approvals for (userID, clientID) as a lazy,
// finite, restartable sequence. Each iteration re-reads the repository and
// re-applies expiry against the current clock, so a sequence held across an
// expiry boundary stays truthful. Repository errors end the sequence early.
func (s *Service) Approvals(ctx context.Context, userID, clientID string) iter.Seq[domain.Approval] {
	return func(yield func(domain.Approval) bool) {
		rows, err := s.approvals.List(ctx, userID, clientID)
		if err != nil {
			return
		}
		now := s.clock()
		for _, a := range rows {
			if a.Expired(now) {
				continue
			}
			if !yield(a) {
				return
			}
		}
	}
}

// ApprovedScopes lists the scopes with a live APPROVED record, the set the
// token service intersects against at mint time.
func (s *Service) ApprovedScopes(ctx context.Context, userID, clientID string) ([]string, error) {
	rows, err := s.approvals.List(ctx, userID, clientID)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	var granted []string
	for _, a := range rows {
		if a.GrantsScope(now) {
			granted = append(granted, a.Scope)
		}
	}
	return granted, nil
}

// Revoke deletes one approval. Idempotent.
func (s *Service) Revoke(ctx context.Context, userID, clientID, scope string) error {
	return s.approvals.Revoke(ctx, userID, clientID, scope)
}

// RevokeAll deletes every approval for (userID, clientID). Idempotent.
func (s *Service) RevokeAll(ctx context.Context, userID, clientID string) error {
	return s.approvals.RevokeAll(ctx, userID, clientID)
}
