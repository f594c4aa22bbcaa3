package memory

import (
	"context"
	"time"

	"github.com/zonegate/identity/internal/idp/domain"
)

type approvals Store

func (a *approvals) Upsert(_ context.Context, ap domain.Approval) error {
	s := (*Store)(a)
	s.mu.Lock()
	defer s.mu.Unlock()

	s.approvals[ap.Key()] = ap
	return nil
}

func (a *approvals) List(_ context.Context, userID, clientID string) ([]domain.Approval, error) {
	s := (*Store)(a)
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Approval
	for key, ap := range s.approvals {
		if key.UserID == userID && key.ClientID == clientID {
			out = append(out, ap)
		}
	}
	return out, nil
}

func (a *approvals) Revoke(_ context.Context, userID, clientID, scope string) error {
	s := (*Store)(a)
	s.mu.Lock()
	defer s.mu.Unlock()

	// Idempotent: deleting an absent key is a no-op.
	delete(s.approvals, domain.ApprovalKey{UserID: userID, ClientID: clientID, Scope: scope})
	return nil
}

func (a *approvals) RevokeAll(_ context.Context, userID, clientID string) error {
	s := (*Store)(a)
	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range s.approvals {
		if key.UserID == userID && key.ClientID == clientID {
			delete(s.approvals, key)
		}
	}
	return nil
}

func (a *approvals) PurgeExpired(_ context.Context, now time.Time) (int, error) {
	s := (*Store)(a)
	s.mu.Lock()
	defer s.mu.Unlock()

	purged := 0
	for key, ap := range s.approvals {
		if ap.Expired(now) {
			delete(s.approvals, key)
			purged++
		}
	}
	return purged, nil
}
