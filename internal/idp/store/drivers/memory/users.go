package memory

import (
	"context"

	"github.com/zonegate/identity/internal/idp/domain"
	"github.com/zonegate/identity/internal/idp/store"
)

type users Store

func (u *users) GetByUsername(_ context.Context, zoneID, origin, username string) (domain.UserRecord, error) {
	s := (*Store)(u)
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.users[userKey(zoneID, origin, username)]
	if !ok {
		return domain.UserRecord{}, store.ErrNotFound
	}
	return rec, nil
}

type clients Store

func (c *clients) GetClient(_ context.Context, zoneID, clientID string) (domain.ClientRecord, error) {
	s := (*Store)(c)
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.clients[clientKey(zoneID, clientID)]
	if !ok {
		return domain.ClientRecord{}, store.ErrNotFound
	}
	return rec, nil
}
