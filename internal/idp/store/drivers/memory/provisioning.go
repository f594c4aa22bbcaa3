package memory

import (
	"context"

	"github.com/zonegate/identity/internal/idp/domain"
	"github.com/zonegate/identity/internal/idp/store"
)

type zones Store

func (z *zones) GetZone(_ context.Context, zoneID string) (domain.Zone, error) {
	s := (*Store)(z)
	s.mu.RLock()
	defer s.mu.RUnlock()

	zone, ok := s.zones[zoneID]
	if !ok {
		return domain.Zone{}, store.ErrNotFound
	}
	return zone, nil
}

type providers Store

func (p *providers) ActiveProvider(_ context.Context, zoneID, origin string) (domain.IdentityProvider, error) {
	s := (*Store)(p)
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, prov := range s.providers[zoneID] {
		if prov.Origin == origin && prov.Active {
			return prov, nil
		}
	}
	return domain.IdentityProvider{}, store.ErrNotFound
}

func (p *providers) ActiveProviders(_ context.Context, zoneID string) ([]domain.IdentityProvider, error) {
	s := (*Store)(p)
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.IdentityProvider
	for _, prov := range s.providers[zoneID] {
		if prov.Active {
			out = append(out, prov)
		}
	}
	return out, nil
}
