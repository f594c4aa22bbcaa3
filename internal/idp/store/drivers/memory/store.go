// Package memory is the in-memory reference implementation of the store
// capabilities the core consumes. Real deployments inject an engine-backed
// implementation from outside this module.
package memory

import (
	"sync"

	"github.com/zonegate/identity/internal/idp/domain"
	"github.com/zonegate/identity/internal/idp/store"
)

// Store implements store.Store over process-local maps. All sub-repositories
// share one RWMutex; the data sets involved are small (tenant metadata,
// consent rows) and contention is dominated by reads.
type Store struct {
	mu sync.RWMutex

	zones     map[string]domain.Zone
	providers map[string][]domain.IdentityProvider // zoneID -> providers
	users     map[string]domain.UserRecord         // zone/origin/username
	clients   map[string]domain.ClientRecord       // zone/clientID
	approvals map[domain.ApprovalKey]domain.Approval
}

func NewStore() *Store {
	return &Store{
		zones:     make(map[string]domain.Zone),
		providers: make(map[string][]domain.IdentityProvider),
		users:     make(map[string]domain.UserRecord),
		clients:   make(map[string]domain.ClientRecord),
		approvals: make(map[domain.ApprovalKey]domain.Approval),
	}
}

func (s *Store) Zones() store.Zones         { return (*zones)(s) }
func (s *Store) Providers() store.Providers { return (*providers)(s) }
func (s *Store) Users() store.Users         { return (*users)(s) }
func (s *Store) Clients() store.Clients     { return (*clients)(s) }
func (s *Store) Approvals() store.Approvals { return (*approvals)(s) }

/* Seeding helpers for the bootstrap layer and tests. */

// PutZone creates or replaces a zone.
func (s *Store) PutZone(z domain.Zone) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.zones[z.ID] = z
}

// PutProvider creates or replaces a provider, keyed by (ZoneID, Origin).
// Replacing keeps the invariant of at most one active provider per pair.
func (s *Store) PutProvider(p domain.IdentityProvider) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.providers[p.ZoneID]
	for i := range list {
		if list[i].Origin == p.Origin {
			list[i] = p
			s.providers[p.ZoneID] = list
			return
		}
	}
	s.providers[p.ZoneID] = append(list, p)
}

// PutUser creates or replaces a user record.
func (s *Store) PutUser(u domain.UserRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userKey(u.ZoneID, u.Origin, u.Username)] = u
}

// PutClient creates or replaces a client record.
func (s *Store) PutClient(c domain.ClientRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[clientKey(c.ZoneID, c.ID)] = c
}

func userKey(zoneID, origin, username string) string {
	return zoneID + "\x00" + origin + "\x00" + username
}

func clientKey(zoneID, clientID string) string {
	return zoneID + "\x00" + clientID
}
