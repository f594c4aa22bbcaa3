package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zonegate/identity/internal/idp/domain"
	"github.com/zonegate/identity/internal/idp/store"
)

func TestZones(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := NewStore()
	s.PutZone(domain.Zone{ID: "zone-a", Name: "Zone A", Active: true})

	zone, err := s.Zones().GetZone(ctx, "zone-a")
	require.NoError(t, err)
	require.Equal(t, "Zone A", zone.Name)

	_, err = s.Zones().GetZone(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestProviders(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := NewStore()
	s.PutProvider(domain.IdentityProvider{ID: "p1", ZoneID: "zone-a", Origin: "ldap-a", Type: domain.ProviderLDAP, Active: true})
	s.PutProvider(domain.IdentityProvider{ID: "p2", ZoneID: "zone-a", Origin: "saml-a", Type: domain.ProviderSAML, Active: false})
	s.PutProvider(domain.IdentityProvider{ID: "p3", ZoneID: "zone-a", Origin: "internal", Type: domain.ProviderInternal, Active: true})

	t.Run("active provider by origin", func(t *testing.T) {
		p, err := s.Providers().ActiveProvider(ctx, "zone-a", "ldap-a")
		require.NoError(t, err)
		require.Equal(t, "p1", p.ID)
	})

	t.Run("inactive provider is not found", func(t *testing.T) {
		_, err := s.Providers().ActiveProvider(ctx, "zone-a", "saml-a")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("active providers preserve provisioning order", func(t *testing.T) {
		list, err := s.Providers().ActiveProviders(ctx, "zone-a")
		require.NoError(t, err)
		require.Len(t, list, 2)
		require.Equal(t, "p1", list[0].ID)
		require.Equal(t, "p3", list[1].ID)
	})

	t.Run("replacing by origin keeps one provider per pair", func(t *testing.T) {
		s.PutProvider(domain.IdentityProvider{ID: "p4", ZoneID: "zone-a", Origin: "ldap-a", Type: domain.ProviderLDAP, Active: true})
		p, err := s.Providers().ActiveProvider(ctx, "zone-a", "ldap-a")
		require.NoError(t, err)
		require.Equal(t, "p4", p.ID)

		list, err := s.Providers().ActiveProviders(ctx, "zone-a")
		require.NoError(t, err)
		require.Len(t, list, 2)
	})
}

func TestUsersAndClients(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := NewStore()
	s.PutUser(domain.UserRecord{ID: "u1", ZoneID: "zone-a", Origin: "internal", Username: "alice", Active: true})
	s.PutClient(domain.ClientRecord{ID: "cli", ZoneID: "zone-a", Active: true})

	t.Run("user lookup is scoped by zone and origin", func(t *testing.T) {
		u, err := s.Users().GetByUsername(ctx, "zone-a", "internal", "alice")
		require.NoError(t, err)
		require.Equal(t, "u1", u.ID)

		_, err = s.Users().GetByUsername(ctx, "zone-b", "internal", "alice")
		require.ErrorIs(t, err, store.ErrNotFound)

		_, err = s.Users().GetByUsername(ctx, "zone-a", "ldap", "alice")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("client lookup is scoped by zone", func(t *testing.T) {
		c, err := s.Clients().GetClient(ctx, "zone-a", "cli")
		require.NoError(t, err)
		require.Equal(t, "cli", c.ID)

		_, err = s.Clients().GetClient(ctx, "zone-b", "cli")
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestApprovalsPurgeExpired(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	now := time.Unix(1_700_000_000, 0)
	s := NewStore()
	repo := s.Approvals()

	require.NoError(t, repo.Upsert(ctx, domain.Approval{
		UserID: "u1", ClientID: "c1", Scope: "openid",
		Status: domain.ApprovalApproved, ExpiresAt: now.Add(-time.Minute),
	}))
	require.NoError(t, repo.Upsert(ctx, domain.Approval{
		UserID: "u1", ClientID: "c1", Scope: "profile",
		Status: domain.ApprovalApproved, ExpiresAt: now.Add(time.Hour),
	}))

	purged, err := repo.PurgeExpired(ctx, now)
	require.NoError(t, err)
	require.Equal(t, 1, purged)

	rows, err := repo.List(ctx, "u1", "c1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "profile", rows[0].Scope)

	// A second sweep finds nothing.
	purged, err = repo.PurgeExpired(ctx, now)
	require.NoError(t, err)
	require.Zero(t, purged)
}
