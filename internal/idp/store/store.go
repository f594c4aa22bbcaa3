package store

import (
	"context"
	"errors"
	"time"

	"github.com/zonegate/identity/internal/idp/domain"
)

var ErrNotFound = errors.New("store: not found")

// Store is the root data access interface the core consumes. The real
// persistence engine lives outside this module; drivers/memory is the
// reference implementation used for wiring and tests. It exposes
// sub-repositories to keep concerns tidy and testable.
type Store interface {
	Zones() Zones
	Providers() Providers
	Users() Users
	Clients() Clients
	Approvals() Approvals
}

// Zones reads tenant metadata, including per-zone lockout overrides.
type Zones interface {
	GetZone(ctx context.Context, zoneID string) (domain.Zone, error)
}

// Providers reads identity-provider metadata maintained by the external
// provisioning collaborator.
type Providers interface {
	// ActiveProvider returns the single active provider for (zoneID, origin),
	// or ErrNotFound.
	ActiveProvider(ctx context.Context, zoneID, origin string) (domain.IdentityProvider, error)

	// ActiveProviders lists all active providers in a zone in a stable order.
	ActiveProviders(ctx context.Context, zoneID string) ([]domain.IdentityProvider, error)
}

// Users is the user-record lookup capability backing the internal-database
// validator.
type Users interface {
	GetByUsername(ctx context.Context, zoneID, origin, username string) (domain.UserRecord, error)
}

// Clients is the client-record lookup capability backing the
// client-credential validator.
type Clients interface {
	GetClient(ctx context.Context, zoneID, clientID string) (domain.ClientRecord, error)
}

// Approvals tracks per-(user, client, scope) consent with expiry. Listing
// returns raw rows including expired ones; lazy expiry is applied by the
// approval service.
type Approvals interface {
	Upsert(ctx context.Context, a domain.Approval) error
	List(ctx context.Context, userID, clientID string) ([]domain.Approval, error)
	Revoke(ctx context.Context, userID, clientID, scope string) error
	RevokeAll(ctx context.Context, userID, clientID string) error

	// PurgeExpired deletes approvals with ExpiresAt <= now and reports how
	// many were removed. Used by the housekeeping sweep.
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}
