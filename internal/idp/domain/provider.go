package domain

import "time"

// ProviderType discriminates the credential backend behind an identity
// provider.
type ProviderType string

const (
	ProviderInternal         ProviderType = "internal"
	ProviderLDAP             ProviderType = "ldap"
	ProviderSAML             ProviderType = "saml"
	ProviderClientCredential ProviderType = "client-credential"
)

// OriginInternal is the origin key of the built-in internal-database
// provider every zone falls back to.
const OriginInternal = "internal"

// IdentityProvider is tenant/provider metadata owned by the external
// provisioning collaborator. The core only reads it.
//
// At most one active provider exists per (ZoneID, Origin).
type IdentityProvider struct {
	ID     string
	ZoneID string
	Origin string
	Type   ProviderType
	Config map[string]string
	Active bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Zone is a tenant boundary. Each zone has its own set of identity
// providers and may override the global lockout policy.
type Zone struct {
	ID     string
	Name   string
	Active bool

	// LockoutPolicy overrides the global policy when non-nil.
	LockoutPolicy *LockoutPolicy
}
