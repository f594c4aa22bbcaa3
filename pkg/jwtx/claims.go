package jwtx

import (
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/zonegate/identity/pkg/idx"
)

// Claims are access-token claims exposed to resource services. We keep
// changes additive to preserve compatibility for consumers.
type Claims struct {
	jwt.RegisteredClaims

	/* Cross-service custom fields */

	// Scope carries the granted permission scopes, e.g. "openid profile".
	Scope []string `json:"scope,omitempty"`

	// ClientID is the OAuth2 client the token was minted for.
	ClientID string `json:"client_id,omitempty"`

	// ZoneID is the tenant zone the principal authenticated in.
	ZoneID string `json:"zid,omitempty"`

	// Origin identifies which identity provider handled the credential.
	Origin string `json:"origin,omitempty"`
}

// NewAccessClaims builds minimally-correct claims with a fresh jti.
func NewAccessClaims(
	subject, clientID, zoneID, origin string,
	scope []string,
	ttl time.Duration,
	issuer string,
	audience []string,
	now time.Time,
) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings(audience),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        idx.New().String(),
		},
		Scope:    scope,
		ClientID: clientID,
		ZoneID:   zoneID,
		Origin:   origin,
	}
}

// ValidateIssuer checks if the issuer matches the expected value.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil // nothing to enforce
	}

	if c.Issuer != expected {
		return ErrIssuer
	}

	return nil
}

// ValidateAudience checks if at least one expected audience is present.
func (c *Claims) ValidateAudience(expected []string) error {
	if len(expected) == 0 {
		return nil // nothing to enforce
	}

	for _, want := range expected {
		if slices.Contains(c.Audience, want) {
			return nil
		}
	}

	return ErrAudience
}
