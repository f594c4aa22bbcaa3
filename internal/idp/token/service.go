// Package token mints and verifies signed access tokens.
package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zonegate/identity/internal/idp/approval"
	"github.com/zonegate/identity/internal/idp/metrics"
	"github.com/zonegate/identity/internal/idp/scopes"
	"github.com/zonegate/identity/pkg/jwtx"
)

var (
	// ErrSigningUnavailable means no active signing key is configured.
	// Fatal for minting: the service never silently mints unsigned tokens.
	ErrSigningUnavailable = errors.New("token: no active signing key")

	// ErrNoGrantedScopes means the requested scopes intersect to nothing
	// against the principal's live approvals.
	ErrNoGrantedScopes = errors.New("token: no granted scopes")
)

// Service mints tokens with the registry's active key and verifies them
// against its verification-key set.
type Service struct {
	registry  *jwtx.Registry
	approvals *approval.Service // nil skips consent intersection (client tokens)
	issuer    string
	clock     func() time.Time
}

type Option func(*Service)

// WithApprovals wires the consent ledger consulted at mint time.
func WithApprovals(a *approval.Service) Option {
	return func(s *Service) { s.approvals = a }
}

// WithClock injects the time source, for tests.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

func NewService(registry *jwtx.Registry, issuer string, opts ...Option) *Service {
	s := &Service{
		registry: registry,
		issuer:   issuer,
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Mint constructs claims for the principal, assigns a fresh jti, and signs
// with the currently active key. The granted scope set is the intersection
// of requestedScopes with the principal's live approvals for clientID; with
// no approval service wired, the requested scopes pass through as granted.
func (s *Service) Mint(
	ctx context.Context,
	principalID, clientID string,
	requestedScopes, audience []string,
	ttl time.Duration,
) (string, jwtx.Claims, error) {
	return s.mint(ctx, principalID, clientID, "", "", requestedScopes, audience, ttl)
}

// MintForZone is Mint with zone and origin claims attached, used by the
// dispatcher after a zoned authentication.
func (s *Service) MintForZone(
	ctx context.Context,
	principalID, clientID, zoneID, origin string,
	requestedScopes, audience []string,
	ttl time.Duration,
) (string, jwtx.Claims, error) {
	return s.mint(ctx, principalID, clientID, zoneID, origin, requestedScopes, audience, ttl)
}

func (s *Service) mint(
	ctx context.Context,
	principalID, clientID, zoneID, origin string,
	requestedScopes, audience []string,
	ttl time.Duration,
) (string, jwtx.Claims, error) {
	granted := scopes.Dedupe(requestedScopes)
	if s.approvals != nil {
		approved, err := s.approvals.ApprovedScopes(ctx, principalID, clientID)
		if err != nil {
			return "", jwtx.Claims{}, fmt.Errorf("token: load approvals: %w", err)
		}
		granted = scopes.Intersect(requestedScopes, approved)
		if len(granted) == 0 {
			return "", jwtx.Claims{}, ErrNoGrantedScopes
		}
	}

	signer := s.registry.ActiveSigner()
	if signer == nil {
		return "", jwtx.Claims{}, ErrSigningUnavailable
	}

	claims := jwtx.NewAccessClaims(
		principalID, clientID, zoneID, origin,
		granted, ttl, s.issuer, audience, s.clock(),
	)

	signed, err := signer.Sign(claims)
	if err != nil {
		return "", jwtx.Claims{}, fmt.Errorf("token: sign: %w", err)
	}
	return signed, claims, nil
}

// Verify checks a serialized token: signature against the verification-key
// set by kid, then expiry against the service clock. Verification never
// mutates state. Outcomes map to jwtx.ErrExpired, jwtx.ErrInvalidSig,
// jwtx.ErrUnknownKID, or jwtx.ErrMalformed.
func (s *Service) Verify(_ context.Context, serialized string) (jwtx.Claims, error) {
	claims, err := s.registry.Verify(serialized, jwtx.VerifyOptions{
		Issuer: s.issuer,
		Now:    s.clock,
	})
	metrics.ObserveVerification(verifyResult(err))
	return claims, err
}

func verifyResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, jwtx.ErrExpired):
		return "expired"
	case errors.Is(err, jwtx.ErrInvalidSig):
		return "invalid_signature"
	case errors.Is(err, jwtx.ErrUnknownKID):
		return "unknown_kid"
	case errors.Is(err, jwtx.ErrMalformed):
		return "malformed"
	default:
		return "rejected"
	}
}

// Registry exposes the signing-key registry for administrative rotation.
func (s *Service) Registry() *jwtx.Registry {
	return s.registry
}
