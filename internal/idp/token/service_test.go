package token

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zonegate/identity/internal/idp/approval"
	"github.com/zonegate/identity/internal/idp/domain"
	"github.com/zonegate/identity/internal/idp/store/drivers/memory"
	"github.com/zonegate/identity/pkg/jwtx"
)

func newTestRegistry(t *testing.T) (*jwtx.Registry, string) {
	t.Helper()

	kid, err := jwtx.NewKID()
	require.NoError(t, err)
	signer, err := jwtx.GenerateSigner(jwtx.AlgorithmEdDSA, kid, 0)
	require.NoError(t, err)

	registry := jwtx.NewRegistry()
	require.NoError(t, registry.Rotate(signer))
	return registry, kid
}

func TestMintVerifyRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	registry, _ := newTestRegistry(t)
	svc := NewService(registry, "zonegate")

	signed, minted, err := svc.Mint(ctx, "user-1", "client-1",
		[]string{"openid", "profile"}, []string{"api"}, 15*time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, signed)
	require.NotEmpty(t, minted.ID)

	claims, err := svc.Verify(ctx, signed)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.Subject)
	require.Equal(t, "client-1", claims.ClientID)
	require.Equal(t, "zonegate", claims.Issuer)
	require.Equal(t, []string{"openid", "profile"}, claims.Scope)
	require.Equal(t, minted.ID, claims.ID)
}

func TestMintForZoneCarriesZoneClaims(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	registry, _ := newTestRegistry(t)
	svc := NewService(registry, "zonegate")

	signed, _, err := svc.MintForZone(ctx, "user-1", "client-1", "zone-a", "ldap",
		[]string{"openid"}, nil, 15*time.Minute)
	require.NoError(t, err)

	claims, err := svc.Verify(ctx, signed)
	require.NoError(t, err)
	require.Equal(t, "zone-a", claims.ZoneID)
	require.Equal(t, "ldap", claims.Origin)
}

func TestVerifyExpiryBoundary(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	start := time.Unix(1_700_000_000, 0)
	now := start
	registry, _ := newTestRegistry(t)
	svc := NewService(registry, "zonegate", WithClock(func() time.Time { return now }))

	signed, _, err := svc.Mint(ctx, "user-1", "client-1",
		[]string{"openid"}, nil, 300*time.Second)
	require.NoError(t, err)

	t.Run("valid just before expiry", func(t *testing.T) {
		now = start.Add(299 * time.Second)
		_, err := svc.Verify(ctx, signed)
		require.NoError(t, err)
	})

	t.Run("expired just after expiry", func(t *testing.T) {
		now = start.Add(301 * time.Second)
		_, err := svc.Verify(ctx, signed)
		require.ErrorIs(t, err, jwtx.ErrExpired)
	})
}

func TestRotationKeepsOldTokensVerifiable(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	registry, oldKID := newTestRegistry(t)
	svc := NewService(registry, "zonegate")

	oldToken, _, err := svc.Mint(ctx, "user-1", "client-1",
		[]string{"openid"}, nil, time.Hour)
	require.NoError(t, err)

	newKID, err := jwtx.NewKID()
	require.NoError(t, err)
	next, err := jwtx.GenerateSigner(jwtx.AlgorithmEdDSA, newKID, 0)
	require.NoError(t, err)
	require.NoError(t, registry.Rotate(next))
	require.Equal(t, newKID, registry.ActiveKID())

	// Tokens signed before the rotation still verify.
	_, err = svc.Verify(ctx, oldToken)
	require.NoError(t, err)

	// New mints use the new key, and both kids are in the verification set.
	newToken, _, err := svc.Mint(ctx, "user-1", "client-1",
		[]string{"openid"}, nil, time.Hour)
	require.NoError(t, err)
	_, err = svc.Verify(ctx, newToken)
	require.NoError(t, err)
	require.Equal(t, []string{oldKID, newKID}, registry.KIDs())

	// Evicting the retired key invalidates the tokens it signed.
	require.NoError(t, registry.Evict(oldKID))
	_, err = svc.Verify(ctx, oldToken)
	require.ErrorIs(t, err, jwtx.ErrUnknownKID)
	_, err = svc.Verify(ctx, newToken)
	require.NoError(t, err)
}

func TestMintWithoutActiveKey(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc := NewService(jwtx.NewRegistry(), "zonegate")
	_, _, err := svc.Mint(ctx, "user-1", "client-1", []string{"openid"}, nil, time.Hour)
	require.ErrorIs(t, err, ErrSigningUnavailable)
}

func TestVerifyRejectsForeignSignature(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	registry, kid := newTestRegistry(t)
	svc := NewService(registry, "zonegate")

	// A different key under the same kid produces a signature the
	// verification set must reject.
	imposter, err := jwtx.GenerateSigner(jwtx.AlgorithmEdDSA, kid, 0)
	require.NoError(t, err)
	claims := jwtx.NewAccessClaims("user-1", "client-1", "", "",
		[]string{"openid"}, time.Hour, "zonegate", nil, time.Now())
	forged, err := imposter.Sign(claims)
	require.NoError(t, err)

	_, err = svc.Verify(ctx, forged)
	require.ErrorIs(t, err, jwtx.ErrInvalidSig)
}

func TestVerifyIssuerMismatch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	registry, _ := newTestRegistry(t)
	minter := NewService(registry, "other-issuer")
	verifier := NewService(registry, "zonegate")

	signed, _, err := minter.Mint(ctx, "user-1", "client-1", []string{"openid"}, nil, time.Hour)
	require.NoError(t, err)

	_, err = verifier.Verify(ctx, signed)
	require.ErrorIs(t, err, jwtx.ErrIssuer)
}

func TestVerifyMalformed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	registry, _ := newTestRegistry(t)
	svc := NewService(registry, "zonegate")

	_, err := svc.Verify(ctx, "not-a-token")
	require.ErrorIs(t, err, jwtx.ErrMalformed)
}

func TestMintIntersectsApprovals(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	db := memory.NewStore()
	approvals := approval.NewService(db.Approvals())
	registry, _ := newTestRegistry(t)
	svc := NewService(registry, "zonegate", WithApprovals(approvals))

	grant := func(scope string, status domain.ApprovalStatus) {
		require.NoError(t, approvals.Upsert(ctx, domain.Approval{
			UserID:    "user-1",
			ClientID:  "client-1",
			Scope:     scope,
			Status:    status,
			ExpiresAt: time.Now().Add(time.Hour),
		}))
	}
	grant("openid", domain.ApprovalApproved)
	grant("profile", domain.ApprovalApproved)
	grant("admin", domain.ApprovalDenied)

	t.Run("granted is the approved intersection", func(t *testing.T) {
		signed, minted, err := svc.Mint(ctx, "user-1", "client-1",
			[]string{"openid", "admin", "email"}, nil, time.Hour)
		require.NoError(t, err)
		require.Equal(t, []string{"openid"}, minted.Scope)

		claims, err := svc.Verify(ctx, signed)
		require.NoError(t, err)
		require.Equal(t, []string{"openid"}, claims.Scope)
	})

	t.Run("empty intersection refuses to mint", func(t *testing.T) {
		_, _, err := svc.Mint(ctx, "user-1", "client-1",
			[]string{"admin", "email"}, nil, time.Hour)
		require.ErrorIs(t, err, ErrNoGrantedScopes)
	})

	t.Run("unknown principal has no approvals", func(t *testing.T) {
		_, _, err := svc.Mint(ctx, "user-2", "client-1",
			[]string{"openid"}, nil, time.Hour)
		require.ErrorIs(t, err, ErrNoGrantedScopes)
	})
}

func TestMintDedupesRequestedScopes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	registry, _ := newTestRegistry(t)
	svc := NewService(registry, "zonegate")

	_, minted, err := svc.Mint(ctx, "user-1", "client-1",
		[]string{"openid", "openid", "profile"}, nil, time.Hour)
	require.NoError(t, err)
	require.Equal(t, []string{"openid", "profile"}, minted.Scope)
}
