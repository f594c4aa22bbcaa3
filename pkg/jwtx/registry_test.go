package jwtx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func generateTestSigner(t *testing.T, algorithm string) Signer {
	t.Helper()

	kid, err := NewKID()
	require.NoError(t, err)
	signer, err := GenerateSigner(algorithm, kid, 2048)
	require.NoError(t, err)
	return signer
}

func TestRegistryEmpty(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	require.Nil(t, r.ActiveSigner())
	require.Empty(t, r.ActiveKID())
	require.Empty(t, r.KIDs())
	require.Empty(t, r.JWKS().Keys)
}

func TestRegistryRotateRetainsVerificationKeys(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	first := generateTestSigner(t, AlgorithmEdDSA)
	second := generateTestSigner(t, AlgorithmEdDSA)

	require.NoError(t, r.Rotate(first))
	require.Equal(t, first.KID(), r.ActiveKID())

	require.NoError(t, r.Rotate(second))
	require.Equal(t, second.KID(), r.ActiveKID())

	// The prior key stays available for verification.
	require.True(t, r.HasKey(first.KID()))
	require.Equal(t, []string{first.KID(), second.KID()}, r.KIDs())

	jwks := r.JWKS()
	require.Len(t, jwks.Keys, 2)
	require.Equal(t, first.KID(), jwks.Keys[0].Kid)
	require.Equal(t, second.KID(), jwks.Keys[1].Kid)
}

func TestRegistryEvict(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	first := generateTestSigner(t, AlgorithmEdDSA)
	second := generateTestSigner(t, AlgorithmEdDSA)
	require.NoError(t, r.Rotate(first))
	require.NoError(t, r.Rotate(second))

	t.Run("evicting the active key is refused", func(t *testing.T) {
		require.ErrorIs(t, r.Evict(second.KID()), ErrActiveKey)
	})

	t.Run("evicting an unknown kid fails", func(t *testing.T) {
		require.ErrorIs(t, r.Evict("sk-missing"), ErrNoKey)
	})

	t.Run("evicting a retired key removes it", func(t *testing.T) {
		require.NoError(t, r.Evict(first.KID()))
		require.False(t, r.HasKey(first.KID()))
		require.Equal(t, []string{second.KID()}, r.KIDs())
	})
}

func TestRegistryVerify(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	signer := generateTestSigner(t, AlgorithmEdDSA)
	require.NoError(t, r.Rotate(signer))

	now := time.Unix(1_700_000_000, 0)
	claims := NewAccessClaims("user-1", "client-1", "zone-a", "internal",
		[]string{"openid"}, time.Hour, "issuer", []string{"api"}, now)
	signed, err := signer.Sign(claims)
	require.NoError(t, err)

	clock := func() time.Time { return now.Add(time.Minute) }

	t.Run("valid token round-trips", func(t *testing.T) {
		got, err := r.Verify(signed, VerifyOptions{Issuer: "issuer", Audience: []string{"api"}, Now: clock})
		require.NoError(t, err)
		require.Equal(t, "user-1", got.Subject)
		require.Equal(t, "zone-a", got.ZoneID)
	})

	t.Run("unknown kid", func(t *testing.T) {
		stranger := generateTestSigner(t, AlgorithmEdDSA)
		foreign, err := stranger.Sign(claims)
		require.NoError(t, err)
		_, err = r.Verify(foreign, VerifyOptions{Now: clock})
		require.ErrorIs(t, err, ErrUnknownKID)
	})

	t.Run("algorithm mismatch for a known kid", func(t *testing.T) {
		es, err := GenerateSigner(AlgorithmES256, signer.KID(), 0)
		require.NoError(t, err)
		crossAlg, err := es.Sign(claims)
		require.NoError(t, err)
		_, err = r.Verify(crossAlg, VerifyOptions{Now: clock})
		require.ErrorIs(t, err, ErrAlgMismatch)
	})

	t.Run("audience mismatch", func(t *testing.T) {
		_, err := r.Verify(signed, VerifyOptions{Audience: []string{"other"}, Now: clock})
		require.ErrorIs(t, err, ErrAudience)
	})

	t.Run("issuer mismatch", func(t *testing.T) {
		_, err := r.Verify(signed, VerifyOptions{Issuer: "someone-else", Now: clock})
		require.ErrorIs(t, err, ErrIssuer)
	})

	t.Run("expired", func(t *testing.T) {
		late := func() time.Time { return now.Add(2 * time.Hour) }
		_, err := r.Verify(signed, VerifyOptions{Now: late})
		require.ErrorIs(t, err, ErrExpired)
	})

	t.Run("leeway admits small skew", func(t *testing.T) {
		late := func() time.Time { return now.Add(time.Hour + 10*time.Second) }
		_, err := r.Verify(signed, VerifyOptions{Now: late, Leeway: 30 * time.Second})
		require.NoError(t, err)
	})

	t.Run("garbage is malformed", func(t *testing.T) {
		_, err := r.Verify("garbage", VerifyOptions{Now: clock})
		require.ErrorIs(t, err, ErrMalformed)
	})
}

func TestRegistryVerifyAfterEviction(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	old := generateTestSigner(t, AlgorithmEdDSA)
	require.NoError(t, r.Rotate(old))

	claims := NewAccessClaims("user-1", "client-1", "", "",
		nil, time.Hour, "issuer", nil, time.Now())
	signed, err := old.Sign(claims)
	require.NoError(t, err)

	next := generateTestSigner(t, AlgorithmEdDSA)
	require.NoError(t, r.Rotate(next))

	_, err = r.Verify(signed, VerifyOptions{})
	require.NoError(t, err)

	require.NoError(t, r.Evict(old.KID()))
	_, err = r.Verify(signed, VerifyOptions{})
	require.ErrorIs(t, err, ErrUnknownKID)
}

func TestRegistryRotateAcrossAlgorithms(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	for _, alg := range []string{AlgorithmEdDSA, AlgorithmES256, AlgorithmRS256} {
		signer := generateTestSigner(t, alg)
		require.NoError(t, r.Rotate(signer))

		claims := NewAccessClaims("user-1", "client-1", "", "",
			nil, time.Hour, "issuer", nil, time.Now())
		signed, err := signer.Sign(claims)
		require.NoError(t, err)

		got, err := r.Verify(signed, VerifyOptions{})
		require.NoError(t, err)
		require.Equal(t, "user-1", got.Subject)
	}

	require.Len(t, r.KIDs(), 3)
}
