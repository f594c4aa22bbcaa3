package approval

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zonegate/identity/internal/idp/domain"
	"github.com/zonegate/identity/internal/idp/store/drivers/memory"
)

func TestUpsertIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	db := memory.NewStore()
	svc := NewService(db.Approvals())

	a := domain.Approval{
		UserID:    "user-1",
		ClientID:  "client-1",
		Scope:     "openid",
		Status:    domain.ApprovalApproved,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, svc.Upsert(ctx, a))
	require.NoError(t, svc.Upsert(ctx, a))

	var count int
	for range svc.Approvals(ctx, "user-1", "client-1") {
		count++
	}
	require.Equal(t, 1, count)
}

func TestUpsertOverwritesStatus(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	db := memory.NewStore()
	svc := NewService(db.Approvals())

	a := domain.Approval{
		UserID:    "user-1",
		ClientID:  "client-1",
		Scope:     "openid",
		Status:    domain.ApprovalApproved,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, svc.Upsert(ctx, a))

	granted, err := svc.ApprovedScopes(ctx, "user-1", "client-1")
	require.NoError(t, err)
	require.Equal(t, []string{"openid"}, granted)

	// Flipping the decision to DENIED keeps one record but stops granting.
	a.Status = domain.ApprovalDenied
	require.NoError(t, svc.Upsert(ctx, a))

	granted, err = svc.ApprovedScopes(ctx, "user-1", "client-1")
	require.NoError(t, err)
	require.Empty(t, granted)

	var count int
	for range svc.Approvals(ctx, "user-1", "client-1") {
		count++
	}
	require.Equal(t, 1, count)
}

func TestLazyExpiry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	start := time.Unix(1_700_000_000, 0)
	now := start
	db := memory.NewStore()
	svc := NewService(db.Approvals(), WithClock(func() time.Time { return now }))

	require.NoError(t, svc.Upsert(ctx, domain.Approval{
		UserID:    "user-1",
		ClientID:  "client-1",
		Scope:     "openid",
		Status:    domain.ApprovalApproved,
		ExpiresAt: start.Add(time.Hour),
	}))

	granted, err := svc.ApprovedScopes(ctx, "user-1", "client-1")
	require.NoError(t, err)
	require.Equal(t, []string{"openid"}, granted)

	// Past expiry the row still sits in storage but is treated as absent.
	now = start.Add(2 * time.Hour)
	granted, err = svc.ApprovedScopes(ctx, "user-1", "client-1")
	require.NoError(t, err)
	require.Empty(t, granted)

	raw, err := db.Approvals().List(ctx, "user-1", "client-1")
	require.NoError(t, err)
	require.Len(t, raw, 1)
}

func TestApprovalsSequenceRestartsAgainstLiveState(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	start := time.Unix(1_700_000_000, 0)
	now := start
	db := memory.NewStore()
	svc := NewService(db.Approvals(), WithClock(func() time.Time { return now }))

	require.NoError(t, svc.Upsert(ctx, domain.Approval{
		UserID: "user-1", ClientID: "client-1", Scope: "openid",
		Status: domain.ApprovalApproved, ExpiresAt: start.Add(time.Hour),
	}))
	require.NoError(t, svc.Upsert(ctx, domain.Approval{
		UserID: "user-1", ClientID: "client-1", Scope: "profile",
		Status: domain.ApprovalApproved, ExpiresAt: start.Add(3 * time.Hour),
	}))

	seq := svc.Approvals(ctx, "user-1", "client-1")

	count := 0
	for range seq {
		count++
	}
	require.Equal(t, 2, count)

	// The same sequence value re-reads the store: after "openid" expires,
	// a second iteration only sees "profile".
	now = start.Add(2 * time.Hour)
	count = 0
	for a := range seq {
		count++
		require.Equal(t, "profile", a.Scope)
	}
	require.Equal(t, 1, count)
}

func TestApprovalsSequenceEarlyBreak(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	db := memory.NewStore()
	svc := NewService(db.Approvals())

	for _, scope := range []string{"a", "b", "c"} {
		require.NoError(t, svc.Upsert(ctx, domain.Approval{
			UserID: "user-1", ClientID: "client-1", Scope: scope,
			Status: domain.ApprovalApproved, ExpiresAt: time.Now().Add(time.Hour),
		}))
	}

	count := 0
	for range svc.Approvals(ctx, "user-1", "client-1") {
		count++
		break
	}
	require.Equal(t, 1, count)
}

func TestRevoke(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	db := memory.NewStore()
	svc := NewService(db.Approvals())

	for _, scope := range []string{"openid", "profile"} {
		require.NoError(t, svc.Upsert(ctx, domain.Approval{
			UserID: "user-1", ClientID: "client-1", Scope: scope,
			Status: domain.ApprovalApproved, ExpiresAt: time.Now().Add(time.Hour),
		}))
	}

	t.Run("revoke one scope", func(t *testing.T) {
		require.NoError(t, svc.Revoke(ctx, "user-1", "client-1", "openid"))
		granted, err := svc.ApprovedScopes(ctx, "user-1", "client-1")
		require.NoError(t, err)
		require.Equal(t, []string{"profile"}, granted)
	})

	t.Run("revoking an absent scope is a no-op", func(t *testing.T) {
		require.NoError(t, svc.Revoke(ctx, "user-1", "client-1", "openid"))
		require.NoError(t, svc.Revoke(ctx, "user-1", "client-1", "never-existed"))
	})

	t.Run("revoke all", func(t *testing.T) {
		require.NoError(t, svc.RevokeAll(ctx, "user-1", "client-1"))
		granted, err := svc.ApprovedScopes(ctx, "user-1", "client-1")
		require.NoError(t, err)
		require.Empty(t, granted)

		require.NoError(t, svc.RevokeAll(ctx, "user-1", "client-1"))
	})
}
