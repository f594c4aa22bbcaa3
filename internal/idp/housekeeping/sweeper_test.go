package housekeeping

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zonegate/identity/internal/idp/domain"
	"github.com/zonegate/identity/internal/idp/lockout"
	"github.com/zonegate/identity/internal/idp/store/drivers/memory"
)

func TestSweeperPurgesOnStartup(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	db := memory.NewStore()
	require.NoError(t, db.Approvals().Upsert(ctx, domain.Approval{
		UserID: "u1", ClientID: "c1", Scope: "openid",
		Status: domain.ApprovalApproved, ExpiresAt: time.Now().Add(-time.Minute),
	}))

	tracker := lockout.New(domain.DefaultLockoutPolicy)
	s := NewSweeper(db.Approvals(), tracker, nil, time.Hour)

	s.Start()
	s.Stop()

	rows, err := db.Approvals().List(ctx, "u1", "c1")
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestSweeperStopIsClean(t *testing.T) {
	t.Parallel()

	tracker := lockout.New(domain.DefaultLockoutPolicy)
	s := NewSweeper(memory.NewStore().Approvals(), tracker, nil, 10*time.Millisecond)

	s.Start()
	time.Sleep(50 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestSweeperDefaultsInterval(t *testing.T) {
	t.Parallel()

	s := NewSweeper(nil, nil, nil, 0)
	require.Equal(t, time.Hour, s.Interval)
}
