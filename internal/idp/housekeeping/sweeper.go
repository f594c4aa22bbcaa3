// Package housekeeping runs the periodic maintenance sweep.
package housekeeping

import (
	"context"
	"log/slog"
	"time"

	"github.com/zonegate/identity/internal/idp/lockout"
	"github.com/zonegate/identity/internal/idp/store"
)

// Sweeper periodically purges expired approvals and idle lockout records so
// lazy expiry doesn't accumulate garbage forever.
type Sweeper struct {
	Approvals store.Approvals
	Tracker   *lockout.Tracker
	Logger    *slog.Logger
	Interval  time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewSweeper creates a sweeper with the given interval.
// If interval is 0 or negative, defaults to 1 hour.
func NewSweeper(approvals store.Approvals, tracker *lockout.Tracker, logger *slog.Logger, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 1 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Sweeper{
		Approvals: approvals,
		Tracker:   tracker,
		Logger:    logger,
		Interval:  interval,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start begins the background worker. Non-blocking; call Stop to shut the
// worker down gracefully.
func (s *Sweeper) Start() {
	go s.run()
	s.Logger.Info("housekeeping sweeper started", "interval", s.Interval)
}

// Stop shuts down the background worker, blocking until any in-progress
// sweep finishes.
func (s *Sweeper) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping sweeper stopped")
}

func (s *Sweeper) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Run a sweep immediately on startup
	s.sweep()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopCh:
			return
		}
	}
}

// sweep performs the actual cleanup. Each step is independent; a failure in
// one won't stop the others.
func (s *Sweeper) sweep() {
	ctx := context.Background()
	now := time.Now()

	if s.Approvals != nil {
		purged, err := s.Approvals.PurgeExpired(ctx, now)
		if err != nil {
			s.Logger.Error("failed to purge expired approvals", "error", err)
		} else if purged > 0 {
			s.Logger.Info("purged expired approvals", "count", purged)
		}
	}

	if s.Tracker != nil {
		if purged := s.Tracker.PurgeIdle(ctx); purged > 0 {
			s.Logger.Info("purged idle lockout records", "count", purged)
		}
	}
}
