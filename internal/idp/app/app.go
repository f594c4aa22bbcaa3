// Package app wires the identity core together. It stands in for the
// external bootstrap layer: construction here, the start/refresh/shutdown
// handshake on the dispatcher, and the audit sink consuming the event
// channel.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/zonegate/identity/internal/idp/approval"
	"github.com/zonegate/identity/internal/idp/dispatch"
	"github.com/zonegate/identity/internal/idp/domain"
	"github.com/zonegate/identity/internal/idp/events"
	"github.com/zonegate/identity/internal/idp/housekeeping"
	"github.com/zonegate/identity/internal/idp/lockout"
	"github.com/zonegate/identity/internal/idp/metrics"
	"github.com/zonegate/identity/internal/idp/store"
	"github.com/zonegate/identity/internal/idp/store/drivers/memory"
	"github.com/zonegate/identity/internal/idp/token"
	"github.com/zonegate/identity/pkg/jwtx"
	"github.com/zonegate/identity/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the identity core with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db       store.Store
	registry *jwtx.Registry

	// Services
	approvalService *approval.Service
	tokenService    *token.Service
	tracker         *lockout.Tracker
	dispatcher      *dispatch.Dispatcher
	publisher       *events.Publisher
	sweeper         *housekeeping.Sweeper

	auditDone chan struct{}
}

// New creates an Application with all dependencies initialized. The store
// defaults to the in-memory driver; a persistence-backed implementation is
// injected by wrapping New in the real bootstrap.
func New(cfg Config, db store.Store) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "identity-core",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
		auditDone: make(chan struct{}),
	}

	if db == nil {
		db = memory.NewStore()
	}
	app.db = db

	metrics.Init()

	registry, err := initSigningKeys(cfg)
	if err != nil {
		return nil, err
	}
	app.registry = registry

	app.initServices()

	return app, nil
}

func initSigningKeys(cfg Config) (*jwtx.Registry, error) {
	kid, err := jwtx.NewKID()
	if err != nil {
		return nil, err
	}
	signer, err := jwtx.GenerateSigner(cfg.Algorithm, kid, cfg.RSABits)
	if err != nil {
		return nil, fmt.Errorf("app: failed to initialize signing key: %w", err)
	}

	registry := jwtx.NewRegistry()
	if err := registry.Rotate(signer); err != nil {
		return nil, fmt.Errorf("app: failed to install signing key: %w", err)
	}
	return registry, nil
}

func (app *Application) initServices() {
	app.approvalService = approval.NewService(app.db.Approvals())

	app.tokenService = token.NewService(
		app.registry,
		app.cfg.Issuer,
		token.WithApprovals(app.approvalService),
	)

	app.tracker = lockout.New(
		domain.LockoutPolicy{
			MaxFailures:   app.cfg.LockoutMaxFailures,
			Window:        app.cfg.LockoutWindow,
			LockoutPeriod: app.cfg.LockoutPeriod,
		},
		lockout.WithZonePolicies(app.zonePolicy),
	)

	app.publisher = events.NewPublisher(app.cfg.AuditBuffer)

	app.dispatcher = dispatch.New(
		app.db,
		app.tracker,
		app.logger,
		dispatch.WithTokenService(app.tokenService),
		dispatch.WithPublisher(app.publisher),
		dispatch.WithZoneThrottle(app.cfg.ZoneRatePerMinute, app.cfg.ZoneRateBurst),
	)

	app.sweeper = housekeeping.NewSweeper(
		app.db.Approvals(),
		app.tracker,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

// zonePolicy resolves the per-zone lockout override from provisioning
// metadata.
func (app *Application) zonePolicy(ctx context.Context, zoneID string) (domain.LockoutPolicy, bool) {
	zone, err := app.db.Zones().GetZone(ctx, zoneID)
	if err != nil || zone.LockoutPolicy == nil {
		return domain.LockoutPolicy{}, false
	}
	return *zone.LockoutPolicy, true
}

// Dispatcher exposes the authentication front door to the embedding layer.
func (app *Application) Dispatcher() *dispatch.Dispatcher { return app.dispatcher }

// Tokens exposes the token service to the embedding layer.
func (app *Application) Tokens() *token.Service { return app.tokenService }

// Approvals exposes the consent ledger to the embedding layer.
func (app *Application) Approvals() *approval.Service { return app.approvalService }

// Store exposes the backing store, mainly for provisioning seeds.
func (app *Application) Store() store.Store { return app.db }

// Refresh propagates a provisioning change signal to the dispatcher.
func (app *Application) Refresh() { app.dispatcher.Refresh() }

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	if err := app.dispatcher.Start(); err != nil {
		return fmt.Errorf("app: start dispatcher: %w", err)
	}
	app.sweeper.Start()
	go app.consumeAudit()

	app.logger.Info("identity core started",
		"issuer", app.cfg.Issuer,
		"algorithm", app.cfg.Algorithm,
		"version", BuildVersion,
	)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	sig := <-shutdown
	app.logger.Info("shutdown signal received", "signal", sig)

	return app.Shutdown()
}

// Shutdown tears the core down in reverse dependency order.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down identity core...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	var errs []error
	if err := app.dispatcher.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	app.sweeper.Stop()

	app.publisher.Close()
	<-app.auditDone

	if dropped := app.publisher.Dropped(); dropped > 0 {
		app.logger.Warn("audit events dropped", "count", dropped)
	}

	app.logger.Info("identity core stopped")
	return errors.Join(errs...)
}

// consumeAudit is the default audit sink: structured log lines. A real
// deployment replaces this with its own consumer of Publisher.Events.
func (app *Application) consumeAudit() {
	defer close(app.auditDone)

	for e := range app.publisher.Events() {
		app.logger.Info("audit",
			"event", e.Type.String(),
			"zone", e.Key.ZoneID,
			"origin", e.Key.Origin,
			"principal", e.Key.Principal,
			"reason", e.Reason,
			"at", e.At,
		)
	}
}
