// Package dispatch resolves which credential validator governs a request,
// wraps it with lockout checks, and drives the validator lifecycle across
// provisioning changes.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/zonegate/identity/internal/idp/domain"
	"github.com/zonegate/identity/internal/idp/events"
	"github.com/zonegate/identity/internal/idp/lockout"
	"github.com/zonegate/identity/internal/idp/metrics"
	"github.com/zonegate/identity/internal/idp/store"
	"github.com/zonegate/identity/internal/idp/token"
	"github.com/zonegate/identity/internal/idp/validator"
)

// ErrNotStarted means Authenticate was called before Start.
var ErrNotStarted = errors.New("dispatch: dispatcher not started")

// Factory builds a validator for one provider. The bootstrap layer injects
// factories for backend types whose wire protocols live outside the core
// (LDAP, SAML).
type Factory func(p domain.IdentityProvider) (validator.CredentialValidator, error)

type cacheKey struct {
	zoneID string
	origin string
}

type cacheEntry struct {
	gen uint64
	v   validator.CredentialValidator
}

// Dispatcher is the zone-aware front door for authentication. Per request
// it resolves the delegate validator for (zone, origin), consults the
// lockout tracker before delegating, and records the outcome after.
//
// Resolution is cached per (zone, origin) under a provisioning-generation
// counter; Refresh invalidates the cache when provider metadata changes.
// Lifecycle is an explicit Start/Refresh/Shutdown handshake driven by the
// external bootstrap layer.
type Dispatcher struct {
	store     store.Store
	tracker   *lockout.Tracker
	tokens    *token.Service
	publisher *events.Publisher
	logger    *slog.Logger
	verify    validator.VerifyFunc
	clock     func() time.Time

	factories map[domain.ProviderType]Factory

	generation atomic.Uint64
	started    atomic.Bool

	mu      sync.Mutex
	cache   map[cacheKey]cacheEntry
	closers map[cacheKey]io.Closer

	throttle *zoneThrottle
}

type Option func(*Dispatcher)

// WithFactory wires a validator factory for a provider type, replacing the
// default if one exists.
func WithFactory(t domain.ProviderType, f Factory) Option {
	return func(d *Dispatcher) { d.factories[t] = f }
}

// WithTokenService enables AuthenticateAndMint.
func WithTokenService(s *token.Service) Option {
	return func(d *Dispatcher) { d.tokens = s }
}

// WithPublisher wires the audit event channel.
func WithPublisher(p *events.Publisher) Option {
	return func(d *Dispatcher) { d.publisher = p }
}

// WithVerifier replaces the default Argon2id secret verifier used by the
// built-in internal and client-credential validators.
func WithVerifier(v validator.VerifyFunc) Option {
	return func(d *Dispatcher) { d.verify = v }
}

// WithZoneThrottle caps authentication attempts per zone ahead of the
// lockout check. Zero disables the throttle.
func WithZoneThrottle(perMinute, burst int) Option {
	return func(d *Dispatcher) {
		if perMinute <= 0 {
			return
		}
		if burst <= 0 {
			burst = perMinute
		}
		d.throttle = &zoneThrottle{
			limit: rate.Limit(float64(perMinute) / 60.0),
			burst: burst,
		}
	}
}

// WithClock injects the time source, for tests.
func WithClock(clock func() time.Time) Option {
	return func(d *Dispatcher) { d.clock = clock }
}

func New(st store.Store, tracker *lockout.Tracker, logger *slog.Logger, opts ...Option) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		store:     st,
		tracker:   tracker,
		logger:    logger,
		clock:     time.Now,
		factories: make(map[domain.ProviderType]Factory),
		cache:     make(map[cacheKey]cacheEntry),
		closers:   make(map[cacheKey]io.Closer),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start wires the default validators and marks the dispatcher ready. Called
// once by the bootstrap layer before serving requests.
func (d *Dispatcher) Start() error {
	if d.started.Swap(true) {
		return nil
	}

	// Defaults for the backends the core implements itself. Injected
	// factories win.
	if _, ok := d.factories[domain.ProviderInternal]; !ok {
		d.factories[domain.ProviderInternal] = func(domain.IdentityProvider) (validator.CredentialValidator, error) {
			return validator.NewInternal(d.store.Users(), d.verify), nil
		}
	}
	if _, ok := d.factories[domain.ProviderClientCredential]; !ok {
		d.factories[domain.ProviderClientCredential] = func(domain.IdentityProvider) (validator.CredentialValidator, error) {
			return validator.NewClientCredential(d.store.Clients(), d.verify), nil
		}
	}

	d.logger.Info("dispatcher started", "factories", len(d.factories))
	return nil
}

// Refresh invalidates the validator cache. The external provisioning
// collaborator calls this when provider metadata changes; the next request
// per (zone, origin) rebuilds its validator from current metadata.
func (d *Dispatcher) Refresh() {
	d.generation.Add(1)

	d.mu.Lock()
	stale := d.drainLocked()
	d.mu.Unlock()

	closeAll(stale, d.logger)
	metrics.ObserveRefresh()
	d.logger.Info("dispatcher refreshed", "generation", d.generation.Load())
}

// Shutdown releases pooled resources held by delegate validators (LDAP
// connection pools and the like) and stops accepting requests.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.started.Store(false)

	d.mu.Lock()
	stale := d.drainLocked()
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		closeAll(stale, d.logger)
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("dispatcher shut down")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("dispatch: shutdown: %w", ctx.Err())
	}
}

// drainLocked empties the cache and returns the closers to release.
// Caller holds d.mu.
func (d *Dispatcher) drainLocked() []io.Closer {
	stale := make([]io.Closer, 0, len(d.closers))
	for _, c := range d.closers {
		stale = append(stale, c)
	}
	d.cache = make(map[cacheKey]cacheEntry)
	d.closers = make(map[cacheKey]io.Closer)
	return stale
}

func closeAll(closers []io.Closer, logger *slog.Logger) {
	for _, c := range closers {
		if err := c.Close(); err != nil {
			logger.Warn("failed to close delegate validator", "error", err)
		}
	}
}

// Resolve returns the validator governing (zoneID, origin).
//
// Fallback rules: when no active provider matches the origin, the zone's
// internal-database validator applies; when the zone itself is unknown or
// disabled, resolution fails fast with domain.ErrUnknownZone. An empty
// origin resolves to a composite over every active provider in the zone,
// in provisioning order.
func (d *Dispatcher) Resolve(ctx context.Context, zoneID, origin string) (validator.CredentialValidator, error) {
	zone, err := d.store.Zones().GetZone(ctx, zoneID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %q", domain.ErrUnknownZone, zoneID)
		}
		return nil, fmt.Errorf("dispatch: zone lookup: %w", err)
	}
	if !zone.Active {
		return nil, fmt.Errorf("%w: %q is disabled", domain.ErrUnknownZone, zoneID)
	}

	gen := d.generation.Load()
	key := cacheKey{zoneID: zoneID, origin: origin}

	d.mu.Lock()
	if entry, ok := d.cache[key]; ok && entry.gen == gen {
		d.mu.Unlock()
		return entry.v, nil
	}
	d.mu.Unlock()

	v, closer, err := d.build(ctx, zoneID, origin)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if entry, ok := d.cache[key]; ok && entry.gen == gen {
		// Lost the build race; release ours and use the cached one.
		if closer != nil {
			_ = closer.Close()
		}
		return entry.v, nil
	}
	if old, ok := d.closers[key]; ok {
		_ = old.Close()
		delete(d.closers, key)
	}
	d.cache[key] = cacheEntry{gen: gen, v: v}
	if closer != nil {
		d.closers[key] = closer
	}
	return v, nil
}

func (d *Dispatcher) build(ctx context.Context, zoneID, origin string) (validator.CredentialValidator, io.Closer, error) {
	if origin == "" {
		return d.buildComposite(ctx, zoneID)
	}

	provider, err := d.store.Providers().ActiveProvider(ctx, zoneID, origin)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Origin has no active provider in this zone: fall back to the
			// zone's internal-database validator.
			provider = domain.IdentityProvider{
				ZoneID: zoneID,
				Origin: domain.OriginInternal,
				Type:   domain.ProviderInternal,
				Active: true,
			}
		} else {
			return nil, nil, fmt.Errorf("dispatch: provider lookup: %w", err)
		}
	}

	return d.buildOne(provider)
}

func (d *Dispatcher) buildOne(provider domain.IdentityProvider) (validator.CredentialValidator, io.Closer, error) {
	factory, ok := d.factories[provider.Type]
	if !ok {
		return nil, nil, fmt.Errorf("%w: type %q for origin %q", domain.ErrUnknownProvider, provider.Type, provider.Origin)
	}

	v, err := factory(provider)
	if err != nil {
		return nil, nil, fmt.Errorf("dispatch: build validator for %s/%s: %w", provider.ZoneID, provider.Origin, err)
	}

	closer, _ := v.(io.Closer)
	return v, closer, nil
}

// buildComposite chains every active provider in the zone in provisioning
// order, falling back to a bare internal validator for empty zones.
func (d *Dispatcher) buildComposite(ctx context.Context, zoneID string) (validator.CredentialValidator, io.Closer, error) {
	providers, err := d.store.Providers().ActiveProviders(ctx, zoneID)
	if err != nil {
		return nil, nil, fmt.Errorf("dispatch: list providers: %w", err)
	}
	if len(providers) == 0 {
		return d.buildOne(domain.IdentityProvider{
			ZoneID: zoneID,
			Origin: domain.OriginInternal,
			Type:   domain.ProviderInternal,
			Active: true,
		})
	}

	members := make([]validator.CredentialValidator, 0, len(providers))
	closers := make([]io.Closer, 0, len(providers))
	for _, p := range providers {
		v, closer, err := d.buildOne(p)
		if err != nil {
			closeAll(closers, d.logger)
			return nil, nil, err
		}
		members = append(members, v)
		if closer != nil {
			closers = append(closers, closer)
		}
	}

	composite := validator.NewComposite(members...)
	if len(closers) == 0 {
		return composite, nil, nil
	}
	return composite, groupCloser(closers), nil
}

type groupCloser []io.Closer

func (g groupCloser) Close() error {
	var first error
	for _, c := range g {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
