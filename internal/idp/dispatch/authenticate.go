package dispatch

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/zonegate/identity/internal/idp/domain"
	"github.com/zonegate/identity/internal/idp/events"
	"github.com/zonegate/identity/internal/idp/metrics"
	"github.com/zonegate/identity/internal/idp/scopes"
	"github.com/zonegate/identity/pkg/jwtx"
	"github.com/zonegate/identity/pkg/slogx"
)

// Authenticate runs one credential check end to end: throttle, lockout
// check, delegate validation, outcome recording, audit event. The returned
// error reports configuration problems (unknown zone, unwired provider);
// credential outcomes live in the result.
func (d *Dispatcher) Authenticate(ctx context.Context, req domain.CredentialRequest) (domain.AuthenticationResult, error) {
	if !d.started.Load() {
		return domain.AuthenticationResult{}, ErrNotStarted
	}

	key := domain.PrincipalKey{ZoneID: req.ZoneID, Origin: req.Origin, Principal: req.Principal}

	if d.throttle != nil && !d.throttle.allow(req.ZoneID) {
		res := domain.FailureResult("authentication rate exceeded")
		d.publish(events.AuthFailure, key, res.FailureReason)
		metrics.ObserveAttempt(req.ZoneID, req.Origin, "throttled")
		return res, nil
	}

	// Window check before delegation: a locked principal is rejected
	// without consulting any backend and without touching the counter.
	if decision := d.tracker.CheckAttempt(ctx, key); !decision.Proceed {
		d.publish(events.AuthLocked, key, "account locked")
		metrics.ObserveAttempt(req.ZoneID, req.Origin, domain.OutcomeLocked.String())
		return domain.LockedResult(decision.LockedUntil), nil
	}

	delegate, err := d.Resolve(ctx, req.ZoneID, req.Origin)
	if err != nil {
		return domain.AuthenticationResult{}, err
	}

	// Delegate I/O happens with no lockout lock held. Delegates pick the
	// request-scoped logger out of the context.
	ctx = slogx.WithContext(ctx, d.logger.With("zone", req.ZoneID, "origin", req.Origin))
	res := delegate.Validate(ctx, req)

	if res.Succeeded() {
		d.tracker.RecordSuccess(ctx, key)
		d.publish(events.AuthSuccess, key, "")
		metrics.ObserveAttempt(req.ZoneID, req.Origin, domain.OutcomeSuccess.String())
		return res, nil
	}

	locked, until := d.tracker.RecordFailure(ctx, key)
	if locked {
		metrics.ObserveLockout(req.ZoneID)
		d.logger.Info("lockout engaged",
			"zone", req.ZoneID,
			"origin", req.Origin,
			"locked_until", until.UTC().Format(time.RFC3339),
		)
	}
	d.publish(events.AuthFailure, key, res.FailureReason)
	metrics.ObserveAttempt(req.ZoneID, req.Origin, domain.OutcomeFailure.String())
	return res, nil
}

// AuthenticateAndMint authenticates and, on success, mints an access token
// carrying the granted scopes for the client. With no token service wired
// the result is returned without a token.
func (d *Dispatcher) AuthenticateAndMint(
	ctx context.Context,
	req domain.CredentialRequest,
	clientID string,
	audience []string,
	ttl time.Duration,
) (domain.AuthenticationResult, string, jwtx.Claims, error) {
	res, err := d.Authenticate(ctx, req)
	if err != nil || !res.Succeeded() {
		return res, "", jwtx.Claims{}, err
	}
	if d.tokens == nil {
		return res, "", jwtx.Claims{}, nil
	}

	signed, claims, err := d.tokens.MintForZone(
		ctx,
		res.PrincipalID, clientID, req.ZoneID, req.Origin,
		req.RequestedScopes, audience, ttl,
	)
	if err != nil {
		return res, "", jwtx.Claims{}, err
	}
	metrics.ObserveMint()
	d.logger.Debug("access token minted",
		"principal", res.PrincipalID,
		"client", clientID,
		"scope", scopes.Join(claims.Scope),
	)
	return res, signed, claims, nil
}

func (d *Dispatcher) publish(t events.Type, key domain.PrincipalKey, reason string) {
	if d.publisher == nil {
		return
	}
	d.publisher.Publish(events.Event{
		Type:   t,
		Key:    key,
		Reason: reason,
		At:     d.clock(),
	})
}

// zoneThrottle caps attempts per zone with one token bucket per zone,
// created on first use.
type zoneThrottle struct {
	limit    rate.Limit
	burst    int
	limiters sync.Map // zoneID -> *rate.Limiter
}

func (t *zoneThrottle) allow(zoneID string) bool {
	if l, ok := t.limiters.Load(zoneID); ok {
		return l.(*rate.Limiter).Allow()
	}
	l, _ := t.limiters.LoadOrStore(zoneID, rate.NewLimiter(t.limit, t.burst))
	return l.(*rate.Limiter).Allow()
}
