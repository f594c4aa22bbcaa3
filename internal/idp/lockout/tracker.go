// Package lockout implements the sliding-window failure counter that locks
// out abusive principals.
package lockout

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/zonegate/identity/internal/idp/domain"
)

// Decision is the outcome of a pre-delegation lockout check.
type Decision struct {
	Proceed     bool
	LockedUntil time.Time
}

// PolicyFunc resolves the lockout policy override for a zone. Returning a
// disabled policy (MaxFailures <= 0) means "use the global default".
type PolicyFunc func(ctx context.Context, zoneID string) (domain.LockoutPolicy, bool)

const stripeCount = 64

type stripe struct {
	mu      sync.Mutex
	records map[domain.PrincipalKey]*domain.LockoutRecord
}

// Tracker maintains one LockoutRecord per principal key.
//
// State machine per key:
//
//	Unlocked -(failure)-> Unlocked[count++]
//	Unlocked -(count >= threshold)-> Locked
//	Locked   -(now >= lockedUntil)-> Unlocked[count=0]
//	any      -(success)-> Unlocked[count=0]
//
// Keys are striped across independent mutexes so distinct principals never
// contend. The check happens before delegate I/O and the record after, as
// two short critical sections; no lock is ever held across a backend call.
type Tracker struct {
	global     domain.LockoutPolicy
	zonePolicy PolicyFunc
	clock      func() time.Time

	stripes [stripeCount]stripe
}

type Option func(*Tracker)

// WithClock injects the time source, for tests.
func WithClock(clock func() time.Time) Option {
	return func(t *Tracker) { t.clock = clock }
}

// WithZonePolicies wires per-zone policy overrides. Exactly one policy is
// effective per attempt: the zone's when present, else the global default.
func WithZonePolicies(fn PolicyFunc) Option {
	return func(t *Tracker) { t.zonePolicy = fn }
}

func New(global domain.LockoutPolicy, opts ...Option) *Tracker {
	t := &Tracker{
		global: global,
		clock:  time.Now,
	}
	for i := range t.stripes {
		t.stripes[i].records = make(map[domain.PrincipalKey]*domain.LockoutRecord)
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// CheckAttempt is called before delegating to a validator. A locked key is
// rejected without consulting any backend; a lock whose deadline has passed
// resets the record to the empty state and proceeds.
func (t *Tracker) CheckAttempt(ctx context.Context, key domain.PrincipalKey) Decision {
	policy := t.policyFor(ctx, key.ZoneID)
	if !policy.Enabled() {
		// No policy configured: the one explicit fail-open path.
		return Decision{Proceed: true}
	}

	now := t.clock()
	st := t.stripeFor(key)
	st.mu.Lock()
	defer st.mu.Unlock()

	rec, ok := st.records[key]
	if !ok {
		return Decision{Proceed: true}
	}

	if !rec.LockedUntil.IsZero() {
		if now.Before(rec.LockedUntil) {
			return Decision{Proceed: false, LockedUntil: rec.LockedUntil}
		}
		// Lock elapsed: back to Unlocked with count=0.
		delete(st.records, key)
	}

	return Decision{Proceed: true}
}

// RecordFailure counts a failed attempt. Failures older than the rolling
// window are dropped before incrementing, so the count is a true sliding
// window rather than a fixed bucket. Returns whether this failure engaged
// the lock and the deadline if so.
func (t *Tracker) RecordFailure(ctx context.Context, key domain.PrincipalKey) (bool, time.Time) {
	policy := t.policyFor(ctx, key.ZoneID)
	if !policy.Enabled() {
		return false, time.Time{}
	}

	now := t.clock()
	st := t.stripeFor(key)
	st.mu.Lock()
	defer st.mu.Unlock()

	rec, ok := st.records[key]
	if !ok {
		rec = &domain.LockoutRecord{Key: key}
		st.records[key] = rec
	}

	cutoff := now.Add(-policy.Window)
	kept := rec.Failures[:0]
	for _, ts := range rec.Failures {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	rec.Failures = append(kept, now)

	if len(rec.Failures) >= policy.MaxFailures {
		rec.LockedUntil = now.Add(policy.LockoutPeriod)
		return true, rec.LockedUntil
	}
	return false, time.Time{}
}

// RecordSuccess clears the record: count back to zero, no lock.
func (t *Tracker) RecordSuccess(_ context.Context, key domain.PrincipalKey) {
	st := t.stripeFor(key)
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.records, key)
}

// Record returns a copy of the current record for inspection.
func (t *Tracker) Record(key domain.PrincipalKey) (domain.LockoutRecord, bool) {
	st := t.stripeFor(key)
	st.mu.Lock()
	defer st.mu.Unlock()

	rec, ok := st.records[key]
	if !ok {
		return domain.LockoutRecord{}, false
	}
	out := domain.LockoutRecord{
		Key:         rec.Key,
		Failures:    append([]time.Time(nil), rec.Failures...),
		LockedUntil: rec.LockedUntil,
	}
	return out, true
}

// PurgeIdle drops records holding neither a live lock nor a windowed
// failure. Called by the housekeeping sweep.
func (t *Tracker) PurgeIdle(ctx context.Context) int {
	now := t.clock()
	purged := 0

	for i := range t.stripes {
		st := &t.stripes[i]
		st.mu.Lock()
		for key, rec := range st.records {
			policy := t.policyFor(ctx, key.ZoneID)
			if rec.Locked(now) {
				continue
			}
			live := false
			cutoff := now.Add(-policy.Window)
			for _, ts := range rec.Failures {
				if ts.After(cutoff) {
					live = true
					break
				}
			}
			if !live {
				delete(st.records, key)
				purged++
			}
		}
		st.mu.Unlock()
	}
	return purged
}

// policyFor resolves the single effective policy for a zone.
func (t *Tracker) policyFor(ctx context.Context, zoneID string) domain.LockoutPolicy {
	if t.zonePolicy != nil {
		if policy, ok := t.zonePolicy(ctx, zoneID); ok {
			return policy
		}
	}
	return t.global
}

func (t *Tracker) stripeFor(key domain.PrincipalKey) *stripe {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key.ZoneID))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(key.Origin))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(key.Principal))
	return &t.stripes[h.Sum32()%stripeCount]
}
