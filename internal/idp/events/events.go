// Package events carries authentication audit events from validator call
// sites to an audit sink over an explicit channel. This replaces implicit
// interception: each call site publishes, the sink consumes.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/zonegate/identity/internal/idp/domain"
)

// Type classifies an audit event.
type Type int

const (
	AuthSuccess Type = iota
	AuthFailure
	AuthLocked
)

func (t Type) String() string {
	switch t {
	case AuthSuccess:
		return "auth.success"
	case AuthLocked:
		return "auth.locked"
	default:
		return "auth.failure"
	}
}

// Event is one authentication attempt observation.
type Event struct {
	Type   Type
	Key    domain.PrincipalKey
	Reason string
	At     time.Time
}

// Publisher fans events into a buffered channel consumed by the audit sink
// (an external collaborator). Publishing never blocks the authentication
// path: when the sink falls behind, events are dropped and counted.
type Publisher struct {
	ch      chan Event
	dropped atomic.Uint64

	// mu guards the closed flag against in-flight sends so Close can never
	// race a Publish into a closed channel.
	mu     sync.RWMutex
	closed bool
}

// NewPublisher creates a publisher with the given buffer size.
func NewPublisher(buffer int) *Publisher {
	if buffer <= 0 {
		buffer = 256
	}
	return &Publisher{ch: make(chan Event, buffer)}
}

// Publish enqueues an event, dropping it if the buffer is full or the
// publisher is closed.
func (p *Publisher) Publish(e Event) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.dropped.Add(1)
		return
	}
	select {
	case p.ch <- e:
	default:
		p.dropped.Add(1)
	}
}

// Events is the consumer side. The channel is closed by Close.
func (p *Publisher) Events() <-chan Event {
	return p.ch
}

// Dropped reports how many events were discarded because the sink lagged.
func (p *Publisher) Dropped() uint64 {
	return p.dropped.Load()
}

// Close stops the stream. Publishes after Close are counted as dropped.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true
	close(p.ch)
}
