// Package inproc provides an in-process transport.Channel pair for tests and
// examples. It reproduces the semantics that matter about the signal backend —
// bounded buffering with silent overflow loss, per-kind emission, address
// checking — while staying deterministic and controllable: tests can shrink
// the buffer to force coalescing or inject targeted drops.
package inproc

import (
	"sync"

	"go.uber.org/atomic"

	"github.com/rdelicado/minitalk/transport"
)

// Endpoint is one end of an in-process notification pair.
// Emitting on one endpoint delivers to the other.
type Endpoint struct {
	addr transport.PeerAddress
	peer *Endpoint

	mu       sync.RWMutex // guards closed vs. concurrent emits from the peer
	closed   bool
	incoming chan transport.Notification

	seq     *atomic.Uint64
	dropped *atomic.Uint64
	drop    func(transport.Kind) bool
}

// Option tunes a pair at construction time.
type Option func(*config)

type config struct {
	buffer int
	dropA  func(transport.Kind) bool // applied to emissions from A towards B
	dropB  func(transport.Kind) bool // applied to emissions from B towards A
}

// WithBuffer sets how many undelivered notifications each endpoint holds.
// A small buffer plus a fast sender is the coalescing hazard in miniature:
// overflow notifications vanish without a trace, exactly like a pending
// signal that was already pending.
func WithBuffer(n int) Option {
	return func(c *config) { c.buffer = n }
}

// WithDropTowardsB installs a loss hook on the A→B direction.
// Return true to silently discard the emission. Used by tests to force the
// acknowledgment layer's retry path to engage.
func WithDropTowardsB(fn func(transport.Kind) bool) Option {
	return func(c *config) { c.dropA = fn }
}

// WithDropTowardsA installs a loss hook on the B→A direction.
func WithDropTowardsA(fn func(transport.Kind) bool) Option {
	return func(c *config) { c.dropB = fn }
}

// NewPair creates two connected endpoints with synthetic addresses 1 and 2.
// Emitting to anything other than the peer's address fails with
// transport.ErrAddressUnreachable, mirroring kill(2) on a dead PID.
func NewPair(opts ...Option) (*Endpoint, *Endpoint) {
	cfg := config{buffer: 64}
	for _, opt := range opts {
		opt(&cfg)
	}

	a := newEndpoint(1, cfg.buffer, cfg.dropA)
	b := newEndpoint(2, cfg.buffer, cfg.dropB)
	a.peer = b
	b.peer = a
	return a, b
}

func newEndpoint(addr transport.PeerAddress, buffer int, drop func(transport.Kind) bool) *Endpoint {
	return &Endpoint{
		addr:     addr,
		incoming: make(chan transport.Notification, buffer),
		seq:      atomic.NewUint64(0),
		dropped:  atomic.NewUint64(0),
		drop:     drop,
	}
}

// Addr returns this endpoint's synthetic address.
func (e *Endpoint) Addr() transport.PeerAddress {
	return e.addr
}

// Emit delivers one notification to the peer endpoint.
// The drop hook and buffer overflow both lose the notification silently —
// the emitter still sees success, as it would with a coalesced signal.
func (e *Endpoint) Emit(target transport.PeerAddress, kind transport.Kind) error {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return transport.ErrChannelClosed
	}

	if target != e.peer.addr {
		return transport.ErrAddressUnreachable
	}

	if e.drop != nil && e.drop(kind) {
		return nil // lost in transit, emitter none the wiser
	}

	return e.peer.deliver(transport.Notification{
		Kind:   kind,
		Source: e.addr,
	})
}

// deliver places a notification in this endpoint's buffer.
// Called by the peer's Emit, so it must hold the read lock around the
// closed check and the channel send together — otherwise Close could
// close the channel between the two.
func (e *Endpoint) deliver(n transport.Notification) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		return transport.ErrAddressUnreachable
	}

	n.Seq = e.seq.Inc()

	select {
	case e.incoming <- n:
	default:
		// buffer full: the notification is gone, only the counter knows
		e.dropped.Inc()
	}
	return nil
}

// Notifications returns the stream of received notifications.
func (e *Endpoint) Notifications() <-chan transport.Notification {
	return e.incoming
}

// Dropped reports how many notifications were lost to buffer overflow on
// this endpoint. Tests use it to prove the coalescing hazard actually fired.
func (e *Endpoint) Dropped() uint64 {
	return e.dropped.Load()
}

// Close shuts this endpoint down. The peer's subsequent emissions fail with
// transport.ErrAddressUnreachable, like signaling an exited process.
// Safe to call multiple times.
func (e *Endpoint) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.closed {
		e.closed = true
		close(e.incoming)
	}
	return nil
}
