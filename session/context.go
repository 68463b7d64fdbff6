package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/atomic"

	"github.com/rdelicado/minitalk/codec"
	"github.com/rdelicado/minitalk/transport"
)

// ErrAckTimeout is returned by AwaitAck when no acknowledgment arrived
// within the configured wait. The transmitter's retry loop keys off this.
var ErrAckTimeout = errors.New("acknowledgment timeout")

// ErrNegativeAck is returned by AwaitAck when the peer explicitly rejected
// the unit. Unlike a timeout, this is never retried — the peer is alive
// and has told us to stop.
var ErrNegativeAck = errors.New("peer rejected unit")

// AckUnit is the granularity at which delivery is confirmed before the
// transmitter proceeds. Both sides of a session must agree on it.
type AckUnit int

const (
	UnitNone    AckUnit = iota // base variant: fire and forget, no loss detection
	UnitBit                    // confirm every notification
	UnitByte                   // confirm every completed byte
	UnitMessage                // confirm once per finalized message
)

// String makes AckUnits readable in logs and config errors.
func (u AckUnit) String() string {
	switch u {
	case UnitNone:
		return "none"
	case UnitBit:
		return "bit"
	case UnitByte:
		return "byte"
	case UnitMessage:
		return "message"
	default:
		return "unknown"
	}
}

// ParseUnit reads an AckUnit from its configuration spelling.
func ParseUnit(s string) (AckUnit, error) {
	switch s {
	case "none", "":
		return UnitNone, nil
	case "bit":
		return UnitBit, nil
	case "byte":
		return UnitByte, nil
	case "message":
		return UnitMessage, nil
	default:
		return UnitNone, fmt.Errorf("unknown ack unit %q (want none, bit, byte or message)", s)
	}
}

// Context is the per-peer mutable state shared between the notification
// consumer and the main control flow. One of these exists for every peer
// relationship and lives for the whole exchange — multiple sequential
// messages reuse the same Context.
//
// Ownership is split and the split is the whole design:
//
//   - acc and message are touched only from the notification-draining side
//     (the receiver's Run loop). Nothing else reads them mid-flight.
//   - the counters are atomic because both sides read them.
//   - hand-off between sides happens only through channels: completed
//     messages on messages, acknowledgment arrival on acks/nacks.
//
// The two sides never share a mutex. A lock held across the asynchronous
// boundary would be a deadlock waiting to happen, so correctness rests on
// atomic fields and channel hand-off alone.
type Context struct {
	// Peer is the remote address: the transmitter's emission target, or the
	// receiver's acknowledgment target. NoPeer when not yet known.
	Peer transport.PeerAddress

	acc     Accumulator // current byte in flight, consumer side only
	message []byte      // bytes of the message in flight, consumer side only

	messages chan []byte   // finalized messages, polled by the main flow
	acks     chan struct{} // acknowledgment arrival, capacity 1
	nacks    chan struct{} // rejection arrival, capacity 1

	// NotificationsSeen counts every delivered notification. Comparing it
	// against 8× the byte counters exposes coalescing losses.
	NotificationsSeen *atomic.Uint64

	// BytesCompleted counts completed accumulator cycles, terminator included.
	BytesCompleted *atomic.Uint64

	// MessagesCompleted counts finalized messages.
	MessagesCompleted *atomic.Uint64

	// Retries counts retransmissions performed by the transmitter side.
	Retries *atomic.Uint64
}

// NewContext creates a Context for the given peer.
// NoPeer is allowed — a receiver in the base variant never emits back.
func NewContext(peer transport.PeerAddress) *Context {
	return &Context{
		Peer:              peer,
		messages:          make(chan []byte, 8),
		acks:              make(chan struct{}, 1),
		nacks:             make(chan struct{}, 1),
		NotificationsSeen: atomic.NewUint64(0),
		BytesCompleted:    atomic.NewUint64(0),
		MessagesCompleted: atomic.NewUint64(0),
		Retries:           atomic.NewUint64(0),
	}
}

// FeedBit pushes one received bit into the accumulator.
// Returns the completed byte and true when the 8th bit lands.
func (c *Context) FeedBit(bit codec.Bit) (byte, bool) {
	c.NotificationsSeen.Inc()
	b, done := c.acc.Feed(bit)
	if done {
		c.BytesCompleted.Inc()
	}
	return b, done
}

// AppendByte adds a completed non-terminator byte to the message in flight.
func (c *Context) AppendByte(b byte) {
	c.message = append(c.message, b)
}

// Finalize closes out the message in flight and returns it.
// The returned slice is a copy — the internal buffer is cleared for the
// next message. The finalized message is also offered on Messages() so the
// main flow can pick it up without touching consumer-side state; if that
// buffer is full the channel hand-off is skipped (the direct return value
// and the sink still see the message).
func (c *Context) Finalize() []byte {
	msg := make([]byte, len(c.message))
	copy(msg, c.message)
	c.message = c.message[:0]
	c.MessagesCompleted.Inc()

	select {
	case c.messages <- msg:
	default:
	}
	return msg
}

// PendingBits reports how many bits of the current byte have arrived.
func (c *Context) PendingBits() int {
	return c.acc.BitCount()
}

// Messages returns the stream of finalized messages for the main flow.
func (c *Context) Messages() <-chan []byte {
	return c.messages
}

// SignalAck records an acknowledgment arrival and wakes AwaitAck.
// Capacity 1 plus a non-blocking send means repeated acks coalesce —
// matching the channel they rode in on.
func (c *Context) SignalAck() {
	select {
	case c.acks <- struct{}{}:
	default:
	}
}

// SignalNack records an explicit rejection and wakes AwaitAck.
func (c *Context) SignalNack() {
	select {
	case c.nacks <- struct{}{}:
	default:
	}
}

// AwaitAck blocks until an acknowledgment arrives, the timeout elapses, or
// the context is canceled. This is the only blocking wait in the protocol:
// a channel receive with a deadline, not a busy poll.
//
// Returns nil on ack, ErrNegativeAck on rejection, ErrAckTimeout on
// timeout, or the context error on cancellation.
func (c *Context) AwaitAck(ctx context.Context, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-c.acks:
		return nil
	case <-c.nacks:
		return ErrNegativeAck
	case <-timer.C:
		return ErrAckTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DrainAck discards a stale pending acknowledgment, if any.
// Called before emitting a new unit so an ack from the previous unit can
// never be mistaken for confirmation of the new one.
func (c *Context) DrainAck() {
	select {
	case <-c.acks:
	default:
	}
}
