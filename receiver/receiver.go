// Package receiver drives the receiving side of a transfer: it accumulates
// incoming bit notifications into bytes, detects message boundaries, hands
// finalized messages to a sink, and emits acknowledgments when configured.
package receiver

import (
	"context"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/rdelicado/minitalk/codec"
	"github.com/rdelicado/minitalk/session"
	"github.com/rdelicado/minitalk/transport"
)

// State is where the receiver currently is in its accumulation cycle.
type State int32

const (
	StateListening       State = iota // waiting for the first bit of a message
	StateAccumulating                 // mid-byte, bits arriving
	StateByteComplete                 // 8th bit landed, byte yielded
	StateMessageComplete              // terminator seen, message finalized
)

// String makes States readable in logs and test failures.
func (s State) String() string {
	switch s {
	case StateListening:
		return "listening"
	case StateAccumulating:
		return "accumulating"
	case StateByteComplete:
		return "byte_complete"
	case StateMessageComplete:
		return "message_complete"
	default:
		return "unknown"
	}
}

// Sink consumes finalized messages. Deliver is called outside the
// per-notification hot path's tight constraints but still from the Run
// loop, so it should not block for long; a sink error in an acknowledging
// receiver turns into a rejection (KindOne) back to the sender.
type Sink interface {
	Deliver(msg []byte) error
}

// Config tunes a Receiver.
type Config struct {
	// AckUnit must match the transmitter's. UnitNone never emits back.
	AckUnit session.AckUnit

	// AckTo is where acknowledgments go. The POSIX backend cannot tell us
	// who emitted a signal, so the sender's address arrives out-of-band
	// and is recorded here. When NoPeer, the notification's Source is used
	// if the backend provides one; otherwise acks are skipped.
	AckTo transport.PeerAddress

	// Logger receives accumulation progress. Defaults to a no-op logger.
	Logger zerolog.Logger
}

// Receiver assembles messages from the notification stream.
// It never blocks on the protocol: there is no waiting state, only
// reactions to arriving notifications. The main flow either runs the loop
// via Run or polls the session's Messages() channel.
type Receiver struct {
	ch    transport.Channel
	sess  *session.Context
	sink  Sink
	cfg   Config
	state *atomic.Int32
	log   zerolog.Logger
}

// New creates a Receiver over the given channel and session.
// sink may be nil; finalized messages are then only offered on the
// session's Messages() channel.
func New(ch transport.Channel, sess *session.Context, sink Sink, cfg Config) *Receiver {
	return &Receiver{
		ch:    ch,
		sess:  sess,
		sink:  sink,
		cfg:   cfg,
		state: atomic.NewInt32(int32(StateListening)),
		log:   cfg.Logger.With().Str("component", "receiver").Logger(),
	}
}

// State reports the current position in the accumulation cycle.
func (r *Receiver) State() State {
	return State(r.state.Load())
}

func (r *Receiver) setState(s State) {
	r.state.Store(int32(s))
}

// Run consumes notifications until the context is canceled or the channel
// closes. A receiver that starts while a transmission is already in flight
// joins mid-byte and loses that message — a scope limitation of the
// protocol, not recoverable within the session.
func (r *Receiver) Run(ctx context.Context) error {
	r.setState(StateListening)
	r.log.Info().Stringer("ack_unit", r.cfg.AckUnit).Msg("listening")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n, ok := <-r.ch.Notifications():
			if !ok {
				return nil
			}
			r.handle(n)
		}
	}
}

// handle processes one notification. This is the asynchronous handler of
// the design: it only touches the session's accumulator, counters and
// channels, and completes in bounded time.
func (r *Receiver) handle(n transport.Notification) {
	bit := codec.Zero
	if n.Kind == transport.KindOne {
		bit = codec.One
	}

	r.setState(StateAccumulating)
	b, done := r.sess.FeedBit(bit)

	// the bit that completes a terminator is not confirmed here: its ack
	// doubles as message acceptance, so it waits until the sink has had its
	// say — otherwise a rejection's nack races an ack the sender may
	// already have consumed as success
	if r.cfg.AckUnit == session.UnitBit && !(done && b == codec.Terminator) {
		r.acknowledge(n)
	}

	if !done {
		return
	}

	r.setState(StateByteComplete)

	if b != codec.Terminator {
		r.sess.AppendByte(b)
		r.log.Debug().Uint8("value", b).Msg("byte complete")
		if r.cfg.AckUnit == session.UnitByte {
			r.acknowledge(n)
		}
		r.setState(StateAccumulating)
		return
	}

	// terminator: the message in flight is complete
	msg := r.sess.Finalize()
	r.setState(StateMessageComplete)

	var deliverErr error
	if r.sink != nil {
		deliverErr = r.sink.Deliver(msg)
	}

	switch {
	case deliverErr != nil && r.cfg.AckUnit != session.UnitNone:
		// the peer is alive and waiting — tell it to stop instead of
		// letting it burn its whole retry budget
		r.log.Error().Err(deliverErr).Msg("sink rejected message, sending nack")
		r.reject(n)
	case deliverErr != nil:
		r.log.Error().Err(deliverErr).Msg("sink rejected message")
	case r.cfg.AckUnit != session.UnitNone:
		// covers the deferred final bit in UnitBit mode too
		r.acknowledge(n)
	}

	if deliverErr == nil {
		r.log.Info().Int("bytes", len(msg)).Msg("message received")
	}

	r.setState(StateListening)
}

// ackTarget resolves where reverse-path notifications go.
func (r *Receiver) ackTarget(n transport.Notification) transport.PeerAddress {
	if r.cfg.AckTo != transport.NoPeer {
		return r.cfg.AckTo
	}
	if r.sess.Peer != transport.NoPeer {
		return r.sess.Peer
	}
	return n.Source
}

// acknowledge emits a KindZero back to the sender. A failed or unaddressed
// ack is logged and dropped — the sender's timeout covers the loss.
func (r *Receiver) acknowledge(n transport.Notification) {
	target := r.ackTarget(n)
	if target == transport.NoPeer {
		r.log.Debug().Msg("no acknowledgment target, skipping ack")
		return
	}
	if err := r.ch.Emit(target, transport.KindZero); err != nil {
		r.log.Warn().Err(err).Msg("failed to emit acknowledgment")
	}
}

// reject emits a KindOne back to the sender: receiver-initiated abort.
func (r *Receiver) reject(n transport.Notification) {
	target := r.ackTarget(n)
	if target == transport.NoPeer {
		return
	}
	if err := r.ch.Emit(target, transport.KindOne); err != nil {
		r.log.Warn().Err(err).Msg("failed to emit rejection")
	}
}
