// Package transmitter drives the sending side of a transfer: byte by byte,
// bit by bit, one notification per bit, with pacing between emissions and an
// optional acknowledgment/retry layer on top.
package transmitter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/rdelicado/minitalk/codec"
	"github.com/rdelicado/minitalk/session"
	"github.com/rdelicado/minitalk/transport"
)

// ErrDeliveryFailed is the condition surfaced when a unit could not be
// confirmed within the retry budget, or the peer rejected it. Everything
// sent before the failing unit may already have been delivered — partial
// delivery is reported, never hidden.
var ErrDeliveryFailed = errors.New("delivery failed")

// State is where the transmitter currently is in its send cycle.
type State int32

const (
	StateIdle         State = iota // nothing in flight
	StateEncodingByte              // expanding the current byte into bits
	StateEmittingBit               // emitting one notification
	StateByteSent                  // all 8 bits of the current byte emitted
	StateAwaitingAck               // blocked on the acknowledgment wait
	StateDone                      // message fully delivered
	StateFailed                    // aborted, see the returned error
)

// String makes States readable in logs and test failures.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateEncodingByte:
		return "encoding_byte"
	case StateEmittingBit:
		return "emitting_bit"
	case StateByteSent:
		return "byte_sent"
	case StateAwaitingAck:
		return "awaiting_ack"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// DeliveryError reports exactly where a transfer died: which byte of the
// framed message (the terminator counts as the last byte), which bit within
// it, and how many retransmissions were spent. Unwraps to the underlying
// cause so callers can still errors.Is() against ErrDeliveryFailed,
// transport.ErrAddressUnreachable or session.ErrNegativeAck.
type DeliveryError struct {
	ByteIndex int
	BitIndex  int
	Retries   int
	Cause     error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("byte %d bit %d (retries %d): %v",
		e.ByteIndex, e.BitIndex, e.Retries, e.Cause)
}

func (e *DeliveryError) Unwrap() error {
	return e.Cause
}

// Config tunes a Transmitter. Zero values fall back to the defaults.
type Config struct {
	// Pace is the minimum dwell between consecutive emissions to the same
	// target. This is a correctness-relevant constant, not a performance
	// knob: it gives the receiving side time to retire notification N
	// before N+1 of the same kind arrives and coalesces with it. Set it
	// too low and data corrupts silently at high emission rates.
	// Zero means the default; negative disables pacing entirely, which is
	// only sane for stress tests that want to provoke coalescing.
	Pace time.Duration

	// AckUnit is the granularity of the acknowledgment variant.
	// UnitNone is the base variant: no acks, no loss detection.
	//
	// UnitByte and UnitMessage only recover from the loss of a whole unit.
	// Lose a single bit out of a byte and the peer's accumulator shifts:
	// the resent unit completes garbage bytes that still produce acks, and
	// the transfer reports success without a finalized message. UnitBit is
	// the only alignment-safe choice on a channel that can drop single
	// notifications.
	AckUnit session.AckUnit

	// AckTimeout bounds each acknowledgment wait.
	AckTimeout time.Duration

	// MaxRetries is how many timeout cycles a unit gets before the
	// transfer fails. The unit is retransmitted after every timeout
	// except the last.
	MaxRetries int

	// Logger receives transfer progress. Defaults to a no-op logger.
	Logger zerolog.Logger
}

// DefaultConfig returns the safe tuning: pacing slow enough for a same-host
// receiver to keep up, byte-level acks off.
func DefaultConfig() Config {
	return Config{
		Pace:       200 * time.Microsecond,
		AckUnit:    session.UnitNone,
		AckTimeout: 500 * time.Millisecond,
		MaxRetries: 3,
		Logger:     zerolog.Nop(),
	}
}

// Transmitter sends messages to the peer recorded in its session Context.
// One message at a time; sequential Sends over the same Transmitter reuse
// the session. Not safe for concurrent Sends.
type Transmitter struct {
	ch    transport.Channel
	sess  *session.Context
	cfg   Config
	state *atomic.Int32
	log   zerolog.Logger
}

// New creates a Transmitter over the given channel and session.
// It immediately starts draining the channel's notifications in the
// background: a KindZero on the reverse path is an acknowledgment, a
// KindOne is a rejection. The drain goroutine exits when the channel closes.
func New(ch transport.Channel, sess *session.Context, cfg Config) *Transmitter {
	def := DefaultConfig()
	if cfg.Pace == 0 {
		cfg.Pace = def.Pace
	}
	if cfg.AckTimeout == 0 {
		cfg.AckTimeout = def.AckTimeout
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = def.MaxRetries
	}

	t := &Transmitter{
		ch:    ch,
		sess:  sess,
		cfg:   cfg,
		state: atomic.NewInt32(int32(StateIdle)),
		log:   cfg.Logger.With().Str("component", "transmitter").Logger(),
	}

	go t.ackLoop()

	return t
}

// State reports the current position in the send cycle.
func (t *Transmitter) State() State {
	return State(t.state.Load())
}

func (t *Transmitter) setState(s State) {
	t.state.Store(int32(s))
}

// ackLoop interprets reverse-path notifications. This is the "handler" of
// the design: it runs asynchronously to Send, touches only the session's
// signal channels, and never blocks.
func (t *Transmitter) ackLoop() {
	for n := range t.ch.Notifications() {
		switch n.Kind {
		case transport.KindZero:
			t.sess.SignalAck()
		case transport.KindOne:
			t.sess.SignalNack()
		}
	}
}

// Send delivers one message to the peer: every byte of the message, then
// the terminator byte, each as 8 notifications LSB first.
//
// Returns ErrEmbeddedTerminator before emitting anything if the message
// contains a zero byte. Returns a *DeliveryError wrapping
// transport.ErrAddressUnreachable if the peer is gone (detected on the very
// first emission — no bits precede it), ErrDeliveryFailed on retry
// exhaustion, or session.ErrNegativeAck if the peer rejected a unit.
func (t *Transmitter) Send(ctx context.Context, msg []byte) error {
	if err := codec.Validate(msg); err != nil {
		return err
	}

	framed := make([]byte, 0, len(msg)+1)
	framed = append(framed, msg...)
	framed = append(framed, codec.Terminator)

	t.log.Debug().Int("bytes", len(framed)).Stringer("ack_unit", t.cfg.AckUnit).
		Msg("starting transfer")

	if t.cfg.AckUnit == session.UnitMessage {
		t.sess.DrainAck()
	}

	for i, b := range framed {
		if err := t.sendByte(ctx, i, b); err != nil {
			t.setState(StateFailed)
			t.log.Error().Err(err).Msg("transfer aborted")
			return err
		}
	}

	if t.cfg.AckUnit == session.UnitMessage {
		last := len(framed) - 1
		err := t.confirm(ctx, last, codec.BitsPerByte-1, func() error {
			return t.emitBytes(ctx, framed, 0)
		})
		if err != nil {
			t.setState(StateFailed)
			t.log.Error().Err(err).Msg("message acknowledgment failed")
			return err
		}
	}

	t.setState(StateDone)
	t.log.Info().Int("bytes", len(framed)).Msg("transfer complete")
	return nil
}

// sendByte emits the 8 bits of one byte, honoring the per-bit or per-byte
// acknowledgment unit.
func (t *Transmitter) sendByte(ctx context.Context, index int, b byte) error {
	t.setState(StateEncodingByte)
	bits := codec.EncodeByte(b)

	if t.cfg.AckUnit == session.UnitByte {
		t.sess.DrainAck()
	}

	for j, bit := range bits {
		if t.cfg.AckUnit == session.UnitBit {
			t.sess.DrainAck()
		}

		if err := t.emitBit(ctx, index, j, bit); err != nil {
			return err
		}

		if t.cfg.AckUnit == session.UnitBit {
			err := t.confirm(ctx, index, j, func() error {
				return t.emitBit(ctx, index, j, bit)
			})
			if err != nil {
				return err
			}
		}
	}

	t.setState(StateByteSent)
	t.log.Debug().Int("byte", index).Msg("byte emitted")

	if t.cfg.AckUnit == session.UnitByte {
		err := t.confirm(ctx, index, codec.BitsPerByte-1, func() error {
			return t.emitByteBits(ctx, index, bits)
		})
		if err != nil {
			return err
		}
	}

	return nil
}

// emitBit sends one notification and then dwells for the pacing interval.
func (t *Transmitter) emitBit(ctx context.Context, byteIndex, bitIndex int, bit codec.Bit) error {
	t.setState(StateEmittingBit)

	kind := transport.KindZero
	if bit == codec.One {
		kind = transport.KindOne
	}

	if err := t.ch.Emit(t.sess.Peer, kind); err != nil {
		return &DeliveryError{ByteIndex: byteIndex, BitIndex: bitIndex, Cause: err}
	}

	return t.pace(ctx)
}

// emitByteBits re-emits all 8 bits of a byte. Used for byte-unit retransmit.
func (t *Transmitter) emitByteBits(ctx context.Context, byteIndex int, bits [codec.BitsPerByte]codec.Bit) error {
	for j, bit := range bits {
		if err := t.emitBit(ctx, byteIndex, j, bit); err != nil {
			return err
		}
	}
	return nil
}

// emitBytes re-emits a byte range without acknowledgment handling.
// Used for message-unit retransmit.
func (t *Transmitter) emitBytes(ctx context.Context, framed []byte, from int) error {
	for i := from; i < len(framed); i++ {
		if err := t.emitByteBits(ctx, i, codec.EncodeByte(framed[i])); err != nil {
			return err
		}
	}
	return nil
}

// confirm blocks until the current unit is acknowledged. Each timeout cycle
// lasts AckTimeout; after every cycle except the last the unit is
// retransmitted via resend. MaxRetries cycles without an ack fail the
// transfer — not earlier and not later.
//
// Retransmission is idempotent only in the sense the protocol can offer:
// redundant bits reach the receiver's accumulator again, so the safe case
// is the one where the original unit was lost outright. A lost ack with a
// delivered unit duplicates receiver-side state — a documented hazard of
// sentinel framing over a payload-less channel, paced around in practice.
// A partially lost unit is worse than either: under byte or message units
// the resend shifts the peer's accumulator, every later completion is
// garbage that still acks, and the transfer succeeds from here without a
// message finalizing over there. Only bit-unit confirmation re-synchronizes
// after a single dropped notification.
func (t *Transmitter) confirm(ctx context.Context, byteIndex, bitIndex int, resend func() error) error {
	t.setState(StateAwaitingAck)

	for attempt := 1; ; attempt++ {
		err := t.sess.AwaitAck(ctx, t.cfg.AckTimeout)
		if err == nil {
			return nil
		}

		if errors.Is(err, session.ErrNegativeAck) {
			return &DeliveryError{
				ByteIndex: byteIndex,
				BitIndex:  bitIndex,
				Retries:   attempt - 1,
				Cause:     fmt.Errorf("%w: %w", ErrDeliveryFailed, err),
			}
		}
		if !errors.Is(err, session.ErrAckTimeout) {
			return err // context canceled or deadline exceeded
		}

		if attempt >= t.cfg.MaxRetries {
			return &DeliveryError{
				ByteIndex: byteIndex,
				BitIndex:  bitIndex,
				Retries:   attempt - 1,
				Cause: fmt.Errorf("%w: %w after %d timeouts of %v",
					ErrDeliveryFailed, session.ErrAckTimeout, attempt, t.cfg.AckTimeout),
			}
		}

		t.sess.Retries.Inc()
		t.log.Warn().Int("byte", byteIndex).Int("attempt", attempt).
			Msg("acknowledgment timeout, retransmitting unit")

		if err := resend(); err != nil {
			return err
		}
		t.setState(StateAwaitingAck)
	}
}

// pace dwells between emissions, staying responsive to cancellation.
func (t *Transmitter) pace(ctx context.Context) error {
	if t.cfg.Pace <= 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			return nil
		}
	}

	timer := time.NewTimer(t.cfg.Pace)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
