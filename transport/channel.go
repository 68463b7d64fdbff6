package transport

import "errors"

// ErrAddressUnreachable is returned by Emit when the target address does not
// identify a live, receptive process. Retrying cannot help — the caller
// should abort the transfer and surface the failure.
// Checked with errors.Is(), never by comparing strings.
var ErrAddressUnreachable = errors.New("peer address unreachable")

// ErrChannelClosed is returned when you try to emit on a closed channel.
var ErrChannelClosed = errors.New("notification channel closed")

// PeerAddress identifies the process on the other end of a channel.
// It is opaque to everything above the transport layer. The signal backend
// interprets it as an OS process ID; connection-oriented backends may
// ignore it because the connection already pins down the peer.
//
// An address must identify a live, receptive process. Staleness is detected
// only by emission failure or by acknowledgment timeout — there is no
// liveness callback.
type PeerAddress int

// NoPeer is the zero address — "no peer known".
const NoPeer PeerAddress = 0

// Kind is which of the two notification flavors occurred. This is the entire
// information content of one notification: no payload, no metadata, one bit.
type Kind uint8

const (
	KindZero Kind = iota // carries a 0 bit (SIGUSR1 in the signal backend)
	KindOne              // carries a 1 bit (SIGUSR2 in the signal backend)
)

// String makes Kinds readable in logs and test failures.
func (k Kind) String() string {
	switch k {
	case KindZero:
		return "zero"
	case KindOne:
		return "one"
	default:
		return "unknown"
	}
}

// Notification is one received occurrence, as handed to the consumer.
// Seq is the receipt sequence number assigned by the receiving channel —
// it counts deliveries, not emissions, so gaps between what the sender
// emitted and what Seq reaches are exactly the coalescing losses.
type Notification struct {
	Kind   Kind
	Seq    uint64      // monotonic receipt counter, assigned on delivery
	Source PeerAddress // emitting peer if the backend knows it, NoPeer otherwise
}

// Channel is the contract every notification backend must satisfy.
// The protocol layers only ever talk to this interface — they never import
// signal, inproc, websocket, or anything concrete.
//
// Delivery contract (the part that makes everything above this hard):
//
//   - Notifications are asynchronous: they arrive on the Notifications()
//     stream independently of what the consumer is doing.
//   - Notifications may coalesce: if kind K is emitted again before the
//     previous delivery of K was consumed, the two occurrences may collapse
//     into one. Emission count does not equal delivery count under
//     rapid-fire emission. The layers above defend against this with
//     pacing and acknowledgments — the channel itself promises nothing.
//   - Within one kind, deliveries preserve emission order. Across the two
//     kinds there is no ordering guarantee beyond best effort.
type Channel interface {
	// Emit sends one notification of the given kind to the target.
	// Returns ErrAddressUnreachable if the target is not a live, receptive
	// process, ErrChannelClosed after Close.
	Emit(target PeerAddress, kind Kind) error

	// Notifications returns the stream of received notifications.
	// Consumers must drain this promptly — a slow consumer widens the
	// coalescing window. The channel is closed when the Channel closes.
	Notifications() <-chan Notification

	// Close shuts the channel down. Safe to call multiple times.
	Close() error
}
