package signal

import (
	"errors"
	"os"
	"os/signal"
	"sync"

	"go.uber.org/atomic"
	"golang.org/x/sys/unix"

	"github.com/rdelicado/minitalk/transport"
)

// Channel implements transport.Channel over POSIX user signals.
//
// Kind mapping on the wire:
//
//	KindZero → SIGUSR1
//	KindOne  → SIGUSR2
//
// This backend inherits the kernel's delivery semantics wholesale, which is
// exactly the unreliable channel the protocol layers are built to survive:
// a standard signal that is already pending is not queued again, so two
// rapid SIGUSR1s can collapse into one delivery. The Go runtime adds a
// second coalescing point — if the notify channel's buffer is full the
// runtime drops the signal. Both losses are invisible to the sender.
//
// One Channel per process. Signal disposition is process-wide, so two
// Channels in the same process would split deliveries between them.
type Channel struct {
	sigs      chan os.Signal
	incoming  chan transport.Notification
	seq       *atomic.Uint64
	closeOnce sync.Once
	done      chan struct{}
}

// defaultBuffer sizes both the os/signal buffer and the delivery channel.
// Generous on purpose: every slot of headroom narrows the window in which
// the runtime drops a signal because the consumer was slow.
const defaultBuffer = 128

// New registers for SIGUSR1/SIGUSR2 and starts delivering notifications.
// From this point on the process's default disposition for those signals
// (terminate) is replaced — call Close to restore it.
func New() *Channel {
	c := &Channel{
		sigs:     make(chan os.Signal, defaultBuffer),
		incoming: make(chan transport.Notification, defaultBuffer),
		seq:      atomic.NewUint64(0),
		done:     make(chan struct{}),
	}

	signal.Notify(c.sigs, unix.SIGUSR1, unix.SIGUSR2)

	// translate raw signals into notifications in the background,
	// same shape as a connection adapter's read loop
	go c.pumpLoop()

	return c
}

// Self returns this process's own address, for the out-of-band handoff:
// the receiver prints it, the operator passes it to the transmitter.
func Self() transport.PeerAddress {
	return transport.PeerAddress(os.Getpid())
}

// Probe checks whether the target is a live, receptive process without
// delivering anything — signal 0 performs only the existence and permission
// checks. Returns transport.ErrAddressUnreachable if the target cannot be
// signaled, nil if it can.
func Probe(target transport.PeerAddress) error {
	if target <= 0 {
		return transport.ErrAddressUnreachable
	}
	if err := unix.Kill(int(target), 0); err != nil {
		return transport.ErrAddressUnreachable
	}
	return nil
}

// Emit delivers one notification to the target process.
// A non-positive target is rejected before reaching kill(2) — negative PIDs
// address whole process groups there, which must never happen by accident.
func (c *Channel) Emit(target transport.PeerAddress, kind transport.Kind) error {
	select {
	case <-c.done:
		return transport.ErrChannelClosed
	default:
	}

	if target <= 0 {
		return transport.ErrAddressUnreachable
	}

	sig := unix.SIGUSR1
	if kind == transport.KindOne {
		sig = unix.SIGUSR2
	}

	if err := unix.Kill(int(target), sig); err != nil {
		// ESRCH: no such process. EPERM: exists but we may not signal it.
		// Neither is helped by retrying, so both surface as unreachable.
		if errors.Is(err, unix.ESRCH) || errors.Is(err, unix.EPERM) {
			return transport.ErrAddressUnreachable
		}
		return err
	}
	return nil
}

// Notifications returns the stream of received notifications.
func (c *Channel) Notifications() <-chan transport.Notification {
	return c.incoming
}

// Close unregisters the signal handlers and stops delivery.
// Safe to call multiple times — cleanup runs exactly once.
func (c *Channel) Close() error {
	c.closeOnce.Do(func() {
		signal.Stop(c.sigs)
		close(c.done)
	})
	return nil
}

// pumpLoop translates os.Signal values into transport.Notifications.
// os/signal cannot expose the sending PID, so Source is always NoPeer here;
// the receiver learns the acknowledgment target out-of-band instead.
func (c *Channel) pumpLoop() {
	defer close(c.incoming)

	for {
		select {
		case <-c.done:
			return
		case sig := <-c.sigs:
			kind := transport.KindZero
			if sig == unix.SIGUSR2 {
				kind = transport.KindOne
			}

			n := transport.Notification{
				Kind:   kind,
				Seq:    c.seq.Inc(),
				Source: transport.NoPeer,
			}

			// blocking send is deliberate: if the consumer stalls, pressure
			// backs up into the os/signal buffer and then the kernel's
			// pending mask, where coalescing happens the honest way
			select {
			case c.incoming <- n:
			case <-c.done:
				return
			}
		}
	}
}
