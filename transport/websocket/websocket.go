package websocket

import (
	"context"
	"sync"

	"go.uber.org/atomic"
	"nhooyr.io/websocket"

	"github.com/rdelicado/minitalk/transport"
)

// Channel implements transport.Channel over a WebSocket connection.
// Each notification is one 1-byte binary frame carrying only the kind —
// the frame body is the closest a real network gets to "payload-less".
//
// This backend exists so two hosts that cannot reach each other with POSIX
// signals can still run the identical protocol stack. Unlike the signal
// backend it does not coalesce (WebSocket is reliable and ordered), so it
// represents the best-case channel; the inproc backend covers the worst case.
type Channel struct {
	conn      *websocket.Conn
	incoming  chan transport.Notification
	seq       *atomic.Uint64
	closeOnce sync.Once
	ctx       context.Context
	cancel    context.CancelFunc
}

// New wraps an existing *websocket.Conn in a notification Channel.
// Dialing or accepting happens outside. Immediately starts a read loop
// goroutine in the background.
func New(conn *websocket.Conn) *Channel {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Channel{
		conn:     conn,
		incoming: make(chan transport.Notification, 64),
		seq:      atomic.NewUint64(0),
		ctx:      ctx,
		cancel:   cancel,
	}
	go c.readLoop()
	return c
}

// Emit writes one kind frame to the connection. The target address is
// ignored — the connection already pins down the peer.
func (c *Channel) Emit(_ transport.PeerAddress, kind transport.Kind) error {
	err := c.conn.Write(c.ctx, websocket.MessageBinary, []byte{byte(kind)})
	if err != nil {
		return transport.ErrChannelClosed
	}
	return nil
}

// Notifications returns the stream of received notifications.
// The channel is closed when the connection closes.
func (c *Channel) Notifications() <-chan transport.Notification {
	return c.incoming
}

// Close shuts down the connection cleanly.
// Safe to call multiple times — cleanup runs exactly once.
func (c *Channel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		err = c.conn.Close(websocket.StatusNormalClosure, "closed")
	})
	return err
}

// readLoop translates incoming frames into notifications until the
// connection closes, then closes the notification stream.
func (c *Channel) readLoop() {
	defer func() {
		close(c.incoming)
		c.Close()
	}()

	for {
		typ, data, err := c.conn.Read(c.ctx)
		if err != nil {
			return
		}

		// a notification frame is exactly one byte holding a valid kind;
		// anything else did not come from this protocol and is discarded
		if typ != websocket.MessageBinary || len(data) != 1 {
			continue
		}
		kind := transport.Kind(data[0])
		if kind != transport.KindZero && kind != transport.KindOne {
			continue
		}

		c.incoming <- transport.Notification{
			Kind:   kind,
			Seq:    c.seq.Inc(),
			Source: transport.NoPeer,
		}
	}
}
