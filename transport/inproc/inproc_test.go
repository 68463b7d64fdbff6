package inproc

import (
	"testing"
	"time"

	"github.com/rdelicado/minitalk/transport"
)

func TestEmitAndReceive(t *testing.T) {
	a, b := NewPair()
	defer a.Close()
	defer b.Close()

	if err := a.Emit(b.Addr(), transport.KindOne); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}

	select {
	case n := <-b.Notifications():
		if n.Kind != transport.KindOne {
			t.Errorf("expected KindOne, got %v", n.Kind)
		}
		if n.Source != a.Addr() {
			t.Errorf("expected source %d, got %d", a.Addr(), n.Source)
		}
		if n.Seq != 1 {
			t.Errorf("expected Seq 1, got %d", n.Seq)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for notification")
	}
}

func TestWrongAddressUnreachable(t *testing.T) {
	a, b := NewPair()
	defer a.Close()
	defer b.Close()

	// only the peer's address is receptive — anything else is a dead PID
	err := a.Emit(transport.PeerAddress(999), transport.KindZero)
	if err != transport.ErrAddressUnreachable {
		t.Errorf("expected ErrAddressUnreachable, got %v", err)
	}
}

func TestClosedPeerUnreachable(t *testing.T) {
	a, b := NewPair()
	defer a.Close()

	b.Close()

	err := a.Emit(b.Addr(), transport.KindZero)
	if err != transport.ErrAddressUnreachable {
		t.Errorf("expected ErrAddressUnreachable after peer closed, got %v", err)
	}
}

func TestEmitOnClosedEndpoint(t *testing.T) {
	a, b := NewPair()
	defer b.Close()

	a.Close()

	err := a.Emit(b.Addr(), transport.KindZero)
	if err != transport.ErrChannelClosed {
		t.Errorf("expected ErrChannelClosed, got %v", err)
	}
}

func TestBufferOverflowCoalesces(t *testing.T) {
	// a 2-slot buffer with nobody draining: the third emission onward is lost,
	// and the emitter never finds out — this is the coalescing hazard
	a, b := NewPair(WithBuffer(2))
	defer a.Close()
	defer b.Close()

	for i := 0; i < 10; i++ {
		if err := a.Emit(b.Addr(), transport.KindOne); err != nil {
			t.Fatalf("Emit %d failed: %v", i, err)
		}
	}

	if got := b.Dropped(); got != 8 {
		t.Errorf("expected 8 dropped notifications, got %d", got)
	}

	// the two that fit are still delivered, in order
	for i := 0; i < 2; i++ {
		select {
		case n := <-b.Notifications():
			if n.Kind != transport.KindOne {
				t.Errorf("notification %d: expected KindOne, got %v", i, n.Kind)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for surviving notification %d", i)
		}
	}
}

func TestDropHookLosesSilently(t *testing.T) {
	dropped := 0
	a, b := NewPair(WithDropTowardsB(func(k transport.Kind) bool {
		// lose every KindOne, let KindZero through
		if k == transport.KindOne {
			dropped++
			return true
		}
		return false
	}))
	defer a.Close()
	defer b.Close()

	// emitter sees success for both — loss is invisible on the sending side
	if err := a.Emit(b.Addr(), transport.KindOne); err != nil {
		t.Fatalf("dropped Emit should still report success, got %v", err)
	}
	if err := a.Emit(b.Addr(), transport.KindZero); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}

	select {
	case n := <-b.Notifications():
		if n.Kind != transport.KindZero {
			t.Errorf("expected only KindZero to arrive, got %v", n.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for surviving notification")
	}

	if dropped != 1 {
		t.Errorf("expected drop hook to fire once, fired %d times", dropped)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	a, b := NewPair()
	defer b.Close()

	a.Close()
	a.Close()
	a.Close()
}

func TestBothDirectionsIndependent(t *testing.T) {
	a, b := NewPair()
	defer a.Close()
	defer b.Close()

	a.Emit(b.Addr(), transport.KindZero)
	b.Emit(a.Addr(), transport.KindOne)

	select {
	case n := <-b.Notifications():
		if n.Kind != transport.KindZero {
			t.Errorf("b expected KindZero, got %v", n.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out on a→b")
	}

	select {
	case n := <-a.Notifications():
		if n.Kind != transport.KindOne {
			t.Errorf("a expected KindOne, got %v", n.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out on b→a")
	}
}
