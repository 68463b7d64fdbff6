package signal

import (
	"math"
	"os"
	"testing"
	"time"

	"github.com/rdelicado/minitalk/transport"
)

func TestSelfReturnsOwnPid(t *testing.T) {
	if Self() != transport.PeerAddress(os.Getpid()) {
		t.Errorf("expected Self() to equal our pid %d, got %d", os.Getpid(), Self())
	}
}

func TestProbeSelf(t *testing.T) {
	// our own process certainly exists and can be signaled
	if err := Probe(Self()); err != nil {
		t.Errorf("expected Probe(self) to succeed, got %v", err)
	}
}

func TestProbeRejectsInvalidAddresses(t *testing.T) {
	// zero and negative PIDs address "every process" or process groups in
	// kill(2) — they must be rejected before reaching the syscall
	for _, addr := range []transport.PeerAddress{0, -1, -42} {
		if err := Probe(addr); err != transport.ErrAddressUnreachable {
			t.Errorf("Probe(%d): expected ErrAddressUnreachable, got %v", addr, err)
		}
	}
}

func TestProbeNonexistentProcess(t *testing.T) {
	// the maximum possible pid_t is effectively never a live process
	err := Probe(transport.PeerAddress(math.MaxInt32))
	if err != transport.ErrAddressUnreachable {
		t.Errorf("expected ErrAddressUnreachable, got %v", err)
	}
}

func TestEmitToNonexistentProcess(t *testing.T) {
	c := New()
	defer c.Close()

	err := c.Emit(transport.PeerAddress(math.MaxInt32), transport.KindZero)
	if err != transport.ErrAddressUnreachable {
		t.Errorf("expected ErrAddressUnreachable, got %v", err)
	}
}

func TestEmitRejectsInvalidAddresses(t *testing.T) {
	c := New()
	defer c.Close()

	for _, addr := range []transport.PeerAddress{0, -1} {
		if err := c.Emit(addr, transport.KindOne); err != transport.ErrAddressUnreachable {
			t.Errorf("Emit(%d): expected ErrAddressUnreachable, got %v", addr, err)
		}
	}
}

func TestSelfDelivery(t *testing.T) {
	// signaling our own PID exercises the real kernel path end to end
	c := New()
	defer c.Close()

	if err := c.Emit(Self(), transport.KindOne); err != nil {
		t.Fatalf("Emit to self failed: %v", err)
	}

	select {
	case n := <-c.Notifications():
		if n.Kind != transport.KindOne {
			t.Errorf("expected KindOne, got %v", n.Kind)
		}
		if n.Seq != 1 {
			t.Errorf("expected Seq 1, got %d", n.Seq)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for self-delivered signal")
	}
}

func TestSelfDeliveryBothKinds(t *testing.T) {
	c := New()
	defer c.Close()

	// pace the two emissions so kernel-side coalescing can't merge them
	if err := c.Emit(Self(), transport.KindZero); err != nil {
		t.Fatalf("Emit KindZero failed: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if err := c.Emit(Self(), transport.KindOne); err != nil {
		t.Fatalf("Emit KindOne failed: %v", err)
	}

	got := make(map[transport.Kind]bool)
	for i := 0; i < 2; i++ {
		select {
		case n := <-c.Notifications():
			got[n.Kind] = true
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for notification %d", i)
		}
	}

	if !got[transport.KindZero] || !got[transport.KindOne] {
		t.Errorf("expected both kinds delivered, got %v", got)
	}
}

func TestEmitAfterClose(t *testing.T) {
	c := New()
	c.Close()

	if err := c.Emit(Self(), transport.KindZero); err != transport.ErrChannelClosed {
		t.Errorf("expected ErrChannelClosed, got %v", err)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	c := New()
	c.Close()
	c.Close()
	c.Close()
}
