package peer

import (
	"errors"
	"testing"

	"github.com/rdelicado/minitalk/transport"
)

func TestAnnounceParseRoundTrip(t *testing.T) {
	addr := transport.PeerAddress(4242)

	got, err := Parse(Announce(addr))
	if err != nil {
		t.Fatalf("expected announcement to parse, got: %v", err)
	}
	if got != addr {
		t.Errorf("expected %d, got %d", addr, got)
	}
}

func TestParseBareNumber(t *testing.T) {
	got, err := Parse("1234")
	if err != nil {
		t.Fatalf("expected bare number to parse, got: %v", err)
	}
	if got != 1234 {
		t.Errorf("expected 1234, got %d", got)
	}
}

func TestParseTrimsWhitespace(t *testing.T) {
	// operators paste with trailing newlines — that must just work
	got, err := Parse("  1234\n")
	if err != nil {
		t.Fatalf("expected padded input to parse, got: %v", err)
	}
	if got != 1234 {
		t.Errorf("expected 1234, got %d", got)
	}
}

func TestParseMalformed(t *testing.T) {
	for _, input := range []string{"", "abc", "12a4", "minitalk listening pid=", "pid=77"} {
		if _, err := Parse(input); !errors.Is(err, ErrMalformedAddress) {
			t.Errorf("Parse(%q): expected ErrMalformedAddress, got %v", input, err)
		}
	}
}

func TestParseInvalid(t *testing.T) {
	for _, input := range []string{"0", "-5", "9999999999999"} {
		if _, err := Parse(input); !errors.Is(err, ErrInvalidAddress) {
			t.Errorf("Parse(%q): expected ErrInvalidAddress, got %v", input, err)
		}
	}
}
