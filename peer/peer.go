// Package peer handles the out-of-band address handoff. The receiver cannot
// tell the transmitter its address through the notification channel (the
// channel carries no payload), so the address travels outside it: the server
// prints an announcement line, the operator hands it to the client.
//
// This package owns both ends of that handoff — formatting the announcement
// and parsing whatever the operator pasted back, with named errors for each
// way the input can be wrong.
package peer

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rdelicado/minitalk/transport"
)

// ErrMalformedAddress is returned when the input cannot be read as an
// address at all — not a number, not an announcement line.
var ErrMalformedAddress = errors.New("malformed peer address")

// ErrInvalidAddress is returned when the input parses but cannot be a real
// process: zero, negative, or beyond the maximum possible PID.
var ErrInvalidAddress = errors.New("invalid peer address")

// announcePrefix is the fixed shape of the server's announcement line.
// Parse accepts the full line so the operator can paste it verbatim.
const announcePrefix = "minitalk listening pid="

// maxAddress is the largest value a PID can take on any supported platform.
const maxAddress = math.MaxInt32

// Announce formats the line a receiver prints at startup.
func Announce(addr transport.PeerAddress) string {
	return fmt.Sprintf("%s%d", announcePrefix, addr)
}

// Parse reads a peer address from operator input. Accepts either a bare
// number ("1234") or a full announcement line — whichever the operator
// copied. Leading and trailing whitespace is ignored.
func Parse(s string) (transport.PeerAddress, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, announcePrefix)

	if s == "" {
		return transport.NoPeer, ErrMalformedAddress
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return transport.NoPeer, fmt.Errorf("%w: %q", ErrMalformedAddress, s)
	}

	if n <= 0 || n > maxAddress {
		return transport.NoPeer, fmt.Errorf("%w: %d", ErrInvalidAddress, n)
	}

	return transport.PeerAddress(n), nil
}
