package session

import "github.com/rdelicado/minitalk/codec"

// Accumulator assembles bytes out of individual bit symbols as they arrive.
// It lives inside a Context and is the single source of truth for where we
// are inside the current byte.
//
// It is deliberately tiny and allocation-free: it is fed from the
// notification-draining path, which must stay fast so the delivery buffer
// never backs up (a slow consumer widens the coalescing window).
type Accumulator struct {
	value byte // partially assembled byte, bits below count are final
	count int  // bits received so far, always in [0, 8)
}

// Feed appends one bit at the current position, least-significant first.
// When the 8th bit lands, Feed returns the completed byte with done=true
// and the accumulator resets to (value=0, count=0) for the next byte.
// Before that it returns (0, false).
func (a *Accumulator) Feed(bit codec.Bit) (byte, bool) {
	if bit == codec.One {
		a.value |= 1 << a.count
	}
	a.count++

	if a.count < codec.BitsPerByte {
		return 0, false
	}

	b := a.value
	a.value = 0
	a.count = 0
	return b, true
}

// BitCount reports how many bits of the current byte have arrived.
// A non-zero count at an unexpected moment means a byte is in flight —
// a receiver that restarts here loses the current message.
func (a *Accumulator) BitCount() int {
	return a.count
}

// Reset discards any partially assembled byte.
func (a *Accumulator) Reset() {
	a.value = 0
	a.count = 0
}
