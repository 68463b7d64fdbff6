package codec

import "errors"

// ErrEmbeddedTerminator is returned when a message to encode contains a zero
// byte. Zero is reserved as the message terminator in this framing scheme,
// so it can never appear inside a message. Named errors like this let callers
// check the exact cause with errors.Is() instead of comparing raw strings.
var ErrEmbeddedTerminator = errors.New("message contains embedded terminator byte")

// ErrTruncatedMessage is returned when a bit sequence ends before a
// terminator byte was completed — the stream stopped mid-message.
var ErrTruncatedMessage = errors.New("bit sequence ends before terminator")

// Bit is one transmitted symbol. The whole wire protocol is built from
// sequences of these two values — a notification of one kind or the other.
type Bit uint8

const (
	Zero Bit = iota // bit value 0, sent as notification kind A
	One             // bit value 1, sent as notification kind B
)

// String makes Bits readable in logs and test failures.
func (b Bit) String() string {
	if b == One {
		return "1"
	}
	return "0"
}

// Terminator is the byte value that ends a message.
// A message on the wire is its bytes followed by one Terminator byte.
// This is sentinel framing — it is why messages cannot contain zero bytes.
const Terminator byte = 0x00

// BitsPerByte is how many symbols one byte expands into.
const BitsPerByte = 8

// EncodeByte expands a byte into its 8 bit symbols, least-significant first.
// Index 0 of the result is bit position 0 of the byte.
// Pure and total — there is no byte value that cannot be encoded.
func EncodeByte(b byte) [BitsPerByte]Bit {
	var bits [BitsPerByte]Bit
	for i := 0; i < BitsPerByte; i++ {
		if b&(1<<i) != 0 {
			bits[i] = One
		}
	}
	return bits
}

// DecodeByte reassembles a byte from its 8 bit symbols, least-significant first.
// Exact inverse of EncodeByte.
func DecodeByte(bits [BitsPerByte]Bit) byte {
	var b byte
	for i := 0; i < BitsPerByte; i++ {
		if bits[i] == One {
			b |= 1 << i
		}
	}
	return b
}

// Validate checks that a message is encodable under sentinel framing.
// Returns ErrEmbeddedTerminator if the message contains a zero byte.
// An empty message is valid — it encodes to just the terminator.
func Validate(msg []byte) error {
	for _, b := range msg {
		if b == Terminator {
			return ErrEmbeddedTerminator
		}
	}
	return nil
}

// EncodeMessage expands a whole message into its wire bit sequence:
// every byte of the message, then the terminator byte, each as 8 bits
// LSB first. Fails with ErrEmbeddedTerminator on embedded zero bytes.
func EncodeMessage(msg []byte) ([]Bit, error) {
	if err := Validate(msg); err != nil {
		return nil, err
	}

	bits := make([]Bit, 0, (len(msg)+1)*BitsPerByte)
	for _, b := range msg {
		byteBits := EncodeByte(b)
		bits = append(bits, byteBits[:]...)
	}
	termBits := EncodeByte(Terminator)
	bits = append(bits, termBits[:]...)
	return bits, nil
}

// DecodeMessage reassembles a message from a wire bit sequence.
// The sequence must contain a complete terminator byte; anything after the
// terminator is ignored (it belongs to the next message).
// Returns ErrTruncatedMessage if the bits run out before the terminator.
func DecodeMessage(bits []Bit) ([]byte, error) {
	msg := []byte{}
	var current [BitsPerByte]Bit

	for i := 0; i+BitsPerByte <= len(bits); i += BitsPerByte {
		copy(current[:], bits[i:i+BitsPerByte])
		b := DecodeByte(current)
		if b == Terminator {
			return msg, nil
		}
		msg = append(msg, b)
	}
	return nil, ErrTruncatedMessage
}
