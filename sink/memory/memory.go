package memory

import "sync"

// Sink is a thread-safe in-memory implementation of receiver.Sink.
// Suitable for tests, examples and single-shot tools that just want the
// received messages back. Everything is lost when the process exits.
type Sink struct {
	mu       sync.RWMutex
	messages [][]byte
}

// New creates an empty in-memory sink.
func New() *Sink {
	return &Sink{}
}

// Deliver stores one finalized message.
// The message is copied — the caller's buffer is never retained.
func (s *Sink) Deliver(msg []byte) error {
	m := make([]byte, len(msg))
	copy(m, msg)

	s.mu.Lock()
	s.messages = append(s.messages, m)
	s.mu.Unlock()
	return nil
}

// Messages returns a copy of everything delivered so far, in order.
func (s *Sink) Messages() [][]byte {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([][]byte, len(s.messages))
	for i, m := range s.messages {
		c := make([]byte, len(m))
		copy(c, m)
		out[i] = c
	}
	return out
}

// Last returns the most recently delivered message, if any.
func (s *Sink) Last() ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.messages) == 0 {
		return nil, false
	}
	m := s.messages[len(s.messages)-1]
	c := make([]byte, len(m))
	copy(c, m)
	return c, true
}

// Count returns the number of messages delivered so far.
// Useful for observability and testing.
func (s *Sink) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}
