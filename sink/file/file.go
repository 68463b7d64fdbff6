package file

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// record is the JSON structure appended to disk for each message.
// Data round-trips as base64 through encoding/json, so binary-safe; Text is
// the human-readable view for eyeballing the log with standard tools.
type record struct {
	ReceivedAt time.Time `json:"received_at"`
	Size       int       `json:"size"`
	Data       []byte    `json:"data"`
	Text       string    `json:"text,omitempty"`
}

// Sink is a file-backed implementation of receiver.Sink.
// Each delivered message becomes one JSON line appended to the file, so
// received messages survive server restarts and can be tailed live.
type Sink struct {
	mu    sync.Mutex
	path  string
	f     *os.File
	enc   *json.Encoder
	count int
}

// New creates a file-backed sink at the given path.
// The file is created if missing and appended to if it exists — restarting
// the server never discards previously received messages.
func New(path string) (*Sink, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open message log %s: %w", path, err)
	}

	return &Sink{
		path: path,
		f:    f,
		enc:  json.NewEncoder(f),
	}, nil
}

// Deliver appends one finalized message to the file.
// An error here propagates back through the receiver as a rejection, so a
// full disk stops the sender instead of silently dropping messages.
func (s *Sink) Deliver(msg []byte) error {
	rec := record{
		ReceivedAt: time.Now(),
		Size:       len(msg),
		Data:       msg,
	}
	if isPrintable(msg) {
		rec.Text = string(msg)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enc.Encode(rec); err != nil {
		return fmt.Errorf("failed to persist message: %w", err)
	}
	s.count++
	return nil
}

// Count returns the number of messages delivered through this Sink since
// it was opened. Pre-existing records in the file are not counted.
func (s *Sink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Close flushes and closes the underlying file.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}

// Load reads all records back from a message log.
// Used by tests and by tooling that post-processes received messages.
func Load(path string) ([][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var msgs [][]byte
	dec := json.NewDecoder(f)
	for dec.More() {
		var rec record
		if err := dec.Decode(&rec); err != nil {
			return nil, fmt.Errorf("corrupt message log %s: %w", path, err)
		}
		msgs = append(msgs, rec.Data)
	}
	return msgs, nil
}

// isPrintable reports whether a message is plain printable ASCII,
// in which case the record carries a readable Text field too.
func isPrintable(msg []byte) bool {
	for _, b := range msg {
		if b < 0x20 || b > 0x7E {
			return false
		}
	}
	return len(msg) > 0
}
