// Package server implements the host side of the signing service: it runs
// the enclave worker, bridges the enclave's outbound connect onto a pair of
// host-owned channels, and dispatches framed client requests into it over
// TCP.
package server

import (
	"io"
	"sync"
)

// bridgeStream is the synthetic stream handed to the enclave when it
// connects to the symbolic address. Reads drain the host-to-enclave channel;
// writes feed the enclave-to-host channel. The channel endpoints are members
// of the stream value.
type bridgeStream struct {
	recv <-chan []byte
	send chan<- []byte

	// leftover bytes from a chunk larger than the caller's buffer
	pending []byte

	closeOnce sync.Once
}

var _ io.ReadWriteCloser = (*bridgeStream)(nil)

// Read returns bytes from the host. A closed channel reads as end of
// stream, which the enclave serve loop takes as the stop signal.
func (s *bridgeStream) Read(p []byte) (int, error) {
	if len(s.pending) == 0 {
		chunk, ok := <-s.recv
		if !ok {
			return 0, io.EOF
		}
		s.pending = chunk
	}

	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

// Write hands a copy of the buffer to the host.
func (s *bridgeStream) Write(p []byte) (int, error) {
	chunk := make([]byte, len(p))
	copy(chunk, p)
	s.send <- chunk
	return len(p), nil
}

// Close closes the enclave-to-host direction so a waiting dispatcher
// observes the enclave going away.
func (s *bridgeStream) Close() error {
	s.closeOnce.Do(func() {
		close(s.send)
	})
	return nil
}
