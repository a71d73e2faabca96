package wire

import (
	"encoding/binary"
	"io"

	verrors "github.com/virtengine/tee-signer/pkg/errors"
)

// FrameHeaderSize is the size of the little-endian length prefix.
const FrameHeaderSize = 8

// LengthPrefix returns the 8-byte little-endian length prefix for a payload
// of n bytes.
func LengthPrefix(n int) [FrameHeaderSize]byte {
	var p [FrameHeaderSize]byte
	binary.LittleEndian.PutUint64(p[:], uint64(n))
	return p
}

// WriteFrame writes an 8-byte little-endian length prefix followed by the
// payload. Payloads over MaxMessageSize are rejected before any byte is
// written.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxMessageSize {
		return verrors.WrapCoded(verrors.ErrTooLarge, moduleName, CodeTooLarge,
			"write frame", verrors.CategoryProtocol)
	}
	prefix := LengthPrefix(len(payload))
	if _, err := w.Write(prefix[:]); err != nil {
		return verrors.WrapCoded(err, moduleName, CodeFrameIO, "write frame length", verrors.CategoryTransport)
	}
	if _, err := w.Write(payload); err != nil {
		return verrors.WrapCoded(err, moduleName, CodeFrameIO, "write frame payload", verrors.CategoryTransport)
	}
	return nil
}

// ReadFrame reads one length-prefixed frame and returns its payload.
//
// A clean end of stream before any length byte is read surfaces io.EOF
// unchanged; the enclave serve loop relies on this to stop cleanly.
func ReadFrame(r io.Reader) ([]byte, error) {
	var prefix [FrameHeaderSize]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, verrors.WrapCoded(err, moduleName, CodeFrameIO, "read frame length", verrors.CategoryTransport)
	}

	length := binary.LittleEndian.Uint64(prefix[:])
	if length > MaxMessageSize {
		return nil, verrors.WrapCoded(verrors.ErrTooLarge, moduleName, CodeTooLarge,
			"frame length exceeds message bound", verrors.CategoryProtocol)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, verrors.WrapCoded(err, moduleName, CodeFrameIO, "read frame payload", verrors.CategoryTransport)
	}
	return payload, nil
}
