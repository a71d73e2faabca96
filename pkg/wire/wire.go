// Package wire implements the binary encoding shared by the sealed-signer
// artifact and the request/response protocol, plus the length-prefixed frame
// used on byte streams.
//
// The layout is deterministic little-endian: fixed-width integers are encoded
// directly, variable-length byte strings are preceded by a u64 length, and
// fixed-size arrays are encoded raw. Sum types carry a u32 variant tag.
package wire

import (
	"encoding/binary"

	verrors "github.com/virtengine/tee-signer/pkg/errors"
)

// MaxMessageSize is the maximum encoded size of a single message payload.
// Encoders reject larger payloads before any byte is transmitted; readers
// enforce the same bound and abort the stream on violation.
const MaxMessageSize = 61440

const moduleName = "wire"

// Error codes for the wire module.
const (
	CodeShortBuffer   = 100
	CodeTrailingBytes = 101
	CodeTooLarge      = 102
	CodeFrameIO       = 103
	CodeBadLength     = 104
)

// Encoder accumulates a little-endian binary encoding.
type Encoder struct {
	buf []byte
}

// NewEncoder returns an empty encoder.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// PutUint16 appends a little-endian u16.
func (e *Encoder) PutUint16(v uint16) {
	e.buf = binary.LittleEndian.AppendUint16(e.buf, v)
}

// PutUint32 appends a little-endian u32.
func (e *Encoder) PutUint32(v uint32) {
	e.buf = binary.LittleEndian.AppendUint32(e.buf, v)
}

// PutUint64 appends a little-endian u64.
func (e *Encoder) PutUint64(v uint64) {
	e.buf = binary.LittleEndian.AppendUint64(e.buf, v)
}

// PutBytes appends a variable-length byte string: u64 length then the bytes.
func (e *Encoder) PutBytes(b []byte) {
	e.PutUint64(uint64(len(b)))
	e.buf = append(e.buf, b...)
}

// PutRaw appends fixed-size bytes without a length prefix.
func (e *Encoder) PutRaw(b []byte) {
	e.buf = append(e.buf, b...)
}

// Bytes returns the encoding accumulated so far, enforcing the message bound.
func (e *Encoder) Bytes() ([]byte, error) {
	if len(e.buf) > MaxMessageSize {
		return nil, verrors.WrapCoded(verrors.ErrTooLarge, moduleName, CodeTooLarge,
			"encode message", verrors.CategoryProtocol)
	}
	return e.buf, nil
}

// Decoder consumes a little-endian binary encoding.
type Decoder struct {
	buf []byte
	off int
}

// NewDecoder returns a decoder over buf.
func NewDecoder(buf []byte) *Decoder {
	return &Decoder{buf: buf}
}

func (d *Decoder) take(n int) ([]byte, error) {
	if n < 0 || len(d.buf)-d.off < n {
		return nil, verrors.NewProtocolError(moduleName, CodeShortBuffer, "unexpected end of encoded data")
	}
	b := d.buf[d.off : d.off+n]
	d.off += n
	return b, nil
}

// Uint16 reads a little-endian u16.
func (d *Decoder) Uint16() (uint16, error) {
	b, err := d.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// Uint32 reads a little-endian u32.
func (d *Decoder) Uint32() (uint32, error) {
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// Uint64 reads a little-endian u64.
func (d *Decoder) Uint64() (uint64, error) {
	b, err := d.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// Bytes reads a variable-length byte string and returns a copy.
func (d *Decoder) Bytes() ([]byte, error) {
	n, err := d.Uint64()
	if err != nil {
		return nil, err
	}
	if n > MaxMessageSize {
		return nil, verrors.NewProtocolError(moduleName, CodeBadLength, "declared length exceeds message bound")
	}
	b, err := d.take(int(n))
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// Raw reads n fixed-size bytes without a length prefix.
func (d *Decoder) Raw(n int) ([]byte, error) {
	return d.take(n)
}

// Finish verifies that the entire buffer has been consumed.
func (d *Decoder) Finish() error {
	if d.off != len(d.buf) {
		return verrors.NewProtocolError(moduleName, CodeTrailingBytes, "trailing bytes after message")
	}
	return nil
}
