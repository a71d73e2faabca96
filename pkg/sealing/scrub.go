package sealing

import (
	"runtime"
)

// Memory scrubbing for seed and wrapping-key material handled inside the
// enclave operations.
//
// Security notes:
// - These functions zero memory before it is garbage collected
// - Go's garbage collector may move memory, so these are best-effort
// - Callers should keep secrets in locals and scrub on every return path

// ScrubBytes overwrites a byte slice with zeros.
func ScrubBytes(data []byte) {
	if len(data) == 0 {
		return
	}
	for i := range data {
		data[i] = 0
	}
	// Keep the slice live so the scrub is not optimized away.
	runtime.KeepAlive(data)
}

// ScrubKey overwrites a wrapping key with zeros.
func ScrubKey(key *Key) {
	if key == nil {
		return
	}
	ScrubBytes(key[:])
}
