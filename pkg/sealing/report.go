// Package sealing derives enclave-bound wrapping keys and seals secrets with
// AEAD so that only the same enclave on the same machine can recover them.
//
// The key-derivation hardware sits behind the Hardware interface. The
// software device binds derivations to a machine root secret and the enclave
// image measurement, the same construction the runtime uses when no TEE
// device is present.
package sealing

// Label domain-separates sealing-key derivations. Two sealed blobs produced
// by the same enclave use independent labels and therefore independent
// wrapping keys.
type Label = [16]byte

// Nonce is the AEAD nonce recorded per sealing operation.
type Nonce = [12]byte

// CPUSVN is the CPU security version recorded at seal time.
type CPUSVN = [16]byte

// IsvSvn is the enclave security version recorded at seal time.
type IsvSvn = uint16

// Attributes is the enclave attribute flags snapshot.
type Attributes = [16]byte

// Miscselect is the enclave MISCSELECT snapshot.
type Miscselect = uint32

// Key is a derived 16-byte wrapping key.
type Key = [16]byte

// MeasurementSize is the size of an enclave measurement.
const MeasurementSize = 32

// Report is the enclave's view of its own identity and security state,
// captured at seal time and re-read at unseal time.
type Report struct {
	Measurement [MeasurementSize]byte
	ISVSVN      IsvSvn
	CPUSVN      CPUSVN
	Attributes  Attributes
	Miscselect  Miscselect
}
