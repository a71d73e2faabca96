// Package enclave provides a deterministic mock of the sealing hardware for
// tests. It avoids any device or root-key file dependency while keeping
// derivations stable within a process.
package enclave

import (
	"crypto/sha256"
	"encoding/binary"
	"io"

	"golang.org/x/crypto/hkdf"

	verrors "github.com/virtengine/tee-signer/pkg/errors"
	"github.com/virtengine/tee-signer/pkg/sealing"
)

// MockHardware is a lightweight in-memory implementation of
// sealing.Hardware with deterministic defaults and injectable failures.
type MockHardware struct {
	Report  sealing.Report
	RootKey [32]byte

	// KeyErr, when set, is returned by every GetKey call.
	KeyErr error
}

var _ sealing.Hardware = (*MockHardware)(nil)

// NewMockHardware returns a mock with deterministic defaults.
func NewMockHardware() *MockHardware {
	m := &MockHardware{
		RootKey: sha256.Sum256([]byte("mock-root-key")),
	}
	m.Report.Measurement = sha256.Sum256([]byte("mock-enclave-measurement"))
	m.Report.ISVSVN = 2
	m.Report.CPUSVN[0] = 1
	m.Report.Attributes[0] = 0x06
	return m
}

// WithMeasurement returns a copy of the mock reporting a different enclave
// measurement, as if the image had been rebuilt.
func (m *MockHardware) WithMeasurement(seed string) *MockHardware {
	c := *m
	c.Report.Measurement = sha256.Sum256([]byte(seed))
	return &c
}

// Self implements sealing.Hardware.
func (m *MockHardware) Self() sealing.Report {
	return m.Report
}

// GetKey implements sealing.Hardware with an HKDF-SHA256 derivation over the
// mock root key. Same request, same key; any bound input change, different
// key.
func (m *MockHardware) GetKey(req sealing.KeyRequest) (sealing.Key, error) {
	var key sealing.Key

	if m.KeyErr != nil {
		return key, m.KeyErr
	}
	if req.ISVSVN > m.Report.ISVSVN {
		return key, verrors.ErrKeyDerivation
	}

	info := make([]byte, 0, 128)
	info = binary.LittleEndian.AppendUint16(info, uint16(req.Name))
	info = binary.LittleEndian.AppendUint16(info, uint16(req.Policy))
	if req.Policy == sealing.PolicyMRENCLAVE {
		info = append(info, m.Report.Measurement[:]...)
	}
	info = binary.LittleEndian.AppendUint16(info, req.ISVSVN)
	info = append(info, req.CPUSVN[:]...)
	info = append(info, req.KeyID[:]...)
	for i, b := range m.Report.Attributes {
		info = append(info, b&req.AttributeMask[i])
	}
	info = binary.LittleEndian.AppendUint32(info, m.Report.Miscselect&req.MiscMask)

	kdf := hkdf.New(sha256.New, m.RootKey[:], nil, info)
	if _, err := io.ReadFull(kdf, key[:]); err != nil {
		return key, err
	}
	return key, nil
}
