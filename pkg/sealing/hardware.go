package sealing

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/hkdf"

	verrors "github.com/virtengine/tee-signer/pkg/errors"
)

const moduleName = "sealing"

// Error codes for the sealing module.
const (
	CodeRootKeyIO     = 200
	CodeBadKeyRequest = 201
	CodeSVNExceeded   = 202
	CodeSealMismatch  = 203
	CodeAEADInit      = 204
	CodeEntropy       = 205
	CodeSealFailed    = 206
	CodeUnsealFailed  = 207
)

// KeyName selects the class of derived key.
type KeyName uint16

// KeySeal is the sealing-key class.
const KeySeal KeyName = 4

// KeyPolicy selects which enclave identity the derivation binds to.
type KeyPolicy uint16

const (
	// PolicyMRENCLAVE binds the key to the exact enclave measurement.
	PolicyMRENCLAVE KeyPolicy = 1

	// PolicyMRSIGNER binds the key to the enclave signer.
	PolicyMRSIGNER KeyPolicy = 2
)

// KeyRequest describes a wrapping-key derivation.
type KeyRequest struct {
	Name          KeyName
	Policy        KeyPolicy
	ISVSVN        IsvSvn
	CPUSVN        CPUSVN
	KeyID         [32]byte
	AttributeMask Attributes
	MiscMask      Miscselect
}

// Hardware exposes the enclave's self-report and key-derivation facility.
type Hardware interface {
	// Self returns the enclave's current self-report.
	Self() Report

	// GetKey derives a wrapping key for the request. Derivation fails when
	// the requested security version exceeds the current one.
	GetKey(req KeyRequest) (Key, error)
}

// rootKeySize is the size of the machine root secret backing derivations.
const rootKeySize = 32

// Config carries the security-state snapshot the software device reports.
type Config struct {
	ISVSVN     IsvSvn
	CPUSVN     CPUSVN
	Attributes Attributes
	Miscselect Miscselect
}

// DefaultConfig returns the security-state snapshot used when none is
// configured.
func DefaultConfig() Config {
	var cfg Config
	cfg.ISVSVN = 1
	cfg.Attributes[0] = 0x06 // DEBUG|MODE64BIT
	return cfg
}

// DeviceHardware is the software key-derivation device. Keys are derived
// from a machine root secret fused with the enclave measurement and the
// masked security state, so a different measurement, machine, or downgraded
// security version yields a different (or no) key.
type DeviceHardware struct {
	rootKey []byte
	report  Report
}

var _ Hardware = (*DeviceHardware)(nil)

// NewDeviceHardware opens the root secret at rootKeyPath (creating it with
// fresh randomness and 0600 permissions on first use) and returns a device
// reporting the given measurement and security state.
func NewDeviceHardware(rootKeyPath string, measurement [MeasurementSize]byte, cfg Config) (*DeviceHardware, error) {
	rootKey, err := loadOrCreateRootKey(rootKeyPath)
	if err != nil {
		return nil, err
	}

	return &DeviceHardware{
		rootKey: rootKey,
		report: Report{
			Measurement: measurement,
			ISVSVN:      cfg.ISVSVN,
			CPUSVN:      cfg.CPUSVN,
			Attributes:  cfg.Attributes,
			Miscselect:  cfg.Miscselect,
		},
	}, nil
}

func loadOrCreateRootKey(path string) ([]byte, error) {
	key, err := os.ReadFile(path)
	if err == nil {
		if len(key) != rootKeySize {
			return nil, verrors.NewCryptoError(moduleName, CodeRootKeyIO, "root key file has wrong size")
		}
		return key, nil
	}
	if !os.IsNotExist(err) {
		return nil, verrors.WrapCoded(err, moduleName, CodeRootKeyIO, "read root key", verrors.CategoryCrypto)
	}

	key = make([]byte, rootKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, verrors.WrapCoded(err, moduleName, CodeEntropy, "generate root key", verrors.CategoryCrypto)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, verrors.WrapCoded(err, moduleName, CodeRootKeyIO, "create root key dir", verrors.CategoryCrypto)
		}
	}
	if err := os.WriteFile(path, key, 0o600); err != nil {
		return nil, verrors.WrapCoded(err, moduleName, CodeRootKeyIO, "write root key", verrors.CategoryCrypto)
	}
	return key, nil
}

// Self implements Hardware.
func (h *DeviceHardware) Self() Report {
	return h.report
}

// GetKey implements Hardware. The derivation is HKDF-SHA256 over the root
// secret with the canonical key request as context, truncated to 16 bytes.
func (h *DeviceHardware) GetKey(req KeyRequest) (Key, error) {
	var key Key

	if req.Name != KeySeal {
		return key, verrors.WrapCoded(verrors.ErrKeyDerivation, moduleName, CodeBadKeyRequest,
			"unsupported key name", verrors.CategoryCrypto)
	}
	if req.Policy != PolicyMRENCLAVE && req.Policy != PolicyMRSIGNER {
		return key, verrors.WrapCoded(verrors.ErrKeyDerivation, moduleName, CodeBadKeyRequest,
			"unsupported key policy", verrors.CategoryCrypto)
	}
	// A request for a newer security version than the current one must not
	// derive: this is what breaks unsealing after a TCB downgrade.
	if req.ISVSVN > h.report.ISVSVN {
		return key, verrors.WrapCoded(verrors.ErrKeyDerivation, moduleName, CodeSVNExceeded,
			"requested isvsvn exceeds current", verrors.CategoryCrypto)
	}

	info := h.derivationContext(req)
	kdf := hkdf.New(sha256.New, h.rootKey, nil, info)
	if _, err := io.ReadFull(kdf, key[:]); err != nil {
		return key, verrors.WrapCoded(verrors.ErrKeyDerivation, moduleName, CodeBadKeyRequest,
			"hkdf expand", verrors.CategoryCrypto)
	}
	return key, nil
}

// derivationContext serializes the inputs the derived key is bound to. The
// enclave measurement participates under MRENCLAVE policy, so a rebuilt
// enclave image derives different keys for the same request.
func (h *DeviceHardware) derivationContext(req KeyRequest) []byte {
	buf := make([]byte, 0, 128)
	buf = append(buf, "tee-signer-seal-v1"...)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(req.Name))
	buf = binary.LittleEndian.AppendUint16(buf, uint16(req.Policy))
	if req.Policy == PolicyMRENCLAVE {
		buf = append(buf, h.report.Measurement[:]...)
	}
	buf = binary.LittleEndian.AppendUint16(buf, req.ISVSVN)
	buf = append(buf, req.CPUSVN[:]...)
	buf = append(buf, req.KeyID[:]...)
	for i, b := range h.report.Attributes {
		buf = append(buf, b&req.AttributeMask[i])
	}
	buf = binary.LittleEndian.AppendUint32(buf, h.report.Miscselect&req.MiscMask)
	return buf
}
