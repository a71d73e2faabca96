// Package signer implements the sealed Ed25519 signer: an encrypted seed
// plus the metadata needed to rederive its wrapping key inside the enclave.
package signer

import (
	"crypto/ed25519"
	"crypto/rand"

	verrors "github.com/virtengine/tee-signer/pkg/errors"
	"github.com/virtengine/tee-signer/pkg/sealing"
)

const moduleName = "signer"

// Error codes for the signer module.
const (
	CodeInvalidSeed = 300
	CodeEntropy     = 301
	CodeSealSeed    = 302
	CodeBadSig      = 303
)

const (
	// SeedSize is the size of an Ed25519 private seed.
	SeedSize = ed25519.SeedSize

	// PublicKeySize is the size of an Ed25519 public key.
	PublicKeySize = ed25519.PublicKeySize

	// SignatureSize is the size of an Ed25519 signature.
	SignatureSize = ed25519.SignatureSize
)

// SealedSigner is the persistable signing artifact: an AEAD-sealed Ed25519
// seed, the seal metadata, and the key-derivation label. It is immutable
// after construction; a new key is a new SealedSigner.
type SealedSigner struct {
	sealedSeed []byte
	sealData   sealing.SealData
	label      sealing.Label
}

// New generates a fresh Ed25519 seed and seals it for the current enclave.
func New(hw sealing.Hardware) (*SealedSigner, error) {
	seed := make([]byte, SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, verrors.WrapCoded(err, moduleName, CodeEntropy, "generate seed", verrors.CategoryCrypto)
	}
	defer sealing.ScrubBytes(seed)

	return seal(hw, seed)
}

// Import seals a caller-provided 32-byte Ed25519 seed for the current
// enclave. The input slice is not scrubbed; it belongs to the caller.
func Import(hw sealing.Hardware, rawSeed []byte) (*SealedSigner, error) {
	if len(rawSeed) != SeedSize {
		return nil, verrors.WrapCoded(verrors.ErrInvalidSeed, moduleName, CodeInvalidSeed,
			"seed must be 32 bytes", verrors.CategoryCrypto)
	}
	return seal(hw, rawSeed)
}

func seal(hw sealing.Hardware, seed []byte) (*SealedSigner, error) {
	var label sealing.Label
	if _, err := rand.Read(label[:]); err != nil {
		return nil, verrors.WrapCoded(err, moduleName, CodeEntropy, "generate label", verrors.CategoryCrypto)
	}

	key, sealData, err := sealing.SealKey(hw, label)
	if err != nil {
		return nil, err
	}
	defer sealing.ScrubKey(&key)

	sealedSeed, err := sealing.Seal(key, &sealData, seed)
	if err != nil {
		return nil, verrors.WrapCoded(err, moduleName, CodeSealSeed, "seal seed", verrors.CategoryCrypto)
	}

	return &SealedSigner{
		sealedSeed: sealedSeed,
		sealData:   sealData,
		label:      label,
	}, nil
}

// unsealKey recovers the private key. The caller must scrub the returned key
// before returning.
func (s *SealedSigner) unsealKey(hw sealing.Hardware) (ed25519.PrivateKey, error) {
	wrapKey, err := sealing.UnsealKey(hw, s.label, &s.sealData)
	if err != nil {
		return nil, err
	}
	defer sealing.ScrubKey(&wrapKey)

	seed, err := sealing.Open(wrapKey, &s.sealData, s.sealedSeed)
	if err != nil {
		return nil, err
	}
	defer sealing.ScrubBytes(seed)

	if len(seed) != SeedSize {
		return nil, verrors.WrapCoded(verrors.ErrInvalidSeed, moduleName, CodeInvalidSeed,
			"unsealed seed has wrong size", verrors.CategoryCrypto)
	}
	return ed25519.NewKeyFromSeed(seed), nil
}

// PublicKey unseals the seed, derives the Ed25519 public key, and discards
// the seed.
func (s *SealedSigner) PublicKey(hw sealing.Hardware) ([]byte, error) {
	priv, err := s.unsealKey(hw)
	if err != nil {
		return nil, err
	}
	defer sealing.ScrubBytes(priv)

	pub := make([]byte, PublicKeySize)
	copy(pub, priv[SeedSize:])
	return pub, nil
}

// TrySign unseals the seed, signs the message, and discards the seed.
func (s *SealedSigner) TrySign(hw sealing.Hardware, msg []byte) ([]byte, error) {
	priv, err := s.unsealKey(hw)
	if err != nil {
		return nil, err
	}
	defer sealing.ScrubBytes(priv)

	return ed25519.Sign(priv, msg), nil
}

// Verify checks a signature over msg against this signer's public key.
func (s *SealedSigner) Verify(hw sealing.Hardware, msg, sig []byte) error {
	if len(sig) != SignatureSize {
		return verrors.NewCryptoError(moduleName, CodeBadSig, "signature must be 64 bytes")
	}

	pub, err := s.PublicKey(hw)
	if err != nil {
		return err
	}
	if !ed25519.Verify(ed25519.PublicKey(pub), msg, sig) {
		return verrors.NewCryptoError(moduleName, CodeBadSig, "signature verification failed")
	}
	return nil
}

// Equal reports whether two sealed signers are byte-identical artifacts.
func (s *SealedSigner) Equal(o *SealedSigner) bool {
	if s == nil || o == nil {
		return s == o
	}
	if s.sealData != o.sealData || s.label != o.label {
		return false
	}
	if len(s.sealedSeed) != len(o.sealedSeed) {
		return false
	}
	for i := range s.sealedSeed {
		if s.sealedSeed[i] != o.sealedSeed[i] {
			return false
		}
	}
	return true
}
