package sealing

import (
	"crypto/cipher"

	siv "github.com/secure-io/siv-go"

	verrors "github.com/virtengine/tee-signer/pkg/errors"
)

// NewAEAD returns the sealing AEAD for a derived wrapping key:
// AES-128-GCM-SIV with 12-byte nonces and no associated data.
func NewAEAD(key Key) (cipher.AEAD, error) {
	aead, err := siv.NewGCM(key[:])
	if err != nil {
		return nil, verrors.WrapCoded(err, moduleName, CodeAEADInit, "init aes-gcm-siv", verrors.CategoryCrypto)
	}
	return aead, nil
}

// Seal encrypts plaintext under key with the nonce recorded in sd.
func Seal(key Key, sd *SealData, plaintext []byte) ([]byte, error) {
	aead, err := NewAEAD(key)
	if err != nil {
		return nil, err
	}
	return aead.Seal(nil, sd.Nonce[:], plaintext, nil), nil
}

// Open decrypts a sealed ciphertext under key with the nonce recorded in sd.
// Any mutation of the ciphertext, nonce, or derivation inputs fails the tag
// check.
func Open(key Key, sd *SealData, ciphertext []byte) ([]byte, error) {
	aead, err := NewAEAD(key)
	if err != nil {
		return nil, err
	}
	plaintext, err := aead.Open(nil, sd.Nonce[:], ciphertext, nil)
	if err != nil {
		return nil, verrors.WrapCoded(verrors.ErrUnsealFailed, moduleName, CodeUnsealFailed,
			"aead open", verrors.CategoryCrypto)
	}
	return plaintext, nil
}
