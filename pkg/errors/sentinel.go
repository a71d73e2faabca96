package errors

import (
	"errors"
)

// Common sentinel errors used across modules.
// These should be used with errors.Is() for comparison.

var (
	// ErrStop names a clean stop. The enclave serve loop does not return it:
	// on stream EOF it returns nil.
	ErrStop = errors.New("stop")

	// ErrTooLarge is returned when an encoded message exceeds the frame bound.
	ErrTooLarge = errors.New("encoded data too large")

	// ErrKeyExists is returned when a sealed-blob path already exists on store.
	ErrKeyExists = errors.New("secret key path already exists")

	// ErrInvalidSeed is returned when imported seed material is not a valid
	// 32-byte Ed25519 seed.
	ErrInvalidSeed = errors.New("invalid seed")

	// ErrSealDataMismatch is returned when the enclave self-report does not
	// match the attributes or miscselect recorded at seal time.
	ErrSealDataMismatch = errors.New("seal data does not match enclave")

	// ErrUnsealFailed is returned when AEAD decryption of a sealed seed fails.
	ErrUnsealFailed = errors.New("unseal failed")

	// ErrKeyDerivation is returned when hardware key derivation fails.
	ErrKeyDerivation = errors.New("key derivation failed")

	// ErrTimeout names a stream timeout. Stream deadline errors are surfaced
	// as the wrapped net error, not as ErrTimeout.
	ErrTimeout = errors.New("timeout")

	// ErrClosed is returned when sending on or receiving from a closed peer.
	ErrClosed = errors.New("peer closed")

	// ErrBadKeyType is returned for an unrecognized textual key encoding.
	ErrBadKeyType = errors.New("unsupported key type")
)
