package sealing

import (
	"crypto/rand"

	verrors "github.com/virtengine/tee-signer/pkg/errors"
	"github.com/virtengine/tee-signer/pkg/wire"
)

// SealData records how a sealing key was derived. It is stored alongside the
// sealed ciphertext so the enclave can rederive the same key later.
//
// The wrapping key is determined by the tuple (enclave measurement,
// attributes, miscselect, isvsvn, cpusvn, rand, label); everything but the
// measurement is carried here.
type SealData struct {
	Rand       [16]byte
	Nonce      Nonce
	ISVSVN     IsvSvn
	CPUSVN     CPUSVN
	Attributes Attributes
	Miscselect Miscselect
}

// allMask is the fully-set attribute mask: every attribute bit participates
// in the derivation.
var allMask = Attributes{
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
}

func egetkey(hw Hardware, label Label, sd *SealData) (Key, error) {
	// Key ID is combined from the fixed label and per-blob randomness.
	var keyid [32]byte
	copy(keyid[:16], label[:])
	copy(keyid[16:], sd.Rand[:])

	return hw.GetKey(KeyRequest{
		Name:          KeySeal,
		Policy:        PolicyMRENCLAVE,
		ISVSVN:        sd.ISVSVN,
		CPUSVN:        sd.CPUSVN,
		KeyID:         keyid,
		AttributeMask: allMask,
		MiscMask:      ^Miscselect(0),
	})
}

// SealKey derives a fresh wrapping key for the current enclave under label.
//
// The returned SealData must be stored alongside the ciphertext so the key
// can be rederived by UnsealKey. Sealing different kinds of data should use
// different labels.
func SealKey(hw Hardware, label Label) (Key, SealData, error) {
	report := hw.Self()

	sd := SealData{
		ISVSVN:     report.ISVSVN,
		CPUSVN:     report.CPUSVN,
		Attributes: report.Attributes,
		Miscselect: report.Miscselect,
	}
	// Fresh randomness for every sealing operation.
	if _, err := rand.Read(sd.Rand[:]); err != nil {
		return Key{}, SealData{}, verrors.WrapCoded(err, moduleName, CodeEntropy, "seal rand", verrors.CategoryCrypto)
	}
	if _, err := rand.Read(sd.Nonce[:]); err != nil {
		return Key{}, SealData{}, verrors.WrapCoded(err, moduleName, CodeEntropy, "seal nonce", verrors.CategoryCrypto)
	}

	key, err := egetkey(hw, label, &sd)
	if err != nil {
		return Key{}, SealData{}, err
	}
	return key, sd, nil
}

// UnsealKey rederives the wrapping key recorded in sd for the current
// enclave.
//
// Attributes and miscselect are not part of the derivation inputs the
// hardware checks, so they are compared against the self-report here;
// without this check the derivation would silently produce a wrong key.
func UnsealKey(hw Hardware, label Label, sd *SealData) (Key, error) {
	report := hw.Self()
	if report.Attributes != sd.Attributes || report.Miscselect != sd.Miscselect {
		return Key{}, verrors.WrapCoded(verrors.ErrSealDataMismatch, moduleName, CodeSealMismatch,
			"enclave state differs from seal time", verrors.CategoryCrypto)
	}
	return egetkey(hw, label, sd)
}

// Encode appends the seal data to enc in its canonical layout.
func (sd *SealData) Encode(enc *wire.Encoder) {
	enc.PutRaw(sd.Rand[:])
	enc.PutRaw(sd.Nonce[:])
	enc.PutUint16(sd.ISVSVN)
	enc.PutRaw(sd.CPUSVN[:])
	enc.PutRaw(sd.Attributes[:])
	enc.PutUint32(sd.Miscselect)
}

// DecodeSealData reads seal data from dec in its canonical layout.
func DecodeSealData(dec *wire.Decoder) (SealData, error) {
	var sd SealData

	b, err := dec.Raw(len(sd.Rand))
	if err != nil {
		return sd, err
	}
	copy(sd.Rand[:], b)

	if b, err = dec.Raw(len(sd.Nonce)); err != nil {
		return sd, err
	}
	copy(sd.Nonce[:], b)

	if sd.ISVSVN, err = dec.Uint16(); err != nil {
		return sd, err
	}

	if b, err = dec.Raw(len(sd.CPUSVN)); err != nil {
		return sd, err
	}
	copy(sd.CPUSVN[:], b)

	if b, err = dec.Raw(len(sd.Attributes)); err != nil {
		return sd, err
	}
	copy(sd.Attributes[:], b)

	if sd.Miscselect, err = dec.Uint32(); err != nil {
		return sd, err
	}
	return sd, nil
}
