package signer

import (
	"github.com/virtengine/tee-signer/pkg/sealing"
	"github.com/virtengine/tee-signer/pkg/wire"
)

// Encode appends the sealed signer to enc: sealed seed as a length-prefixed
// byte string, then the seal data, then the raw 16-byte label.
func (s *SealedSigner) Encode(enc *wire.Encoder) {
	enc.PutBytes(s.sealedSeed)
	s.sealData.Encode(enc)
	enc.PutRaw(s.label[:])
}

// Decode reads a sealed signer from dec. Decoding accepts any byte string
// the encoder could have produced; cryptographic validity is only checked by
// a later sign or public-key operation.
func Decode(dec *wire.Decoder) (*SealedSigner, error) {
	sealedSeed, err := dec.Bytes()
	if err != nil {
		return nil, err
	}

	sealData, err := sealing.DecodeSealData(dec)
	if err != nil {
		return nil, err
	}

	var label sealing.Label
	b, err := dec.Raw(len(label))
	if err != nil {
		return nil, err
	}
	copy(label[:], b)

	return &SealedSigner{
		sealedSeed: sealedSeed,
		sealData:   sealData,
		label:      label,
	}, nil
}

// MarshalBinary returns the deterministic standalone encoding of the sealed
// signer, the format persisted in sealed-blob files.
func (s *SealedSigner) MarshalBinary() ([]byte, error) {
	enc := wire.NewEncoder()
	s.Encode(enc)
	return enc.Bytes()
}

// UnmarshalBinary parses a standalone encoding produced by MarshalBinary.
func UnmarshalBinary(data []byte) (*SealedSigner, error) {
	dec := wire.NewDecoder(data)
	s, err := Decode(dec)
	if err != nil {
		return nil, err
	}
	if err := dec.Finish(); err != nil {
		return nil, err
	}
	return s, nil
}
