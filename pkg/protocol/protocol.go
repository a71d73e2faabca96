// Package protocol defines the request/response messages exchanged between
// client, host, and enclave, and their tagged binary encoding.
//
// A message is a u32 little-endian variant tag followed by the variant
// payload. One TCP connection carries exactly one request and one response.
package protocol

import (
	"github.com/virtengine/tee-signer/pkg/signer"
	"github.com/virtengine/tee-signer/pkg/wire"

	verrors "github.com/virtengine/tee-signer/pkg/errors"
)

const moduleName = "protocol"

// Error codes for the protocol module.
const (
	CodeUnknownTag = 400
	CodeBadPayload = 401
)

// Request variant tags.
const (
	tagPing uint32 = iota
	tagKeyGen
	tagGetPublicKey
	tagImport
	tagSign
)

// Response variant tags.
const (
	tagPong uint32 = iota
	tagKeyPair
	tagPublicKey
	tagSigned
	tagError
)

// KeyPair pairs a sealed private key with its public key, so the client can
// learn the public key without being able to unseal.
type KeyPair struct {
	SealedPrivkey *signer.SealedSigner
	Pubkey        []byte
}

// Request is one of Ping, KeyGen, GetPublicKey, Import, Sign.
type Request interface {
	isRequest()
}

// Ping is a liveness probe.
type Ping struct{}

// KeyGen asks the enclave to generate and seal a fresh keypair.
type KeyGen struct{}

// GetPublicKey asks the enclave to derive the public key of a sealed signer.
type GetPublicKey struct {
	Signer *signer.SealedSigner
}

// Import asks the enclave to seal a caller-provided raw seed.
type Import struct {
	Seed []byte
}

// Sign asks the enclave to sign Data with a sealed signer.
type Sign struct {
	Signer *signer.SealedSigner
	Data   []byte
}

func (Ping) isRequest()         {}
func (KeyGen) isRequest()       {}
func (GetPublicKey) isRequest() {}
func (Import) isRequest()       {}
func (Sign) isRequest()         {}

// Response is one of Pong, KeyPairResponse, PublicKey, Signed, Error.
type Response interface {
	isResponse()
}

// Pong answers a Ping.
type Pong struct{}

// KeyPairResponse answers KeyGen and Import.
type KeyPairResponse struct {
	KeyPair KeyPair
}

// PublicKey answers GetPublicKey with 32 bytes.
type PublicKey struct {
	Key []byte
}

// Signed answers Sign with a 64-byte signature.
type Signed struct {
	Signature []byte
}

// Error carries the display form of any enclave-side failure.
type Error struct {
	Message string
}

func (Pong) isResponse()            {}
func (KeyPairResponse) isResponse() {}
func (PublicKey) isResponse()       {}
func (Signed) isResponse()          {}
func (Error) isResponse()           {}

// EncodeRequest returns the binary encoding of a request, enforcing the
// message bound before any byte is transmitted.
func EncodeRequest(req Request) ([]byte, error) {
	enc := wire.NewEncoder()

	switch r := req.(type) {
	case Ping:
		enc.PutUint32(tagPing)
	case KeyGen:
		enc.PutUint32(tagKeyGen)
	case GetPublicKey:
		enc.PutUint32(tagGetPublicKey)
		r.Signer.Encode(enc)
	case Import:
		enc.PutUint32(tagImport)
		enc.PutBytes(r.Seed)
	case Sign:
		enc.PutUint32(tagSign)
		r.Signer.Encode(enc)
		enc.PutBytes(r.Data)
	default:
		return nil, verrors.NewProtocolError(moduleName, CodeUnknownTag, "unknown request variant")
	}

	return enc.Bytes()
}

// DecodeRequest parses the binary encoding of a request.
func DecodeRequest(data []byte) (Request, error) {
	dec := wire.NewDecoder(data)

	tag, err := dec.Uint32()
	if err != nil {
		return nil, err
	}

	var req Request
	switch tag {
	case tagPing:
		req = Ping{}
	case tagKeyGen:
		req = KeyGen{}
	case tagGetPublicKey:
		s, err := signer.Decode(dec)
		if err != nil {
			return nil, err
		}
		req = GetPublicKey{Signer: s}
	case tagImport:
		seed, err := dec.Bytes()
		if err != nil {
			return nil, err
		}
		req = Import{Seed: seed}
	case tagSign:
		s, err := signer.Decode(dec)
		if err != nil {
			return nil, err
		}
		data, err := dec.Bytes()
		if err != nil {
			return nil, err
		}
		req = Sign{Signer: s, Data: data}
	default:
		return nil, verrors.NewProtocolError(moduleName, CodeUnknownTag, "unknown request tag")
	}

	if err := dec.Finish(); err != nil {
		return nil, err
	}
	return req, nil
}

// EncodeResponse returns the binary encoding of a response, enforcing the
// message bound.
func EncodeResponse(resp Response) ([]byte, error) {
	enc := wire.NewEncoder()

	switch r := resp.(type) {
	case Pong:
		enc.PutUint32(tagPong)
	case KeyPairResponse:
		enc.PutUint32(tagKeyPair)
		r.KeyPair.SealedPrivkey.Encode(enc)
		enc.PutBytes(r.KeyPair.Pubkey)
	case PublicKey:
		enc.PutUint32(tagPublicKey)
		enc.PutBytes(r.Key)
	case Signed:
		enc.PutUint32(tagSigned)
		enc.PutBytes(r.Signature)
	case Error:
		enc.PutUint32(tagError)
		enc.PutBytes([]byte(r.Message))
	default:
		return nil, verrors.NewProtocolError(moduleName, CodeUnknownTag, "unknown response variant")
	}

	return enc.Bytes()
}

// DecodeResponse parses the binary encoding of a response.
func DecodeResponse(data []byte) (Response, error) {
	dec := wire.NewDecoder(data)

	tag, err := dec.Uint32()
	if err != nil {
		return nil, err
	}

	var resp Response
	switch tag {
	case tagPong:
		resp = Pong{}
	case tagKeyPair:
		s, err := signer.Decode(dec)
		if err != nil {
			return nil, err
		}
		pub, err := dec.Bytes()
		if err != nil {
			return nil, err
		}
		resp = KeyPairResponse{KeyPair: KeyPair{SealedPrivkey: s, Pubkey: pub}}
	case tagPublicKey:
		key, err := dec.Bytes()
		if err != nil {
			return nil, err
		}
		resp = PublicKey{Key: key}
	case tagSigned:
		sig, err := dec.Bytes()
		if err != nil {
			return nil, err
		}
		resp = Signed{Signature: sig}
	case tagError:
		msg, err := dec.Bytes()
		if err != nil {
			return nil, err
		}
		resp = Error{Message: string(msg)}
	default:
		return nil, verrors.NewProtocolError(moduleName, CodeUnknownTag, "unknown response tag")
	}

	if err := dec.Finish(); err != nil {
		return nil, err
	}
	return resp, nil
}
