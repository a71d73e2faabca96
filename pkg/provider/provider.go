// Package provider implements the client side of the signing service. It
// holds the sealed blob on the caller's behalf and translates the Signer and
// PublicKeyed contracts into request/response exchanges with the host.
package provider

import (
	"crypto/ed25519"
	"encoding/base64"
	"net"
	"os"
	"strings"
	"time"

	"cosmossdk.io/log"

	verrors "github.com/virtengine/tee-signer/pkg/errors"
	"github.com/virtengine/tee-signer/pkg/protocol"
	"github.com/virtengine/tee-signer/pkg/signer"
	"github.com/virtengine/tee-signer/pkg/wire"
)

const moduleName = "provider"

// Error codes for the provider module.
const (
	CodeConnect     = 700
	CodeExchange    = 701
	CodeBadResponse = 702
	CodeStoreExists = 703
	CodeKeyDecode   = 704
	CodeFileIO      = 705
	CodeEnclave     = 706
)

// DefaultTimeout bounds each stream operation against the host.
const DefaultTimeout = 5 * time.Second

// KeyType names a textual encoding of secret key material.
type KeyType string

// KeyTypeBase64 is the only recognized textual seed encoding.
const KeyTypeBase64 KeyType = "base64"

// Signer produces a signature over a message.
type Signer interface {
	TrySign(msg []byte) ([]byte, error)
}

// PublicKeyed produces a public key on demand.
type PublicKeyed interface {
	PublicKey() (ed25519.PublicKey, error)
}

// SgxSigner is the client provider. It never sees seed material: it stores
// the sealed blob, and every cryptographic operation is one round trip to
// the enclave behind the host bridge.
type SgxSigner struct {
	addr    string
	keyPath string
	timeout time.Duration
	logger  log.Logger
}

var (
	_ Signer      = (*SgxSigner)(nil)
	_ PublicKeyed = (*SgxSigner)(nil)
)

// NewSgxSigner returns a provider talking to the host at addr, keeping its
// sealed blob at keyPath.
func NewSgxSigner(addr, keyPath string, logger log.Logger) *SgxSigner {
	return &SgxSigner{
		addr:    addr,
		keyPath: keyPath,
		timeout: DefaultTimeout,
		logger:  logger.With("module", moduleName),
	}
}

// WithTimeout returns a copy using the given per-operation stream timeout.
func (s *SgxSigner) WithTimeout(d time.Duration) *SgxSigner {
	c := *s
	c.timeout = d
	return &c
}

// send performs one request/response exchange on a fresh connection.
func (s *SgxSigner) send(req protocol.Request) (protocol.Response, error) {
	payload, err := protocol.EncodeRequest(req)
	if err != nil {
		return nil, err
	}

	conn, err := net.DialTimeout("tcp", s.addr, s.timeout)
	if err != nil {
		return nil, verrors.WrapCoded(err, moduleName, CodeConnect, "connect to host", verrors.CategoryTransport)
	}
	defer conn.Close()

	_ = conn.SetWriteDeadline(time.Now().Add(s.timeout))
	if err := wire.WriteFrame(conn, payload); err != nil {
		return nil, err
	}

	_ = conn.SetReadDeadline(time.Now().Add(s.timeout))
	respPayload, err := wire.ReadFrame(conn)
	if err != nil {
		return nil, verrors.WrapCoded(err, moduleName, CodeExchange, "read response", verrors.CategoryTransport)
	}

	resp, err := protocol.DecodeResponse(respPayload)
	if err != nil {
		return nil, err
	}
	if errResp, ok := resp.(protocol.Error); ok {
		return nil, verrors.WrapCoded(verrors.New(errResp.Message), moduleName, CodeEnclave,
			"enclave error", verrors.CategoryTransport)
	}
	return resp, nil
}

// Keygen asks the enclave for a fresh sealed keypair.
func (s *SgxSigner) Keygen() (*protocol.KeyPair, error) {
	resp, err := s.send(protocol.KeyGen{})
	if err != nil {
		return nil, err
	}
	kp, ok := resp.(protocol.KeyPairResponse)
	if !ok {
		return nil, verrors.NewProtocolError(moduleName, CodeBadResponse, "unexpected response to keygen")
	}
	return &kp.KeyPair, nil
}

// Import decodes a textual seed and asks the enclave to seal it. Base64 is
// the only recognized encoding; trailing whitespace is tolerated.
func (s *SgxSigner) Import(keyType KeyType, text string) (*protocol.KeyPair, error) {
	if keyType != KeyTypeBase64 {
		return nil, verrors.WrapCoded(verrors.ErrBadKeyType, moduleName, CodeKeyDecode,
			string(keyType), verrors.CategoryPolicy)
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(text))
	if err != nil {
		return nil, verrors.WrapCoded(err, moduleName, CodeKeyDecode, "decode base64 seed", verrors.CategoryPolicy)
	}

	resp, err := s.send(protocol.Import{Seed: raw})
	if err != nil {
		return nil, err
	}
	kp, ok := resp.(protocol.KeyPairResponse)
	if !ok {
		return nil, verrors.NewProtocolError(moduleName, CodeBadResponse, "unexpected response to import")
	}
	return &kp.KeyPair, nil
}

// StoreKey persists the sealed private key to the provider's key path and
// returns the public key in base64. It refuses to overwrite an existing
// file; replacing a key requires deleting the file first.
func (s *SgxSigner) StoreKey(kp *protocol.KeyPair) (string, error) {
	if _, err := os.Stat(s.keyPath); err == nil {
		return "", verrors.WrapCoded(verrors.ErrKeyExists, moduleName, CodeStoreExists,
			s.keyPath, verrors.CategoryPolicy)
	} else if !os.IsNotExist(err) {
		return "", verrors.WrapCoded(err, moduleName, CodeFileIO, "stat key path", verrors.CategoryTransport)
	}

	data, err := kp.SealedPrivkey.MarshalBinary()
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(s.keyPath, data, 0o600); err != nil {
		return "", verrors.WrapCoded(err, moduleName, CodeFileIO, "write sealed blob", verrors.CategoryTransport)
	}

	s.logger.Info("stored sealed key", "path", s.keyPath)
	return base64.StdEncoding.EncodeToString(kp.Pubkey), nil
}

// loadSigner reads and decodes the sealed blob from the key path.
func (s *SgxSigner) loadSigner() (*signer.SealedSigner, error) {
	data, err := os.ReadFile(s.keyPath)
	if err != nil {
		return nil, verrors.WrapCoded(err, moduleName, CodeFileIO, "read sealed blob", verrors.CategoryTransport)
	}
	return signer.UnmarshalBinary(data)
}

// PublicKey implements PublicKeyed with one GetPublicKey round trip.
func (s *SgxSigner) PublicKey() (ed25519.PublicKey, error) {
	sealed, err := s.loadSigner()
	if err != nil {
		return nil, err
	}

	resp, err := s.send(protocol.GetPublicKey{Signer: sealed})
	if err != nil {
		return nil, err
	}
	pub, ok := resp.(protocol.PublicKey)
	if !ok {
		return nil, verrors.NewProtocolError(moduleName, CodeBadResponse, "unexpected response to get public key")
	}
	return ed25519.PublicKey(pub.Key), nil
}

// TrySign implements Signer with one Sign round trip.
func (s *SgxSigner) TrySign(msg []byte) ([]byte, error) {
	sealed, err := s.loadSigner()
	if err != nil {
		return nil, err
	}

	resp, err := s.send(protocol.Sign{Signer: sealed, Data: msg})
	if err != nil {
		return nil, err
	}
	signed, ok := resp.(protocol.Signed)
	if !ok {
		return nil, verrors.NewProtocolError(moduleName, CodeBadResponse, "unexpected response to sign")
	}
	return signed.Signature, nil
}
