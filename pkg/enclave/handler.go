// Package enclave implements the in-enclave side of the signing service:
// the stateless request handler, the serve loop over a byte stream, and the
// application entry that connects back to the host.
package enclave

import (
	"cosmossdk.io/log"

	verrors "github.com/virtengine/tee-signer/pkg/errors"
	"github.com/virtengine/tee-signer/pkg/protocol"
	"github.com/virtengine/tee-signer/pkg/sealing"
	"github.com/virtengine/tee-signer/pkg/signer"
)

const moduleName = "enclave"

// Error codes for the enclave module.
const (
	CodeBadRequest = 500
	CodeStopped    = 501
)

// Handler dispatches one request to one response. It keeps no cross-request
// state: a restart loses nothing and requests have no ordering dependency.
type Handler struct {
	hw     sealing.Hardware
	logger log.Logger
}

// NewHandler returns a handler backed by the given sealing hardware.
func NewHandler(hw sealing.Hardware, logger log.Logger) *Handler {
	return &Handler{
		hw:     hw,
		logger: logger.With("module", moduleName),
	}
}

// HandleRaw decodes one encoded request and handles it. Decode failures
// become error responses like any other failure.
func (h *Handler) HandleRaw(raw []byte) protocol.Response {
	req, err := protocol.DecodeRequest(raw)
	if err != nil {
		err = verrors.WrapCoded(err, moduleName, CodeBadRequest, "invalid request", verrors.CategoryProtocol)
		return h.errorResponse(err)
	}
	return h.Handle(req)
}

// Handle performs the sealing-backed operation for one request. Every
// failure path is converted to an Error response; nothing is recovered
// locally and no secret material appears in messages.
func (h *Handler) Handle(req protocol.Request) protocol.Response {
	switch r := req.(type) {
	case protocol.Ping:
		h.logger.Info("ping")
		return protocol.Pong{}

	case protocol.KeyGen:
		h.logger.Info("generating keypair")
		sealed, err := signer.New(h.hw)
		if err != nil {
			return h.errorResponse(err)
		}
		return h.keyPairResponse(sealed)

	case protocol.Import:
		h.logger.Info("importing key")
		sealed, err := signer.Import(h.hw, r.Seed)
		if err != nil {
			return h.errorResponse(err)
		}
		return h.keyPairResponse(sealed)

	case protocol.GetPublicKey:
		h.logger.Info("deriving public key")
		pubkey, err := r.Signer.PublicKey(h.hw)
		if err != nil {
			return h.errorResponse(err)
		}
		return protocol.PublicKey{Key: pubkey}

	case protocol.Sign:
		h.logger.Info("signing data", "len", len(r.Data))
		sig, err := r.Signer.TrySign(h.hw, r.Data)
		if err != nil {
			return h.errorResponse(err)
		}
		return protocol.Signed{Signature: sig}

	default:
		return h.errorResponse(verrors.NewProtocolError(moduleName, CodeBadRequest, "unknown request"))
	}
}

func (h *Handler) keyPairResponse(sealed *signer.SealedSigner) protocol.Response {
	pubkey, err := sealed.PublicKey(h.hw)
	if err != nil {
		return h.errorResponse(err)
	}
	return protocol.KeyPairResponse{KeyPair: protocol.KeyPair{
		SealedPrivkey: sealed,
		Pubkey:        pubkey,
	}}
}

func (h *Handler) errorResponse(err error) protocol.Response {
	verrors.RecordError(err)
	h.logger.Error("request failed", "err", err, "category", verrors.CategoryOf(err))
	return protocol.Error{Message: err.Error()}
}
