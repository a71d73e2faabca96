package enclave

import (
	"io"

	verrors "github.com/virtengine/tee-signer/pkg/errors"
	"github.com/virtengine/tee-signer/pkg/protocol"
	"github.com/virtengine/tee-signer/pkg/wire"
)

// Address is the symbolic address the enclave connects to. The host runtime
// recognizes it and substitutes the bridged stream; any other address is
// resolved as a normal network address.
const Address = "sgx"

// ConnectRuntime is the enclave's view of its runtime: the facility that
// resolves outbound connects.
type ConnectRuntime interface {
	ConnectStream(addr string) (io.ReadWriteCloser, error)
}

// Serve handles framed requests from the stream until it reaches end of
// stream, which is the clean stop signal. Framing violations abort the loop.
func (h *Handler) Serve(stream io.ReadWriter) error {
	for {
		raw, err := wire.ReadFrame(stream)
		if err != nil {
			if err == io.EOF {
				h.logger.Info("stream closed, stopping")
				return nil
			}
			return verrors.WrapCoded(err, moduleName, CodeStopped, "read request frame", verrors.CategoryProtocol)
		}

		resp := h.HandleRaw(raw)

		payload, err := protocol.EncodeResponse(resp)
		if err != nil {
			// The response itself cannot be encoded (oversize); report that
			// instead so the host is never left waiting.
			payload, err = protocol.EncodeResponse(protocol.Error{Message: err.Error()})
			if err != nil {
				return err
			}
		}
		if err := wire.WriteFrame(stream, payload); err != nil {
			return err
		}
	}
}

// Run is the enclave application entry: connect to the host bridge and serve
// requests until the stream is closed.
func Run(rt ConnectRuntime, h *Handler) error {
	stream, err := rt.ConnectStream(Address)
	if err != nil {
		return verrors.WrapCoded(err, moduleName, CodeStopped, "connect to host", verrors.CategoryTransport)
	}
	defer stream.Close()

	return h.Serve(stream)
}
