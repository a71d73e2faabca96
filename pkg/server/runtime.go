package server

import (
	"crypto/sha256"
	"io"
	"net"
	"os"

	"cosmossdk.io/log"

	"github.com/virtengine/tee-signer/pkg/enclave"
	verrors "github.com/virtengine/tee-signer/pkg/errors"
	"github.com/virtengine/tee-signer/pkg/sealing"
)

// Runtime resolves the enclave's outbound connects. A connect to the
// symbolic address is answered with the bridged stream; any other address is
// delegated to normal network resolution.
type Runtime struct {
	measurement [sealing.MeasurementSize]byte
	server2sgx  <-chan []byte
	sgx2server  chan<- []byte
	logger      log.Logger
}

// NewRuntime loads the enclave image at path and prepares the bridge. The
// enclave measurement is the SHA-256 of the image contents, so a rebuilt
// image is a different enclave identity.
func NewRuntime(path string, server2sgx <-chan []byte, sgx2server chan<- []byte, logger log.Logger) (*Runtime, error) {
	image, err := os.ReadFile(path)
	if err != nil {
		return nil, verrors.WrapCoded(err, moduleName, CodeEnclaveImage, "load enclave image", verrors.CategoryTransport)
	}

	return &Runtime{
		measurement: sha256.Sum256(image),
		server2sgx:  server2sgx,
		sgx2server:  sgx2server,
		logger:      logger.With("module", "enclave-runtime"),
	}, nil
}

// Measurement returns the loaded image's enclave measurement.
func (rt *Runtime) Measurement() [sealing.MeasurementSize]byte {
	return rt.measurement
}

// ConnectStream implements enclave.ConnectRuntime.
func (rt *Runtime) ConnectStream(addr string) (io.ReadWriteCloser, error) {
	if addr == enclave.Address {
		rt.logger.Debug("bridging enclave stream")
		return &bridgeStream{
			recv: rt.server2sgx,
			send: rt.sgx2server,
		}, nil
	}
	return net.Dial("tcp", addr)
}
