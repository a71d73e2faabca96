package server

import (
	"net"
	"runtime"
	"sync"
	"time"

	"cosmossdk.io/log"
	"github.com/boz/go-lifecycle"

	"github.com/virtengine/tee-signer/pkg/enclave"
	verrors "github.com/virtengine/tee-signer/pkg/errors"
	"github.com/virtengine/tee-signer/pkg/sealing"
	"github.com/virtengine/tee-signer/pkg/wire"
)

const moduleName = "server"

// Error codes for the server module.
const (
	CodeEnclaveImage = 600
	CodeListen       = 601
	CodeEnclaveGone  = 602
	CodeDispatch     = 603
)

// DefaultTimeout bounds each stream read or write on a client connection.
const DefaultTimeout = 5 * time.Second

// Config configures the host bridge.
type Config struct {
	// ListenAddr is the TCP address clients connect to.
	ListenAddr string

	// EnclavePath is the path to the enclave image.
	EnclavePath string

	// RootKeyPath is the path to the machine root secret backing the
	// software sealing device.
	RootKeyPath string

	// Timeout bounds each read/write on a client connection. Zero means
	// DefaultTimeout.
	Timeout time.Duration

	// Hardware overrides the sealing device; when nil, a device bound to
	// RootKeyPath and the image measurement is constructed.
	Hardware sealing.Hardware
}

// Server accepts client connections and multiplexes their framed requests
// onto the single enclave worker. At most one request is in flight inside
// the enclave at a time.
type Server struct {
	cfg    Config
	logger log.Logger
	lc     lifecycle.Lifecycle

	rt       *Runtime
	hw       sealing.Hardware
	listener net.Listener

	server2sgx chan []byte
	sgx2server chan []byte

	// reassembles framed responses from the enclave's write chunks
	respStream *bridgeStream

	// serializes all enclave interactions
	dispatchMu sync.Mutex

	acceptDone  chan struct{}
	enclaveDone chan struct{}
	conns       sync.WaitGroup
}

// New builds a server from config. The enclave image is loaded eagerly so a
// bad path fails before listening.
func New(cfg Config, logger log.Logger) (*Server, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	s := &Server{
		cfg:         cfg,
		logger:      logger.With("module", moduleName),
		lc:          lifecycle.New(),
		server2sgx:  make(chan []byte),
		sgx2server:  make(chan []byte),
		acceptDone:  make(chan struct{}),
		enclaveDone: make(chan struct{}),
	}
	s.respStream = &bridgeStream{recv: s.sgx2server}

	rt, err := NewRuntime(cfg.EnclavePath, s.server2sgx, s.sgx2server, logger)
	if err != nil {
		return nil, err
	}
	s.rt = rt

	s.hw = cfg.Hardware
	if s.hw == nil {
		hw, err := sealing.NewDeviceHardware(cfg.RootKeyPath, rt.Measurement(), sealing.DefaultConfig())
		if err != nil {
			return nil, err
		}
		s.hw = hw
	}

	return s, nil
}

// Start begins listening and runs the enclave worker. It returns once the
// listener is bound.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return verrors.WrapCoded(err, moduleName, CodeListen, "listen", verrors.CategoryTransport)
	}
	s.listener = ln
	s.logger.Info("listening", "addr", ln.Addr().String(), "enclave", s.cfg.EnclavePath)

	go s.enclaveWorker()
	go s.acceptLoop()
	go s.run()
	return nil
}

// Addr returns the bound listen address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Shutdown stops accepting, drains in-flight connections, stops the enclave
// worker, and waits for everything to finish.
func (s *Server) Shutdown() {
	s.lc.ShutdownAsync(nil)
	<-s.lc.Done()
}

func (s *Server) run() {
	defer s.lc.ShutdownCompleted()

	err := <-s.lc.ShutdownRequest()
	s.lc.ShutdownInitiated(err)

	_ = s.listener.Close()
	<-s.acceptDone
	s.conns.Wait()

	// Dropping the request channel makes the enclave's next read return
	// zero bytes, which its serve loop takes as the stop signal.
	close(s.server2sgx)
	<-s.enclaveDone

	s.logger.Info("shutdown complete")
}

// enclaveWorker runs the enclave application to completion on a dedicated
// OS thread.
func (s *Server) enclaveWorker() {
	defer close(s.enclaveDone)
	defer verrors.RecoverAndLog("enclave worker")

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	handler := enclave.NewHandler(s.hw, s.logger.With("side", "enclave"))
	if err := enclave.Run(s.rt, handler); err != nil {
		verrors.RecordError(err)
		s.logger.Error("enclave stopped with error", "err", err)
		return
	}
	s.logger.Info("enclave stopped")
}

func (s *Server) acceptLoop() {
	defer close(s.acceptDone)

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			// Listener closed during shutdown.
			return
		}

		s.conns.Add(1)
		go func() {
			defer s.conns.Done()
			defer verrors.RecoverAndLog("client connection")
			s.handleConn(conn)
		}()
	}
}

// handleConn serves exactly one request/response exchange, then closes.
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	activeConnections.Inc()
	defer activeConnections.Dec()
	start := time.Now()

	logger := s.logger.With("client", conn.RemoteAddr().String())

	_ = conn.SetReadDeadline(time.Now().Add(s.cfg.Timeout))
	payload, err := wire.ReadFrame(conn)
	if err != nil {
		verrors.RecordError(err)
		requestsTotal.WithLabelValues("error").Inc()
		logger.Error("read request", "err", err)
		return
	}

	response, err := s.dispatch(payload)
	if err != nil {
		verrors.RecordError(err)
		requestsTotal.WithLabelValues("error").Inc()
		logger.Error("dispatch request", "err", err)
		return
	}

	_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.Timeout))
	if err := wire.WriteFrame(conn, response); err != nil {
		verrors.RecordError(err)
		requestsTotal.WithLabelValues("error").Inc()
		logger.Error("write response", "err", err)
		return
	}

	requestsTotal.WithLabelValues("ok").Inc()
	requestDuration.Observe(time.Since(start).Seconds())
	logger.Debug("request served", "bytes", len(payload))
}

// dispatch forwards one framed request into the enclave and awaits the
// single response. The frame goes in as two pieces, length prefix then
// body, and the whole exchange holds the dispatch lock.
func (s *Server) dispatch(payload []byte) ([]byte, error) {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	prefix := wire.LengthPrefix(len(payload))

	select {
	case s.server2sgx <- prefix[:]:
	case <-s.enclaveDone:
		return nil, verrors.WrapCoded(verrors.ErrClosed, moduleName, CodeEnclaveGone,
			"enclave worker gone", verrors.CategoryTransport)
	}

	select {
	case s.server2sgx <- payload:
	case <-s.enclaveDone:
		return nil, verrors.WrapCoded(verrors.ErrClosed, moduleName, CodeEnclaveGone,
			"enclave worker gone", verrors.CategoryTransport)
	}

	response, err := wire.ReadFrame(s.respStream)
	if err != nil {
		return nil, verrors.WrapCoded(err, moduleName, CodeDispatch,
			"read enclave response", verrors.CategoryTransport)
	}
	return response, nil
}
