package server_test

import (
	"crypto/ed25519"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"cosmossdk.io/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/virtengine/tee-signer/pkg/protocol"
	"github.com/virtengine/tee-signer/pkg/server"
	"github.com/virtengine/tee-signer/pkg/wire"
	tenclave "github.com/virtengine/tee-signer/testutil/enclave"
)

func startServer(t *testing.T) *server.Server {
	t.Helper()

	dir := t.TempDir()
	imagePath := filepath.Join(dir, "enclave.sgxs")
	require.NoError(t, os.WriteFile(imagePath, []byte("test enclave image"), 0o600))

	srv, err := server.New(server.Config{
		ListenAddr:  "127.0.0.1:0",
		EnclavePath: imagePath,
		Hardware:    tenclave.NewMockHardware(),
	}, log.NewTestLogger(t))
	require.NoError(t, err)

	require.NoError(t, srv.Start())
	t.Cleanup(srv.Shutdown)
	return srv
}

// exchange performs one framed request/response round trip on a fresh
// connection.
func exchange(t *testing.T, addr string, req protocol.Request) protocol.Response {
	t.Helper()

	payload, err := protocol.EncodeRequest(req)
	require.NoError(t, err)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, wire.WriteFrame(conn, payload))

	respPayload, err := wire.ReadFrame(conn)
	require.NoError(t, err)

	resp, err := protocol.DecodeResponse(respPayload)
	require.NoError(t, err)
	return resp
}

func TestPingRoundTrip(t *testing.T) {
	srv := startServer(t)

	resp := exchange(t, srv.Addr().String(), protocol.Ping{})
	assert.Equal(t, protocol.Pong{}, resp)
}

func TestKeygenSignVerify(t *testing.T) {
	srv := startServer(t)
	addr := srv.Addr().String()

	kp, ok := exchange(t, addr, protocol.KeyGen{}).(protocol.KeyPairResponse)
	require.True(t, ok)

	msg := []byte("hello world")
	signed, ok := exchange(t, addr, protocol.Sign{Signer: kp.KeyPair.SealedPrivkey, Data: msg}).(protocol.Signed)
	require.True(t, ok)
	require.Len(t, signed.Signature, 64)

	assert.True(t, ed25519.Verify(ed25519.PublicKey(kp.KeyPair.Pubkey), msg, signed.Signature))

	t.Run("get public key matches keygen", func(t *testing.T) {
		pub, ok := exchange(t, addr, protocol.GetPublicKey{Signer: kp.KeyPair.SealedPrivkey}).(protocol.PublicKey)
		require.True(t, ok)
		assert.Equal(t, kp.KeyPair.Pubkey, pub.Key)
	})
}

func TestErrorResponse(t *testing.T) {
	srv := startServer(t)

	resp := exchange(t, srv.Addr().String(), protocol.Import{Seed: []byte("short")})
	errResp, ok := resp.(protocol.Error)
	require.True(t, ok, "got %T", resp)
	assert.Contains(t, errResp.Message, "seed")
}

func TestConcurrentClients(t *testing.T) {
	srv := startServer(t)
	addr := srv.Addr().String()

	kp, ok := exchange(t, addr, protocol.KeyGen{}).(protocol.KeyPairResponse)
	require.True(t, ok)
	pub := ed25519.PublicKey(kp.KeyPair.Pubkey)

	const clients = 3
	var wg sync.WaitGroup
	sigs := make([][]byte, clients)
	msgs := make([][]byte, clients)

	for i := 0; i < clients; i++ {
		i := i
		msgs[i] = []byte{byte('a' + i), 'm', 's', 'g'}
		wg.Add(1)
		go func() {
			defer wg.Done()
			signed, ok := exchange(t, addr, protocol.Sign{Signer: kp.KeyPair.SealedPrivkey, Data: msgs[i]}).(protocol.Signed)
			require.True(t, ok)
			sigs[i] = signed.Signature
		}()
	}
	wg.Wait()

	for i := 0; i < clients; i++ {
		assert.True(t, ed25519.Verify(pub, msgs[i], sigs[i]), "client %d", i)
	}
}

func TestOversizeFrameAbortsConnection(t *testing.T) {
	srv := startServer(t)

	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	prefix := wire.LengthPrefix(wire.MaxMessageSize + 1)
	_, err = conn.Write(prefix[:])
	require.NoError(t, err)

	// The dispatcher rejects the frame and closes without a response.
	buf := make([]byte, 1)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = conn.Read(buf)
	assert.Error(t, err)
}

func TestShutdown(t *testing.T) {
	srv := startServer(t)
	addr := srv.Addr().String()

	resp := exchange(t, addr, protocol.Ping{})
	require.Equal(t, protocol.Pong{}, resp)

	srv.Shutdown()

	_, err := net.DialTimeout("tcp", addr, 500*time.Millisecond)
	assert.Error(t, err, "listener closed after shutdown")
}

func TestNewRejectsMissingImage(t *testing.T) {
	_, err := server.New(server.Config{
		ListenAddr:  "127.0.0.1:0",
		EnclavePath: filepath.Join(t.TempDir(), "missing.sgxs"),
		Hardware:    tenclave.NewMockHardware(),
	}, log.NewNopLogger())
	require.Error(t, err)
}
