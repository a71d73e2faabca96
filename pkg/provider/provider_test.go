package provider_test

import (
	"crypto/ed25519"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"cosmossdk.io/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	verrors "github.com/virtengine/tee-signer/pkg/errors"
	"github.com/virtengine/tee-signer/pkg/provider"
	"github.com/virtengine/tee-signer/pkg/server"
	tenclave "github.com/virtengine/tee-signer/testutil/enclave"
)

func startServer(t *testing.T) string {
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

	return srv.Addr().String()
}

func newSigner(t *testing.T, addr string) *provider.SgxSigner {
	t.Helper()
	keyPath := filepath.Join(t.TempDir(), "secret_key")
	return provider.NewSgxSigner(addr, keyPath, log.NewTestLogger(t))
}

func TestKeygenStoreSign(t *testing.T) {
	addr := startServer(t)
	keyPath := filepath.Join(t.TempDir(), "secret_key")
	s := provider.NewSgxSigner(addr, keyPath, log.NewTestLogger(t))

	kp, err := s.Keygen()
	require.NoError(t, err)
	require.Len(t, kp.Pubkey, 32)

	pubStr, err := s.StoreKey(kp)
	require.NoError(t, err)

	decoded, err := base64.StdEncoding.DecodeString(pubStr)
	require.NoError(t, err)
	assert.Equal(t, kp.Pubkey, decoded)

	msg := []byte("hello world")
	sig, err := s.TrySign(msg)
	require.NoError(t, err)
	require.Len(t, sig, 64)
	assert.True(t, ed25519.Verify(ed25519.PublicKey(kp.Pubkey), msg, sig))

	pub, err := s.PublicKey()
	require.NoError(t, err)
	assert.Equal(t, []byte(kp.Pubkey), []byte(pub))
}

func TestImport(t *testing.T) {
	addr := startServer(t)
	s := newSigner(t, addr)

	seed := make([]byte, 32)
	text := base64.StdEncoding.EncodeToString(seed)

	kp, err := s.Import(provider.KeyTypeBase64, text+"\n")
	require.NoError(t, err)

	expected := ed25519.NewKeyFromSeed(seed).Public().(ed25519.PublicKey)
	assert.Equal(t, []byte(expected), kp.Pubkey)

	t.Run("unsupported key type", func(t *testing.T) {
		_, err := s.Import(provider.KeyType("hex"), "00")
		require.Error(t, err)
		assert.ErrorIs(t, err, verrors.ErrBadKeyType)
		assert.Equal(t, verrors.CategoryPolicy, verrors.CategoryOf(err))
	})

	t.Run("invalid base64", func(t *testing.T) {
		_, err := s.Import(provider.KeyTypeBase64, "!!not-base64!!")
		require.Error(t, err)
		assert.Equal(t, verrors.CategoryPolicy, verrors.CategoryOf(err))
	})

	t.Run("wrong seed length surfaces enclave error", func(t *testing.T) {
		_, err := s.Import(provider.KeyTypeBase64, base64.StdEncoding.EncodeToString(make([]byte, 16)))
		require.Error(t, err)
	})
}

func TestStoreKeyRefusesOverwrite(t *testing.T) {
	addr := startServer(t)
	keyPath := filepath.Join(t.TempDir(), "secret_key")
	s := provider.NewSgxSigner(addr, keyPath, log.NewTestLogger(t))

	existing := []byte("existing sealed blob bytes")
	require.NoError(t, os.WriteFile(keyPath, existing, 0o600))

	kp, err := s.Keygen()
	require.NoError(t, err)

	_, err = s.StoreKey(kp)
	require.Error(t, err)
	assert.ErrorIs(t, err, verrors.ErrKeyExists)
	assert.Equal(t, verrors.CategoryPolicy, verrors.CategoryOf(err))

	// The file is untouched byte-for-byte.
	got, err := os.ReadFile(keyPath)
	require.NoError(t, err)
	assert.Equal(t, existing, got)
}

func TestSignWithoutKeyFile(t *testing.T) {
	addr := startServer(t)
	s := newSigner(t, addr)

	_, err := s.TrySign([]byte("msg"))
	require.Error(t, err)
}

func TestUnreachableHost(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "secret_key")
	s := provider.NewSgxSigner("127.0.0.1:1", keyPath, log.NewNopLogger())

	_, err := s.Keygen()
	require.Error(t, err)
	assert.Equal(t, verrors.CategoryTransport, verrors.CategoryOf(err))
}

func TestSharedBlobAcrossProviders(t *testing.T) {
	addr := startServer(t)
	keyPath := filepath.Join(t.TempDir(), "secret_key")

	a := provider.NewSgxSigner(addr, keyPath, log.NewNopLogger())
	kp, err := a.Keygen()
	require.NoError(t, err)
	_, err = a.StoreKey(kp)
	require.NoError(t, err)

	b := provider.NewSgxSigner(addr, keyPath, log.NewNopLogger())
	sig, err := b.TrySign([]byte("shared"))
	require.NoError(t, err)
	assert.True(t, ed25519.Verify(ed25519.PublicKey(kp.Pubkey), []byte("shared"), sig))
}
