package protocol_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	verrors "github.com/virtengine/tee-signer/pkg/errors"
	"github.com/virtengine/tee-signer/pkg/protocol"
	"github.com/virtengine/tee-signer/pkg/signer"
	"github.com/virtengine/tee-signer/pkg/wire"
	tenclave "github.com/virtengine/tee-signer/testutil/enclave"
)

func newSealed(t *testing.T) *signer.SealedSigner {
	t.Helper()
	s, err := signer.New(tenclave.NewMockHardware())
	require.NoError(t, err)
	return s
}

func TestRequestRoundTrip(t *testing.T) {
	sealed := newSealed(t)

	cases := []struct {
		name string
		req  protocol.Request
	}{
		{"ping", protocol.Ping{}},
		{"keygen", protocol.KeyGen{}},
		{"get public key", protocol.GetPublicKey{Signer: sealed}},
		{"import", protocol.Import{Seed: make([]byte, 32)}},
		{"sign", protocol.Sign{Signer: sealed, Data: []byte("hello world")}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := protocol.EncodeRequest(tc.req)
			require.NoError(t, err)

			got, err := protocol.DecodeRequest(data)
			require.NoError(t, err)

			switch want := tc.req.(type) {
			case protocol.GetPublicKey:
				assert.True(t, want.Signer.Equal(got.(protocol.GetPublicKey).Signer))
			case protocol.Sign:
				gotSign := got.(protocol.Sign)
				assert.True(t, want.Signer.Equal(gotSign.Signer))
				assert.Equal(t, want.Data, gotSign.Data)
			default:
				assert.Equal(t, tc.req, got)
			}
		})
	}
}

func TestResponseRoundTrip(t *testing.T) {
	sealed := newSealed(t)

	cases := []struct {
		name string
		resp protocol.Response
	}{
		{"pong", protocol.Pong{}},
		{"keypair", protocol.KeyPairResponse{KeyPair: protocol.KeyPair{SealedPrivkey: sealed, Pubkey: make([]byte, 32)}}},
		{"public key", protocol.PublicKey{Key: make([]byte, 32)}},
		{"signed", protocol.Signed{Signature: make([]byte, 64)}},
		{"error", protocol.Error{Message: "crypto: unseal failed"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := protocol.EncodeResponse(tc.resp)
			require.NoError(t, err)

			got, err := protocol.DecodeResponse(data)
			require.NoError(t, err)

			switch want := tc.resp.(type) {
			case protocol.KeyPairResponse:
				gotKP := got.(protocol.KeyPairResponse)
				assert.True(t, want.KeyPair.SealedPrivkey.Equal(gotKP.KeyPair.SealedPrivkey))
				assert.Equal(t, want.KeyPair.Pubkey, gotKP.KeyPair.Pubkey)
			default:
				assert.Equal(t, tc.resp, got)
			}
		})
	}
}

func TestTagLayout(t *testing.T) {
	// Tags are u32 little-endian in declaration order; Ping encodes as four
	// zero bytes.
	data, err := protocol.EncodeRequest(protocol.Ping{})
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 0}, data)

	data, err = protocol.EncodeRequest(protocol.KeyGen{})
	require.NoError(t, err)
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(data))

	data, err = protocol.EncodeResponse(protocol.Error{Message: "x"})
	require.NoError(t, err)
	assert.Equal(t, uint32(4), binary.LittleEndian.Uint32(data))
}

func TestOversizeSignRequest(t *testing.T) {
	sealed := newSealed(t)

	// A 70 KiB message exceeds the 60 KiB payload bound at encode time.
	_, err := protocol.EncodeRequest(protocol.Sign{Signer: sealed, Data: make([]byte, 70*1024)})
	require.Error(t, err)
	assert.ErrorIs(t, err, verrors.ErrTooLarge)
}

func TestDecodeErrors(t *testing.T) {
	t.Run("unknown request tag", func(t *testing.T) {
		_, err := protocol.DecodeRequest([]byte{0xff, 0, 0, 0})
		require.Error(t, err)
		assert.Equal(t, verrors.CategoryProtocol, verrors.CategoryOf(err))
	})

	t.Run("unknown response tag", func(t *testing.T) {
		_, err := protocol.DecodeResponse([]byte{0xff, 0, 0, 0})
		require.Error(t, err)
	})

	t.Run("empty input", func(t *testing.T) {
		_, err := protocol.DecodeRequest(nil)
		require.Error(t, err)
	})

	t.Run("trailing bytes", func(t *testing.T) {
		data, err := protocol.EncodeRequest(protocol.Ping{})
		require.NoError(t, err)
		_, err = protocol.DecodeRequest(append(data, 1))
		require.Error(t, err)
	})

	t.Run("truncated sign payload", func(t *testing.T) {
		sealed := newSealed(t)
		data, err := protocol.EncodeRequest(protocol.Sign{Signer: sealed, Data: []byte("msg")})
		require.NoError(t, err)
		_, err = protocol.DecodeRequest(data[:len(data)-2])
		require.Error(t, err)
	})
}

func TestEncodedWithinFrameBound(t *testing.T) {
	sealed := newSealed(t)

	data, err := protocol.EncodeRequest(protocol.Sign{Signer: sealed, Data: make([]byte, 1024)})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(data), wire.MaxMessageSize)
}
