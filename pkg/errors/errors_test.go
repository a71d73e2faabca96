package errors

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodedError(t *testing.T) {
	t.Run("error string carries category and message", func(t *testing.T) {
		err := NewProtocolError("wire", 101, "frame too short")
		assert.Equal(t, "protocol: frame too short", err.Error())
	})

	t.Run("error string carries cause", func(t *testing.T) {
		err := WrapCoded(io.ErrUnexpectedEOF, "wire", 102, "read frame", CategoryTransport)
		assert.Contains(t, err.Error(), "unexpected EOF")
		assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	})

	t.Run("Is matches on module and code", func(t *testing.T) {
		a := NewCryptoError("sealing", 201, "aead open")
		b := NewCryptoError("sealing", 201, "different message")
		c := NewCryptoError("sealing", 202, "aead open")
		assert.ErrorIs(t, a, b)
		assert.NotErrorIs(t, a, c)
	})

	t.Run("control errors carry info severity", func(t *testing.T) {
		err := NewControlError("enclave", 501, "stop")
		assert.Equal(t, SeverityInfo, err.Severity)
		assert.Equal(t, CategoryControl, err.Category)
	})
}

func TestCategoryOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want ErrorCategory
	}{
		{"coded policy", NewPolicyError("provider", 701, "refusing overwrite"), CategoryPolicy},
		{"wrapped coded", Wrap(NewTransportError("server", 601, "dial"), "outer"), CategoryTransport},
		{"plain error", io.EOF, CategoryInternal},
		{"plain via New", New("x"), CategoryInternal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CategoryOf(tc.err))
		})
	}
}

func TestWrap(t *testing.T) {
	t.Run("nil passthrough", func(t *testing.T) {
		require.NoError(t, Wrap(nil, "ctx"))
		require.NoError(t, Wrapf(nil, "ctx %d", 1))
		require.NoError(t, WrapCoded(nil, "wire", 100, "m", CategoryProtocol))
	})

	t.Run("sentinel survives wrapping", func(t *testing.T) {
		err := WrapCoded(ErrKeyExists, "provider", 702, "store key", CategoryPolicy)
		assert.ErrorIs(t, err, ErrKeyExists)
	})
}

func TestModuleCodeRanges(t *testing.T) {
	for _, r := range AllModuleRanges {
		assert.True(t, r.StartCode < r.EndCode, "range for %s", r.Module)
	}

	assert.True(t, ValidateCode("sealing", 250))
	assert.False(t, ValidateCode("sealing", 350))
	assert.False(t, ValidateCode("unknown", 100))
}

func TestRecoverToError(t *testing.T) {
	f := func() (err error) {
		defer func() {
			if recErr := RecoverToError("test"); recErr != nil {
				err = recErr
			}
		}()
		panic("boom")
	}

	err := f()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, CategoryInternal, CategoryOf(err))
}
