package secure

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapUnwrap_Roundtrip(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)
	assert.Len(t, kp.Public(), PublicKeySize)

	m, err := NewMaterial()
	require.NoError(t, err)

	wrapped, err := Wrap(kp.Public(), m)
	require.NoError(t, err)
	assert.NotEqual(t, m.Key, wrapped.Key)

	got, err := Unwrap(kp, wrapped)
	require.NoError(t, err)
	assert.Equal(t, m.Key, got.Key)
	assert.Equal(t, m.IV, got.IV)
}

func TestUnwrap_WrongKeyPair(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)
	other, err := GenerateKeyPair()
	require.NoError(t, err)

	m, err := NewMaterial()
	require.NoError(t, err)
	wrapped, err := Wrap(kp.Public(), m)
	require.NoError(t, err)

	_, err = Unwrap(other, wrapped)
	assert.ErrorIs(t, err, ErrUnwrap)
}

func TestUnwrap_Tampered(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)
	m, err := NewMaterial()
	require.NoError(t, err)
	wrapped, err := Wrap(kp.Public(), m)
	require.NoError(t, err)

	wrapped.IV[len(wrapped.IV)-1] ^= 0xff

	_, err = Unwrap(kp, wrapped)
	assert.ErrorIs(t, err, ErrUnwrap)
}

func TestUnwrap_AfterWipe(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)
	m, err := NewMaterial()
	require.NoError(t, err)
	wrapped, err := Wrap(kp.Public(), m)
	require.NoError(t, err)

	kp.Wipe()

	_, err = Unwrap(kp, wrapped)
	assert.ErrorIs(t, err, ErrUnwrap)
}

func TestWrap_InvalidPublicKey(t *testing.T) {
	m, err := NewMaterial()
	require.NoError(t, err)

	tests := []struct {
		name string
		key  []byte
	}{
		{name: "empty", key: nil},
		{name: "short", key: []byte{1, 2, 3}},
		{name: "all zero", key: make([]byte, PublicKeySize)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Wrap(tt.key, m)
			assert.ErrorIs(t, err, ErrInvalidPublicKey)
		})
	}
}

func TestNewMaterial_Fresh(t *testing.T) {
	a, err := NewMaterial()
	require.NoError(t, err)
	b, err := NewMaterial()
	require.NoError(t, err)

	assert.Len(t, a.Key, KeySize)
	assert.Len(t, a.IV, IVSize)
	assert.False(t, bytes.Equal(a.Key, b.Key))
	assert.False(t, bytes.Equal(a.IV, b.IV))
}

func TestWipe(t *testing.T) {
	b := []byte{1, 2, 3, 4}
	Wipe(b)
	assert.Equal(t, []byte{0, 0, 0, 0}, b)

	Wipe(nil)
}
