package secure

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/nacl/box"
)

const (
	// PublicKeySize is the length of an encoded bootstrap public key.
	PublicKeySize = 32
	// KeySize is the length of the symmetric key.
	KeySize = chacha20poly1305.KeySize
	// IVSize is the length of the symmetric IV.
	IVSize = chacha20poly1305.NonceSize
)

var (
	ErrInvalidPublicKey = errors.New("secure: invalid public key")
	ErrUnwrap           = errors.New("secure: unable to unwrap symmetric material")
)

// KeyPair is the client's bootstrap keypair. It only lives until the
// server's symmetric material has been unwrapped.
type KeyPair struct {
	public  *[32]byte
	private *[32]byte
}

// GenerateKeyPair creates a fresh X25519 keypair.
func GenerateKeyPair() (KeyPair, error) {
	pub, priv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return KeyPair{}, fmt.Errorf("failed to generate keypair: %w", err)
	}
	return KeyPair{public: pub, private: priv}, nil
}

// Public returns a copy of the encoded public key.
func (k KeyPair) Public() []byte {
	if k.public == nil {
		return nil
	}
	out := make([]byte, PublicKeySize)
	copy(out, k.public[:])
	return out
}

// Wipe zeroes the private key.
func (k *KeyPair) Wipe() {
	if k.private != nil {
		Wipe(k.private[:])
		k.private = nil
	}
	k.public = nil
}

// Material is the per-connection symmetric key and IV.
type Material struct {
	Key []byte
	IV  []byte
}

// NewMaterial generates a fresh random key and IV.
func NewMaterial() (Material, error) {
	m := Material{Key: make([]byte, KeySize), IV: make([]byte, IVSize)}
	if _, err := rand.Read(m.Key); err != nil {
		return Material{}, fmt.Errorf("failed to generate key: %w", err)
	}
	if _, err := rand.Read(m.IV); err != nil {
		return Material{}, fmt.Errorf("failed to generate iv: %w", err)
	}
	return m, nil
}

// Wipe zeroes the key and IV.
func (m *Material) Wipe() {
	Wipe(m.Key)
	Wipe(m.IV)
}

// WrappedMaterial is Material sealed to a peer public key.
type WrappedMaterial struct {
	Key []byte
	IV  []byte
}

// Wrap seals the key and IV to peerPublic with anonymous sealed boxes.
func Wrap(peerPublic []byte, m Material) (WrappedMaterial, error) {
	recipient, err := parsePublicKey(peerPublic)
	if err != nil {
		return WrappedMaterial{}, err
	}
	if len(m.Key) != KeySize || len(m.IV) != IVSize {
		return WrappedMaterial{}, fmt.Errorf("secure: malformed material")
	}

	key, err := box.SealAnonymous(nil, m.Key, recipient, rand.Reader)
	if err != nil {
		return WrappedMaterial{}, fmt.Errorf("failed to seal key: %w", err)
	}
	iv, err := box.SealAnonymous(nil, m.IV, recipient, rand.Reader)
	if err != nil {
		return WrappedMaterial{}, fmt.Errorf("failed to seal iv: %w", err)
	}
	return WrappedMaterial{Key: key, IV: iv}, nil
}

// Unwrap opens material sealed by Wrap. Any failure is reported as
// ErrUnwrap.
func Unwrap(kp KeyPair, w WrappedMaterial) (Material, error) {
	if kp.public == nil || kp.private == nil {
		return Material{}, ErrUnwrap
	}
	key, ok := box.OpenAnonymous(nil, w.Key, kp.public, kp.private)
	if !ok || len(key) != KeySize {
		return Material{}, ErrUnwrap
	}
	iv, ok := box.OpenAnonymous(nil, w.IV, kp.public, kp.private)
	if !ok || len(iv) != IVSize {
		Wipe(key)
		return Material{}, ErrUnwrap
	}
	return Material{Key: key, IV: iv}, nil
}

func parsePublicKey(b []byte) (*[32]byte, error) {
	if len(b) != PublicKeySize {
		return nil, ErrInvalidPublicKey
	}
	var zero [32]byte
	if subtle.ConstantTimeCompare(b, zero[:]) == 1 {
		return nil, ErrInvalidPublicKey
	}
	var out [32]byte
	copy(out[:], b)
	return &out, nil
}

// Wipe overwrites b with zeros.
func Wipe(b []byte) {
	if len(b) == 0 {
		return
	}
	zero := make([]byte, len(b))
	subtle.ConstantTimeCopy(1, b, zero)
}
