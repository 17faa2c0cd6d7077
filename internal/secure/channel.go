package secure

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

var (
	ErrDecrypt       = errors.New("secure: message authentication failed")
	ErrChannelClosed = errors.New("secure: channel closed")
	ErrSequence      = errors.New("secure: sequence exhausted")
)

// Encrypt seals plaintext with ChaCha20-Poly1305 under key and iv.
func Encrypt(key, iv, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("failed to init cipher: %w", err)
	}
	if len(iv) != aead.NonceSize() {
		return nil, fmt.Errorf("secure: iv must be %d bytes", aead.NonceSize())
	}
	return aead.Seal(nil, iv, plaintext, nil), nil
}

// Decrypt opens ciphertext sealed by Encrypt. Tampering, a wrong key or a
// wrong iv all yield ErrDecrypt.
func Decrypt(key, iv, ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, ErrDecrypt
	}
	if len(iv) != aead.NonceSize() {
		return nil, ErrDecrypt
	}
	plaintext, err := aead.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}

// Role selects which directional key a Channel seals with.
type Role uint8

const (
	RoleClient Role = iota
	RoleServer
)

const (
	labelClientToServer = "srplogin client to server"
	labelServerToClient = "srplogin server to client"
)

// Channel encrypts the messages of one connection. Each direction has its
// own key and the nonce is the IV XOR a per-direction sequence number, so a
// (key, nonce) pair is never used twice. Both peers must process messages in
// order.
type Channel struct {
	mu      sync.Mutex
	sendKey []byte
	recvKey []byte
	iv      []byte
	sendSeq uint64
	recvSeq uint64
	closed  bool
}

// NewChannel derives the directional keys from m for the given role.
func NewChannel(m Material, role Role) (*Channel, error) {
	if len(m.Key) != KeySize || len(m.IV) != IVSize {
		return nil, fmt.Errorf("secure: malformed material")
	}

	c2s, err := deriveKey(m, labelClientToServer)
	if err != nil {
		return nil, err
	}
	s2c, err := deriveKey(m, labelServerToClient)
	if err != nil {
		return nil, err
	}

	ch := &Channel{iv: append([]byte(nil), m.IV...)}
	if role == RoleServer {
		ch.sendKey, ch.recvKey = s2c, c2s
	} else {
		ch.sendKey, ch.recvKey = c2s, s2c
	}
	return ch, nil
}

func deriveKey(m Material, label string) ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, m.Key, m.IV, []byte(label)), key); err != nil {
		return nil, fmt.Errorf("failed to derive %s key: %w", label, err)
	}
	return key, nil
}

// Seal encrypts the next outgoing message.
func (c *Channel) Seal(plaintext []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrChannelClosed
	}
	if c.sendSeq == math.MaxUint64 {
		return nil, ErrSequence
	}
	out, err := Encrypt(c.sendKey, c.nonce(c.sendSeq), plaintext)
	if err != nil {
		return nil, err
	}
	c.sendSeq++
	return out, nil
}

// Open decrypts the next incoming message. A failure leaves the channel
// unusable for the peer anyway, so callers must drop the connection.
func (c *Channel) Open(ciphertext []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrChannelClosed
	}
	if c.recvSeq == math.MaxUint64 {
		return nil, ErrSequence
	}
	out, err := Decrypt(c.recvKey, c.nonce(c.recvSeq), ciphertext)
	if err != nil {
		return nil, err
	}
	c.recvSeq++
	return out, nil
}

// Close wipes the channel keys. It is safe to call more than once.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	Wipe(c.sendKey)
	Wipe(c.recvKey)
	Wipe(c.iv)
	c.closed = true
}

func (c *Channel) nonce(seq uint64) []byte {
	n := make([]byte, IVSize)
	copy(n, c.iv)
	var ctr [8]byte
	binary.BigEndian.PutUint64(ctr[:], seq)
	for i := 0; i < 8; i++ {
		n[IVSize-8+i] ^= ctr[i]
	}
	return n
}
