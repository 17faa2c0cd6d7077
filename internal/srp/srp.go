package srp

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
)

const (
	// SaltSize is the length of a generated salt.
	SaltSize = 32
	// secretSize is the length of a private ephemeral value.
	secretSize = 64
)

var (
	// ErrAborted is returned when a peer value fails a safety check. The
	// failing check is deliberately not identified.
	ErrAborted = errors.New("srp: handshake aborted")
	// ErrInvalidProof is returned by ServerDeriveSession when the client
	// proof does not match. It is an ordinary authentication rejection.
	ErrInvalidProof = errors.New("srp: invalid client proof")
)

// Ephemeral is a per-handshake keypair.
type Ephemeral struct {
	Public []byte
	Secret []byte
}

// Wipe zeroes the secret half of the ephemeral.
func (e *Ephemeral) Wipe() {
	wipe(e.Secret)
	e.Secret = nil
}

// Session is the outcome of a successful derivation: the shared key and the
// proof this side sends to its peer.
type Session struct {
	Key   []byte
	Proof []byte
}

// Wipe zeroes the session key and proof.
func (s *Session) Wipe() {
	wipe(s.Key)
	wipe(s.Proof)
	s.Key = nil
	s.Proof = nil
}

// DeriveSaltAndVerifier creates the stored credentials for a new account.
func DeriveSaltAndVerifier(username, password string) (salt, verifier []byte, err error) {
	grp := defaultGroup

	salt = make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	x := grp.privateKey(salt, username, password)
	v := new(big.Int).Exp(grp.g, x, grp.N)
	x.SetInt64(0)

	return salt, grp.pad(v), nil
}

// ErrInvalidVerifier is returned for verifiers that are not usable group
// elements.
var ErrInvalidVerifier = errors.New("srp: invalid verifier")

// ValidateVerifier checks a client-supplied verifier: it must be encoded at
// the group length and lie strictly between 1 and N.
func ValidateVerifier(verifier []byte) error {
	grp := defaultGroup

	if len(verifier) != grp.padLen {
		return ErrInvalidVerifier
	}
	v := new(big.Int).SetBytes(verifier)
	if v.Cmp(big.NewInt(1)) <= 0 || v.Cmp(grp.N) >= 0 {
		return ErrInvalidVerifier
	}
	return nil
}

// ClientGenerateEphemeral creates the client keypair: A = g^a mod N.
func ClientGenerateEphemeral() (Ephemeral, error) {
	grp := defaultGroup

	for {
		a, err := randomSecret()
		if err != nil {
			return Ephemeral{}, err
		}
		A := new(big.Int).Exp(grp.g, a, grp.N)
		if grp.isDegenerate(A) {
			continue
		}
		return Ephemeral{Public: grp.pad(A), Secret: a.Bytes()}, nil
	}
}

// ServerGenerateEphemeral creates the server keypair:
// B = (k*v + g^b) mod N.
func ServerGenerateEphemeral(verifier []byte) (Ephemeral, error) {
	grp := defaultGroup

	v := new(big.Int).SetBytes(verifier)
	if grp.isDegenerate(v) {
		return Ephemeral{}, ErrInvalidVerifier
	}

	for {
		b, err := randomSecret()
		if err != nil {
			return Ephemeral{}, err
		}
		B := grp.serverPublic(b, v)
		if grp.isDegenerate(B) {
			continue
		}
		return Ephemeral{Public: grp.pad(B), Secret: b.Bytes()}, nil
	}
}

// ClientDeriveSession computes the session key and the client proof M1.
// It returns ErrAborted when B ≡ 0 (mod N) or the scrambler u is zero.
func ClientDeriveSession(secret, serverPublic, salt []byte, username, password string) (Session, error) {
	grp := defaultGroup

	B := new(big.Int).SetBytes(serverPublic)
	if len(secret) == 0 || grp.isDegenerate(B) {
		return Session{}, ErrAborted
	}

	a := new(big.Int).SetBytes(secret)
	A := new(big.Int).Exp(grp.g, a, grp.N)

	u := grp.scrambler(A, B)
	if u.Sign() == 0 {
		return Session{}, ErrAborted
	}

	x := grp.privateKey(salt, username, password)
	defer x.SetInt64(0)

	// S = (B - k * g^x) ^ (a + u * x) mod N
	gx := new(big.Int).Exp(grp.g, x, grp.N)
	base := new(big.Int).Mul(grp.k, gx)
	base.Sub(B, base)
	base.Mod(base, grp.N)

	exp := new(big.Int).Mul(u, x)
	exp.Add(exp, a)

	S := new(big.Int).Exp(base, exp, grp.N)
	defer S.SetInt64(0)
	defer exp.SetInt64(0)

	K := grp.hash(grp.pad(S))
	M1 := grp.clientProof(username, salt, A, B, K)

	return Session{Key: K, Proof: M1}, nil
}

// ServerDeriveSession computes the session key, checks the client proof and
// returns the server proof M2. It returns ErrAborted when A ≡ 0 (mod N) and
// ErrInvalidProof when the client proof does not match.
func ServerDeriveSession(secret, clientPublic, salt []byte, username string, verifier, clientProof []byte) (Session, error) {
	grp := defaultGroup

	A := new(big.Int).SetBytes(clientPublic)
	if len(secret) == 0 || grp.isDegenerate(A) {
		return Session{}, ErrAborted
	}

	b := new(big.Int).SetBytes(secret)
	v := new(big.Int).SetBytes(verifier)
	B := grp.serverPublic(b, v)

	u := grp.scrambler(A, B)
	if u.Sign() == 0 {
		return Session{}, ErrAborted
	}

	// S = (A * v^u) ^ b mod N
	base := new(big.Int).Exp(v, u, grp.N)
	base.Mul(base, A)
	base.Mod(base, grp.N)

	S := new(big.Int).Exp(base, b, grp.N)
	defer S.SetInt64(0)

	K := grp.hash(grp.pad(S))
	expected := grp.clientProof(username, salt, A, B, K)

	if subtle.ConstantTimeCompare(expected, clientProof) != 1 {
		wipe(K)
		return Session{}, ErrInvalidProof
	}

	M2 := grp.hash(grp.pad(A), expected, K)
	return Session{Key: K, Proof: M2}, nil
}

// VerifySession checks the server proof M2 against the client session.
func VerifySession(clientPublic []byte, session Session, serverProof []byte) bool {
	grp := defaultGroup

	if len(session.Key) == 0 || len(session.Proof) == 0 {
		return false
	}

	A := new(big.Int).SetBytes(clientPublic)
	expected := grp.hash(grp.pad(A), session.Proof, session.Key)

	return subtle.ConstantTimeCompare(expected, serverProof) == 1
}

// privateKey computes x = H(s | H(I | ":" | p)).
func (grp *group) privateKey(salt []byte, username, password string) *big.Int {
	inner := grp.hash([]byte(username), []byte(":"), []byte(password))
	defer wipe(inner)
	return grp.hashInt(salt, inner)
}

func (grp *group) serverPublic(b, v *big.Int) *big.Int {
	kv := new(big.Int).Mul(grp.k, v)
	gb := new(big.Int).Exp(grp.g, b, grp.N)
	kv.Add(kv, gb)
	return kv.Mod(kv, grp.N)
}

// scrambler computes u = H(PAD(A) | PAD(B)).
func (grp *group) scrambler(A, B *big.Int) *big.Int {
	return grp.hashInt(grp.pad(A), grp.pad(B))
}

// clientProof computes M1 = H(H(N) xor H(g) | H(I) | s | A | B | K).
func (grp *group) clientProof(username string, salt []byte, A, B *big.Int, K []byte) []byte {
	hN := grp.hash(grp.N.Bytes())
	hG := grp.hash(grp.g.Bytes())
	for i := range hN {
		hN[i] ^= hG[i]
	}
	hI := grp.hash([]byte(username))

	return grp.hash(hN, hI, salt, grp.pad(A), grp.pad(B), K)
}

func randomSecret() (*big.Int, error) {
	buf := make([]byte, secretSize)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("failed to generate ephemeral secret: %w", err)
	}
	defer wipe(buf)
	return new(big.Int).SetBytes(buf), nil
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
