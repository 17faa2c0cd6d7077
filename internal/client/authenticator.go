// Package client implements the client side of the login handshake.
package client

import (
	"errors"
	"fmt"

	"github.com/dtroode/srplogin/internal/model"
	"github.com/dtroode/srplogin/internal/protocol"
	"github.com/dtroode/srplogin/internal/secure"
	"github.com/dtroode/srplogin/internal/srp"
)

// ErrAborted means the client dropped the handshake: the server sent
// something malformed, out of order or failed to prove it knows the
// verifier.
var ErrAborted = errors.New("client: handshake aborted")

// Mode selects between logging in and registering.
type Mode uint8

const (
	ModeLogin Mode = iota
	ModeRegister
)

// Credentials are the user's account name and password.
type Credentials struct {
	AccountName string
	Password    string
}

// ResultFunc receives the final result of a handshake.
type ResultFunc func(result model.ResultCode, ticket string)

type state uint8

const (
	stateIdle state = iota
	stateAwaitServerHello
	stateAwaitChallenge
	stateAwaitProofReply
	stateAwaitResult
	stateDone
)

// Authenticator is the client handshake state machine. It is not safe for
// concurrent use.
type Authenticator struct {
	creds    Credentials
	mode     Mode
	send     func(protocol.Message) error
	onResult ResultFunc

	state   state
	keys    secure.KeyPair
	channel *secure.Channel
	eph     srp.Ephemeral
	session srp.Session
	result  model.ResultCode
	ticket  string
}

// NewAuthenticator creates an Authenticator that sends through send.
// onResult may be nil.
func NewAuthenticator(creds Credentials, mode Mode, send func(protocol.Message) error, onResult ResultFunc) *Authenticator {
	return &Authenticator{
		creds:    creds,
		mode:     mode,
		send:     send,
		onResult: onResult,
	}
}

// Start sends the client hello.
func (a *Authenticator) Start() error {
	if a.state != stateIdle {
		return fmt.Errorf("%w: already started", ErrAborted)
	}

	keys, err := secure.GenerateKeyPair()
	if err != nil {
		return fmt.Errorf("failed to generate bootstrap keys: %w", err)
	}
	a.keys = keys
	a.state = stateAwaitServerHello

	return a.send(&protocol.ClientHello{PublicKey: keys.Public()})
}

// Handle processes one server message. It reports whether the handshake
// reached its final result. Any error means the connection must be closed.
func (a *Authenticator) Handle(msg protocol.Message) (bool, error) {
	var err error
	switch m := msg.(type) {
	case *protocol.ServerHello:
		err = a.handleServerHello(m)
	case *protocol.VerifyChallenge:
		err = a.handleChallenge(m)
	case *protocol.ProofReply:
		err = a.handleProofReply(m)
	case *protocol.AuthResult:
		err = a.handleResult(m)
	default:
		err = fmt.Errorf("%w: unexpected %T", ErrAborted, msg)
	}

	if err != nil {
		a.Close()
		return false, err
	}
	return a.state == stateDone, nil
}

// Result returns the final result and the world-entry ticket, if any.
func (a *Authenticator) Result() (model.ResultCode, string) {
	return a.result, a.ticket
}

// Close wipes all key material held by the authenticator.
func (a *Authenticator) Close() {
	a.keys.Wipe()
	a.eph.Wipe()
	a.session.Wipe()
	if a.channel != nil {
		a.channel.Close()
	}
}

func (a *Authenticator) handleServerHello(m *protocol.ServerHello) error {
	if a.state != stateAwaitServerHello {
		return fmt.Errorf("%w: unexpected server hello", ErrAborted)
	}

	material, err := secure.Unwrap(a.keys, secure.WrappedMaterial{Key: m.EncryptedKey, IV: m.EncryptedIV})
	a.keys.Wipe()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAborted, err)
	}
	ch, err := secure.NewChannel(material, secure.RoleClient)
	material.Wipe()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAborted, err)
	}
	a.channel = ch

	if a.mode == ModeRegister {
		return a.sendRegistration()
	}
	return a.sendVerify()
}

func (a *Authenticator) sendVerify() error {
	eph, err := srp.ClientGenerateEphemeral()
	if err != nil {
		return fmt.Errorf("failed to generate ephemeral: %w", err)
	}
	a.eph = eph

	name, err := a.channel.Seal([]byte(a.creds.AccountName))
	if err != nil {
		return err
	}
	public, err := a.channel.Seal(eph.Public)
	if err != nil {
		return err
	}

	a.state = stateAwaitChallenge
	return a.send(&protocol.VerifyRequest{
		AccountName:           name,
		ClientPublicEphemeral: public,
	})
}

func (a *Authenticator) sendRegistration() error {
	salt, verifier, err := srp.DeriveSaltAndVerifier(a.creds.AccountName, a.creds.Password)
	if err != nil {
		return err
	}

	name, err := a.channel.Seal([]byte(a.creds.AccountName))
	if err != nil {
		return err
	}
	sealedSalt, err := a.channel.Seal(salt)
	if err != nil {
		return err
	}
	sealedVerifier, err := a.channel.Seal(verifier)
	secure.Wipe(verifier)
	if err != nil {
		return err
	}

	a.state = stateAwaitResult
	return a.send(&protocol.CreateAccountRequest{
		AccountName: name,
		Salt:        sealedSalt,
		Verifier:    sealedVerifier,
	})
}

func (a *Authenticator) handleChallenge(m *protocol.VerifyChallenge) error {
	if a.state != stateAwaitChallenge {
		return fmt.Errorf("%w: unexpected challenge", ErrAborted)
	}

	salt, err := a.channel.Open(m.Salt)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAborted, err)
	}
	serverPublic, err := a.channel.Open(m.ServerPublicEphemeral)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAborted, err)
	}

	sess, err := srp.ClientDeriveSession(a.eph.Secret, serverPublic, salt, a.creds.AccountName, a.creds.Password)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAborted, err)
	}
	a.session = sess

	proof, err := a.channel.Seal(sess.Proof)
	if err != nil {
		return err
	}

	a.state = stateAwaitProofReply
	return a.send(&protocol.ProofRequest{ClientProof: proof})
}

func (a *Authenticator) handleProofReply(m *protocol.ProofReply) error {
	if a.state != stateAwaitProofReply {
		return fmt.Errorf("%w: unexpected proof reply", ErrAborted)
	}

	serverProof, err := a.channel.Open(m.ServerProof)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAborted, err)
	}
	if !srp.VerifySession(a.eph.Public, a.session, serverProof) {
		return fmt.Errorf("%w: server proof mismatch", ErrAborted)
	}
	a.eph.Wipe()

	confirmation, err := a.channel.Seal(nil)
	if err != nil {
		return err
	}

	a.state = stateAwaitResult
	return a.send(&protocol.SuccessAck{Confirmation: confirmation})
}

func (a *Authenticator) handleResult(m *protocol.AuthResult) error {
	switch a.state {
	case stateIdle, stateAwaitServerHello, stateDone:
		return fmt.Errorf("%w: unexpected result", ErrAborted)
	}
	// Success is only meaningful once the server proved itself.
	if m.Result == model.ResultSuccess && (a.mode != ModeLogin || a.state != stateAwaitResult) {
		return fmt.Errorf("%w: premature success", ErrAborted)
	}
	if m.Result == model.ResultAccountCreated && a.mode != ModeRegister {
		return fmt.Errorf("%w: unexpected account created", ErrAborted)
	}

	a.result = m.Result
	a.ticket = m.Ticket
	a.state = stateDone
	a.Close()

	if a.onResult != nil {
		a.onResult(a.result, a.ticket)
	}
	return nil
}
