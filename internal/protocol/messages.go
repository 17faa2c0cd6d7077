// Package protocol defines the login handshake messages and their wire
// encoding.
package protocol

import "github.com/dtroode/srplogin/internal/model"

// Kind identifies a message type on the wire.
type Kind uint8

const (
	KindClientHello Kind = iota + 1
	KindServerHello
	KindVerifyRequest
	KindCreateAccountRequest
	KindVerifyChallenge
	KindProofRequest
	KindProofReply
	KindSuccessAck
	KindAuthResult
)

func (k Kind) String() string {
	switch k {
	case KindClientHello:
		return "client_hello"
	case KindServerHello:
		return "server_hello"
	case KindVerifyRequest:
		return "verify_request"
	case KindCreateAccountRequest:
		return "create_account_request"
	case KindVerifyChallenge:
		return "verify_challenge"
	case KindProofRequest:
		return "proof_request"
	case KindProofReply:
		return "proof_reply"
	case KindSuccessAck:
		return "success_ack"
	case KindAuthResult:
		return "auth_result"
	default:
		return "unknown"
	}
}

// Message is implemented by every handshake message.
type Message interface {
	Kind() Kind
}

// ClientHello opens the handshake with the client's bootstrap public key.
type ClientHello struct {
	PublicKey []byte
}

// ServerHello carries the symmetric material sealed to the client key.
type ServerHello struct {
	EncryptedKey []byte
	EncryptedIV  []byte
}

// VerifyRequest starts a login. Both fields are channel ciphertexts.
type VerifyRequest struct {
	AccountName           []byte
	ClientPublicEphemeral []byte
}

// CreateAccountRequest registers an account. All fields are channel
// ciphertexts.
type CreateAccountRequest struct {
	AccountName []byte
	Salt        []byte
	Verifier    []byte
}

// VerifyChallenge answers a VerifyRequest. Both fields are channel
// ciphertexts.
type VerifyChallenge struct {
	Salt                  []byte
	ServerPublicEphemeral []byte
}

// ProofRequest carries the encrypted client proof M1.
type ProofRequest struct {
	ClientProof []byte
}

// ProofReply carries the encrypted server proof M2.
type ProofReply struct {
	ServerProof []byte
}

// SuccessAck tells the server the client verified M2. Confirmation is an
// encrypted empty payload so the acknowledgement is authenticated.
type SuccessAck struct {
	Confirmation []byte
}

// AuthResult is the final, plaintext outcome of the handshake. Ticket is set
// only for ResultSuccess.
type AuthResult struct {
	Result model.ResultCode
	Ticket string
}

func (*ClientHello) Kind() Kind          { return KindClientHello }
func (*ServerHello) Kind() Kind          { return KindServerHello }
func (*VerifyRequest) Kind() Kind        { return KindVerifyRequest }
func (*CreateAccountRequest) Kind() Kind { return KindCreateAccountRequest }
func (*VerifyChallenge) Kind() Kind      { return KindVerifyChallenge }
func (*ProofRequest) Kind() Kind         { return KindProofRequest }
func (*ProofReply) Kind() Kind           { return KindProofReply }
func (*SuccessAck) Kind() Kind           { return KindSuccessAck }
func (*AuthResult) Kind() Kind           { return KindAuthResult }
