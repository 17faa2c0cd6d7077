package protocol

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/dtroode/srplogin/internal/model"
)

// MaxMessageSize bounds an encoded message.
const MaxMessageSize = 16 << 10

const fieldKind protowire.Number = 1

var (
	ErrMalformed   = errors.New("protocol: malformed message")
	ErrUnknownKind = errors.New("protocol: unknown message kind")
	ErrTooLarge    = errors.New("protocol: message too large")
)

// Marshal encodes m using the protobuf wire format: field 1 holds the kind
// and the message fields follow from field 2.
func Marshal(m Message) ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("protocol: nil message")
	}

	b := protowire.AppendTag(nil, fieldKind, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.Kind()))

	switch m := m.(type) {
	case *ClientHello:
		b = appendBytes(b, 2, m.PublicKey)
	case *ServerHello:
		b = appendBytes(b, 2, m.EncryptedKey)
		b = appendBytes(b, 3, m.EncryptedIV)
	case *VerifyRequest:
		b = appendBytes(b, 2, m.AccountName)
		b = appendBytes(b, 3, m.ClientPublicEphemeral)
	case *CreateAccountRequest:
		b = appendBytes(b, 2, m.AccountName)
		b = appendBytes(b, 3, m.Salt)
		b = appendBytes(b, 4, m.Verifier)
	case *VerifyChallenge:
		b = appendBytes(b, 2, m.Salt)
		b = appendBytes(b, 3, m.ServerPublicEphemeral)
	case *ProofRequest:
		b = appendBytes(b, 2, m.ClientProof)
	case *ProofReply:
		b = appendBytes(b, 2, m.ServerProof)
	case *SuccessAck:
		b = appendBytes(b, 2, m.Confirmation)
	case *AuthResult:
		b = protowire.AppendTag(b, 2, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.Result))
		if m.Ticket != "" {
			b = protowire.AppendTag(b, 3, protowire.BytesType)
			b = protowire.AppendString(b, m.Ticket)
		}
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownKind, m)
	}

	if len(b) > MaxMessageSize {
		return nil, ErrTooLarge
	}
	return b, nil
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

// record holds the decoded fields of one message.
type record struct {
	bytes   map[protowire.Number][]byte
	varints map[protowire.Number]uint64
}

// Unmarshal decodes a message produced by Marshal. Unknown field numbers are
// skipped; duplicate fields and unknown kinds are rejected.
func Unmarshal(b []byte) (Message, error) {
	if len(b) > MaxMessageSize {
		return nil, ErrTooLarge
	}

	num, typ, n := protowire.ConsumeTag(b)
	if n < 0 || num != fieldKind || typ != protowire.VarintType {
		return nil, ErrMalformed
	}
	b = b[n:]
	kind, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return nil, ErrMalformed
	}
	b = b[n:]

	rec, err := consumeFields(b)
	if err != nil {
		return nil, err
	}

	switch Kind(kind) {
	case KindClientHello:
		return &ClientHello{PublicKey: rec.bytes[2]}, nil
	case KindServerHello:
		return &ServerHello{EncryptedKey: rec.bytes[2], EncryptedIV: rec.bytes[3]}, nil
	case KindVerifyRequest:
		return &VerifyRequest{AccountName: rec.bytes[2], ClientPublicEphemeral: rec.bytes[3]}, nil
	case KindCreateAccountRequest:
		return &CreateAccountRequest{AccountName: rec.bytes[2], Salt: rec.bytes[3], Verifier: rec.bytes[4]}, nil
	case KindVerifyChallenge:
		return &VerifyChallenge{Salt: rec.bytes[2], ServerPublicEphemeral: rec.bytes[3]}, nil
	case KindProofRequest:
		return &ProofRequest{ClientProof: rec.bytes[2]}, nil
	case KindProofReply:
		return &ProofReply{ServerProof: rec.bytes[2]}, nil
	case KindSuccessAck:
		return &SuccessAck{Confirmation: rec.bytes[2]}, nil
	case KindAuthResult:
		code := model.ResultCode(rec.varints[2])
		if rec.varints[2] > 255 || !code.Valid() {
			return nil, ErrMalformed
		}
		return &AuthResult{Result: code, Ticket: string(rec.bytes[3])}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, kind)
	}
}

func consumeFields(b []byte) (record, error) {
	rec := record{
		bytes:   make(map[protowire.Number][]byte),
		varints: make(map[protowire.Number]uint64),
	}
	seen := make(map[protowire.Number]struct{})

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return record{}, ErrMalformed
		}
		b = b[n:]

		if _, dup := seen[num]; dup || num == fieldKind {
			return record{}, ErrMalformed
		}
		seen[num] = struct{}{}

		switch typ {
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return record{}, ErrMalformed
			}
			rec.bytes[num] = append([]byte(nil), v...)
			b = b[n:]
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return record{}, ErrMalformed
			}
			rec.varints[num] = v
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return record{}, ErrMalformed
			}
			b = b[n:]
		}
	}
	return rec, nil
}
