package model

// Phase is the position of an authentication session in its forward-only
// state machine.
type Phase uint8

const (
	// PhaseNone is reported for connections without an auth session.
	PhaseNone Phase = iota
	// PhaseAwaitingVerify means the challenge was sent and the client proof
	// is expected.
	PhaseAwaitingVerify
	// PhaseAwaitingProof means the server proof was sent and the client
	// acknowledgement is expected.
	PhaseAwaitingProof
	// PhaseAuthenticated is the only phase in which a connection counts as
	// authenticated.
	PhaseAuthenticated
	// PhaseRejected is terminal.
	PhaseRejected
)

// Next returns the phase that directly follows p, or PhaseRejected for
// terminal phases.
func (p Phase) Next() Phase {
	switch p {
	case PhaseAwaitingVerify:
		return PhaseAwaitingProof
	case PhaseAwaitingProof:
		return PhaseAuthenticated
	default:
		return PhaseRejected
	}
}

func (p Phase) String() string {
	switch p {
	case PhaseNone:
		return "none"
	case PhaseAwaitingVerify:
		return "awaiting_verify"
	case PhaseAwaitingProof:
		return "awaiting_proof"
	case PhaseAuthenticated:
		return "authenticated"
	case PhaseRejected:
		return "rejected"
	default:
		return "unknown"
	}
}
