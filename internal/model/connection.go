package model

import "github.com/google/uuid"

// ConnectionHandle identifies one live transport connection. It is assigned
// by the transport when the connection opens and is never reused.
type ConnectionHandle uuid.UUID

// NewConnectionHandle returns a fresh random handle.
func NewConnectionHandle() ConnectionHandle {
	return ConnectionHandle(uuid.New())
}

// String returns the canonical UUID form of the handle.
func (h ConnectionHandle) String() string {
	return uuid.UUID(h).String()
}

// IsZero reports whether h is the zero handle.
func (h ConnectionHandle) IsZero() bool {
	return uuid.UUID(h) == uuid.Nil
}
