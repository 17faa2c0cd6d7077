package model

import "time"

// AuthenticationObserver is notified once per connection with the final
// outcome of its login handshake.
type AuthenticationObserver interface {
	OnConnectionAuthenticated(conn ConnectionHandle, accountName string, success bool)
}

// TicketIssuer signs the world-entry ticket handed to a client after a
// successful login.
type TicketIssuer interface {
	Issue(accountName string, level AccessLevel, conn ConnectionHandle) (string, error)
}

// Ticket is the parsed form of a world-entry ticket.
type Ticket struct {
	ID          string
	AccountName string
	AccessLevel AccessLevel
	Connection  ConnectionHandle
	ExpiresAt   time.Time
}
