package model

import "context"

// ContextManager carries the connection handle of a stream through its
// context.
type ContextManager interface {
	SetConnectionToContext(ctx context.Context, conn ConnectionHandle) context.Context
	GetConnectionFromContext(ctx context.Context) (ConnectionHandle, bool)
}
