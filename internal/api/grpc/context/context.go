package context

import (
	"context"

	"github.com/google/uuid"
	"google.golang.org/grpc/metadata"

	"github.com/dtroode/srplogin/internal/model"
)

// connectionIDKey is the metadata key holding the connection handle.
const (
	connectionIDKey string = "x-connection-id"
)

var _ model.ContextManager = (*Manager)(nil)

// Manager stores the connection handle in incoming gRPC metadata.
type Manager struct{}

// NewManager creates a new gRPC context manager instance.
func NewManager() *Manager {
	return &Manager{}
}

// SetConnectionToContext sets the connection handle in the incoming
// metadata, replacing any value the client sent.
func (m *Manager) SetConnectionToContext(ctx context.Context, conn model.ConnectionHandle) context.Context {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		md = metadata.New(map[string]string{connectionIDKey: conn.String()})
	} else {
		md = md.Copy()
		md.Set(connectionIDKey, conn.String())
	}

	return metadata.NewIncomingContext(ctx, md)
}

// GetConnectionFromContext retrieves the connection handle from incoming
// metadata.
func (m *Manager) GetConnectionFromContext(ctx context.Context) (model.ConnectionHandle, bool) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return model.ConnectionHandle{}, false
	}

	ids := md.Get(connectionIDKey)
	if len(ids) == 0 {
		return model.ConnectionHandle{}, false
	}

	id, err := uuid.Parse(ids[0])
	if err != nil || id == uuid.Nil {
		return model.ConnectionHandle{}, false
	}

	return model.ConnectionHandle(id), true
}
