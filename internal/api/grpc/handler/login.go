package handler

import (
	"context"
	"errors"
	"io"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dtroode/srplogin/internal/api/grpc/proto"
	"github.com/dtroode/srplogin/internal/logger"
	"github.com/dtroode/srplogin/internal/model"
	"github.com/dtroode/srplogin/internal/protocol"
	"github.com/dtroode/srplogin/internal/service"
)

// LoginService runs the server side of the handshake.
type LoginService interface {
	Connected(conn service.Conn) error
	Handle(ctx context.Context, conn service.Conn, msg protocol.Message) error
	Disconnected(ctx context.Context, conn model.ConnectionHandle)
}

// Login serves the handshake stream. Every stream is one connection.
type Login struct {
	proto.UnimplementedLoginServer

	service LoginService
	ctxMgr  model.ContextManager
	logger  *logger.Logger
}

// NewLogin creates a new Login handler.
func NewLogin(service LoginService, ctxMgr model.ContextManager, logger *logger.Logger) *Login {
	return &Login{
		service: service,
		ctxMgr:  ctxMgr,
		logger:  logger,
	}
}

// Handshake reads client messages and feeds them to the login service until
// the handshake ends, the client goes away or the server drops the
// connection.
func (h *Login) Handshake(stream proto.Login_HandshakeServer) error {
	ctx, cancel := context.WithCancel(stream.Context())
	defer cancel()

	id, ok := h.ctxMgr.GetConnectionFromContext(stream.Context())
	if !ok {
		id = model.NewConnectionHandle()
	}
	conn := &streamConn{
		id:     id,
		stream: stream,
		cancel: cancel,
	}
	if err := h.service.Connected(conn); err != nil {
		h.logger.Error("Login handler: failed to register connection", "error", err.Error())
		return handleError(err)
	}
	defer h.service.Disconnected(ctx, conn.id)

	frames := make(chan *protocol.Frame)
	recvErr := make(chan error, 1)
	go func() {
		for {
			f, err := stream.Recv()
			if err != nil {
				recvErr <- err
				return
			}
			select {
			case frames <- f:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			if err := stream.Context().Err(); err != nil {
				return status.FromContextError(err).Err()
			}
			return status.Error(codes.Aborted, "connection closed by server")
		case err := <-recvErr:
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		case f := <-frames:
			if err := h.service.Handle(ctx, conn, f.Message); err != nil {
				return handleError(err)
			}
		}
	}
}

// streamConn adapts a handshake stream to service.Conn. Send is only called
// from the handler goroutine.
type streamConn struct {
	id     model.ConnectionHandle
	stream proto.Login_HandshakeServer
	cancel context.CancelFunc
}

func (c *streamConn) ID() model.ConnectionHandle {
	return c.id
}

func (c *streamConn) Send(msg protocol.Message) error {
	return c.stream.Send(&protocol.Frame{Message: msg})
}

func (c *streamConn) Disconnect() {
	c.cancel()
}
