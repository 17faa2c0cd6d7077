package client

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/dtroode/srplogin/internal/api/grpc/proto"
	"github.com/dtroode/srplogin/internal/model"
	"github.com/dtroode/srplogin/internal/protocol"
)

// ErrNoResult is returned when the server closed the stream before sending
// a result.
var ErrNoResult = errors.New("client: stream closed without result")

// Client talks to a login server.
type Client struct {
	conn             *grpc.ClientConn
	login            proto.LoginClient
	handshakeTimeout time.Duration
}

// Options configure Dial.
type Options struct {
	// TLS enables transport security with the given config. Nil dials in
	// plaintext.
	TLS *tls.Config
	// HandshakeTimeout bounds each handshake up to its result. It does not
	// limit how long a logged in session stays open. Zero means no limit.
	HandshakeTimeout time.Duration
	// DialOptions are appended to the defaults.
	DialOptions []grpc.DialOption
}

// Dial connects to the login server at addr.
func Dial(addr string, opts Options) (*Client, error) {
	creds := insecure.NewCredentials()
	if opts.TLS != nil {
		creds = credentials.NewTLS(opts.TLS)
	}

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(creds),
		grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(protocol.MaxMessageSize)),
	}, opts.DialOptions...)

	conn, err := grpc.NewClient(addr, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create grpc client: %w", err)
	}

	return &Client{
		conn:             conn,
		login:            proto.NewLoginClient(conn),
		handshakeTimeout: opts.HandshakeTimeout,
	}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Session is an open login stream. After a successful login it stays open
// and the account counts as online until it is closed.
type Session struct {
	Result model.ResultCode
	Ticket string

	stream proto.Login_HandshakeClient
	cancel context.CancelFunc
}

// Wait blocks until the server closes the stream or ctx is done.
func (s *Session) Wait(ctx context.Context) error {
	done := make(chan error, 1)
	go func() {
		_, err := s.stream.Recv()
		done <- err
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
}

// Close ends the stream.
func (s *Session) Close() {
	_ = s.stream.CloseSend()
	s.cancel()
}

// Login runs the login handshake. The returned session is open only for
// ResultSuccess; for any other result it is already closed.
func (c *Client) Login(ctx context.Context, creds Credentials) (*Session, error) {
	return c.run(ctx, creds, ModeLogin)
}

// Register creates an account. The server closes the connection after the
// result, so the session is always closed.
func (c *Client) Register(ctx context.Context, creds Credentials) (model.ResultCode, error) {
	s, err := c.run(ctx, creds, ModeRegister)
	if err != nil {
		return model.ResultUnknown, err
	}
	return s.Result, nil
}

func (c *Client) run(ctx context.Context, creds Credentials, mode Mode) (*Session, error) {
	ctx, cancel := context.WithCancel(ctx)
	if c.handshakeTimeout > 0 {
		timer := time.AfterFunc(c.handshakeTimeout, cancel)
		defer timer.Stop()
	}

	stream, err := c.login.Handshake(ctx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open handshake stream: %w", err)
	}

	session := &Session{stream: stream, cancel: cancel}
	auth := NewAuthenticator(creds, mode, func(msg protocol.Message) error {
		return stream.Send(&protocol.Frame{Message: msg})
	}, nil)
	defer auth.Close()

	if err := auth.Start(); err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to start handshake: %w", err)
	}

	for {
		f, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			session.Close()
			return nil, ErrNoResult
		}
		if err != nil {
			session.Close()
			return nil, fmt.Errorf("failed to receive: %w", err)
		}

		done, err := auth.Handle(f.Message)
		if err != nil {
			session.Close()
			return nil, err
		}
		if done {
			break
		}
	}

	session.Result, session.Ticket = auth.Result()
	if session.Result != model.ResultSuccess {
		session.Close()
	}
	return session, nil
}
