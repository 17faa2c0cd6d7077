// Package proto holds the gRPC service definition of the login stream,
// written by hand after login.proto in this directory. The stream carries
// protocol.Frame values encoded by protocol.Codec, so both ends must force
// that codec.
package proto

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dtroode/srplogin/internal/protocol"
)

const (
	// Login_Handshake_FullMethodName is the full method name of the
	// handshake stream.
	Login_Handshake_FullMethodName = "/srplogin.Login/Handshake"
)

// LoginClient is the client API for the Login service.
type LoginClient interface {
	Handshake(ctx context.Context, opts ...grpc.CallOption) (grpc.BidiStreamingClient[protocol.Frame, protocol.Frame], error)
}

type loginClient struct {
	cc grpc.ClientConnInterface
}

// NewLoginClient creates a LoginClient on cc.
func NewLoginClient(cc grpc.ClientConnInterface) LoginClient {
	return &loginClient{cc}
}

func (c *loginClient) Handshake(ctx context.Context, opts ...grpc.CallOption) (grpc.BidiStreamingClient[protocol.Frame, protocol.Frame], error) {
	cOpts := append([]grpc.CallOption{grpc.StaticMethod(), grpc.ForceCodec(protocol.Codec{})}, opts...)
	stream, err := c.cc.NewStream(ctx, &Login_ServiceDesc.Streams[0], Login_Handshake_FullMethodName, cOpts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[protocol.Frame, protocol.Frame]{ClientStream: stream}
	return x, nil
}

// Login_HandshakeClient is the client side of the handshake stream.
type Login_HandshakeClient = grpc.BidiStreamingClient[protocol.Frame, protocol.Frame]

// LoginServer is the server API for the Login service.
type LoginServer interface {
	Handshake(grpc.BidiStreamingServer[protocol.Frame, protocol.Frame]) error
}

// Login_HandshakeServer is the server side of the handshake stream.
type Login_HandshakeServer = grpc.BidiStreamingServer[protocol.Frame, protocol.Frame]

// UnimplementedLoginServer can be embedded to have forward compatible
// implementations.
type UnimplementedLoginServer struct{}

func (UnimplementedLoginServer) Handshake(grpc.BidiStreamingServer[protocol.Frame, protocol.Frame]) error {
	return status.Errorf(codes.Unimplemented, "method Handshake not implemented")
}

// RegisterLoginServer registers srv on s.
func RegisterLoginServer(s grpc.ServiceRegistrar, srv LoginServer) {
	s.RegisterService(&Login_ServiceDesc, srv)
}

func _Login_Handshake_Handler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(LoginServer).Handshake(&grpc.GenericServerStream[protocol.Frame, protocol.Frame]{ServerStream: stream})
}

// Login_ServiceDesc is the grpc.ServiceDesc for the Login service.
var Login_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "srplogin.Login",
	HandlerType: (*LoginServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Handshake",
			Handler:       _Login_Handshake_Handler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "srplogin/login",
}
