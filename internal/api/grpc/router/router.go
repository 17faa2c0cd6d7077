package router

import (
	"google.golang.org/grpc"

	"github.com/dtroode/srplogin/internal/api/grpc/handler"
	"github.com/dtroode/srplogin/internal/api/grpc/middleware"
	"github.com/dtroode/srplogin/internal/api/grpc/proto"
	"github.com/dtroode/srplogin/internal/logger"
	"github.com/dtroode/srplogin/internal/model"
	"github.com/dtroode/srplogin/internal/protocol"
)

// Router represents a gRPC router for the login service.
type Router struct {
	loginService handler.LoginService
	ctxMgr       model.ContextManager
	logger       *logger.Logger
}

// New creates new gRPC Router instance.
func New(loginService handler.LoginService, ctxMgr model.ContextManager, logger *logger.Logger) *Router {
	return &Router{
		loginService: loginService,
		ctxMgr:       ctxMgr,
		logger:       logger,
	}
}

// Register builds the gRPC server with the login stream, the login codec
// and the logging and recovery interceptors. Extra options are appended.
func (r *Router) Register(opts ...grpc.ServerOption) *grpc.Server {
	logging := middleware.NewLogging(r.ctxMgr, r.logger)

	serverOpts := append([]grpc.ServerOption{
		grpc.ForceServerCodec(protocol.Codec{}),
		grpc.MaxRecvMsgSize(protocol.MaxMessageSize),
		grpc.ChainStreamInterceptor(
			logging.HandleStream,
			middleware.NewRecovery(r.logger),
		),
	}, opts...)

	s := grpc.NewServer(serverOpts...)
	r.registerLoginRoutes(s)

	return s
}

func (r *Router) registerLoginRoutes(server *grpc.Server) {
	loginHandler := handler.NewLogin(r.loginService, r.ctxMgr, r.logger)
	proto.RegisterLoginServer(server, loginHandler)
}
