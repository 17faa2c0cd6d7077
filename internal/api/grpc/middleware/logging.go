package middleware

import (
	"time"

	grpcmw "github.com/grpc-ecosystem/go-grpc-middleware/v2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dtroode/srplogin/internal/logger"
	"github.com/dtroode/srplogin/internal/model"
)

// Logging is a stream interceptor that assigns every stream its connection
// handle and logs how the stream ended.
type Logging struct {
	ctxMgr model.ContextManager
	logger *logger.Logger
}

// NewLogging creates a new Logging middleware.
func NewLogging(ctxMgr model.ContextManager, logger *logger.Logger) *Logging {
	return &Logging{ctxMgr: ctxMgr, logger: logger}
}

// HandleStream logs method name, connection, duration and status for each
// stream.
func (l *Logging) HandleStream(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	start := time.Now()
	conn := model.NewConnectionHandle()

	wrapped := grpcmw.WrapServerStream(ss)
	wrapped.WrappedContext = l.ctxMgr.SetConnectionToContext(ss.Context(), conn)

	l.logger.Debug("gRPC stream started",
		"method", info.FullMethod,
		"conn", conn)

	err := handler(srv, wrapped)

	duration := time.Since(start)

	statusCode := codes.OK
	if err != nil {
		if st, ok := status.FromError(err); ok {
			statusCode = st.Code()
		} else {
			statusCode = codes.Internal
		}
	}

	l.logger.Info("gRPC stream completed",
		"method", info.FullMethod,
		"conn", conn,
		"duration_ms", duration.Milliseconds(),
		"status", statusCode.String())

	if statusCode == codes.Internal || statusCode == codes.Unknown {
		l.logger.Error("gRPC stream failed",
			"method", info.FullMethod,
			"conn", conn,
			"error", err.Error())
	}

	return err
}
