package middleware

import (
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dtroode/srplogin/internal/logger"
)

// NewRecovery returns a stream interceptor that turns handler panics into
// an Internal status.
func NewRecovery(logger *logger.Logger) grpc.StreamServerInterceptor {
	return recovery.StreamServerInterceptor(recovery.WithRecoveryHandler(func(p any) error {
		logger.Error("gRPC handler panicked", "panic", p)
		return status.Error(codes.Internal, "internal server error")
	}))
}
