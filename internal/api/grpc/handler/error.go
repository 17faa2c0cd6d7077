package handler

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dtroode/srplogin/internal/service"
)

// handleError maps a handshake error to the status that ends the stream. A
// finished handshake already delivered its result and ends cleanly.
func handleError(err error) error {
	switch {
	case err == nil, errors.Is(err, service.ErrFinished):
		return nil
	case errors.Is(err, service.ErrProtocolViolation):
		return status.Error(codes.PermissionDenied, "protocol violation")
	default:
		return status.Error(codes.Internal, "internal server error")
	}
}
