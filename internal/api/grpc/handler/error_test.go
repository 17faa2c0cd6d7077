package handler

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dtroode/srplogin/internal/service"
)

func TestHandleError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		in       error
		wantCode codes.Code
		wantMsg  string
	}{
		{
			name:     "protocol violation -> PermissionDenied",
			in:       fmt.Errorf("%w: decrypt", service.ErrProtocolViolation),
			wantCode: codes.PermissionDenied,
			wantMsg:  "protocol violation",
		},
		{
			name:     "other -> Internal",
			in:       errors.New("boom"),
			wantCode: codes.Internal,
			wantMsg:  "internal server error",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := handleError(tt.in)
			st, ok := status.FromError(err)
			assert.True(t, ok)
			assert.Equal(t, tt.wantCode, st.Code())
			assert.Equal(t, tt.wantMsg, st.Message())
		})
	}
}

func TestHandleError_Finished(t *testing.T) {
	t.Parallel()

	assert.NoError(t, handleError(nil))
	assert.NoError(t, handleError(service.ErrFinished))
	assert.NoError(t, handleError(fmt.Errorf("%w: banned", service.ErrRejected)))
}
