package mcperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name:     "transport error includes stage",
			err:      Connect(StageTLS, errors.New("handshake failed")),
			expected: "Transport error at stage tls: handshake failed",
		},
		{
			name:     "protocol error includes json-rpc code",
			err:      Protocol(-32601, "method not found"),
			expected: "protocol error -32601: method not found",
		},
		{
			name:     "other kinds fall back to kind: message",
			err:      Busy("scan already running"),
			expected: "Busy: scan already running",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestError_UnwrapAndAs(t *testing.T) {
	inner := errors.New("dial tcp: refused")
	wrapped := fmt.Errorf("connect: %w", Connect(StageTCP, inner))

	var mcpErr *Error
	ok := errors.As(wrapped, &mcpErr)
	assert.True(t, ok)
	assert.Equal(t, KindTransport, mcpErr.Kind)
	assert.ErrorIs(t, wrapped, inner)
}

func TestKind_String(t *testing.T) {
	tests := []struct {
		kind     Kind
		expected string
	}{
		{KindTransport, "Transport"},
		{KindProtocol, "Protocol"},
		{KindTimeout, "Timeout"},
		{KindAuth, "Auth"},
		{KindRuleCompilation, "RuleCompilation"},
		{KindValidation, "Validation"},
		{KindCancelled, "Cancelled"},
		{KindBusy, "Busy"},
		{Kind(999), "Unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.kind.String())
		})
	}
}
