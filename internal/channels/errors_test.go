package channels

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_FormatAndUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := ErrTransport("connection error", cause).WithContext("tenant", "t1")

	if !strings.Contains(err.Error(), "[TRANSPORT_ERROR] connection error") {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the cause")
	}
	if err.Context["tenant"] != "t1" {
		t.Errorf("Context = %v", err.Context)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{ErrTransport("x", nil), true},
		{fmt.Errorf("wrapped: %w", ErrTransport("x", nil)), true},
		{ErrSetup("x", nil), false},
		{NewError(ErrCodeProtocol, "x", nil), false},
		{errors.New("plain"), false},
		{nil, false},
	}
	for _, tt := range tests {
		if got := IsRetryable(tt.err); got != tt.want {
			t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestGetErrorCode(t *testing.T) {
	if got := GetErrorCode(fmt.Errorf("x: %w", ErrSetup("missing", nil))); got != ErrCodeSetup {
		t.Errorf("GetErrorCode() = %q, want %q", got, ErrCodeSetup)
	}
	if got := GetErrorCode(errors.New("plain")); got != "" {
		t.Errorf("GetErrorCode() = %q, want empty", got)
	}
}
