package channels

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a realtime channel failure.
type ErrorCode string

const (
	// ErrCodeSetup indicates missing scope or credentials, detected before
	// any transport is opened. Never retried.
	ErrCodeSetup ErrorCode = "SETUP_ERROR"

	// ErrCodeTransport indicates a socket level failure. Always followed by
	// an automatic reconnect attempt while attempts remain.
	ErrCodeTransport ErrorCode = "TRANSPORT_ERROR"

	// ErrCodeProtocol indicates an error envelope sent by the server.
	ErrCodeProtocol ErrorCode = "PROTOCOL_ERROR"

	// ErrCodeParse indicates an inbound frame that could not be decoded.
	ErrCodeParse ErrorCode = "PARSE_ERROR"

	// ErrCodeSend indicates an envelope that could not be written.
	ErrCodeSend ErrorCode = "SEND_ERROR"

	// ErrCodeReconnectExhausted indicates the reconnect budget is spent.
	ErrCodeReconnectExhausted ErrorCode = "RECONNECT_EXHAUSTED"

	// ErrCodeConfig indicates an invalid channel configuration.
	ErrCodeConfig ErrorCode = "CONFIG_ERROR"
)

// ErrNotConnected is returned by writes on a channel without an open socket.
var ErrNotConnected = errors.New("channel not connected")

// Error is a structured channel error.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
	Context map[string]any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// WithContext adds a debugging key-value pair to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// IsRetryable reports whether the channel retries this class of failure on
// its own.
func (e *Error) IsRetryable() bool {
	return e.Code == ErrCodeTransport
}

// ErrSetup creates a setup error.
func ErrSetup(message string, err error) *Error {
	return NewError(ErrCodeSetup, message, err)
}

// ErrTransport creates a transport error.
func ErrTransport(message string, err error) *Error {
	return NewError(ErrCodeTransport, message, err)
}

// ErrConfig creates a configuration error.
func ErrConfig(message string, err error) *Error {
	return NewError(ErrCodeConfig, message, err)
}

// GetErrorCode extracts the ErrorCode from err, or "" if err is not an *Error.
func GetErrorCode(err error) ErrorCode {
	var chErr *Error
	if errors.As(err, &chErr) {
		return chErr.Code
	}
	return ""
}

// IsRetryable reports whether err is a channel error the channel retries.
func IsRetryable(err error) bool {
	var chErr *Error
	if errors.As(err, &chErr) {
		return chErr.IsRetryable()
	}
	return false
}
