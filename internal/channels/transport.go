package channels

import (
	"context"
	"errors"
	"fmt"
)

// WebSocket close codes the state machine distinguishes.
const (
	CloseNormal   = 1000
	CloseAbnormal = 1006
)

// Transport is one open duplex socket.
type Transport interface {
	// ReadMessage blocks for the next text frame. Once it returns an error
	// the transport is finished and has released its resources; a
	// *CloseError reports the peer's close code.
	ReadMessage() ([]byte, error)
	// WriteMessage sends one text frame. Calls are serialized by the caller.
	WriteMessage(data []byte) error
	// Close sends a close frame with code and reason and releases the
	// socket. It is safe to call more than once.
	Close(code int, reason string) error
}

// Dialer opens transports.
type Dialer interface {
	Dial(ctx context.Context, url string) (Transport, error)
}

// CloseError reports how the peer closed the socket.
type CloseError struct {
	Code int
	Text string
}

func (e *CloseError) Error() string {
	if e.Text == "" {
		return fmt.Sprintf("websocket closed: code %d", e.Code)
	}
	return fmt.Sprintf("websocket closed: code %d (%s)", e.Code, e.Text)
}

// CloseCode returns the close code carried by err, or CloseAbnormal when the
// socket failed without a close frame.
func CloseCode(err error) int {
	var ce *CloseError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return CloseAbnormal
}
