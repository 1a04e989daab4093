package channels

import (
	"time"

	"github.com/haasonsaas/newton/pkg/models"
)

// Hooks observes connection lifecycle events, typically to export metrics.
// Implementations must be safe for concurrent use and must not call back
// into the Conn.
type Hooks interface {
	StatusChanged(kind string, status models.ConnectionStatus)
	Connected(kind string, latency time.Duration)
	FrameSent(kind, envelopeType string)
	FrameReceived(kind, envelopeType string)
	FrameDropped(kind string)
	ReconnectScheduled(kind string, attempt int, delay time.Duration)
	ReconnectExhausted(kind string)
}

// NopHooks ignores every event.
type NopHooks struct{}

var _ Hooks = NopHooks{}

func (NopHooks) StatusChanged(string, models.ConnectionStatus) {}
func (NopHooks) Connected(string, time.Duration)               {}
func (NopHooks) FrameSent(string, string)                      {}
func (NopHooks) FrameReceived(string, string)                  {}
func (NopHooks) FrameDropped(string)                           {}
func (NopHooks) ReconnectScheduled(string, int, time.Duration) {}
func (NopHooks) ReconnectExhausted(string)                     {}
