package channels

import (
	"time"

	"github.com/haasonsaas/newton/internal/backoff"
)

// ReconnectExhaustedMessage is stored as the last error once a channel gives
// up reconnecting.
const ReconnectExhaustedMessage = "could not reconnect"

// ReconnectConfig controls reconnection behavior.
type ReconnectConfig struct {
	// MaxAttempts is the number of automatic retries after an unexpected
	// disconnect. Zero means the default of 5.
	MaxAttempts int
	Policy      backoff.Policy
}

// DefaultReconnectConfig returns the realtime reconnect budget: five
// attempts at 1s, 2s, 4s, 8s and 16s.
func DefaultReconnectConfig() ReconnectConfig {
	return ReconnectConfig{
		MaxAttempts: 5,
		Policy:      backoff.Reconnect(),
	}
}

// Delay returns the wait before the given 1-indexed attempt.
func (r ReconnectConfig) Delay(attempt int) time.Duration {
	return r.Policy.Delay(attempt)
}

func (r ReconnectConfig) withDefaults() ReconnectConfig {
	def := DefaultReconnectConfig()
	if r.MaxAttempts <= 0 {
		r.MaxAttempts = def.MaxAttempts
	}
	if r.Policy.Initial <= 0 {
		r.Policy = def.Policy
	}
	return r
}
