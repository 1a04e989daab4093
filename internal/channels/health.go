package channels

import (
	"time"

	"github.com/haasonsaas/newton/pkg/models"
)

// HealthStatus is a point-in-time health report for one connection.
type HealthStatus struct {
	// Healthy is true only while connected with no outstanding error.
	Healthy bool `json:"healthy"`

	Status  models.ConnectionStatus `json:"status"`
	Message string                  `json:"message,omitempty"`
	Scope   string                  `json:"scope,omitempty"`

	// Degraded is set while a reconnect is pending.
	Degraded bool `json:"degraded,omitempty"`

	ReconnectAttempts int       `json:"reconnect_attempts"`
	ConnectionID      string    `json:"connection_id,omitempty"`
	LastPing          time.Time `json:"last_ping,omitempty"`
	LastPong          time.Time `json:"last_pong,omitempty"`
	LastCheck         time.Time `json:"last_check"`
}
