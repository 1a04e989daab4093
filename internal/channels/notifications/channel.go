// Package notifications implements the tenant wide realtime channel that
// stays open for the whole authenticated session.
package notifications

import (
	"log/slog"
	"time"

	"github.com/haasonsaas/newton/internal/channels"
	"github.com/haasonsaas/newton/internal/wire"
	"github.com/haasonsaas/newton/pkg/models"
)

// Config configures a notifications Channel.
type Config struct {
	BaseURL string

	HeartbeatInterval time.Duration
	HandshakeTimeout  time.Duration
	Reconnect         channels.ReconnectConfig

	Dialer channels.Dialer
	Clock  channels.Clock
	Logger *slog.Logger
	Hooks  channels.Hooks
}

// Handlers receive tenant wide push events. Nil fields are skipped.
type Handlers struct {
	OnNewMessage          func(wire.NewMessage)
	OnNewConversation     func(wire.NewConversation)
	OnConversationUpdated func(wire.ConversationUpdated)
	OnError               func(message string)
}

// Channel is a realtime connection bound to a tenant.
type Channel struct {
	conn *channels.Conn
}

// Endpoint returns the URL builder for /ws/notifications/{tenant}.
func Endpoint(baseURL string) channels.EndpointFunc {
	return func(s channels.Scope, token string) (string, error) {
		return channels.BuildURL(baseURL, token, "ws", "notifications", s.TenantID)
	}
}

// New creates a disconnected Channel.
func New(cfg Config) (*Channel, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = channels.DefaultBaseURL
	}
	if cfg.Dialer == nil {
		cfg.Dialer = &channels.WebSocketDialer{HandshakeTimeout: cfg.HandshakeTimeout}
	}
	conn, err := channels.NewConn(channels.ConnConfig{
		Kind:              channels.KindNotifications,
		Endpoint:          Endpoint(cfg.BaseURL),
		HeartbeatInterval: cfg.HeartbeatInterval,
		HandshakeTimeout:  cfg.HandshakeTimeout,
		Reconnect:         cfg.Reconnect,
		Dialer:            cfg.Dialer,
		Clock:             cfg.Clock,
		Logger:            cfg.Logger,
		Hooks:             cfg.Hooks,
	})
	if err != nil {
		return nil, err
	}
	return &Channel{conn: conn}, nil
}

// Subscribe registers h and returns a func that removes it.
func (ch *Channel) Subscribe(h Handlers) (unsubscribe func()) {
	return ch.conn.OnEvent(func(ev wire.Event) {
		switch e := ev.(type) {
		case wire.NewMessage:
			if h.OnNewMessage != nil {
				h.OnNewMessage(e)
			}
		case wire.NewConversation:
			if h.OnNewConversation != nil {
				h.OnNewConversation(e)
			}
		case wire.ConversationUpdated:
			if h.OnConversationUpdated != nil {
				h.OnConversationUpdated(e)
			}
		case wire.ServerError:
			if h.OnError != nil {
				h.OnError(e.Message)
			}
		}
	})
}

// Connect opens the channel for a tenant.
func (ch *Channel) Connect(tenantID, token string) error {
	return ch.conn.Connect(channels.Scope{TenantID: tenantID}, token)
}

// Disconnect closes the channel. Safe to call repeatedly.
func (ch *Channel) Disconnect() { ch.conn.Disconnect() }

// IsConnected reports whether the socket is open.
func (ch *Channel) IsConnected() bool { return ch.conn.Ready() }

func (ch *Channel) Status() models.ConnectionStatus { return ch.conn.Status() }
func (ch *Channel) LastError() string               { return ch.conn.LastError() }

func (ch *Channel) OnStatus(fn func(models.ConnectionStatus)) (unsubscribe func()) {
	return ch.conn.OnStatus(fn)
}

func (ch *Channel) OnLastError(fn func(string)) (unsubscribe func()) {
	return ch.conn.OnLastError(fn)
}

// Conn exposes the underlying connection for health and metrics.
func (ch *Channel) Conn() *channels.Conn { return ch.conn }
