// Package conversation implements the lead scoped realtime channel used by
// an open inbox conversation.
package conversation

import (
	"log/slog"
	"time"

	"github.com/haasonsaas/newton/internal/channels"
	"github.com/haasonsaas/newton/internal/media"
	"github.com/haasonsaas/newton/internal/wire"
	"github.com/haasonsaas/newton/pkg/models"
)

// Config configures a conversation Channel.
type Config struct {
	// BaseURL is the realtime host, e.g. wss://crm.inewton.ai.
	BaseURL string

	HeartbeatInterval time.Duration
	HandshakeTimeout  time.Duration
	Reconnect         channels.ReconnectConfig

	Dialer channels.Dialer
	Clock  channels.Clock
	Logger *slog.Logger
	Hooks  channels.Hooks
}

// Handlers receive conversation events. Nil fields are skipped.
type Handlers struct {
	OnNewMessage    func(wire.NewMessage)
	OnMessageSent   func(wire.MessageSent)
	OnMessageStatus func(messageID, status string)
	OnError         func(message string)
}

// Channel is a realtime connection bound to one (tenant, lead) pair.
type Channel struct {
	conn *channels.Conn
}

// Endpoint returns the URL builder for /ws/{tenant}/{lead}.
func Endpoint(baseURL string) channels.EndpointFunc {
	return func(s channels.Scope, token string) (string, error) {
		return channels.BuildURL(baseURL, token, "ws", s.TenantID, s.LeadID)
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
		Kind:              channels.KindConversation,
		Endpoint:          Endpoint(cfg.BaseURL),
		RequireLead:       true,
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
	return ch.conn.OnEvent(func(ev wire.Event) { dispatch(h, ev) })
}

func dispatch(h Handlers, ev wire.Event) {
	switch e := ev.(type) {
	case wire.NewMessage:
		if h.OnNewMessage != nil {
			h.OnNewMessage(e)
		}
	case wire.MessageSent:
		if h.OnMessageSent != nil {
			h.OnMessageSent(e)
		}
	case wire.MessageStatus:
		if h.OnMessageStatus != nil && e.MessageID != "" && e.Status != "" {
			h.OnMessageStatus(e.MessageID, e.Status)
		}
	case wire.ServerError:
		if h.OnError != nil {
			h.OnError(e.Message)
		}
	case wire.Pong, wire.ConnectionEstablished, wire.Unknown,
		wire.NewConversation, wire.ConversationUpdated:
	}
}

// Connect opens the channel for a lead. Switching leads tears down the
// previous socket first.
func (ch *Channel) Connect(tenantID, leadID, token string) error {
	return ch.conn.Connect(channels.Scope{TenantID: tenantID, LeadID: leadID}, token)
}

// Disconnect closes the channel. Safe to call repeatedly.
func (ch *Channel) Disconnect() { ch.conn.Disconnect() }

// CurrentLeadID returns the bound lead, or "".
func (ch *Channel) CurrentLeadID() string {
	scope, _ := ch.conn.Scope()
	return scope.LeadID
}

// IsConnected reports whether the socket is open.
func (ch *Channel) IsConnected() bool { return ch.conn.Ready() }

// SendText sends a text message. It returns false without sending when the
// channel is not connected.
func (ch *Channel) SendText(content string) bool {
	return ch.conn.Send(wire.NewSendMessage(content))
}

// SendAudio sends a base64 voice note. A nil duration is omitted.
func (ch *Channel) SendAudio(data string, duration *float64) bool {
	return media.SendAudio(ch.conn, data, duration)
}

// SendImage sends a base64 image with an optional caption.
func (ch *Channel) SendImage(data, mimetype, filename, caption string) bool {
	return media.SendImage(ch.conn, data, mimetype, filename, caption)
}

// SendPDF sends a base64 PDF with an optional caption.
func (ch *Channel) SendPDF(data, filename, caption string) bool {
	return media.SendPDF(ch.conn, data, filename, caption)
}

// SendVideo sends a base64 video with an optional caption.
func (ch *Channel) SendVideo(data, mimetype, filename, caption string) bool {
	return media.SendVideo(ch.conn, data, mimetype, filename, caption)
}

// RequestHistory asks the server to replay up to limit recent messages.
func (ch *Channel) RequestHistory(limit int) bool {
	return ch.conn.Send(wire.NewRequestHistory(limit))
}

// Status returns the connection status.
func (ch *Channel) Status() models.ConnectionStatus { return ch.conn.Status() }

// LastError returns the last error message, or "".
func (ch *Channel) LastError() string { return ch.conn.LastError() }

// OnStatus registers a status listener.
func (ch *Channel) OnStatus(fn func(models.ConnectionStatus)) (unsubscribe func()) {
	return ch.conn.OnStatus(fn)
}

// OnLastError registers a last-error listener.
func (ch *Channel) OnLastError(fn func(string)) (unsubscribe func()) {
	return ch.conn.OnLastError(fn)
}

// Conn exposes the underlying connection for health and metrics.
func (ch *Channel) Conn() *channels.Conn { return ch.conn }
