package wire

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/haasonsaas/newton/pkg/models"
)

// Inbound envelope types.
const (
	TypeNewMessage            = "new_message"
	TypeMessageSent           = "message_sent"
	TypeMessageStatus         = "message_status"
	TypeConnectionEstablished = "connection_established"
	TypePong                  = "pong"
	TypeError                 = "error"
	TypeNewConversation       = "new_conversation"
	TypeConversationUpdated   = "conversation_updated"
)

// DefaultServerError is the text used for error envelopes that carry no
// message.
const DefaultServerError = "server error"

// ErrMissingType is returned by Decode for JSON objects without a type.
var ErrMissingType = errors.New("envelope has no type")

// Event is a decoded inbound envelope. The set of implementations is closed;
// frames with an unrecognized type decode to Unknown.
type Event interface {
	EventType() string
	isEvent()
}

// Notification holds the tenant-wide fields pushed on the notifications
// endpoint.
type Notification struct {
	TenantID       string         `json:"tenant_id,omitempty"`
	LeadID         string         `json:"lead_id,omitempty"`
	LeadName       string         `json:"lead_name,omitempty"`
	MessagePreview string         `json:"message_preview,omitempty"`
	Phone          string         `json:"phone,omitempty"`
	Changes        map[string]any `json:"changes,omitempty"`
	Timestamp      string         `json:"timestamp,omitempty"`
}

// NewMessage announces a message in a lead conversation. Conversation
// endpoints populate Message; the notifications endpoint populates the
// preview fields.
type NewMessage struct {
	Notification
	Message *models.Message `json:"message,omitempty"`
}

// MessageSent confirms a message this client sent.
type MessageSent struct {
	Message *models.Message `json:"message,omitempty"`
}

// MessageStatus reports a delivery status change.
type MessageStatus struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
}

// ConnectionEstablished is sent by the server once the socket is accepted.
type ConnectionEstablished struct{}

// Pong answers a heartbeat ping.
type Pong struct{}

// ServerError is a protocol level error reported by the server. The socket
// stays open.
type ServerError struct {
	Message string
}

// NewConversation announces a conversation the tenant has not seen before.
type NewConversation struct {
	Notification
}

// ConversationUpdated announces a change to an existing conversation.
type ConversationUpdated struct {
	Notification
}

// Unknown is any well formed envelope whose type is not recognized.
type Unknown struct {
	Type string
	Raw  json.RawMessage
}

func (NewMessage) EventType() string            { return TypeNewMessage }
func (MessageSent) EventType() string           { return TypeMessageSent }
func (MessageStatus) EventType() string         { return TypeMessageStatus }
func (ConnectionEstablished) EventType() string { return TypeConnectionEstablished }
func (Pong) EventType() string                  { return TypePong }
func (ServerError) EventType() string           { return TypeError }
func (NewConversation) EventType() string       { return TypeNewConversation }
func (ConversationUpdated) EventType() string   { return TypeConversationUpdated }
func (u Unknown) EventType() string             { return u.Type }

func (NewMessage) isEvent()            {}
func (MessageSent) isEvent()           {}
func (MessageStatus) isEvent()         {}
func (ConnectionEstablished) isEvent() {}
func (Pong) isEvent()                  {}
func (ServerError) isEvent()           {}
func (NewConversation) isEvent()       {}
func (ConversationUpdated) isEvent()   {}
func (Unknown) isEvent()               {}

type header struct {
	Type string `json:"type"`
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Decode parses one inbound frame. Malformed JSON and objects without a type
// return an error; unrecognized types return Unknown.
func Decode(data []byte) (Event, error) {
	var h header
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if h.Type == "" {
		return nil, ErrMissingType
	}

	switch h.Type {
	case TypeNewMessage:
		var ev NewMessage
		return decodeInto(data, &ev)
	case TypeMessageSent:
		var ev MessageSent
		return decodeInto(data, &ev)
	case TypeMessageStatus:
		var ev MessageStatus
		return decodeInto(data, &ev)
	case TypeConnectionEstablished:
		return ConnectionEstablished{}, nil
	case TypePong:
		return Pong{}, nil
	case TypeError:
		var body errorBody
		if err := json.Unmarshal(data, &body); err != nil {
			return nil, fmt.Errorf("decode %s: %w", h.Type, err)
		}
		msg := body.Message
		if msg == "" {
			msg = body.Error
		}
		if msg == "" {
			msg = DefaultServerError
		}
		return ServerError{Message: msg}, nil
	case TypeNewConversation:
		var ev NewConversation
		return decodeInto(data, &ev)
	case TypeConversationUpdated:
		var ev ConversationUpdated
		return decodeInto(data, &ev)
	default:
		raw := make(json.RawMessage, len(data))
		copy(raw, data)
		return Unknown{Type: h.Type, Raw: raw}, nil
	}
}

func decodeInto[T Event](data []byte, ev *T) (Event, error) {
	if err := json.Unmarshal(data, ev); err != nil {
		return nil, fmt.Errorf("decode %s: %w", (*ev).EventType(), err)
	}
	return *ev, nil
}
