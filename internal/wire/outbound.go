// Package wire defines the JSON envelopes exchanged with the Newton realtime
// endpoints. Every frame is a JSON object discriminated by its "type" field.
package wire

// Outbound envelope types.
const (
	TypeSendMessage    = "send_message"
	TypeSendAudio      = "send_audio_message"
	TypeSendMedia      = "send_media_message"
	TypePing           = "ping"
	TypeRequestHistory = "request_history"
)

// MediaType is the media_type field of a send_media_message envelope.
type MediaType string

const (
	MediaImage    MediaType = "image"
	MediaVideo    MediaType = "video"
	MediaDocument MediaType = "document"
)

// Outbound is implemented by every envelope a client may write.
type Outbound interface {
	EnvelopeType() string
}

// SendMessage sends a text message into the open conversation.
type SendMessage struct {
	Type        string `json:"type"`
	Content     string `json:"content"`
	MessageType string `json:"message_type"`
}

// NewSendMessage returns a text send_message envelope.
func NewSendMessage(content string) SendMessage {
	return SendMessage{Type: TypeSendMessage, Content: content, MessageType: "text"}
}

func (SendMessage) EnvelopeType() string { return TypeSendMessage }

// SendAudio sends a base64 encoded voice note.
type SendAudio struct {
	Type     string   `json:"type"`
	Audio    string   `json:"audio"`
	Duration *float64 `json:"duration,omitempty"`
}

func (SendAudio) EnvelopeType() string { return TypeSendAudio }

// SendMedia sends a base64 encoded image, video or document.
type SendMedia struct {
	Type      string    `json:"type"`
	MediaData string    `json:"media_data"`
	MediaType MediaType `json:"media_type"`
	Mimetype  string    `json:"mimetype"`
	Filename  string    `json:"filename"`
	Caption   string    `json:"caption,omitempty"`
}

func (SendMedia) EnvelopeType() string { return TypeSendMedia }

// Ping is the heartbeat envelope.
type Ping struct {
	Type string `json:"type"`
}

// NewPing returns a heartbeat envelope.
func NewPing() Ping { return Ping{Type: TypePing} }

func (Ping) EnvelopeType() string { return TypePing }

// RequestHistory asks the server to replay the latest messages of the
// conversation as new_message frames.
type RequestHistory struct {
	Type  string `json:"type"`
	Limit int    `json:"limit"`
}

// NewRequestHistory returns a request_history envelope.
func NewRequestHistory(limit int) RequestHistory {
	return RequestHistory{Type: TypeRequestHistory, Limit: limit}
}

func (RequestHistory) EnvelopeType() string { return TypeRequestHistory }
