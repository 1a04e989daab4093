package models

// Sender identifies who authored a message in a CRM conversation.
type Sender string

const (
	SenderAgent   Sender = "agent"
	SenderContact Sender = "contact"
	SenderSystem  Sender = "system"
	SenderAI      Sender = "ai"
)

// MessageType is the content kind of a message.
type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeAudio MessageType = "audio"
	MessageTypeFile  MessageType = "file"
	MessageTypeImage MessageType = "image"
	MessageTypeVideo MessageType = "video"
	MessageTypeEvent MessageType = "event"
)

// MessageStatus tracks delivery of an outbound message.
type MessageStatus string

const (
	MessageStatusSending   MessageStatus = "sending"
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusRead      MessageStatus = "read"
	MessageStatusFailed    MessageStatus = "failed"
)

// Message is a single entry in a lead conversation, as rendered by the inbox
// and as carried inside new_message and message_sent envelopes.
type Message struct {
	ID             string           `json:"id"`
	ConversationID string           `json:"conversation_id,omitempty"`
	Sender         Sender           `json:"sender"`
	SenderID       string           `json:"sender_id,omitempty"`
	SenderName     string           `json:"sender_name,omitempty"`
	Content        string           `json:"content"`
	Timestamp      string           `json:"timestamp,omitempty"` // ISO-8601 as sent by the server
	Read           bool             `json:"read"`
	Type           MessageType      `json:"type,omitempty"`
	Status         MessageStatus    `json:"status,omitempty"`
	Metadata       *MessageMetadata `json:"metadata,omitempty"`
	Internal       bool             `json:"internal,omitempty"`
}

// MessageMetadata carries media details for non-text messages.
type MessageMetadata struct {
	FileURL       string  `json:"file_url,omitempty"`
	FileName      string  `json:"file_name,omitempty"`
	FileSize      int64   `json:"file_size,omitempty"`
	FileType      string  `json:"file_type,omitempty"`
	AudioDuration float64 `json:"audio_duration,omitempty"`
	Caption       string  `json:"caption,omitempty"`
}
