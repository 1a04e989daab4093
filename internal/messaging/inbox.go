// Package messaging keeps the visible message list of the open conversation
// in step with the realtime channels: it renders optimistic messages for
// outgoing sends, reconciles server confirmations and counts unread
// activity on other leads.
package messaging

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/newton/internal/auth"
	"github.com/haasonsaas/newton/internal/channels"
	"github.com/haasonsaas/newton/internal/channels/conversation"
	"github.com/haasonsaas/newton/internal/channels/notifications"
	"github.com/haasonsaas/newton/internal/media"
	"github.com/haasonsaas/newton/internal/reconcile"
	"github.com/haasonsaas/newton/internal/wire"
	"github.com/haasonsaas/newton/pkg/models"
)

var (
	// ErrNoConversation is returned by sends when no conversation is open.
	ErrNoConversation = errors.New("no conversation open")

	// ErrEmptyMessage is returned by SendText for blank content.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrNotSent is returned when the conversation channel refused the
	// envelope. The optimistic message is left in the list as failed.
	ErrNotSent = errors.New("message not sent")
)

// Timestamp layout used for optimistic messages.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// DefaultSenderName labels optimistic messages when the identity has no name.
const DefaultSenderName = "Agent"

// UpdateKind describes what changed in the inbox.
type UpdateKind string

const (
	UpdateOpened       UpdateKind = "opened"
	UpdateClosed       UpdateKind = "closed"
	UpdateAppended     UpdateKind = "appended"
	UpdateConfirmed    UpdateKind = "confirmed"
	UpdateStatus       UpdateKind = "status"
	UpdateHistory      UpdateKind = "history"
	UpdateUnread       UpdateKind = "unread"
	UpdateConversation UpdateKind = "conversation"
	UpdateError        UpdateKind = "error"
)

// Update is delivered to subscribers after every change.
type Update struct {
	Kind   UpdateKind
	LeadID string

	// Message is the message the update concerns, when there is one.
	Message *models.Message

	// Messages is a snapshot of the list after the change.
	Messages []models.Message

	// Unread is the unread count for LeadID after an UpdateUnread.
	Unread int

	// Error is the server text for UpdateError.
	Error string
}

// Config wires an Inbox to its channels.
type Config struct {
	Conversation  *conversation.Channel
	Notifications *notifications.Channel
	Credentials   auth.Credentials

	// Identity labels optimistic messages.
	Identity models.User

	Clock  channels.Clock
	Logger *slog.Logger
}

// Inbox owns the conversation and notification channels for one session.
type Inbox struct {
	id     string
	conv   *conversation.Channel
	notify *notifications.Channel
	creds  auth.Credentials
	ident  models.User
	clock  channels.Clock
	logger *slog.Logger

	mu             sync.Mutex
	leadID         string
	conversationID string
	messages       []models.Message
	unread         map[string]int

	updates channels.Listeners[Update]
	unsubs  []func()
}

// New creates an Inbox and subscribes it to both channels.
func New(cfg Config) (*Inbox, error) {
	if cfg.Conversation == nil || cfg.Notifications == nil {
		return nil, channels.ErrConfig("both channels are required", nil)
	}
	if cfg.Credentials == nil {
		return nil, channels.ErrConfig("credentials are required", nil)
	}
	if cfg.Clock == nil {
		cfg.Clock = channels.SystemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	in := &Inbox{
		id:     uuid.NewString(),
		conv:   cfg.Conversation,
		notify: cfg.Notifications,
		creds:  cfg.Credentials,
		ident:  cfg.Identity,
		clock:  cfg.Clock,
		unread: make(map[string]int),
	}
	in.logger = cfg.Logger.With("component", "inbox", "inbox_id", in.id)

	in.unsubs = append(in.unsubs,
		cfg.Conversation.Subscribe(conversation.Handlers{
			OnNewMessage:    in.handleConversationMessage,
			OnMessageSent:   in.handleMessageSent,
			OnMessageStatus: in.handleMessageStatus,
			OnError:         in.handleError,
		}),
		cfg.Notifications.Subscribe(notifications.Handlers{
			OnNewMessage:          in.handleNotification,
			OnNewConversation:     in.handleNewConversation,
			OnConversationUpdated: in.handleConversationUpdated,
			OnError:               in.handleError,
		}),
	)
	return in, nil
}

// Start connects the notification channel for the session tenant.
func (in *Inbox) Start() error {
	return in.notify.Connect(in.creds.TenantID(), in.creds.Token())
}

// Stop detaches from both channels and closes them.
func (in *Inbox) Stop() {
	in.mu.Lock()
	unsubs := in.unsubs
	in.unsubs = nil
	in.mu.Unlock()

	for _, fn := range unsubs {
		fn()
	}
	in.conv.Disconnect()
	in.notify.Disconnect()
}

// Open makes leadID the visible conversation, seeds it with history and
// connects the conversation channel. A setup error from the channel is
// returned, but the conversation stays open so sends are marked failed.
func (in *Inbox) Open(leadID, conversationID string, history []models.Message) error {
	leadID = strings.TrimSpace(leadID)
	if leadID == "" {
		return fmt.Errorf("lead id is required")
	}

	in.mu.Lock()
	in.leadID = leadID
	in.conversationID = conversationID
	in.messages = reconcile.Merge(nil, history)
	delete(in.unread, leadID)
	up := in.updateLocked(UpdateOpened, nil)
	in.mu.Unlock()

	in.logger.Info("conversation opened", "lead_id", leadID, "history", len(history))
	in.updates.Notify(up)
	return in.conv.Connect(in.creds.TenantID(), leadID, in.creds.Token())
}

// Close disconnects the conversation channel and clears the list.
func (in *Inbox) Close() {
	in.conv.Disconnect()

	in.mu.Lock()
	leadID := in.leadID
	in.leadID = ""
	in.conversationID = ""
	in.messages = nil
	up := in.updateLocked(UpdateClosed, nil)
	up.LeadID = leadID
	in.mu.Unlock()

	in.updates.Notify(up)
}

// CurrentLead returns the open lead, or "".
func (in *Inbox) CurrentLead() string {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.leadID
}

// Messages returns a copy of the visible list.
func (in *Inbox) Messages() []models.Message {
	in.mu.Lock()
	defer in.mu.Unlock()
	return append([]models.Message(nil), in.messages...)
}

// Unread returns the unread count for leadID.
func (in *Inbox) Unread(leadID string) int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.unread[leadID]
}

// UnreadTotal returns the unread count across all leads.
func (in *Inbox) UnreadTotal() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	total := 0
	for _, n := range in.unread {
		total += n
	}
	return total
}

// MarkRead clears the unread count for leadID.
func (in *Inbox) MarkRead(leadID string) {
	in.mu.Lock()
	if _, ok := in.unread[leadID]; !ok {
		in.mu.Unlock()
		return
	}
	delete(in.unread, leadID)
	up := in.updateLocked(UpdateUnread, nil)
	up.LeadID = leadID
	in.mu.Unlock()

	in.updates.Notify(up)
}

// Subscribe registers fn for every change and returns a func removing it.
func (in *Inbox) Subscribe(fn func(Update)) (unsubscribe func()) {
	return in.updates.Add(fn)
}

// MergeHistory appends a polled page, skipping messages already shown.
func (in *Inbox) MergeHistory(page []models.Message) {
	in.mu.Lock()
	if in.leadID == "" {
		in.mu.Unlock()
		return
	}
	before := len(in.messages)
	in.messages = reconcile.Merge(in.messages, page)
	if len(in.messages) == before {
		in.mu.Unlock()
		return
	}
	up := in.updateLocked(UpdateHistory, nil)
	in.mu.Unlock()

	in.updates.Notify(up)
}

// RequestHistory asks the server to replay up to limit recent messages.
func (in *Inbox) RequestHistory(limit int) bool {
	return in.conv.RequestHistory(limit)
}

// SendText sends a text message and returns its optimistic entry.
func (in *Inbox) SendText(content string) (models.Message, error) {
	if strings.TrimSpace(content) == "" {
		return models.Message{}, ErrEmptyMessage
	}
	return in.send("text", models.Message{
		Content: content,
		Type:    models.MessageTypeText,
		Read:    true,
	}, func() bool { return in.conv.SendText(content) })
}

// SendAudio sends a base64 voice note.
func (in *Inbox) SendAudio(data string, duration *float64) (models.Message, error) {
	msg := models.Message{Type: models.MessageTypeAudio}
	if duration != nil {
		msg.Metadata = &models.MessageMetadata{AudioDuration: *duration}
	}
	return in.send("audio", msg, func() bool { return in.conv.SendAudio(data, duration) })
}

// SendImage sends a base64 image.
func (in *Inbox) SendImage(data, mimetype, filename, caption string) (models.Message, error) {
	return in.send("image", models.Message{
		Content:  caption,
		Type:     models.MessageTypeImage,
		Metadata: fileMetadata(data, mimetype, filename, caption),
	}, func() bool { return in.conv.SendImage(data, mimetype, filename, caption) })
}

// SendPDF sends a base64 PDF document.
func (in *Inbox) SendPDF(data, filename, caption string) (models.Message, error) {
	return in.send("pdf", models.Message{
		Content:  caption,
		Type:     models.MessageTypeFile,
		Metadata: fileMetadata(data, media.PDFMimeType, filename, caption),
	}, func() bool { return in.conv.SendPDF(data, filename, caption) })
}

// SendVideo sends a base64 video.
func (in *Inbox) SendVideo(data, mimetype, filename, caption string) (models.Message, error) {
	return in.send("video", models.Message{
		Content:  caption,
		Type:     models.MessageTypeVideo,
		Metadata: fileMetadata(data, mimetype, filename, caption),
	}, func() bool { return in.conv.SendVideo(data, mimetype, filename, caption) })
}

func fileMetadata(data, mimetype, filename, caption string) *models.MessageMetadata {
	return &models.MessageMetadata{
		FileName: filename,
		FileType: mimetype,
		FileURL:  fmt.Sprintf("data:%s;base64,%s", mimetype, data),
		Caption:  caption,
	}
}

// send appends the optimistic message, hands the envelope to the channel and
// marks the message failed if the channel refused it.
func (in *Inbox) send(kind string, msg models.Message, transmit func() bool) (models.Message, error) {
	in.mu.Lock()
	if in.leadID == "" {
		in.mu.Unlock()
		return models.Message{}, ErrNoConversation
	}

	now := in.clock.Now()
	msg.ID = reconcile.TempID(kind, now)
	for reconcile.Contains(in.messages, msg.ID) {
		now = now.Add(time.Millisecond)
		msg.ID = reconcile.TempID(kind, now)
	}
	msg.ConversationID = in.conversationID
	msg.Sender = models.SenderAgent
	msg.SenderID = in.ident.ID
	msg.SenderName = in.ident.Name
	if msg.SenderName == "" {
		msg.SenderName = DefaultSenderName
	}
	msg.Timestamp = now.UTC().Format(timestampLayout)
	msg.Status = models.MessageStatusSending

	in.messages = append(in.messages, msg)
	up := in.updateLocked(UpdateAppended, &msg)
	in.mu.Unlock()
	in.updates.Notify(up)

	if transmit() {
		return msg, nil
	}

	in.logger.Warn("send failed", "kind", kind, "temp_id", msg.ID)
	msg.Status = models.MessageStatusFailed
	in.mu.Lock()
	var ok bool
	in.messages, ok = reconcile.SetStatus(in.messages, msg.ID, models.MessageStatusFailed)
	if !ok {
		// Already replaced by a confirmation or the conversation changed.
		in.mu.Unlock()
		return msg, ErrNotSent
	}
	up = in.updateLocked(UpdateStatus, &msg)
	in.mu.Unlock()
	in.updates.Notify(up)
	return msg, ErrNotSent
}

func (in *Inbox) handleConversationMessage(ev wire.NewMessage) {
	if ev.Message == nil {
		return
	}
	in.appendInbound(ev.LeadID, *ev.Message)
}

func (in *Inbox) handleNotification(ev wire.NewMessage) {
	in.mu.Lock()
	current := in.leadID
	in.mu.Unlock()

	if ev.LeadID != "" && ev.LeadID == current {
		if ev.Message != nil {
			in.appendInbound(ev.LeadID, *ev.Message)
		}
		return
	}
	if ev.LeadID == "" {
		return
	}
	in.bumpUnread(ev.LeadID)
}

// appendInbound adds a pushed message to the open conversation, dropping
// duplicates delivered by both channels.
func (in *Inbox) appendInbound(leadID string, msg models.Message) {
	in.mu.Lock()
	if in.leadID == "" || (leadID != "" && leadID != in.leadID) {
		in.mu.Unlock()
		return
	}
	var added bool
	in.messages, added = reconcile.AppendUnique(in.messages, msg)
	if !added {
		in.mu.Unlock()
		in.logger.Debug("duplicate message ignored", "message_id", msg.ID)
		return
	}
	up := in.updateLocked(UpdateAppended, &msg)
	in.mu.Unlock()

	in.updates.Notify(up)
}

func (in *Inbox) handleMessageSent(ev wire.MessageSent) {
	if ev.Message == nil {
		return
	}
	confirmed := *ev.Message
	if confirmed.Status == "" {
		confirmed.Status = models.MessageStatusSent
	}

	in.mu.Lock()
	if in.leadID == "" {
		in.mu.Unlock()
		return
	}
	if confirmed.ConversationID != "" && in.conversationID != "" && confirmed.ConversationID != in.conversationID {
		in.mu.Unlock()
		in.logger.Debug("ignoring confirmation for another conversation",
			"conversation_id", confirmed.ConversationID, "message_id", confirmed.ID)
		return
	}
	in.messages = reconcile.ApplyConfirmed(in.messages, confirmed)
	up := in.updateLocked(UpdateConfirmed, &confirmed)
	in.mu.Unlock()

	in.updates.Notify(up)
}

func (in *Inbox) handleMessageStatus(messageID, status string) {
	in.mu.Lock()
	var ok bool
	in.messages, ok = reconcile.SetStatus(in.messages, messageID, models.MessageStatus(status))
	if !ok {
		in.mu.Unlock()
		return
	}
	up := in.updateLocked(UpdateStatus, nil)
	for i := range up.Messages {
		if up.Messages[i].ID == messageID {
			up.Message = &up.Messages[i]
			break
		}
	}
	in.mu.Unlock()

	in.updates.Notify(up)
}

func (in *Inbox) handleNewConversation(ev wire.NewConversation) {
	if ev.LeadID == "" {
		return
	}
	in.logger.Info("new conversation", "lead_id", ev.LeadID)
	in.bumpUnread(ev.LeadID)

	in.mu.Lock()
	up := in.updateLocked(UpdateConversation, nil)
	up.LeadID = ev.LeadID
	in.mu.Unlock()
	in.updates.Notify(up)
}

func (in *Inbox) handleConversationUpdated(ev wire.ConversationUpdated) {
	in.mu.Lock()
	up := in.updateLocked(UpdateConversation, nil)
	up.LeadID = ev.LeadID
	in.mu.Unlock()
	in.updates.Notify(up)
}

func (in *Inbox) handleError(message string) {
	in.logger.Warn("server error", "message", message)
	in.mu.Lock()
	up := in.updateLocked(UpdateError, nil)
	up.Error = message
	in.mu.Unlock()
	in.updates.Notify(up)
}

func (in *Inbox) bumpUnread(leadID string) {
	in.mu.Lock()
	if leadID == in.leadID {
		in.mu.Unlock()
		return
	}
	in.unread[leadID]++
	up := in.updateLocked(UpdateUnread, nil)
	up.LeadID = leadID
	up.Unread = in.unread[leadID]
	in.mu.Unlock()

	in.updates.Notify(up)
}

func (in *Inbox) updateLocked(kind UpdateKind, msg *models.Message) Update {
	return Update{
		Kind:     kind,
		LeadID:   in.leadID,
		Message:  msg,
		Messages: append([]models.Message(nil), in.messages...),
	}
}
