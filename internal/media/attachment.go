package media

import (
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/haasonsaas/newton/pkg/models"
)

// Size limits accepted by the conversation endpoint, before base64.
const (
	MaxImageBytes = 5 * 1024 * 1024
	MaxAudioBytes = 16 * 1024 * 1024
	MaxVideoBytes = 16 * 1024 * 1024
	MaxPDFBytes   = 100 * 1024 * 1024
)

// Kind is the send path an attachment takes.
type Kind string

const (
	KindImage   Kind = "image"
	KindAudio   Kind = "audio"
	KindVideo   Kind = "video"
	KindPDF     Kind = "pdf"
	KindUnknown Kind = "unknown"
)

var (
	// ErrUnsupported is returned for files no send path accepts.
	ErrUnsupported = errors.New("unsupported attachment type")

	// ErrTooLarge is returned for files over their kind's limit.
	ErrTooLarge = errors.New("attachment too large")
)

// extensionToMIME covers what the endpoint accepts. The system MIME table
// is consulted for anything else.
var extensionToMIME = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".gif":  "image/gif",

	".mp3":  "audio/mpeg",
	".ogg":  "audio/ogg",
	".oga":  "audio/ogg",
	".opus": "audio/ogg",
	".wav":  "audio/wav",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".webm": "audio/webm",

	".mp4": "video/mp4",
	".mov": "video/quicktime",
	".3gp": "video/3gpp",

	".pdf": PDFMimeType,
}

// KindFromMIME maps a MIME type to its send path.
func KindFromMIME(mimetype string) Kind {
	mimetype = normalizeMIME(mimetype)
	switch {
	case mimetype == PDFMimeType:
		return KindPDF
	case strings.HasPrefix(mimetype, "image/"):
		return KindImage
	case strings.HasPrefix(mimetype, "audio/"):
		return KindAudio
	case strings.HasPrefix(mimetype, "video/"):
		return KindVideo
	}
	return KindUnknown
}

// MaxBytes returns the size limit for kind, or 0 for KindUnknown.
func MaxBytes(kind Kind) int64 {
	switch kind {
	case KindImage:
		return MaxImageBytes
	case KindAudio:
		return MaxAudioBytes
	case KindVideo:
		return MaxVideoBytes
	case KindPDF:
		return MaxPDFBytes
	}
	return 0
}

// DetectMIME picks a MIME type for filename. An explicit override wins,
// then the extension, then content sniffing. Parameters are dropped.
func DetectMIME(data []byte, filename, override string) string {
	if mt := normalizeMIME(override); mt != "" {
		return mt
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if mt, ok := extensionToMIME[ext]; ok {
		return mt
	}
	if ext != "" {
		if mt := normalizeMIME(mime.TypeByExtension(ext)); mt != "" {
			return mt
		}
	}
	if len(data) > 0 {
		return normalizeMIME(http.DetectContentType(data))
	}
	return ""
}

func normalizeMIME(mt string) string {
	mt = strings.TrimSpace(mt)
	if mt == "" {
		return ""
	}
	if base, _, err := mime.ParseMediaType(mt); err == nil {
		return base
	}
	if idx := strings.Index(mt, ";"); idx != -1 {
		mt = mt[:idx]
	}
	return strings.ToLower(strings.TrimSpace(mt))
}

// Attachment is a file prepared for sending.
type Attachment struct {
	Filename string
	Mimetype string
	Kind     Kind
	Size     int64

	// Data is the standard base64 encoding of the file.
	Data string
}

// NewAttachment validates raw and encodes it. mimetype may be empty.
func NewAttachment(filename, mimetype string, raw []byte) (*Attachment, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("attachment %s is empty", filename)
	}
	mt := DetectMIME(raw, filename, mimetype)
	kind := KindFromMIME(mt)
	if kind == KindUnknown {
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, mt)
	}
	size := int64(len(raw))
	if limit := MaxBytes(kind); size > limit {
		return nil, fmt.Errorf("%w: %s is %d bytes, %s limit is %d", ErrTooLarge, filename, size, kind, limit)
	}
	return &Attachment{
		Filename: filename,
		Mimetype: mt,
		Kind:     kind,
		Size:     size,
		Data:     base64.StdEncoding.EncodeToString(raw),
	}, nil
}

// LoadFile reads path into an Attachment.
func LoadFile(path, mimetype string) (*Attachment, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read attachment: %w", err)
	}
	return NewAttachment(filepath.Base(path), mimetype, raw)
}

// Sender is the send surface an Attachment dispatches to.
type Sender interface {
	SendAudio(data string, duration *float64) (models.Message, error)
	SendImage(data, mimetype, filename, caption string) (models.Message, error)
	SendPDF(data, filename, caption string) (models.Message, error)
	SendVideo(data, mimetype, filename, caption string) (models.Message, error)
}

// Send dispatches a to the matching method of s. Audio ignores caption;
// other kinds ignore duration.
func (a *Attachment) Send(s Sender, caption string, duration *float64) (models.Message, error) {
	switch a.Kind {
	case KindImage:
		return s.SendImage(a.Data, a.Mimetype, a.Filename, caption)
	case KindVideo:
		return s.SendVideo(a.Data, a.Mimetype, a.Filename, caption)
	case KindPDF:
		return s.SendPDF(a.Data, a.Filename, caption)
	case KindAudio:
		return s.SendAudio(a.Data, duration)
	}
	return models.Message{}, fmt.Errorf("%w: %q", ErrUnsupported, a.Mimetype)
}
