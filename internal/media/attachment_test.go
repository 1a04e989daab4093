package media

import (
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/haasonsaas/newton/pkg/models"
)

func TestKindFromMIME(t *testing.T) {
	tests := []struct {
		mime string
		want Kind
	}{
		{"image/jpeg", KindImage},
		{"IMAGE/GIF", KindImage},
		{"audio/ogg; codecs=opus", KindAudio},
		{"video/mp4", KindVideo},
		{"application/pdf", KindPDF},
		{"application/json", KindUnknown},
		{"text/plain", KindUnknown},
		{"", KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.mime, func(t *testing.T) {
			if got := KindFromMIME(tt.mime); got != tt.want {
				t.Errorf("KindFromMIME(%q) = %v, want %v", tt.mime, got, tt.want)
			}
		})
	}
}

func TestDetectMIME(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		filename string
		override string
		want     string
	}{
		{name: "override wins", filename: "a.png", override: "audio/ogg; codecs=opus", want: "audio/ogg"},
		{name: "extension", filename: "photo.JPG", want: "image/jpeg"},
		{name: "opus extension", filename: "note.opus", want: "audio/ogg"},
		{name: "sniffed pdf", filename: "noext", data: []byte("%PDF-1.7\n"), want: "application/pdf"},
		{name: "sniffed gif", filename: "clip", data: []byte("GIF89a......"), want: "image/gif"},
		{name: "nothing", filename: "noext", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectMIME(tt.data, tt.filename, tt.override); got != tt.want {
				t.Errorf("DetectMIME() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewAttachment(t *testing.T) {
	raw := []byte("%PDF-1.4 hello")
	a, err := NewAttachment("invoice.pdf", "", raw)
	if err != nil {
		t.Fatalf("NewAttachment: %v", err)
	}
	if a.Kind != KindPDF || a.Mimetype != PDFMimeType || a.Size != int64(len(raw)) {
		t.Fatalf("unexpected attachment %+v", a)
	}
	decoded, err := base64.StdEncoding.DecodeString(a.Data)
	if err != nil || string(decoded) != string(raw) {
		t.Fatalf("data does not round trip: %v", err)
	}
}

func TestNewAttachmentErrors(t *testing.T) {
	if _, err := NewAttachment("empty.png", "", nil); err == nil || !strings.Contains(err.Error(), "empty") {
		t.Fatalf("expected empty error, got %v", err)
	}
	if _, err := NewAttachment("notes.txt", "", []byte("hello")); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
	big := make([]byte, MaxImageBytes+1)
	if _, err := NewAttachment("big.png", "", big); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voice.ogg")
	if err := os.WriteFile(path, []byte("OggS fake"), 0o600); err != nil {
		t.Fatal(err)
	}
	a, err := LoadFile(path, "")
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if a.Filename != "voice.ogg" || a.Kind != KindAudio {
		t.Fatalf("unexpected attachment %+v", a)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.png"), ""); err == nil {
		t.Fatal("expected error for missing file")
	}
}

type recordingSender struct {
	calls []string
}

func (r *recordingSender) SendAudio(data string, duration *float64) (models.Message, error) {
	r.calls = append(r.calls, "audio")
	return models.Message{Type: models.MessageTypeAudio}, nil
}

func (r *recordingSender) SendImage(data, mimetype, filename, caption string) (models.Message, error) {
	r.calls = append(r.calls, "image:"+mimetype+":"+caption)
	return models.Message{Type: models.MessageTypeImage}, nil
}

func (r *recordingSender) SendPDF(data, filename, caption string) (models.Message, error) {
	r.calls = append(r.calls, "pdf:"+filename)
	return models.Message{Type: models.MessageTypeFile}, nil
}

func (r *recordingSender) SendVideo(data, mimetype, filename, caption string) (models.Message, error) {
	r.calls = append(r.calls, "video:"+mimetype)
	return models.Message{Type: models.MessageTypeVideo}, nil
}

func TestAttachmentSendDispatch(t *testing.T) {
	s := &recordingSender{}
	for _, a := range []*Attachment{
		{Kind: KindImage, Mimetype: "image/png", Filename: "a.png"},
		{Kind: KindVideo, Mimetype: "video/mp4", Filename: "a.mp4"},
		{Kind: KindPDF, Mimetype: PDFMimeType, Filename: "a.pdf"},
		{Kind: KindAudio, Mimetype: "audio/ogg", Filename: "a.ogg"},
	} {
		if _, err := a.Send(s, "cap", nil); err != nil {
			t.Fatalf("Send(%s): %v", a.Kind, err)
		}
	}
	want := []string{"image:image/png:cap", "video:video/mp4", "pdf:a.pdf", "audio"}
	if strings.Join(s.calls, ",") != strings.Join(want, ",") {
		t.Fatalf("calls = %v, want %v", s.calls, want)
	}

	if _, err := (&Attachment{Kind: KindUnknown}).Send(s, "", nil); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}
