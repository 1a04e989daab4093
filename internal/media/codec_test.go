package media

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/haasonsaas/newton/internal/wire"
)

type recordingWriter struct {
	ready  bool
	err    error
	frames []wire.Outbound
}

func (w *recordingWriter) Ready() bool { return w.ready }

func (w *recordingWriter) Write(env wire.Outbound) error {
	if w.err != nil {
		return w.err
	}
	w.frames = append(w.frames, env)
	return nil
}

func marshal(t *testing.T, v any) map[string]any {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	return out
}

func TestImage_CaptionOmittedWhenEmpty(t *testing.T) {
	fields := marshal(t, Image("aGVsbG8=", "image/png", "a.png", ""))
	if _, ok := fields["caption"]; ok {
		t.Error("caption should be omitted when empty")
	}
	if fields["media_type"] != "image" {
		t.Errorf("media_type = %v, want image", fields["media_type"])
	}
	if fields["type"] != wire.TypeSendMedia {
		t.Errorf("type = %v, want %s", fields["type"], wire.TypeSendMedia)
	}

	fields = marshal(t, Image("aGVsbG8=", "image/png", "a.png", "look"))
	if fields["caption"] != "look" {
		t.Errorf("caption = %v, want look", fields["caption"])
	}
}

func TestPDF_ForcesMimeType(t *testing.T) {
	env := PDF("JVBERi0=", "quote.pdf", "")
	if env.Mimetype != PDFMimeType {
		t.Errorf("Mimetype = %q, want %q", env.Mimetype, PDFMimeType)
	}
	if env.MediaType != wire.MediaDocument {
		t.Errorf("MediaType = %q, want %q", env.MediaType, wire.MediaDocument)
	}
}

func TestAudio_Duration(t *testing.T) {
	fields := marshal(t, Audio("T2dnUw==", nil))
	if _, ok := fields["duration"]; ok {
		t.Error("duration should be omitted when nil")
	}

	d := 4.2
	fields = marshal(t, Audio("T2dnUw==", &d))
	if fields["duration"] != 4.2 {
		t.Errorf("duration = %v, want 4.2", fields["duration"])
	}
	if fields["type"] != wire.TypeSendAudio {
		t.Errorf("type = %v, want %s", fields["type"], wire.TypeSendAudio)
	}
}

func TestSend_RequiresOpenTransport(t *testing.T) {
	w := &recordingWriter{}
	if SendVideo(w, "AAAA", "video/mp4", "v.mp4", "") {
		t.Error("SendVideo() = true on closed transport")
	}
	if len(w.frames) != 0 {
		t.Errorf("frames = %d, want 0", len(w.frames))
	}
	if SendAudio(nil, "AAAA", nil) {
		t.Error("SendAudio(nil) = true")
	}

	w.ready = true
	if !SendImage(w, "AAAA", "image/jpeg", "p.jpg", "") {
		t.Error("SendImage() = false on open transport")
	}
	if len(w.frames) != 1 {
		t.Fatalf("frames = %d, want 1", len(w.frames))
	}

	w.err = errors.New("broken pipe")
	if SendPDF(w, "AAAA", "f.pdf", "") {
		t.Error("SendPDF() = true on write error")
	}
}
