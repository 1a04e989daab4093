// Package media prepares attachments for the conversation endpoint: MIME
// detection, size limits, base64 encoding and the send envelopes.
package media

import (
	"log/slog"

	"github.com/haasonsaas/newton/internal/wire"
)

// PDFMimeType is always used for documents regardless of what the caller
// detected.
const PDFMimeType = "application/pdf"

// Writer is the transport surface the codec needs.
type Writer interface {
	// Ready reports whether the transport is open.
	Ready() bool
	// Write transmits one envelope.
	Write(env wire.Outbound) error
}

// Audio builds a send_audio_message envelope. A nil duration is omitted.
func Audio(data string, duration *float64) wire.SendAudio {
	return wire.SendAudio{Type: wire.TypeSendAudio, Audio: data, Duration: duration}
}

// Image builds a send_media_message envelope for an image.
func Image(data, mimetype, filename, caption string) wire.SendMedia {
	return mediaEnvelope(wire.MediaImage, data, mimetype, filename, caption)
}

// PDF builds a send_media_message envelope for a PDF document.
func PDF(data, filename, caption string) wire.SendMedia {
	return mediaEnvelope(wire.MediaDocument, data, PDFMimeType, filename, caption)
}

// Video builds a send_media_message envelope for a video.
func Video(data, mimetype, filename, caption string) wire.SendMedia {
	return mediaEnvelope(wire.MediaVideo, data, mimetype, filename, caption)
}

func mediaEnvelope(kind wire.MediaType, data, mimetype, filename, caption string) wire.SendMedia {
	return wire.SendMedia{
		Type:      wire.TypeSendMedia,
		MediaData: data,
		MediaType: kind,
		Mimetype:  mimetype,
		Filename:  filename,
		Caption:   caption,
	}
}

// SendAudio writes an audio envelope if w is open.
func SendAudio(w Writer, data string, duration *float64) bool {
	return send(w, Audio(data, duration))
}

// SendImage writes an image envelope if w is open.
func SendImage(w Writer, data, mimetype, filename, caption string) bool {
	return send(w, Image(data, mimetype, filename, caption))
}

// SendPDF writes a PDF envelope if w is open.
func SendPDF(w Writer, data, filename, caption string) bool {
	return send(w, PDF(data, filename, caption))
}

// SendVideo writes a video envelope if w is open.
func SendVideo(w Writer, data, mimetype, filename, caption string) bool {
	return send(w, Video(data, mimetype, filename, caption))
}

// send never buffers: a closed transport drops the attempt and reports false.
func send(w Writer, env wire.Outbound) bool {
	if w == nil || !w.Ready() {
		slog.Debug("media send skipped, transport not open", "type", env.EnvelopeType())
		return false
	}
	if err := w.Write(env); err != nil {
		slog.Warn("media send failed", "type", env.EnvelopeType(), "error", err)
		return false
	}
	return true
}
