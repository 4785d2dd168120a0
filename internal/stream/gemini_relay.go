package stream

import (
	"encoding/json"
	"io"
)

// GeminiRelay passes upstream frames through unchanged, minus the internal
// response envelope. Unknown fields survive because the raw frame bytes are
// forwarded, not a re-marshaled struct.
type GeminiRelay struct {
	w           Writer
	sentContent bool
}

// NewGeminiRelay builds a pass-through relay.
func NewGeminiRelay(w Writer) *GeminiRelay {
	return &GeminiRelay{w: w}
}

// SentContent reports whether any frame reached the client.
func (r *GeminiRelay) SentContent() bool {
	return r.sentContent
}

// Handle forwards one raw frame.
func (r *GeminiRelay) Handle(frame *Frame) error {
	if err := r.w.Data(json.RawMessage(frame.Raw)); err != nil {
		return err
	}
	r.sentContent = true
	return nil
}

// Finish is a no-op; the Gemini surface has no closing sentinel.
func (r *GeminiRelay) Finish() error {
	return nil
}

// Relay pumps the scanner to completion.
func (r *GeminiRelay) Relay(frames *FrameScanner) error {
	for {
		frame, err := frames.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := r.Handle(frame); err != nil {
			return err
		}
	}
}
