// Package stream converts the upstream SSE stream into the per-protocol
// streaming formats the gateway serves.
package stream

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/poemonsense/antigravity-gateway/pkg/gemini"
)

// Writer emits SSE frames to a client connection.
type Writer interface {
	// Event writes an event-named frame (Anthropic surface).
	Event(name string, payload any) error
	// Data writes a data-only frame (OpenAI and Gemini surfaces).
	Data(payload any) error
	// Raw writes a pre-encoded data line, e.g. the [DONE] sentinel.
	Raw(data string) error
}

// Frame is one decoded upstream SSE frame. Raw keeps the unwrapped JSON so
// pass-through surfaces do not lose unknown fields.
type Frame struct {
	Response *gemini.Response
	Raw      []byte
}

// FrameScanner reads `data:` frames off the upstream SSE body. Malformed
// frames are skipped, not fatal; the upstream interleaves keep-alives and
// occasionally truncated lines.
type FrameScanner struct {
	sc *bufio.Scanner
}

// NewFrameScanner wraps an SSE body. Frames can be large; the buffer allows
// up to 10 MiB per line.
func NewFrameScanner(r io.Reader) *FrameScanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 10*1024*1024)
	return &FrameScanner{sc: sc}
}

// Next returns the next decoded frame, unwrapping the `{"response": {...}}`
// envelope when present. Returns io.EOF at end of stream.
func (f *FrameScanner) Next() (*Frame, error) {
	for f.sc.Scan() {
		line := strings.TrimSpace(f.sc.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == "[DONE]" {
			continue
		}

		raw := []byte(payload)
		if inner := gjson.GetBytes(raw, "response"); inner.IsObject() {
			raw = []byte(inner.Raw)
		}
		var resp gemini.Response
		if err := json.Unmarshal(raw, &resp); err != nil {
			log.Debugf("skipping malformed stream frame: %v", err)
			continue
		}
		return &Frame{Response: &resp, Raw: raw}, nil
	}
	if err := f.sc.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}
