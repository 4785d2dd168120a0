package stream

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/poemonsense/antigravity-gateway/internal/translate"
	"github.com/poemonsense/antigravity-gateway/pkg/anthropic"
)

// ClaudeRelay converts upstream frames into the Anthropic streaming event
// sequence. Invariants: message_start exactly once, at most one content
// block open at a time, every opened block is closed before message_delta.
type ClaudeRelay struct {
	w     Writer
	model string

	started     bool
	blockOpen   bool
	blockType   string
	blockIndex  int
	sentContent bool
	sawToolUse  bool
	finish      string
	usage       anthropic.Usage
}

// NewClaudeRelay builds a relay advertising the client-requested model.
func NewClaudeRelay(w Writer, clientModel string) *ClaudeRelay {
	return &ClaudeRelay{w: w, model: clientModel, blockIndex: -1}
}

// SentContent reports whether any content event reached the client.
func (r *ClaudeRelay) SentContent() bool {
	return r.sentContent
}

func (r *ClaudeRelay) start() error {
	if r.started {
		return nil
	}
	r.started = true
	msg := &anthropic.MessagesResponse{
		ID:      anthropic.NewMessageID(),
		Type:    "message",
		Role:    "assistant",
		Model:   r.model,
		Content: []anthropic.ContentBlock{},
		Usage:   &anthropic.Usage{},
	}
	if err := r.w.Event(anthropic.EventMessageStart,
		anthropic.StreamEvent{Type: anthropic.EventMessageStart, Message: msg}); err != nil {
		return err
	}
	return r.w.Event(anthropic.EventPing, anthropic.StreamEvent{Type: anthropic.EventPing})
}

// ensureBlock opens a block of the wanted type, closing any open block of a
// different type first.
func (r *ClaudeRelay) ensureBlock(blockType string, block *anthropic.ContentBlock) error {
	if r.blockOpen && r.blockType == blockType {
		return nil
	}
	if err := r.closeBlock(); err != nil {
		return err
	}
	r.blockIndex++
	r.blockOpen = true
	r.blockType = blockType
	idx := r.blockIndex
	return r.w.Event(anthropic.EventContentBlockStart, anthropic.StreamEvent{
		Type:         anthropic.EventContentBlockStart,
		Index:        &idx,
		ContentBlock: block,
	})
}

func (r *ClaudeRelay) closeBlock() error {
	if !r.blockOpen {
		return nil
	}
	idx := r.blockIndex
	r.blockOpen = false
	return r.w.Event(anthropic.EventContentBlockStop, anthropic.StreamEvent{
		Type:  anthropic.EventContentBlockStop,
		Index: &idx,
	})
}

func (r *ClaudeRelay) delta(d *anthropic.Delta) error {
	idx := r.blockIndex
	if err := r.w.Event(anthropic.EventContentBlockDelta, anthropic.StreamEvent{
		Type:  anthropic.EventContentBlockDelta,
		Index: &idx,
		Delta: d,
	}); err != nil {
		return err
	}
	r.sentContent = true
	return nil
}

// Relay pumps the scanner to completion and emits the closing events.
func (r *ClaudeRelay) Relay(frames *FrameScanner) error {
	if err := r.start(); err != nil {
		return err
	}
	for {
		frame, err := frames.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if err := r.Handle(frame); err != nil {
			return err
		}
	}
	return r.Finish()
}

// Handle converts one upstream frame into client events.
func (r *ClaudeRelay) Handle(frame *Frame) error {
	resp := frame.Response
	if err := r.start(); err != nil {
		return err
	}
	if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != "" {
		r.finish = resp.Candidates[0].FinishReason
	}
	if um := resp.UsageMetadata; um != nil {
		r.usage.InputTokens = um.PromptTokenCount
		r.usage.OutputTokens = um.CandidatesTokenCount
	}

	for _, part := range resp.FirstCandidateParts() {
		switch {
		case part.FunctionCall != nil:
			r.sawToolUse = true
			id := part.FunctionCall.ID
			if id == "" {
				id = fmt.Sprintf("%s-%s", part.FunctionCall.Name, uuid.NewString())
			}
			// Tool calls arrive whole, so the block opens, streams its full
			// input and closes in one step.
			if err := r.closeBlock(); err != nil {
				return err
			}
			if err := r.ensureBlock("tool_use", &anthropic.ContentBlock{
				Type:  "tool_use",
				ID:    id,
				Name:  part.FunctionCall.Name,
				Input: json.RawMessage(`{}`),
			}); err != nil {
				return err
			}
			args := "{}"
			if part.FunctionCall.Args != nil {
				if raw, err := json.Marshal(part.FunctionCall.Args); err == nil {
					args = string(raw)
				}
			}
			if err := r.delta(&anthropic.Delta{Type: "input_json_delta", PartialJSON: args}); err != nil {
				return err
			}
			if err := r.closeBlock(); err != nil {
				return err
			}
		case part.Thought:
			if err := r.ensureBlock("thinking", &anthropic.ContentBlock{Type: "thinking"}); err != nil {
				return err
			}
			if err := r.delta(&anthropic.Delta{Type: "thinking_delta", Thinking: part.Text}); err != nil {
				return err
			}
		case part.InlineData != nil:
			if err := r.ensureBlock("text", &anthropic.ContentBlock{Type: "text"}); err != nil {
				return err
			}
			text := fmt.Sprintf("\n\n![Generated Image](data:%s;base64,%s)\n\n", part.InlineData.MimeType, part.InlineData.Data)
			if err := r.delta(&anthropic.Delta{Type: "text_delta", Text: text}); err != nil {
				return err
			}
		case part.Text != "":
			if err := r.ensureBlock("text", &anthropic.ContentBlock{Type: "text"}); err != nil {
				return err
			}
			if err := r.delta(&anthropic.Delta{Type: "text_delta", Text: part.Text}); err != nil {
				return err
			}
		}
	}
	return nil
}

// Finish closes any open block and emits message_delta plus message_stop.
func (r *ClaudeRelay) Finish() error {
	if err := r.start(); err != nil {
		return err
	}
	if err := r.closeBlock(); err != nil {
		return err
	}
	stop := translate.GeminiFinishToClaude(r.finish, r.sawToolUse)
	usage := r.usage
	if err := r.w.Event(anthropic.EventMessageDelta, anthropic.StreamEvent{
		Type:  anthropic.EventMessageDelta,
		Delta: &anthropic.Delta{StopReason: stop},
		Usage: &usage,
	}); err != nil {
		return err
	}
	return r.w.Event(anthropic.EventMessageStop, anthropic.StreamEvent{Type: anthropic.EventMessageStop})
}
