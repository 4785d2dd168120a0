package stream

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/poemonsense/antigravity-gateway/internal/translate"
	"github.com/poemonsense/antigravity-gateway/pkg/gemini"
	"github.com/poemonsense/antigravity-gateway/pkg/openai"
)

// OpenAIRelay converts upstream frames into chat.completion.chunk frames.
type OpenAIRelay struct {
	w       Writer
	id      string
	model   string
	created int64

	sentRole    bool
	sentContent bool
	toolIndex   int
	finish      string
	usage       *gemini.UsageMetadata
}

// NewOpenAIRelay builds a relay advertising the client-requested model.
func NewOpenAIRelay(w Writer, clientModel string) *OpenAIRelay {
	return &OpenAIRelay{
		w:       w,
		id:      "chatcmpl-" + uuid.NewString(),
		model:   clientModel,
		created: time.Now().Unix(),
	}
}

// SentContent reports whether any content chunk reached the client. Once
// true, the request can no longer fail over to another account.
func (r *OpenAIRelay) SentContent() bool {
	return r.sentContent
}

func (r *OpenAIRelay) chunk(delta *openai.DeltaMessage, finish *string) *openai.StreamChunk {
	return &openai.StreamChunk{
		ID:      r.id,
		Object:  "chat.completion.chunk",
		Created: r.created,
		Model:   r.model,
		Choices: []openai.Choice{{Index: 0, Delta: delta, FinishReason: finish}},
	}
}

func (r *OpenAIRelay) send(delta *openai.DeltaMessage) error {
	if !r.sentRole {
		delta.Role = "assistant"
		r.sentRole = true
	}
	if err := r.w.Data(r.chunk(delta, nil)); err != nil {
		return err
	}
	r.sentContent = true
	return nil
}

// Relay pumps the scanner to completion. An empty stream still produces one
// empty chunk so clients that wait for content do not hang.
func (r *OpenAIRelay) Relay(frames *FrameScanner) error {
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

// Handle converts one upstream frame into client chunks.
func (r *OpenAIRelay) Handle(frame *Frame) error {
	resp := frame.Response
	if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != "" {
		r.finish = resp.Candidates[0].FinishReason
	}
	if resp.UsageMetadata != nil {
		r.usage = resp.UsageMetadata
	}
	for _, part := range resp.FirstCandidateParts() {
		var delta *openai.DeltaMessage
		switch {
		case part.FunctionCall != nil:
			args := "{}"
			if part.FunctionCall.Args != nil {
				raw, err := json.Marshal(part.FunctionCall.Args)
				if err == nil {
					args = string(raw)
				}
			}
			id := part.FunctionCall.ID
			if id == "" {
				id = fmt.Sprintf("%s-%s", part.FunctionCall.Name, uuid.NewString())
			}
			delta = &openai.DeltaMessage{ToolCalls: []openai.ToolCall{{
				Index: r.toolIndex,
				ID:    id,
				Type:  "function",
				Function: openai.FunctionCall{
					Name:      part.FunctionCall.Name,
					Arguments: args,
				},
			}}}
			r.toolIndex++
			r.finish = "tool_calls"
		case part.Thought:
			delta = &openai.DeltaMessage{ReasoningContent: part.Text}
		case part.InlineData != nil:
			delta = &openai.DeltaMessage{Content: fmt.Sprintf("\n\n![Generated Image](data:%s;base64,%s)\n\n",
				part.InlineData.MimeType, part.InlineData.Data)}
		case part.Text != "":
			delta = &openai.DeltaMessage{Content: part.Text}
		default:
			continue
		}
		if err := r.send(delta); err != nil {
			return err
		}
	}
	return nil
}

// Finish emits the closing chunk and the [DONE] sentinel.
func (r *OpenAIRelay) Finish() error {
	if !r.sentContent {
		if err := r.send(&openai.DeltaMessage{Content: ""}); err != nil {
			return err
		}
	}
	finish := r.finish
	if finish != "tool_calls" {
		finish = translate.GeminiFinishToOpenAI(r.finish)
	}
	if err := r.w.Data(r.chunk(&openai.DeltaMessage{}, &finish)); err != nil {
		return err
	}
	return r.w.Raw("[DONE]")
}
