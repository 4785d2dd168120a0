package stream

import (
	"github.com/poemonsense/antigravity-gateway/pkg/anthropic"
	"github.com/poemonsense/antigravity-gateway/pkg/openai"
)

// replayDeltaSize caps synthetic delta length so replayed streams feel like
// live ones to incremental renderers.
const replayDeltaSize = 80

func chunkString(s string) []string {
	if s == "" {
		return nil
	}
	runes := []rune(s)
	var out []string
	for len(runes) > replayDeltaSize {
		out = append(out, string(runes[:replayDeltaSize]))
		runes = runes[replayDeltaSize:]
	}
	return append(out, string(runes))
}

// ReplayClaudeResponse streams a unary Messages response as a synthetic
// Anthropic event sequence. Used when a live stream fails before any
// content was sent and the unary retry succeeded.
func ReplayClaudeResponse(w Writer, resp *anthropic.MessagesResponse) error {
	relay := NewClaudeRelay(w, resp.Model)
	if err := relay.start(); err != nil {
		return err
	}

	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			for _, piece := range chunkString(block.Text) {
				if err := relay.ensureBlock("text", &anthropic.ContentBlock{Type: "text"}); err != nil {
					return err
				}
				if err := relay.delta(&anthropic.Delta{Type: "text_delta", Text: piece}); err != nil {
					return err
				}
			}
		case "thinking":
			for _, piece := range chunkString(block.Thinking) {
				if err := relay.ensureBlock("thinking", &anthropic.ContentBlock{Type: "thinking"}); err != nil {
					return err
				}
				if err := relay.delta(&anthropic.Delta{Type: "thinking_delta", Thinking: piece}); err != nil {
					return err
				}
			}
		case "tool_use":
			relay.sawToolUse = true
			if err := relay.closeBlock(); err != nil {
				return err
			}
			if err := relay.ensureBlock("tool_use", &anthropic.ContentBlock{
				Type:  "tool_use",
				ID:    block.ID,
				Name:  block.Name,
				Input: []byte(`{}`),
			}); err != nil {
				return err
			}
			args := string(block.Input)
			if args == "" {
				args = "{}"
			}
			if err := relay.delta(&anthropic.Delta{Type: "input_json_delta", PartialJSON: args}); err != nil {
				return err
			}
			if err := relay.closeBlock(); err != nil {
				return err
			}
		}
	}

	if resp.Usage != nil {
		relay.usage = *resp.Usage
	}
	switch resp.StopReason {
	case "max_tokens":
		relay.finish = "MAX_TOKENS"
	case "tool_use":
		relay.sawToolUse = true
	}
	return relay.Finish()
}

// ReplayOpenAIResponse streams a unary chat completion as synthetic chunks.
func ReplayOpenAIResponse(w Writer, resp *openai.ChatResponse) error {
	relay := NewOpenAIRelay(w, resp.Model)
	if len(resp.Choices) == 0 || resp.Choices[0].Message == nil {
		return relay.Finish()
	}
	msg := resp.Choices[0].Message

	for _, piece := range chunkString(msg.ReasoningContent) {
		if err := relay.send(&openai.DeltaMessage{ReasoningContent: piece}); err != nil {
			return err
		}
	}
	for _, piece := range chunkString(msg.Content) {
		if err := relay.send(&openai.DeltaMessage{Content: piece}); err != nil {
			return err
		}
	}
	for i, tc := range msg.ToolCalls {
		tc.Index = i
		if err := relay.send(&openai.DeltaMessage{ToolCalls: []openai.ToolCall{tc}}); err != nil {
			return err
		}
		relay.finish = "tool_calls"
	}

	// Finish translates upstream vocabulary, so restate the unary finish
	// reason in upstream terms before delegating.
	if resp.Choices[0].FinishReason != nil && relay.finish != "tool_calls" {
		switch *resp.Choices[0].FinishReason {
		case "length":
			relay.finish = "MAX_TOKENS"
		default:
			relay.finish = "STOP"
		}
	}
	return relay.Finish()
}
