package translate

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/poemonsense/antigravity-gateway/pkg/anthropic"
	"github.com/poemonsense/antigravity-gateway/pkg/gemini"
	"github.com/poemonsense/antigravity-gateway/pkg/openai"
)

// GeminiFinishToClaude maps an upstream finish reason to an Anthropic
// stop reason. Tool calls in the output override it to tool_use.
func GeminiFinishToClaude(finish string, hasToolUse bool) string {
	if hasToolUse {
		return "tool_use"
	}
	switch finish {
	case "MAX_TOKENS":
		return "max_tokens"
	default:
		return "end_turn"
	}
}

// GeminiFinishToOpenAI maps an upstream finish reason to the OpenAI
// vocabulary.
func GeminiFinishToOpenAI(finish string) string {
	switch finish {
	case "STOP":
		return "stop"
	case "MAX_TOKENS":
		return "length"
	case "SAFETY", "RECITATION":
		return "content_filter"
	case "":
		return "stop"
	default:
		return strings.ToLower(finish)
	}
}

// ClaudeStopToOpenAI maps Anthropic stop reasons to OpenAI finish reasons.
func ClaudeStopToOpenAI(stop string) string {
	switch stop {
	case "max_tokens":
		return "length"
	case "tool_use":
		return "tool_calls"
	default:
		return "stop"
	}
}

// GeminiToClaudeResponse converts an upstream unary response into a
// Messages response advertising the client-requested model.
func GeminiToClaudeResponse(resp *gemini.Response, clientModel string) *anthropic.MessagesResponse {
	out := &anthropic.MessagesResponse{
		ID:    anthropic.NewMessageID(),
		Type:  "message",
		Role:  "assistant",
		Model: clientModel,
	}

	hasToolUse := false
	for _, part := range resp.FirstCandidateParts() {
		switch {
		case part.FunctionCall != nil:
			hasToolUse = true
			input, err := json.Marshal(part.FunctionCall.Args)
			if err != nil || part.FunctionCall.Args == nil {
				input = json.RawMessage(`{}`)
			}
			id := part.FunctionCall.ID
			if id == "" {
				id = fmt.Sprintf("%s-%s", part.FunctionCall.Name, uuid.NewString())
			}
			out.Content = append(out.Content, anthropic.ContentBlock{
				Type:  "tool_use",
				ID:    id,
				Name:  part.FunctionCall.Name,
				Input: input,
			})
		case part.Thought:
			out.Content = append(out.Content, anthropic.ContentBlock{
				Type:      "thinking",
				Thinking:  part.Text,
				Signature: part.ThoughtSignature,
			})
		case part.InlineData != nil:
			out.Content = append(out.Content, anthropic.ContentBlock{
				Type: "image",
				Source: &anthropic.ImageSource{
					Type:      "base64",
					MediaType: part.InlineData.MimeType,
					Data:      part.InlineData.Data,
				},
			})
		case part.Text != "":
			out.Content = append(out.Content, anthropic.ContentBlock{Type: "text", Text: part.Text})
		}
	}

	finish := ""
	if len(resp.Candidates) > 0 {
		finish = resp.Candidates[0].FinishReason
	}
	out.StopReason = GeminiFinishToClaude(finish, hasToolUse)

	if resp.UsageMetadata != nil {
		out.Usage = &anthropic.Usage{
			InputTokens:  resp.UsageMetadata.PromptTokenCount,
			OutputTokens: resp.UsageMetadata.CandidatesTokenCount,
		}
	}
	return out
}

// ClaudeToOpenAIResponse converts a Messages response into a chat
// completion. Thinking blocks surface as reasoning_content, tool_use
// blocks as tool_calls with JSON-string arguments.
func ClaudeToOpenAIResponse(resp *anthropic.MessagesResponse, clientModel string) *openai.ChatResponse {
	msg := &openai.ResponseMessage{Role: "assistant"}
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			msg.Content += block.Text
		case "thinking":
			msg.ReasoningContent += block.Thinking
		case "tool_use":
			args := string(block.Input)
			if args == "" {
				args = "{}"
			}
			msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
				Index:    len(msg.ToolCalls),
				ID:       block.ID,
				Type:     "function",
				Function: openai.FunctionCall{Name: block.Name, Arguments: args},
			})
		}
	}

	finish := ClaudeStopToOpenAI(resp.StopReason)
	out := &openai.ChatResponse{
		ID:      "chatcmpl-" + uuid.NewString(),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   clientModel,
		Choices: []openai.Choice{{Index: 0, Message: msg, FinishReason: &finish}},
	}
	if resp.Usage != nil {
		out.Usage = &openai.Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		}
	}
	return out
}
