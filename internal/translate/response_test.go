package translate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/poemonsense/antigravity-gateway/pkg/anthropic"
	"github.com/poemonsense/antigravity-gateway/pkg/gemini"
)

func TestGeminiToClaudeResponse(t *testing.T) {
	resp := &gemini.Response{
		Candidates: []gemini.Candidate{{
			Content: &gemini.Content{Role: "model", Parts: []gemini.Part{
				{Text: "thinking...", Thought: true, ThoughtSignature: "sig"},
				{Text: "hello"},
				{FunctionCall: &gemini.FunctionCall{Name: "lookup", Args: map[string]any{"q": "go"}}},
			}},
			FinishReason: "STOP",
		}},
		UsageMetadata: &gemini.UsageMetadata{PromptTokenCount: 10, CandidatesTokenCount: 5},
	}

	out := GeminiToClaudeResponse(resp, "claude-sonnet-4-5")
	require.Equal(t, "claude-sonnet-4-5", out.Model)
	require.Len(t, out.Content, 3)
	require.Equal(t, "thinking", out.Content[0].Type)
	require.Equal(t, "text", out.Content[1].Type)
	require.Equal(t, "tool_use", out.Content[2].Type)
	require.Contains(t, out.Content[2].ID, "lookup-")
	require.JSONEq(t, `{"q":"go"}`, string(out.Content[2].Input))
	// Tool output forces the stop reason regardless of the upstream finish.
	require.Equal(t, "tool_use", out.StopReason)
	require.Equal(t, 10, out.Usage.InputTokens)
	require.Equal(t, 5, out.Usage.OutputTokens)
}

func TestGeminiToClaudeResponseMaxTokens(t *testing.T) {
	resp := &gemini.Response{
		Candidates: []gemini.Candidate{{
			Content:      &gemini.Content{Parts: []gemini.Part{{Text: "trunc"}}},
			FinishReason: "MAX_TOKENS",
		}},
	}
	out := GeminiToClaudeResponse(resp, "m")
	require.Equal(t, "max_tokens", out.StopReason)
}

func TestClaudeToOpenAIResponse(t *testing.T) {
	resp := &anthropic.MessagesResponse{
		Content: []anthropic.ContentBlock{
			{Type: "thinking", Thinking: "hmm"},
			{Type: "text", Text: "part one. "},
			{Type: "text", Text: "part two."},
			{Type: "tool_use", ID: "tu_1", Name: "lookup", Input: nil},
		},
		StopReason: "tool_use",
		Usage:      &anthropic.Usage{InputTokens: 7, OutputTokens: 3},
	}

	out := ClaudeToOpenAIResponse(resp, "gpt-4")
	require.Equal(t, "gpt-4", out.Model)
	msg := out.Choices[0].Message
	require.Equal(t, "part one. part two.", msg.Content)
	require.Equal(t, "hmm", msg.ReasoningContent)
	require.Len(t, msg.ToolCalls, 1)
	require.Equal(t, "{}", msg.ToolCalls[0].Function.Arguments)
	require.Equal(t, "tool_calls", *out.Choices[0].FinishReason)
	require.Equal(t, 10, out.Usage.TotalTokens)
}

func TestFinishReasonMaps(t *testing.T) {
	require.Equal(t, "stop", GeminiFinishToOpenAI("STOP"))
	require.Equal(t, "length", GeminiFinishToOpenAI("MAX_TOKENS"))
	require.Equal(t, "content_filter", GeminiFinishToOpenAI("SAFETY"))
	require.Equal(t, "content_filter", GeminiFinishToOpenAI("RECITATION"))
	require.Equal(t, "stop", GeminiFinishToOpenAI(""))
	// Unknown reasons pass through lowercased.
	require.Equal(t, "other", GeminiFinishToOpenAI("OTHER"))

	require.Equal(t, "length", ClaudeStopToOpenAI("max_tokens"))
	require.Equal(t, "tool_calls", ClaudeStopToOpenAI("tool_use"))
	require.Equal(t, "stop", ClaudeStopToOpenAI("end_turn"))
}
