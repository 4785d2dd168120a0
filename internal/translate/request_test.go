package translate

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/poemonsense/antigravity-gateway/pkg/anthropic"
	"github.com/poemonsense/antigravity-gateway/pkg/openai"
)

func TestOpenAIToClaudeSystemAndTools(t *testing.T) {
	req := &openai.ChatRequest{
		Model: "gpt-4",
		Messages: []openai.ChatMessage{
			{Role: "system", Content: "be brief"},
			{Role: "system", Content: "be kind"},
			{Role: "user", Content: "hello"},
		},
		Tools: []openai.Tool{{
			Type: "function",
			Function: openai.FunctionDefinition{
				Name:       "get_weather",
				Parameters: json.RawMessage(`{"type":"object"}`),
			},
		}},
		User: "u-1",
	}

	out := OpenAIToClaude(req)
	require.Equal(t, "be brief\n\nbe kind", out.System)
	require.Len(t, out.Messages, 1)
	require.Equal(t, "user", out.Messages[0].Role)
	require.Len(t, out.Tools, 1)
	require.Equal(t, "get_weather", out.Tools[0].Name)
	require.Equal(t, "openai", out.Metadata["source"])
	require.Equal(t, "u-1", out.Metadata["user_id"])
}

func TestOpenAIToClaudeKeepsExtraMetadata(t *testing.T) {
	req := &openai.ChatRequest{
		Model:    "gpt-4",
		Messages: []openai.ChatMessage{{Role: "user", Content: "hi"}},
		Extra:    map[string]any{"session_id": "s1", "trace": "t-9"},
	}

	out := OpenAIToClaude(req)
	require.Equal(t, "s1", out.Metadata["session_id"])
	require.Equal(t, "t-9", out.Metadata["trace"])
	require.Equal(t, "openai", out.Metadata["source"])
}

func TestOpenAIToClaudeToolRoundTrip(t *testing.T) {
	req := &openai.ChatRequest{
		Model: "gpt-4",
		Messages: []openai.ChatMessage{
			{Role: "user", Content: "weather in SF?"},
			{Role: "assistant", ToolCalls: []openai.ToolCall{{
				ID:       "call_1",
				Type:     "function",
				Function: openai.FunctionCall{Name: "get_weather", Arguments: `{"city":"SF"}`},
			}}},
			{Role: "tool", ToolCallID: "call_1", Content: "sunny"},
		},
	}

	out := OpenAIToClaude(req)
	require.Len(t, out.Messages, 3)

	require.Equal(t, "tool_use", out.Messages[1].Content[0].Type)
	require.Equal(t, "call_1", out.Messages[1].Content[0].ID)
	require.JSONEq(t, `{"city":"SF"}`, string(out.Messages[1].Content[0].Input))

	require.Equal(t, "user", out.Messages[2].Role)
	require.Equal(t, "tool_result", out.Messages[2].Content[0].Type)
	require.Equal(t, "call_1", out.Messages[2].Content[0].ToolUseID)
	require.Equal(t, "sunny", out.Messages[2].Content[0].Content)
}

func TestOpenAIToClaudeImages(t *testing.T) {
	req := &openai.ChatRequest{
		Model: "gpt-4o",
		Messages: []openai.ChatMessage{{
			Role: "user",
			Content: []any{
				map[string]any{"type": "text", "text": "what is this?"},
				map[string]any{"type": "image_url", "image_url": map[string]any{
					"url": "data:image/jpeg;base64,aGVsbG8=",
				}},
				map[string]any{"type": "image_url", "image_url": map[string]any{
					"url": "https://example.com/cat.png",
				}},
			},
		}},
	}

	out := OpenAIToClaude(req)
	blocks := out.Messages[0].Content
	require.Len(t, blocks, 3)
	require.Equal(t, "image", blocks[1].Type)
	require.Equal(t, "image/jpeg", blocks[1].Source.MediaType)
	require.Equal(t, "aGVsbG8=", blocks[1].Source.Data)
	require.Equal(t, "[image_url] https://example.com/cat.png", blocks[2].Text)
}

func TestClaudeToGeminiRequest(t *testing.T) {
	topK := 40
	req := &anthropic.MessagesRequest{
		Model:     "claude-sonnet-4-5-thinking",
		System:    "stay factual",
		MaxTokens: 1024,
		TopK:      &topK,
		Messages: []anthropic.Message{
			{Role: "user", Content: []anthropic.ContentBlock{{Type: "text", Text: "hi"}}},
			{Role: "assistant", Content: []anthropic.ContentBlock{
				{Type: "thinking", Thinking: "pondering", Signature: "sig"},
				{Type: "tool_use", ID: "tu_1", Name: "lookup", Input: json.RawMessage(`{"q":"go"}`)},
			}},
			{Role: "user", Content: []anthropic.ContentBlock{
				{Type: "tool_result", ToolUseID: "tu_1", Content: "found it"},
			}},
		},
	}

	out, err := ClaudeToGeminiRequest(req)
	require.NoError(t, err)

	require.Equal(t, "stay factual", out.SystemInstruction.Parts[0].Text)
	require.Len(t, out.Contents, 3)
	require.Equal(t, "model", out.Contents[1].Role)
	require.True(t, out.Contents[1].Parts[0].Thought)
	require.Equal(t, "sig", out.Contents[1].Parts[0].ThoughtSignature)
	require.Equal(t, "lookup", out.Contents[1].Parts[1].FunctionCall.Name)

	fr := out.Contents[2].Parts[0].FunctionResponse
	require.Equal(t, "tu_1", fr.ID)
	require.Equal(t, "lookup", fr.Name)
	require.Equal(t, "found it", fr.Response["result"])

	cfg := string(out.GenerationConfig)
	require.Equal(t, int64(1024), gjson.Get(cfg, "maxOutputTokens").Int())
	require.Equal(t, int64(40), gjson.Get(cfg, "topK").Int())
	require.True(t, gjson.Get(cfg, "thinkingConfig.includeThoughts").Bool())
}

func TestNewInternalRequestEnvelope(t *testing.T) {
	inner, err := ClaudeToGeminiRequest(&anthropic.MessagesRequest{
		Messages: []anthropic.Message{{Role: "user", Content: []anthropic.ContentBlock{{Type: "text", Text: "hi"}}}},
	})
	require.NoError(t, err)

	env := NewInternalRequest("my-project", "gemini-3-pro-high", "test-agent", inner)
	require.Equal(t, "my-project", env.Project)
	require.NotEmpty(t, env.RequestID)
	require.Equal(t, "generate-content", env.RequestType)

	raw, err := json.Marshal(env)
	require.NoError(t, err)
	require.False(t, gjson.GetBytes(raw, "sessionId").Exists())
	require.Equal(t, "gemini-3-pro-high", gjson.GetBytes(raw, "model").String())
}
