package translate

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/sjson"

	"github.com/poemonsense/antigravity-gateway/pkg/anthropic"
	"github.com/poemonsense/antigravity-gateway/pkg/gemini"
	"github.com/poemonsense/antigravity-gateway/pkg/openai"
)

// OpenAIToClaude converts a chat completion request to the Anthropic
// Messages shape, which is the gateway's hub format for text chat.
func OpenAIToClaude(req *openai.ChatRequest) *anthropic.MessagesRequest {
	out := &anthropic.MessagesRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Stream:      req.Stream,
		Temperature: req.Temperature,
		TopP:        req.TopP,
	}

	var systemParts []string
	for _, msg := range req.Messages {
		switch msg.Role {
		case "system", "developer":
			systemParts = append(systemParts, contentToText(msg.Content))
		case "tool":
			out.Messages = append(out.Messages, anthropic.Message{
				Role: "user",
				Content: []anthropic.ContentBlock{{
					Type:      "tool_result",
					ToolUseID: msg.ToolCallID,
					Content:   contentToText(msg.Content),
				}},
			})
		case "assistant":
			blocks := contentToBlocks(msg.Content)
			for _, tc := range msg.ToolCalls {
				input := json.RawMessage(tc.Function.Arguments)
				if !json.Valid(input) {
					input = json.RawMessage(`{}`)
				}
				blocks = append(blocks, anthropic.ContentBlock{
					Type:  "tool_use",
					ID:    tc.ID,
					Name:  tc.Function.Name,
					Input: input,
				})
			}
			if len(blocks) == 0 {
				continue
			}
			out.Messages = append(out.Messages, anthropic.Message{Role: "assistant", Content: blocks})
		default:
			blocks := contentToBlocks(msg.Content)
			if len(blocks) == 0 {
				blocks = []anthropic.ContentBlock{{Type: "text", Text: ""}}
			}
			out.Messages = append(out.Messages, anthropic.Message{Role: "user", Content: blocks})
		}
	}
	if len(systemParts) > 0 {
		out.System = strings.Join(systemParts, "\n\n")
	}

	for _, tool := range req.Tools {
		out.Tools = append(out.Tools, anthropic.Tool{
			Name:        tool.Function.Name,
			Description: tool.Function.Description,
			InputSchema: tool.Function.Parameters,
		})
	}

	// Client-supplied extras carry session identity for sticky routing.
	out.Metadata = make(map[string]any, len(req.Extra)+2)
	for k, v := range req.Extra {
		out.Metadata[k] = v
	}
	out.Metadata["source"] = "openai"
	if req.User != "" {
		out.Metadata["user_id"] = req.User
	}
	return out
}

// contentToText flattens string-or-parts message content to plain text.
func contentToText(content any) string {
	switch v := content.(type) {
	case string:
		return v
	case []any:
		var parts []string
		for _, item := range v {
			part, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if text, ok := part["text"].(string); ok {
				parts = append(parts, text)
			}
		}
		return strings.Join(parts, "\n")
	default:
		return ""
	}
}

// contentToBlocks converts string-or-parts message content to Anthropic
// blocks. Data-URI images become image blocks; remote URLs are flattened to
// a text marker since the upstream cannot fetch them.
func contentToBlocks(content any) []anthropic.ContentBlock {
	switch v := content.(type) {
	case string:
		if v == "" {
			return nil
		}
		return []anthropic.ContentBlock{{Type: "text", Text: v}}
	case []any:
		var blocks []anthropic.ContentBlock
		for _, item := range v {
			part, ok := item.(map[string]any)
			if !ok {
				continue
			}
			switch part["type"] {
			case "image_url":
				img, _ := part["image_url"].(map[string]any)
				rawURL, _ := img["url"].(string)
				if mediaType, data, ok := parseDataURI(rawURL); ok {
					blocks = append(blocks, anthropic.ContentBlock{
						Type:   "image",
						Source: &anthropic.ImageSource{Type: "base64", MediaType: mediaType, Data: data},
					})
				} else if rawURL != "" {
					blocks = append(blocks, anthropic.ContentBlock{Type: "text", Text: "[image_url] " + rawURL})
				}
			default:
				if text, ok := part["text"].(string); ok {
					blocks = append(blocks, anthropic.ContentBlock{Type: "text", Text: text})
				}
			}
		}
		return blocks
	default:
		return nil
	}
}

// parseDataURI splits a data:<mediatype>;base64,<data> URI.
func parseDataURI(uri string) (mediaType, data string, ok bool) {
	if !strings.HasPrefix(uri, "data:") {
		return "", "", false
	}
	head, payload, found := strings.Cut(uri[len("data:"):], ",")
	if !found {
		return "", "", false
	}
	mediaType = strings.TrimSuffix(head, ";base64")
	if mediaType == "" {
		mediaType = "image/png"
	}
	return mediaType, payload, true
}

// ClaudeToGeminiRequest converts a Messages request to the Gemini request
// body carried inside the internal envelope.
func ClaudeToGeminiRequest(req *anthropic.MessagesRequest) (*gemini.Request, error) {
	out := &gemini.Request{}

	if sys := req.SystemText(); sys != "" {
		out.SystemInstruction = &gemini.Content{Parts: []gemini.Part{{Text: sys}}}
	}

	// tool_use ids seen so far, for naming later tool_result parts.
	toolNames := map[string]string{}
	for _, msg := range req.Messages {
		role := "user"
		if msg.Role == "assistant" {
			role = "model"
		}
		var parts []gemini.Part
		for _, block := range msg.Content {
			switch block.Type {
			case "text":
				parts = append(parts, gemini.Part{Text: block.Text})
			case "thinking":
				parts = append(parts, gemini.Part{
					Text:             block.Thinking,
					Thought:          true,
					ThoughtSignature: block.Signature,
				})
			case "tool_use":
				toolNames[block.ID] = block.Name
				var args map[string]any
				if len(block.Input) > 0 {
					if err := json.Unmarshal(block.Input, &args); err != nil {
						return nil, fmt.Errorf("tool_use %s: bad input: %w", block.Name, err)
					}
				}
				parts = append(parts, gemini.Part{FunctionCall: &gemini.FunctionCall{
					ID:   block.ID,
					Name: block.Name,
					Args: args,
				}})
			case "tool_result":
				parts = append(parts, gemini.Part{FunctionResponse: &gemini.FunctionResult{
					ID:       block.ToolUseID,
					Name:     toolNames[block.ToolUseID],
					Response: map[string]any{"result": toolResultText(block.Content)},
				}})
			case "image":
				if block.Source != nil && block.Source.Data != "" {
					parts = append(parts, gemini.Part{InlineData: &gemini.Blob{
						MimeType: block.Source.MediaType,
						Data:     block.Source.Data,
					}})
				}
			}
		}
		if len(parts) == 0 {
			continue
		}
		out.Contents = append(out.Contents, gemini.Content{Role: role, Parts: parts})
	}

	if cfg := generationConfig(req); cfg != nil {
		out.GenerationConfig = cfg
	}
	if tools := geminiTools(req.Tools); tools != nil {
		out.Tools = tools
	}
	return out, nil
}

// toolResultText flattens a tool_result content field (string or nested
// blocks) to text.
func toolResultText(content any) string {
	switch v := content.(type) {
	case string:
		return v
	case []any:
		var parts []string
		for _, item := range v {
			block, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if text, ok := block["text"].(string); ok {
				parts = append(parts, text)
			}
		}
		return strings.Join(parts, "\n")
	case nil:
		return ""
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(raw)
	}
}

func generationConfig(req *anthropic.MessagesRequest) json.RawMessage {
	cfg := []byte(`{}`)
	set := func(path string, value any) {
		if out, err := sjson.SetBytes(cfg, path, value); err == nil {
			cfg = out
		}
	}
	if req.Temperature != nil {
		set("temperature", *req.Temperature)
	}
	if req.TopP != nil {
		set("topP", *req.TopP)
	}
	if req.TopK != nil {
		set("topK", *req.TopK)
	}
	if req.MaxTokens > 0 {
		set("maxOutputTokens", req.MaxTokens)
	}
	if len(req.StopSequences) > 0 {
		set("stopSequences", req.StopSequences)
	}
	if strings.Contains(strings.ToLower(req.Model), "thinking") {
		set("thinkingConfig.includeThoughts", true)
	}
	if len(cfg) <= 2 {
		return nil
	}
	return cfg
}

func geminiTools(tools []anthropic.Tool) json.RawMessage {
	if len(tools) == 0 {
		return nil
	}
	decls := make([]map[string]any, 0, len(tools))
	for _, t := range tools {
		decl := map[string]any{"name": t.Name}
		if t.Description != "" {
			decl["description"] = t.Description
		}
		if len(t.InputSchema) > 0 {
			decl["parameters"] = json.RawMessage(t.InputSchema)
		}
		decls = append(decls, decl)
	}
	raw, err := json.Marshal([]map[string]any{{"functionDeclarations": decls}})
	if err != nil {
		return nil
	}
	return raw
}

// NewInternalRequest wraps a Gemini request into the internal envelope.
// The envelope carries a fresh request id and never the client session.
func NewInternalRequest(project, model, userAgent string, req *gemini.Request) *gemini.InternalRequest {
	return &gemini.InternalRequest{
		Project:     project,
		RequestID:   uuid.NewString(),
		Request:     req,
		Model:       model,
		UserAgent:   userAgent,
		RequestType: "generate-content",
	}
}

// GeminiPublicToInternal sanitizes a public generateContent body for the
// internal envelope. System instructions are reduced to text-only parts.
func GeminiPublicToInternal(req *gemini.Request) *gemini.Request {
	if req.SystemInstruction != nil {
		var textParts []gemini.Part
		for _, p := range req.SystemInstruction.Parts {
			if p.Text != "" {
				textParts = append(textParts, gemini.Part{Text: p.Text})
			}
		}
		if len(textParts) == 0 {
			req.SystemInstruction = nil
		} else {
			req.SystemInstruction = &gemini.Content{Parts: textParts}
		}
	}
	return req
}
