package server

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/poemonsense/antigravity-gateway/internal/gateway"
	"github.com/poemonsense/antigravity-gateway/internal/translate"
	"github.com/poemonsense/antigravity-gateway/pkg/gemini"
	"github.com/poemonsense/antigravity-gateway/pkg/openai"
)

// modelsCreated is the fixed creation timestamp advertised on the models
// listing, so clients that cache by timestamp stay stable across restarts.
const modelsCreated = 1770652800

const modelsOwner = "antigravity"

func (s *Server) openaiError(c *gin.Context, err error) {
	status := gateway.HTTPStatusForError(err)
	errType := "api_error"
	switch status {
	case http.StatusBadRequest:
		errType = "invalid_request_error"
	case http.StatusUnauthorized, http.StatusForbidden:
		errType = "authentication_error"
	case http.StatusTooManyRequests:
		errType = "rate_limit_error"
	}
	c.JSON(status, openai.NewErrorResponse(errType, err.Error()))
}

// handleListModels serves GET /v1/models.
func (s *Server) handleListModels(c *gin.Context) {
	ids := translate.DynamicModels()
	out := openai.ModelsResponse{Object: "list", Data: make([]openai.Model, 0, len(ids))}
	for _, id := range ids {
		out.Data = append(out.Data, openai.Model{
			ID:      id,
			Object:  "model",
			Created: modelsCreated,
			OwnedBy: modelsOwner,
		})
	}
	c.JSON(http.StatusOK, out)
}

// handleChatCompletions serves POST /v1/chat/completions.
func (s *Server) handleChatCompletions(c *gin.Context) {
	var req openai.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, openai.NewErrorResponse("invalid_request_error", err.Error()))
		return
	}

	if req.Stream {
		w := newSSEWriter(c)
		if err := s.orch.ChatCompletionStream(c.Request.Context(), &req, w); err != nil {
			log.Errorf("chat completion stream failed: %v", err)
			_ = w.Data(openai.NewErrorResponse("api_error", err.Error()))
			_ = w.Raw("[DONE]")
		}
		return
	}

	resp, err := s.orch.ChatCompletion(c.Request.Context(), &req)
	if err != nil {
		s.openaiError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// handleCompletions serves the legacy POST /v1/completions by routing the
// prompt through the chat surface.
func (s *Server) handleCompletions(c *gin.Context) {
	var req openai.CompletionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, openai.NewErrorResponse("invalid_request_error", err.Error()))
		return
	}

	prompt := ""
	switch v := req.Prompt.(type) {
	case string:
		prompt = v
	case []any:
		var parts []string
		for _, item := range v {
			if s, ok := item.(string); ok {
				parts = append(parts, s)
			}
		}
		prompt = strings.Join(parts, "\n")
	}

	chatReq := &openai.ChatRequest{
		Model:       req.Model,
		Messages:    []openai.ChatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	resp, err := s.orch.ChatCompletion(c.Request.Context(), chatReq)
	if err != nil {
		s.openaiError(c, err)
		return
	}

	text := ""
	finish := "stop"
	if len(resp.Choices) > 0 && resp.Choices[0].Message != nil {
		text = resp.Choices[0].Message.Content
		if resp.Choices[0].FinishReason != nil {
			finish = *resp.Choices[0].FinishReason
		}
	}
	out := openai.CompletionResponse{
		ID:      "cmpl-" + uuid.NewString(),
		Object:  "text_completion",
		Created: resp.Created,
		Model:   req.Model,
		Choices: []openai.CompletionChoice{{Index: 0, Text: text, FinishReason: &finish}},
		Usage:   resp.Usage,
	}

	if req.Stream {
		w := newSSEWriter(c)
		_ = w.Data(out)
		_ = w.Raw("[DONE]")
		return
	}
	c.JSON(http.StatusOK, out)
}

// responsesRequest is the subset of the Responses API the gateway accepts.
type responsesRequest struct {
	Model        string          `json:"model"`
	Input        any             `json:"input"`
	Instructions string          `json:"instructions,omitempty"`
	Stream       bool            `json:"stream,omitempty"`
	MaxTokens    int             `json:"max_output_tokens,omitempty"`
	Temperature  *float64        `json:"temperature,omitempty"`
	Tools        json.RawMessage `json:"tools,omitempty"`
}

// responsesToChat lowers a Responses API request onto the chat surface.
// function_call items register their call_id so later function_call_output
// items can be attributed to the right tool.
func responsesToChat(req *responsesRequest) *openai.ChatRequest {
	out := &openai.ChatRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if req.Instructions != "" {
		out.Messages = append(out.Messages, openai.ChatMessage{Role: "system", Content: req.Instructions})
	}

	callNames := map[string]string{}
	switch v := req.Input.(type) {
	case string:
		out.Messages = append(out.Messages, openai.ChatMessage{Role: "user", Content: v})
	case []any:
		for _, raw := range v {
			item, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			itemType, _ := item["type"].(string)
			switch itemType {
			case "function_call":
				callID, _ := item["call_id"].(string)
				name, _ := item["name"].(string)
				args, _ := item["arguments"].(string)
				callNames[callID] = name
				out.Messages = append(out.Messages, openai.ChatMessage{
					Role: "assistant",
					ToolCalls: []openai.ToolCall{{
						ID:       callID,
						Type:     "function",
						Function: openai.FunctionCall{Name: name, Arguments: args},
					}},
				})
			case "function_call_output":
				callID, _ := item["call_id"].(string)
				output, _ := item["output"].(string)
				out.Messages = append(out.Messages, openai.ChatMessage{
					Role:       "tool",
					Name:       callNames[callID],
					ToolCallID: callID,
					Content:    output,
				})
			default: // message or bare content
				role, _ := item["role"].(string)
				if role == "" {
					role = "user"
				}
				out.Messages = append(out.Messages, openai.ChatMessage{
					Role:    role,
					Content: responsesContentToText(item["content"]),
				})
			}
		}
	}
	return out
}

func responsesContentToText(content any) string {
	switch v := content.(type) {
	case string:
		return v
	case []any:
		var parts []string
		for _, raw := range v {
			item, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			if text, ok := item["text"].(string); ok {
				parts = append(parts, text)
			}
		}
		return strings.Join(parts, "\n")
	default:
		return ""
	}
}

// handleResponses serves POST /v1/responses on top of the chat surface.
func (s *Server) handleResponses(c *gin.Context) {
	var req responsesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, openai.NewErrorResponse("invalid_request_error", err.Error()))
		return
	}

	resp, err := s.orch.ChatCompletion(c.Request.Context(), responsesToChat(&req))
	if err != nil {
		s.openaiError(c, err)
		return
	}

	var output []gin.H
	text := ""
	if len(resp.Choices) > 0 && resp.Choices[0].Message != nil {
		msg := resp.Choices[0].Message
		text = msg.Content
		if text != "" {
			output = append(output, gin.H{
				"type": "message",
				"id":   "msg_" + uuid.NewString(),
				"role": "assistant",
				"content": []gin.H{
					{"type": "output_text", "text": text},
				},
			})
		}
		for _, tc := range msg.ToolCalls {
			output = append(output, gin.H{
				"type":      "function_call",
				"id":        "fc_" + uuid.NewString(),
				"call_id":   tc.ID,
				"name":      tc.Function.Name,
				"arguments": tc.Function.Arguments,
			})
		}
	}

	body := gin.H{
		"id":     "resp_" + uuid.NewString(),
		"object": "response",
		"status": "completed",
		"model":  req.Model,
		"output": output,
	}
	if resp.Usage != nil {
		body["usage"] = gin.H{
			"input_tokens":  resp.Usage.PromptTokens,
			"output_tokens": resp.Usage.CompletionTokens,
			"total_tokens":  resp.Usage.TotalTokens,
		}
	}

	if req.Stream {
		w := newSSEWriter(c)
		_ = w.Event("response.created", gin.H{"type": "response.created", "response": gin.H{"id": body["id"], "status": "in_progress"}})
		if text != "" {
			_ = w.Event("response.output_text.delta", gin.H{"type": "response.output_text.delta", "delta": text})
		}
		_ = w.Event("response.completed", gin.H{"type": "response.completed", "response": body})
		return
	}
	c.JSON(http.StatusOK, body)
}

const defaultImageModel = "gemini-3-pro-image"

// imageParts extracts inline images from a generation response.
func imageParts(resp *gemini.Response) []gin.H {
	var data []gin.H
	for _, part := range resp.FirstCandidateParts() {
		if part.InlineData != nil {
			data = append(data, gin.H{"b64_json": part.InlineData.Data})
		}
	}
	return data
}

// handleImageGenerations serves POST /v1/images/generations.
func (s *Server) handleImageGenerations(c *gin.Context) {
	var req struct {
		Model  string `json:"model"`
		Prompt string `json:"prompt"`
		Size   string `json:"size,omitempty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Prompt == "" {
		c.JSON(http.StatusBadRequest, openai.NewErrorResponse("invalid_request_error", "prompt is required"))
		return
	}
	model := req.Model
	if model == "" || !strings.Contains(model, "image") {
		model = defaultImageModel
	}

	resp, err := s.orch.GeminiGenerate(c.Request.Context(), model, &gemini.Request{
		Contents: []gemini.Content{{Role: "user", Parts: []gemini.Part{{Text: req.Prompt}}}},
	})
	if err != nil {
		s.openaiError(c, err)
		return
	}

	data := imageParts(resp)
	if len(data) == 0 {
		s.openaiError(c, gateway.ErrEmptyResponseStream)
		return
	}
	c.JSON(http.StatusOK, gin.H{"created": modelsCreated, "data": data})
}

func filePart(file *multipart.FileHeader) (gemini.Part, error) {
	f, err := file.Open()
	if err != nil {
		return gemini.Part{}, err
	}
	defer f.Close()
	raw, err := io.ReadAll(f)
	if err != nil {
		return gemini.Part{}, err
	}
	mimeType := file.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = mimeFromName(file.Filename)
	}
	return gemini.Part{InlineData: &gemini.Blob{
		MimeType: mimeType,
		Data:     base64.StdEncoding.EncodeToString(raw),
	}}, nil
}

func mimeFromName(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".ogg":
		return "audio/ogg"
	case ".m4a":
		return "audio/mp4"
	default:
		return "application/octet-stream"
	}
}

// handleImageEdits serves POST /v1/images/edits (multipart).
func (s *Server) handleImageEdits(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, openai.NewErrorResponse("invalid_request_error", err.Error()))
		return
	}
	prompt := c.PostForm("prompt")
	if prompt == "" {
		c.JSON(http.StatusBadRequest, openai.NewErrorResponse("invalid_request_error", "prompt is required"))
		return
	}

	parts := []gemini.Part{{Text: prompt}}
	files := form.File["image"]
	if len(files) == 0 {
		files = form.File["image[]"]
	}
	for _, file := range files {
		part, err := filePart(file)
		if err != nil {
			c.JSON(http.StatusBadRequest, openai.NewErrorResponse("invalid_request_error", err.Error()))
			return
		}
		parts = append(parts, part)
	}
	if len(parts) == 1 {
		c.JSON(http.StatusBadRequest, openai.NewErrorResponse("invalid_request_error", "image is required"))
		return
	}

	model := c.PostForm("model")
	if model == "" || !strings.Contains(model, "image") {
		model = defaultImageModel
	}
	resp, err := s.orch.GeminiGenerate(c.Request.Context(), model, &gemini.Request{
		Contents: []gemini.Content{{Role: "user", Parts: parts}},
	})
	if err != nil {
		s.openaiError(c, err)
		return
	}

	data := imageParts(resp)
	if len(data) == 0 {
		s.openaiError(c, gateway.ErrEmptyResponseStream)
		return
	}
	c.JSON(http.StatusOK, gin.H{"created": modelsCreated, "data": data})
}

// handleAudioTranscriptions serves POST /v1/audio/transcriptions (multipart)
// by asking a generation model to transcribe the uploaded audio.
func (s *Server) handleAudioTranscriptions(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, openai.NewErrorResponse("invalid_request_error", "file is required"))
		return
	}
	part, err := filePart(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, openai.NewErrorResponse("invalid_request_error", err.Error()))
		return
	}

	model := c.PostForm("model")
	if model == "" || strings.HasPrefix(model, "whisper") || strings.HasPrefix(model, "gpt-4o") {
		model = "gemini-3-flash"
	}

	resp, err := s.orch.GeminiGenerate(c.Request.Context(), model, &gemini.Request{
		Contents: []gemini.Content{{Role: "user", Parts: []gemini.Part{
			{Text: "Transcribe this audio. Return only the transcribed text."},
			part,
		}}},
	})
	if err != nil {
		s.openaiError(c, err)
		return
	}

	text := ""
	for _, p := range resp.FirstCandidateParts() {
		if !p.Thought {
			text += p.Text
		}
	}
	c.JSON(http.StatusOK, gin.H{"text": strings.TrimSpace(text)})
}
