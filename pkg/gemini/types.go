// Package gemini defines the wire types shared by the public Gemini surface
// and the internal generation API the gateway fronts.
package gemini

import "encoding/json"

// Part is one content part. Exactly one of the payload fields is set.
type Part struct {
	Text             string          `json:"text,omitempty"`
	Thought          bool            `json:"thought,omitempty"`
	ThoughtSignature string          `json:"thoughtSignature,omitempty"`
	InlineData       *Blob           `json:"inlineData,omitempty"`
	FunctionCall     *FunctionCall   `json:"functionCall,omitempty"`
	FunctionResponse *FunctionResult `json:"functionResponse,omitempty"`
}

// Blob is inline binary data.
type Blob struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

// FunctionCall is a model-initiated tool invocation.
type FunctionCall struct {
	ID   string         `json:"id,omitempty"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// FunctionResult carries a tool execution result back to the model.
type FunctionResult struct {
	ID       string         `json:"id,omitempty"`
	Name     string         `json:"name"`
	Response map[string]any `json:"response,omitempty"`
}

// Content is a role-tagged list of parts.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// GenerationConfig carries sampling knobs. Kept as raw JSON so unknown
// upstream fields pass through untouched.
type GenerationConfig = json.RawMessage

// Request is the public generateContent request body.
type Request struct {
	Contents          []Content        `json:"contents"`
	SystemInstruction *Content         `json:"systemInstruction,omitempty"`
	GenerationConfig  GenerationConfig `json:"generationConfig,omitempty"`
	Tools             json.RawMessage  `json:"tools,omitempty"`
	SafetySettings    json.RawMessage  `json:"safetySettings,omitempty"`
}

// InternalRequest is the envelope posted to the internal endpoint.
type InternalRequest struct {
	Project     string   `json:"project"`
	RequestID   string   `json:"requestId"`
	Request     *Request `json:"request"`
	Model       string   `json:"model"`
	UserAgent   string   `json:"userAgent"`
	RequestType string   `json:"requestType"`
}

// Candidate is one generation candidate.
type Candidate struct {
	Content      *Content `json:"content,omitempty"`
	FinishReason string   `json:"finishReason,omitempty"`
	Index        int      `json:"index,omitempty"`
}

// UsageMetadata is upstream token accounting, reduced to the canonical
// subset the gateway republishes.
type UsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount,omitempty"`
	CandidatesTokenCount int `json:"candidatesTokenCount,omitempty"`
	TotalTokenCount      int `json:"totalTokenCount,omitempty"`
}

// Response is the generateContent response body, also the shape of each
// streamed frame.
type Response struct {
	Candidates    []Candidate    `json:"candidates,omitempty"`
	UsageMetadata *UsageMetadata `json:"usageMetadata,omitempty"`
	ModelVersion  string         `json:"modelVersion,omitempty"`
}

// FirstCandidateParts returns the parts of the first candidate, or nil.
func (r *Response) FirstCandidateParts() []Part {
	if r == nil || len(r.Candidates) == 0 || r.Candidates[0].Content == nil {
		return nil
	}
	return r.Candidates[0].Content.Parts
}

// ModelInfo is one entry of the /v1beta/models listing.
type ModelInfo struct {
	Name                       string   `json:"name"`
	Version                    string   `json:"version,omitempty"`
	DisplayName                string   `json:"displayName,omitempty"`
	Description                string   `json:"description,omitempty"`
	InputTokenLimit            int      `json:"inputTokenLimit,omitempty"`
	OutputTokenLimit           int      `json:"outputTokenLimit,omitempty"`
	SupportedGenerationMethods []string `json:"supportedGenerationMethods,omitempty"`
}

// ModelsResponse is the /v1beta/models envelope.
type ModelsResponse struct {
	Models []ModelInfo `json:"models"`
}

// CountTokensResponse is the countTokens reply.
type CountTokensResponse struct {
	TotalTokens int `json:"totalTokens"`
}

// ErrorResponse is the Gemini error envelope.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail is the inner error object.
type ErrorDetail struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status,omitempty"`
}

// NewErrorResponse builds an error envelope.
func NewErrorResponse(code int, status, message string) *ErrorResponse {
	return &ErrorResponse{Error: ErrorDetail{Code: code, Message: message, Status: status}}
}
