package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/poemonsense/antigravity-gateway/internal/gateway"
	"github.com/poemonsense/antigravity-gateway/pkg/anthropic"
)

func (s *Server) anthropicError(c *gin.Context, err error) {
	status := gateway.HTTPStatusForError(err)
	errType := "api_error"
	switch status {
	case http.StatusBadRequest:
		errType = "invalid_request_error"
	case http.StatusUnauthorized:
		errType = "authentication_error"
	case http.StatusForbidden:
		errType = "permission_error"
	case http.StatusTooManyRequests:
		errType = "rate_limit_error"
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		errType = "overloaded_error"
	}
	c.JSON(status, anthropic.NewErrorResponse(errType, err.Error()))
}

// handleMessages serves POST /v1/messages.
func (s *Server) handleMessages(c *gin.Context) {
	var req anthropic.MessagesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, anthropic.NewErrorResponse("invalid_request_error", err.Error()))
		return
	}

	if req.Stream {
		w := newSSEWriter(c)
		if err := s.orch.AnthropicMessageStream(c.Request.Context(), &req, w); err != nil {
			// Headers are out; the best we can do is an error event.
			log.Errorf("messages stream failed: %v", err)
			_ = w.Event(anthropic.EventError, anthropic.NewErrorResponse("api_error", err.Error()))
		}
		return
	}

	resp, err := s.orch.AnthropicMessage(c.Request.Context(), &req)
	if err != nil {
		s.anthropicError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// handleCountTokens serves POST /v1/messages/count_tokens with a local
// estimate; the upstream has no token counting endpoint.
func (s *Server) handleCountTokens(c *gin.Context) {
	var req anthropic.MessagesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, anthropic.NewErrorResponse("invalid_request_error", err.Error()))
		return
	}

	chars := len(req.SystemText())
	for _, msg := range req.Messages {
		for _, block := range msg.Content {
			chars += len(block.Text) + len(block.Thinking)
			chars += len(block.Input)
			if s, ok := block.Content.(string); ok {
				chars += len(s)
			}
		}
	}
	// Rough 4-chars-per-token heuristic.
	c.JSON(http.StatusOK, gin.H{"input_tokens": chars / 4})
}
