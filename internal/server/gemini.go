package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/poemonsense/antigravity-gateway/internal/gateway"
	"github.com/poemonsense/antigravity-gateway/internal/translate"
	"github.com/poemonsense/antigravity-gateway/pkg/gemini"
)

func (s *Server) geminiError(c *gin.Context, err error) {
	status := gateway.HTTPStatusForError(err)
	code := "INTERNAL"
	switch status {
	case http.StatusBadRequest:
		code = "INVALID_ARGUMENT"
	case http.StatusUnauthorized:
		code = "UNAUTHENTICATED"
	case http.StatusForbidden:
		code = "PERMISSION_DENIED"
	case http.StatusTooManyRequests:
		code = "RESOURCE_EXHAUSTED"
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		code = "UNAVAILABLE"
	}
	c.JSON(status, gemini.NewErrorResponse(status, code, err.Error()))
}

func geminiModelInfo(id string) gemini.ModelInfo {
	return gemini.ModelInfo{
		Name:                       "models/" + id,
		Version:                    "001",
		DisplayName:                id,
		InputTokenLimit:            1048576,
		OutputTokenLimit:           65536,
		SupportedGenerationMethods: []string{"generateContent", "streamGenerateContent", "countTokens"},
	}
}

// handleGeminiListModels serves GET /v1beta/models.
func (s *Server) handleGeminiListModels(c *gin.Context) {
	ids := translate.DynamicModels()
	out := gemini.ModelsResponse{Models: make([]gemini.ModelInfo, 0, len(ids))}
	for _, id := range ids {
		out.Models = append(out.Models, geminiModelInfo(id))
	}
	c.JSON(http.StatusOK, out)
}

// handleGeminiModelPath dispatches /v1beta/models/<model> and
// /v1beta/models/<model>:<action>. gin cannot route on the colon, so the
// wildcard remainder is split here.
func (s *Server) handleGeminiModelPath(c *gin.Context) {
	path := strings.TrimPrefix(c.Param("path"), "/")
	if path == "" {
		if c.Request.Method == http.MethodGet {
			s.handleGeminiListModels(c)
			return
		}
		c.JSON(http.StatusNotFound, gemini.NewErrorResponse(http.StatusNotFound, "NOT_FOUND", "model is required"))
		return
	}
	// countTokens is also reachable in slash form.
	if rest, ok := strings.CutSuffix(path, "/countTokens"); ok {
		path = rest + ":countTokens"
	}
	model, action, hasAction := strings.Cut(path, ":")
	model = translate.NormalizeModel(model)

	if !hasAction {
		if c.Request.Method != http.MethodGet {
			c.JSON(http.StatusNotFound, gemini.NewErrorResponse(http.StatusNotFound, "NOT_FOUND", "unknown action"))
			return
		}
		c.JSON(http.StatusOK, geminiModelInfo(model))
		return
	}
	if c.Request.Method != http.MethodPost {
		c.JSON(http.StatusMethodNotAllowed, gemini.NewErrorResponse(http.StatusMethodNotAllowed, "FAILED_PRECONDITION", "use POST"))
		return
	}

	switch action {
	case "generateContent":
		s.handleGeminiGenerate(c, model, false)
	case "streamGenerateContent":
		s.handleGeminiGenerate(c, model, true)
	case "countTokens":
		s.handleGeminiCountTokens(c)
	default:
		c.JSON(http.StatusNotFound, gemini.NewErrorResponse(http.StatusNotFound, "NOT_FOUND", "unknown action "+action))
	}
}

func (s *Server) handleGeminiGenerate(c *gin.Context, model string, streaming bool) {
	var req gemini.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gemini.NewErrorResponse(http.StatusBadRequest, "INVALID_ARGUMENT", err.Error()))
		return
	}

	if streaming {
		w := newSSEWriter(c)
		if err := s.orch.GeminiGenerateStream(c.Request.Context(), model, &req, w); err != nil {
			log.Errorf("generateContent stream failed: %v", err)
			_ = w.Data(gemini.NewErrorResponse(gateway.HTTPStatusForError(err), "INTERNAL", err.Error()))
		}
		return
	}

	resp, err := s.orch.GeminiGenerate(c.Request.Context(), model, &req)
	if err != nil {
		s.geminiError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// handleGeminiCountTokens answers countTokens with a zero stub; the
// upstream does not expose it and clients treat the result as advisory.
func (s *Server) handleGeminiCountTokens(c *gin.Context) {
	c.JSON(http.StatusOK, gemini.CountTokensResponse{TotalTokens: 0})
}
