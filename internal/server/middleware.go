package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/poemonsense/antigravity-gateway/internal/config"
	"github.com/poemonsense/antigravity-gateway/pkg/anthropic"
	"github.com/poemonsense/antigravity-gateway/pkg/gemini"
	"github.com/poemonsense/antigravity-gateway/pkg/openai"
)

// silentPaths are accepted and answered empty without logging; clients poll
// them constantly.
var silentPaths = map[string]bool{
	"/":                        true,
	"/api/event_logging/batch": true,
}

// requestLogger logs one line per request, skipping the silent endpoints.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		if silentPaths[c.Request.URL.Path] {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		log.Infof("%s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path,
			c.Writer.Status(), time.Since(start).Round(time.Millisecond))
	}
}

// cors answers preflights and stamps permissive CORS headers; the gateway
// serves local tools, not browsers on the open internet.
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, x-api-key, x-goog-api-key, anthropic-version")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// clientKey extracts the client's API key from any of the per-protocol
// header conventions.
func clientKey(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	if k := c.GetHeader("x-api-key"); k != "" {
		return k
	}
	if k := c.GetHeader("x-goog-api-key"); k != "" {
		return k
	}
	return c.Query("key")
}

type authSurface int

const (
	surfaceOpenAI authSurface = iota
	surfaceAnthropic
	surfaceGemini
)

// authGuard rejects requests whose key does not match the configured one.
// An empty configured key disables the check. The 401 body matches the
// protocol the client speaks.
func authGuard(cfg *config.Store, surface authSurface) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := cfg.Current().APIKey
		if apiKey == "" || clientKey(c) == apiKey {
			c.Next()
			return
		}
		switch surface {
		case surfaceAnthropic:
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				anthropic.NewErrorResponse("authentication_error", "invalid x-api-key"))
		case surfaceGemini:
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				gemini.NewErrorResponse(http.StatusUnauthorized, "UNAUTHENTICATED", "API key not valid"))
		default:
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				openai.NewErrorResponse("invalid_request_error", "Incorrect API key provided"))
		}
	}
}
