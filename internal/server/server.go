package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/poemonsense/antigravity-gateway/internal/config"
	"github.com/poemonsense/antigravity-gateway/internal/gateway"
	"github.com/poemonsense/antigravity-gateway/internal/tokenpool"
)

// Server binds the HTTP surfaces to the orchestrator.
type Server struct {
	cfg  *config.Store
	orch *gateway.Orchestrator
	pool *tokenpool.Pool
	http *http.Server
}

// New builds the server and its route table.
func New(cfg *config.Store, orch *gateway.Orchestrator, pool *tokenpool.Pool) *Server {
	return &Server{cfg: cfg, orch: orch, pool: pool}
}

// Routes assembles the gin engine.
func (s *Server) Routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(), cors())

	// Compatibility shims: some clients post telemetry and probes here.
	ok := func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) }
	r.POST("/", ok)
	r.POST("/api/event_logging/batch", ok)

	r.GET("/health", s.handleHealth)
	r.POST("/internal/accounts/reload", s.handleAccountsReload)

	oa := r.Group("/v1", authGuard(s.cfg, surfaceOpenAI))
	{
		oa.GET("/models", s.handleListModels)
		oa.POST("/chat/completions", s.handleChatCompletions)
		oa.POST("/completions", s.handleCompletions)
		oa.POST("/responses", s.handleResponses)
		oa.POST("/images/generations", s.handleImageGenerations)
		oa.POST("/images/edits", s.handleImageEdits)
		oa.POST("/audio/transcriptions", s.handleAudioTranscriptions)
	}

	an := r.Group("/v1", authGuard(s.cfg, surfaceAnthropic))
	{
		an.POST("/messages", s.handleMessages)
		an.POST("/messages/count_tokens", s.handleCountTokens)
	}

	// A static /models sibling would conflict with the catch-all, so the
	// listing is dispatched inside the wildcard handler on an empty path.
	ge := r.Group("/v1beta", authGuard(s.cfg, surfaceGemini))
	{
		ge.GET("/models/*path", s.handleGeminiModelPath)
		ge.POST("/models/*path", s.handleGeminiModelPath)
	}

	return r
}

// handleHealth serves GET /health.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"version":  config.Version,
		"accounts": s.pool.GetAccountCount(),
	})
}

// handleAccountsReload re-reads the account store on demand, for host apps
// that add or remove accounts out of band.
func (s *Server) handleAccountsReload(c *gin.Context) {
	if err := s.pool.Reload(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "accounts": s.pool.GetAccountCount()})
}

// Run serves until the listener fails or Shutdown is called.
func (s *Server) Run() error {
	port := s.cfg.Current().Port
	s.http = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.Routes(),
	}
	log.Infof("gateway listening on :%d", port)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}
