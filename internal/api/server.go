// Package api exposes the conversational assistant over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/clinical-assistant-server/internal/domain"
	"github.com/clinical-assistant-server/internal/orchestrator"
	"github.com/clinical-assistant-server/internal/tools"
)

// HealthChecker reports whether a backing dependency is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Server is the HTTP transport over the conversation loop.
type Server struct {
	cfg          domain.ServerConfig
	orchestrator *orchestrator.Orchestrator
	registry     *tools.Registry
	storeHealth  HealthChecker
	router       *gin.Engine
	server       *http.Server
	logger       *logrus.Logger
}

// NewServer creates the HTTP server.
func NewServer(
	cfg domain.ServerConfig,
	orch *orchestrator.Orchestrator,
	registry *tools.Registry,
	storeHealth HealthChecker,
	logLevel string,
	logger *logrus.Logger,
) *Server {
	if logLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(requestIDMiddleware())

	server := &Server{
		cfg:          cfg,
		orchestrator: orch,
		registry:     registry,
		storeHealth:  storeHealth,
		router:       router,
		logger:       logger,
	}
	server.setupRoutes()
	return server
}

// Start runs the server until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/chat", s.handleChat)
		v1.POST("/chat/clear", s.handleChatClear)
		v1.GET("/tools", s.handleTools)
	}
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message" binding:"required"`
}

type clearRequest struct {
	SessionID string `json:"session_id" binding:"required"`
}

func (s *Server) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}

	result := s.orchestrator.HandleTurn(c.Request.Context(), req.SessionID, req.Message)
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleChatClear(c *gin.Context) {
	var req clearRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id is required"})
		return
	}

	cleared := s.orchestrator.Sessions().Clear(req.SessionID)
	c.JSON(http.StatusOK, gin.H{"cleared": cleared})
}

func (s *Server) handleTools(c *gin.Context) {
	definitions := s.registry.Definitions()
	out := make([]gin.H, 0, len(definitions))
	for _, def := range definitions {
		out = append(out, gin.H{
			"name":         def.Name,
			"description":  def.Description,
			"input_schema": def.InputSchema(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"tools": out})
}

func (s *Server) handleHealth(c *gin.Context) {
	status := "healthy"
	code := http.StatusOK
	checks := gin.H{}

	if s.storeHealth != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		if err := s.storeHealth.Ping(ctx); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
			checks["document_store"] = "unreachable"
		} else {
			checks["document_store"] = "ok"
		}
	}

	c.JSON(code, gin.H{
		"status":    status,
		"checks":    checks,
		"timestamp": time.Now(),
	})
}

// corsMiddleware adds CORS headers to responses
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization, X-API-Key")
		c.Header("Access-Control-Expose-Headers", "Content-Length")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requestIDMiddleware adds a unique request ID to each request
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header("X-Request-ID", requestID)
		c.Set("request_id", requestID)
		c.Next()
	}
}
