// Package httpserver is the JSON HTTP boundary for the phone relay and the
// operator admin surface.
package httpserver

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/matheus3301/smsd/internal/config"
	"github.com/matheus3301/smsd/internal/processor"
	"github.com/matheus3301/smsd/internal/store"
	"go.uber.org/zap"
)

// Server wraps the gin engine with graceful shutdown helpers.
type Server struct {
	cfg    *config.Config
	proc   *processor.Processor
	db     *store.DB
	logger *zap.Logger
	engine *gin.Engine
	http   *http.Server
}

// New constructs the HTTP server and registers all routes.
func New(cfg *config.Config, proc *processor.Processor, db *store.DB, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestID())

	s := &Server{
		cfg:    cfg,
		proc:   proc,
		db:     db,
		logger: logger,
		engine: engine,
	}

	// Relay-facing endpoints. These never answer 4xx/5xx in normal
	// operation: the relay has no recovery beyond retrying, so failures
	// surface through logs and the health endpoint instead.
	engine.POST("/api/sms/incoming", s.receiveSMS)
	engine.GET("/api/sms/outgoing", s.getOutgoing)
	engine.POST("/api/sms/outgoing/:id/ack", s.acknowledge)

	engine.GET("/api/health", s.health)

	// Operator admin surface; ordinary status codes apply here.
	engine.GET("/api/conversations", s.listConversations)
	engine.GET("/api/conversations/:number/messages", s.conversationMessages)
	engine.DELETE("/api/conversations/:number", s.deleteConversation)

	s.http = &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: engine.Handler(),
	}
	return s
}

// Handler exposes the route tree for tests.
func (s *Server) Handler() http.Handler {
	return s.engine.Handler()
}

// Start blocks on the listener until Shutdown or failure.
func (s *Server) Start() error {
	s.logger.Info("http server listening", zap.String("addr", s.cfg.ListenAddr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// requestID tags every response so relay-side logs can be correlated.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Request-ID", uuid.NewString())
		c.Next()
	}
}
