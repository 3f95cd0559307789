package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ochronus/gozenodo/internal/app"
	"github.com/ochronus/gozenodo/internal/config"
	"github.com/ochronus/gozenodo/internal/services/zenodo"
	"github.com/sirupsen/logrus"
)

const requestIDHeader = "X-Request-ID"

// Server represents the HTTP server
type Server struct {
	config  *config.Config
	handler *Handler
	logger  *logrus.Logger
	router  *gin.Engine
	srv     *http.Server
}

// NewServer creates a new HTTP server backed by the container's sessions
func NewServer(container *app.Container) *Server {
	sessions := func(production bool) (zenodo.SessionAPI, error) {
		session, err := container.NewSession(production)
		if err != nil {
			return nil, err
		}
		return session, nil
	}

	return newServer(container.Config, container.Logger, NewHandler(container.Config, container.Logger, sessions))
}

func newServer(cfg *config.Config, logger *logrus.Logger, handler *Handler) *Server {
	// Set gin mode based on log level
	if cfg.Loglevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(requestID())
	router.Use(accessLog(logger))

	api := router.Group("/api", handler.RequireAuth)
	api.GET("/status", handler.Status)
	api.GET("/depositions", handler.ListDepositions)
	api.POST("/depositions", handler.CreateDeposition)
	api.POST("/depositions/:id/files", handler.UploadFile)

	return &Server{
		config:  cfg,
		handler: handler,
		logger:  logger,
		router:  router,
	}
}

// requestID tags every request with an id, reusing the caller's one if sent.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func accessLog(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.WithFields(logrus.Fields{
			"request_id": c.GetString("request_id"),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"duration":   time.Since(start).String(),
		}).Debug("request handled")
	}
}

// Start starts the HTTP server with a background context.
func (s *Server) Start() error {
	return s.StartWithContext(context.Background())
}

// StartWithContext starts the HTTP server and shuts down gracefully when the context is canceled.
func (s *Server) StartWithContext(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.BindAddress, s.config.Port)
	s.logger.Infof("Starting web server at http://%s", addr)

	s.srv = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		<-errCh
		return nil
	case err := <-errCh:
		return err
	}
}

// GetRouter returns the underlying gin router (useful for testing)
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}
