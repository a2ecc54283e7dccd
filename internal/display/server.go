// Package display serves the scan list and the live heatmap session over HTTP.
package display

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/roman-kulish/wifi-heatmap/internal/heatmap"
	"github.com/roman-kulish/wifi-heatmap/internal/wifi"
)

const (
	shutdownTimeout = 5 * time.Second
	writeTimeout    = 5 * time.Second
)

// Recorder is the part of heatmap.Recorder the server drives
type Recorder interface {
	Start(ctx context.Context, bssid string) (string, error)
	Stop()
	Snapshot() heatmap.Snapshot
	Watch(ctx context.Context) <-chan struct{}
}

// Lister returns the latest scan list. Implemented by wifi.Lister.
type Lister interface {
	Networks(ctx context.Context) ([]wifi.Network, error)
}

// Renderer draws a snapshot. Implemented by render.Renderer.
type Renderer interface {
	Render(s heatmap.Snapshot) (*image.RGBA, error)
}

// WithLogger sets the logger for the server
func WithLogger(logger *slog.Logger) func(s *Server) {
	return func(s *Server) {
		s.logger = logger.With(slog.String("component", "display"))
	}
}

// WithRenderer enables GET /api/heatmap.png
func WithRenderer(renderer Renderer) func(s *Server) {
	return func(s *Server) {
		s.renderer = renderer
	}
}

// Server is the HTTP API in front of the recorder
type Server struct {
	engine   *gin.Engine
	upgrader websocket.Upgrader

	recorder Recorder
	lister   Lister
	renderer Renderer
	logger   *slog.Logger
}

// New creates the server and its routes.
func New(recorder Recorder, lister Lister, options ...func(s *Server)) *Server {
	s := Server{
		recorder: recorder,
		lister:   lister,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&s)
	}

	s.engine = gin.New()
	s.engine.Use(gin.Recovery(), s.logRequests())
	s.routes()

	return &s
}

func (s *Server) routes() {
	api := s.engine.Group("/api")
	{
		api.GET("/networks", s.networks)
		api.GET("/session", s.session)
		api.POST("/recording", s.startRecording)
		api.DELETE("/recording", s.stopRecording)
		api.GET("/heatmap.png", s.heatmapImage)
		api.GET("/stream", s.stream)
	}
}

// Handler returns the HTTP handler of the API
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serving: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving: %w", err)
	}

	return nil
}

// logRequests logs every request once it has been handled
func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		s.logger.Debug("request",
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)),
			slog.String("client", c.ClientIP()),
		)
	}
}
