// Package server exposes the article generator and keyword tracker as a JSON API.
package server

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yuin/goldmark"
	"go.uber.org/zap"

	"github.com/TobiSchelling/PinForge/internal/database"
	"github.com/TobiSchelling/PinForge/internal/dispatch"
	"github.com/TobiSchelling/PinForge/internal/keywords"
	"github.com/TobiSchelling/PinForge/internal/settings"
)

//go:embed templates/*.html
var templateFS embed.FS

var md = goldmark.New()

// Options configures the optional parts of the server.
type Options struct {
	// ImageDir is served under /images when set.
	ImageDir string
	// Gatherer backs /metrics. Defaults to the global registry.
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
	Debug    bool
}

// Server is the HTTP API.
type Server struct {
	db         *database.DB
	dispatcher *dispatch.Dispatcher
	keywords   *keywords.Engine
	keys       func() settings.ProviderConfig
	preview    *template.Template
	router     *gin.Engine
	logger     *zap.Logger
}

// New creates a Server. kw may be nil when keyword tracking is not configured.
// keys is called per request so rotated keys take effect without a restart.
func New(db *database.DB, d *dispatch.Dispatcher, kw *keywords.Engine, keys func() settings.ProviderConfig, opts Options) (*Server, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}

	preview, err := template.New("preview.html").
		Funcs(template.FuncMap{"markdown": renderMarkdown}).
		ParseFS(templateFS, "templates/preview.html")
	if err != nil {
		return nil, fmt.Errorf("parsing preview template: %w", err)
	}

	if opts.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		db:         db,
		dispatcher: d,
		keywords:   kw,
		keys:       keys,
		preview:    preview,
		router:     gin.New(),
		logger:     opts.Logger,
	}
	s.router.Use(recoveryMiddleware(s.logger), requestIDMiddleware(), loggerMiddleware(s.logger))
	s.routes(opts)
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes(opts Options) {
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	if opts.ImageDir != "" {
		s.router.Static("/images", opts.ImageDir)
	}

	api := s.router.Group("/api")

	api.GET("/articles", s.listArticles)
	api.POST("/articles", s.generateArticle)
	api.GET("/articles/:id", s.getArticle)
	api.DELETE("/articles/:id", s.deleteArticle)
	api.GET("/articles/:id/preview", s.previewArticle)
	api.POST("/articles/:id/images/:index", s.regenerateImage)
	api.POST("/articles/:id/wordpress", s.markWordPressDraft)

	api.GET("/keywords", s.listKeywords)
	api.POST("/keywords", s.trackKeyword)
	api.POST("/keywords/refresh", s.refreshKeywords)
	api.GET("/keywords/research", s.researchKeywords)
	api.POST("/keywords/:id/refresh", s.refreshKeyword)
	api.DELETE("/keywords/:id", s.untrackKeyword)
	api.GET("/pins/top", s.topPins)

	api.GET("/settings", s.settingsStatus)
	api.POST("/settings/validate", s.validateKey)
	api.GET("/stats", s.stats)
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

// Serve runs the server on addr until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server listening", zap.String("address", "http://"+addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server error: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	return nil
}

func loggerMiddleware(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", c.GetString("request_id")),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.Strings("errors", c.Errors.Errors()))
			log.Error("HTTP request with errors", fields...)
			return
		}
		if strings.HasPrefix(path, "/healthz") || strings.HasPrefix(path, "/metrics") {
			log.Debug("HTTP request", fields...)
			return
		}
		log.Info("HTTP request", fields...)
	}
}

func recoveryMiddleware(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Error("Panic recovered",
					zap.Any("error", err),
					zap.String("path", c.Request.URL.Path),
					zap.String("method", c.Request.Method))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			}
		}()
		c.Next()
	}
}

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Writer.Header().Set("X-Request-ID", id)
		c.Next()
	}
}
