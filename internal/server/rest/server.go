// Package rest exposes the photo service over HTTP using gin.
package rest

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/biterate/internal/logging"
	"github.com/dmitrijs2005/biterate/internal/server/models"
	"github.com/dmitrijs2005/biterate/internal/server/services"
)

const (
	defaultMaxUploadBytes = 32 << 20
	shutdownTimeout       = 10 * time.Second
)

// Photos is the service surface the handlers depend on.
type Photos interface {
	Upload(ctx context.Context, in services.UploadInput) (*models.Photo, error)
	Retrieve(ctx context.Context, id string) (*models.Photo, io.ReadCloser, error)
	Lookup(ctx context.Context, id string) (*models.Photo, error)
	DeleteBlob(ctx context.Context, key string) error
	DeletePhoto(ctx context.Context, id string) error
}

// Options tunes the HTTP surface. Zero values are valid.
type Options struct {
	// MaxUploadBytes caps the upload request body.
	MaxUploadBytes int64
	// SecretKey enables the bearer guard on upload and delete routes.
	SecretKey string
	// AllowedOrigins enables CORS for the listed origins; "*" allows all.
	AllowedOrigins []string
	// Metrics is served on /metrics when set.
	Metrics http.Handler
}

type Server struct {
	address string
	engine  *gin.Engine
	logger  logging.Logger
}

func NewServer(address string, photos Photos, opts Options, l logging.Logger) *Server {
	if l == nil {
		l = logging.Nop()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	logger := l.With("module", "http_server")

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(logger))
	if len(opts.AllowedOrigins) > 0 {
		engine.Use(corsMiddleware(opts.AllowedOrigins))
	}

	h := &handlers{photos: photos, logger: logger, maxUploadBytes: opts.MaxUploadBytes}
	guard := bearerGuard([]byte(opts.SecretKey))

	engine.GET("/healthz", h.health)
	if opts.Metrics != nil {
		engine.GET("/metrics", gin.WrapH(opts.Metrics))
	}

	api := engine.Group(models.PhotoRoutePrefix)
	{
		api.POST("/upload", guard, h.upload)
		api.GET("/view/:id", h.view)
		api.GET("/download/:id", h.download)
		api.GET("/:id", h.info)
		api.DELETE("/delete/*key", guard, h.deleteBlob)
		api.DELETE("/:id", guard, h.deletePhoto)
	}

	return &Server{address: address, engine: engine, logger: logger}
}

// Handler returns the routed gin engine.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(context.Background(), "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Disposition", "Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 1 && origins[0] == "*" {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}
