package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Chapsvision-dev/filestore-backup-manager/internal/backup"
	"github.com/Chapsvision-dev/filestore-backup-manager/internal/logx"
	"github.com/Chapsvision-dev/filestore-backup-manager/internal/version"
)

// Lifecycle is what the trigger needs from the backup manager.
type Lifecycle interface {
	Create(ctx context.Context, req backup.CreateRequest) (string, error)
	List(ctx context.Context, instance string) ([]backup.Record, error)
	DeleteExpired(ctx context.Context, retentionDays int) (backup.SweepResult, error)
	Get(ctx context.Context, name string) (backup.Record, error)
	Provider() string
}

// Server is the HTTP trigger in front of the lifecycle manager.
type Server struct {
	mgr    Lifecycle
	router *gin.Engine
}

// New builds the gin engine and its routes.
func New(mgr Lifecycle) *Server {
	r := gin.New()
	r.Use(gin.Recovery(), logx.RequestID(), logx.AccessLog(), gzip.Gzip(gzip.DefaultCompression))

	s := &Server{mgr: mgr, router: r}
	r.Any("/", s.trigger)
	r.GET("/backups/*name", s.getBackup)
	r.GET("/healthz", s.healthz)
	// Any only covers the standard methods; anything else on / lands here.
	r.NoRoute(s.noRoute)
	return s
}

// Handler exposes the router, mainly for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	log.Info().
		Str("action", "http_listen").
		Str("addr", addr).
		Str("provider", s.mgr.Provider()).
		Str("version", version.Version).
		Msg("backup trigger listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		log.Info().Str("action", "http_shutdown").Msg("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) noRoute(c *gin.Context) {
	if c.Request.URL.Path == "/" {
		s.trigger(c)
		return
	}
	c.String(http.StatusNotFound, "404 page not found")
}

func (s *Server) healthz(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}
