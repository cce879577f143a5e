package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/certificate-verifier/internal/server/middleware"
)

// NewRouter wires the certificate API.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(h.Logger, "http.request"))
	r.Use(middleware.CORS(h.CORSOrigins))
	r.MaxMultipartMemory = 8 << 20

	api := r.Group("/api")
	api.GET("/health", h.Health)

	certs := api.Group("/certificates")
	{
		certs.POST("/upload", h.Upload)
		certs.GET("", h.List)
		certs.GET("/my-certificates", h.MyCertificates)
		certs.GET("/export.xlsx", h.ExportXLSX)
		certs.POST("/reverify", h.ReverifyAll)
		certs.GET("/:id", h.Get)
		certs.GET("/:id/image", h.Image)
		certs.GET("/:id/download", h.Download)
		certs.GET("/:id/export", h.ExportJSON)
		certs.POST("/:id/reverify", h.Reverify)
		certs.POST("/:id/reprocess", h.Reprocess)
		certs.DELETE("/:id", h.Delete)
	}
	return r
}

// Serve runs srv until ctx is cancelled, then shuts it down within grace.
func Serve(ctx context.Context, srv *http.Server, grace time.Duration, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http.listen", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("http.shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
