package registry

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/certificate-verifier/internal/common"
	"github.com/joseph-ayodele/certificate-verifier/internal/server/middleware"
	"github.com/joseph-ayodele/certificate-verifier/internal/verify"
)

// Handler serves the registry HTTP API.
type Handler struct {
	store  *Store
	logger *slog.Logger
}

func NewHandler(store *Store, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{store: store, logger: logger}
}

// NewRouter wires the registry routes.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(h.logger, "registry.http.request"))
	r.Use(middleware.CORS([]string{"*"}))

	r.GET("/health", h.Health)
	api := r.Group("/api")
	{
		api.POST("/verify", h.Verify)
		api.GET("/certificates", h.List)
		api.POST("/certificates", h.Add)
		api.GET("/certificates/:enrollment", h.ByEnrollment)
		api.GET("/search", h.Search)
		api.GET("/stats", h.Stats)
	}
	return r
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "university registry",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) Verify(c *gin.Context) {
	var q verify.Query
	if err := c.ShouldBindJSON(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "No data provided"})
		return
	}
	q.StudentName = strings.TrimSpace(q.StudentName)
	q.EnrollmentNumber = strings.TrimSpace(q.EnrollmentNumber)
	if q.StudentName == "" || q.EnrollmentNumber == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "student_name and enrollment_number are required"})
		return
	}
	c.JSON(http.StatusOK, h.store.Verify(q))
}

func (h *Handler) List(c *gin.Context) {
	recs, meta := h.store.List()
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"certificates": recs,
		"total":        len(recs),
		"metadata":     meta,
	})
}

func (h *Handler) Add(c *gin.Context) {
	var req AddRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "No data provided"})
		return
	}
	rec, err := h.store.Add(req)
	switch {
	case errors.Is(err, common.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	case errors.Is(err, ErrDuplicate):
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": err.Error()})
		return
	case err != nil:
		h.logger.Error("registry.add.failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to save certificate to database"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success":     true,
		"message":     "Certificate added successfully",
		"certificate": rec,
	})
}

func (h *Handler) ByEnrollment(c *gin.Context) {
	enrollment := c.Param("enrollment")
	recs := h.store.ByEnrollment(enrollment)
	if len(recs) == 0 {
		c.JSON(http.StatusNotFound, gin.H{
			"success":           false,
			"found":             false,
			"message":           "No certificates found for this enrollment number",
			"enrollment_number": enrollment,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"found":        true,
		"certificates": recs,
		"total":        len(recs),
	})
}

func (h *Handler) Search(c *gin.Context) {
	q, branch, year := c.Query("q"), c.Query("branch"), c.Query("year")
	results := h.store.Search(q, branch, year)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"results": results,
		"total":   len(results),
		"search_params": gin.H{
			"query":  strings.ToLower(q),
			"branch": strings.ToLower(branch),
			"year":   year,
		},
	})
}

func (h *Handler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "statistics": h.store.Stats()})
}
