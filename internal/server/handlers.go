package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/certificate-verifier/internal/async"
	"github.com/joseph-ayodele/certificate-verifier/internal/common"
	"github.com/joseph-ayodele/certificate-verifier/internal/export"
	"github.com/joseph-ayodele/certificate-verifier/internal/ingest"
	"github.com/joseph-ayodele/certificate-verifier/internal/llm"
	"github.com/joseph-ayodele/certificate-verifier/internal/pipeline"
	"github.com/joseph-ayodele/certificate-verifier/internal/repository"
	"github.com/joseph-ayodele/certificate-verifier/internal/verify"
)

const (
	defaultLimit = 20
	maxLimit     = 100
	noSummary    = "No summary available"
	version      = "1.0.0"
)

// Pipeline is the part of pipeline.Processor the HTTP layer drives.
type Pipeline interface {
	Process(ctx context.Context, st ingest.Stored) (*pipeline.Result, error)
	Reverify(ctx context.Context, certID uuid.UUID) (verify.Result, error)
	Mode() llm.Mode
}

// Enqueuer accepts background jobs.
type Enqueuer interface {
	Enqueue(ctx context.Context, job async.Job) error
	EnqueueAll(ctx context.Context, ids []uuid.UUID, kind async.Kind) (int, error)
}

// Pinger reports database health.
type Pinger interface {
	HealthCheck(ctx context.Context, timeout time.Duration) error
}

// Reachability reports whether the registry answers.
type Reachability interface {
	Reachable(ctx context.Context) bool
}

// Deps are the collaborators built in main.
type Deps struct {
	Pipeline     Pipeline
	Uploads      ingest.Saver
	Certs        repository.CertificateRepository
	Fields       repository.FieldRepository
	Exports      *export.Service
	Queue        Enqueuer
	DB           Pinger
	Registry     Reachability
	AIConfigured bool
	CORSOrigins  []string
	Logger       *slog.Logger
}

// Handler serves the certificate API.
type Handler struct {
	Deps
}

func NewHandler(d Deps) *Handler {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &Handler{Deps: d}
}

func (h *Handler) certificateID(c *gin.Context) (uuid.UUID, bool) {
	id, err := common.ParseUUID("id", c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "invalid certificate id")
		return uuid.Nil, false
	}
	return id, true
}

// Upload stores the multipart file, runs the pipeline and returns the result.
func (h *Handler) Upload(c *gin.Context) {
	ctx := c.Request.Context()
	log := common.LoggerFrom(ctx, h.Logger)

	fh, err := c.FormFile("file")
	if err != nil {
		RespondBadRequest(c, "No file provided")
		return
	}
	if fh.Filename == "" {
		RespondBadRequest(c, "No file selected")
		return
	}
	f, err := fh.Open()
	if err != nil {
		RespondBadRequest(c, "could not read uploaded file")
		return
	}
	defer f.Close()

	st, err := h.Uploads.Save(ctx, fh.Filename, f)
	if err != nil {
		log.Warn("upload.rejected", "filename", fh.Filename, "error", err)
		RespondError(c, err)
		return
	}

	res, err := h.Pipeline.Process(ctx, st)
	if err != nil {
		if rmErr := os.Remove(st.Path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			log.Warn("upload.cleanup_failed", "path", st.Path, "error", rmErr)
		}
		RespondError(c, err)
		return
	}

	ext := res.Extraction
	c.JSON(http.StatusCreated, gin.H{
		"id":               res.Certificate.ID,
		"file_type":        res.Certificate.FileType,
		"summary":          ext.Summary,
		"tabular_data":     export.Tabular(ext.Fields),
		"verification":     ext.Verification,
		"confidence_score": ext.Verification.ConfidenceScore,
	})
}

func pageParams(c *gin.Context) (limit, offset int, ok bool) {
	limit, offset = defaultLimit, 0
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			RespondBadRequest(c, "limit must be a positive integer")
			return 0, 0, false
		}
		limit = min(n, maxLimit)
	}
	if s := c.Query("offset"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			RespondBadRequest(c, "offset must be a non-negative integer")
			return 0, 0, false
		}
		offset = n
	}
	return limit, offset, true
}

// listing loads one page plus each certificate's stored fields. A certificate
// whose rows cannot be read is listed without them.
func (h *Handler) listing(c *gin.Context, row func(*repository.Certificate, llm.Fields, string) gin.H) {
	ctx := c.Request.Context()
	limit, offset, ok := pageParams(c)
	if !ok {
		return
	}
	certs, total, err := h.Certs.List(ctx, limit, offset)
	if err != nil {
		RespondError(c, err)
		return
	}

	items := make([]gin.H, 0, len(certs))
	for _, cert := range certs {
		fields, err := h.Fields.Extracted(ctx, cert.ID)
		if err != nil {
			common.LoggerFrom(ctx, h.Logger).Warn("certificates.list.fields_failed",
				"certificate_id", cert.ID, "error", err)
			fields = llm.NewFields()
		}
		summary, err := h.Fields.Summary(ctx, cert.ID)
		if err != nil {
			common.LoggerFrom(ctx, h.Logger).Warn("certificates.list.summary_failed",
				"certificate_id", cert.ID, "error", err)
		}
		items = append(items, row(cert, fields, summary))
	}
	c.JSON(http.StatusOK, gin.H{
		"certificates": items,
		"count":        len(items),
		"total":        total,
		"limit":        limit,
		"offset":       offset,
	})
}

func (h *Handler) List(c *gin.Context) {
	h.listing(c, func(cert *repository.Certificate, fields llm.Fields, summary string) gin.H {
		return gin.H{
			"id":                cert.ID,
			"original_filename": cert.OriginalFilename,
			"file_type":         cert.FileType,
			"status":            cert.Status,
			"created_at":        cert.CreatedAt,
			"summary":           summary,
			"tabular_data":      export.ListingTabular(fields),
		}
	})
}

// MyCertificates is the listing with short summaries.
func (h *Handler) MyCertificates(c *gin.Context) {
	h.listing(c, func(cert *repository.Certificate, fields llm.Fields, summary string) gin.H {
		if summary == "" {
			summary = noSummary
		}
		return gin.H{
			"id":                cert.ID,
			"original_filename": cert.OriginalFilename,
			"file_type":         cert.FileType,
			"status":            cert.Status,
			"created_at":        cert.CreatedAt,
			"summary":           llm.TruncateSummary(summary),
			"tabular_data":      export.ListingTabular(fields),
		}
	})
}

func (h *Handler) Get(c *gin.Context) {
	id, ok := h.certificateID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	cert, err := h.Certs.Get(ctx, id)
	if err != nil {
		RespondError(c, err)
		return
	}
	count, err := h.Fields.Count(ctx, id)
	if err != nil {
		RespondError(c, err)
		return
	}

	body := gin.H{
		"id":                cert.ID,
		"status":            cert.Status,
		"created_at":        cert.CreatedAt,
		"original_filename": cert.OriginalFilename,
		"file_type":         cert.FileType,
		"field_count":       count,
		"summary":           "",
		"tabular_data":      export.Tabular(llm.NewFields()),
		"verification":      nil,
	}
	ext, err := h.Fields.Load(ctx, id)
	switch {
	case err == nil:
		body["summary"] = ext.Summary
		body["tabular_data"] = export.Tabular(ext.Fields)
		body["verification"] = ext.Verification
	case errors.Is(err, common.ErrNotFound):
	default:
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, body)
}

func (h *Handler) storedFile(c *gin.Context) (*repository.Certificate, bool) {
	id, ok := h.certificateID(c)
	if !ok {
		return nil, false
	}
	cert, err := h.Certs.Get(c.Request.Context(), id)
	if err != nil {
		RespondError(c, err)
		return nil, false
	}
	if _, err := os.Stat(cert.ImagePath); err != nil {
		RespondError(c, common.NotFoundErrorf("file for certificate %s", id))
		return nil, false
	}
	return cert, true
}

// Image serves the original upload inline.
func (h *Handler) Image(c *gin.Context) {
	cert, ok := h.storedFile(c)
	if !ok {
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", cert.OriginalFilename))
	c.File(cert.ImagePath)
}

func (h *Handler) Download(c *gin.Context) {
	cert, ok := h.storedFile(c)
	if !ok {
		return
	}
	c.FileAttachment(cert.ImagePath, cert.OriginalFilename)
}

// ExportJSON returns one certificate's fields as a JSON attachment.
func (h *Handler) ExportJSON(c *gin.Context) {
	id, ok := h.certificateID(c)
	if !ok {
		return
	}
	doc, err := h.Exports.Document(c.Request.Context(), id)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=certificate_%s_data.json", id))
	c.JSON(http.StatusOK, doc)
}

func (h *Handler) ExportXLSX(c *gin.Context) {
	data, err := h.Exports.CertificatesXLSX(c.Request.Context())
	if err != nil {
		RespondError(c, err)
		return
	}
	name := "certificates_" + time.Now().UTC().Format("20060102_150405") + ".xlsx"
	c.Header("Content-Disposition", "attachment; filename="+name)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

// Reverify re-checks one certificate against the registry synchronously.
func (h *Handler) Reverify(c *gin.Context) {
	id, ok := h.certificateID(c)
	if !ok {
		return
	}
	res, err := h.Pipeline.Reverify(c.Request.Context(), id)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"message":      "Certificate re-verified successfully",
		"verification": res,
	})
}

func (h *Handler) Reprocess(c *gin.Context) {
	id, ok := h.certificateID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := h.Certs.Get(ctx, id); err != nil {
		RespondError(c, err)
		return
	}
	job := async.Job{CertificateID: id, Kind: async.KindReprocess, RequestID: common.RequestIDFromContext(ctx)}
	if err := h.Queue.Enqueue(ctx, job); err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"success": true, "id": id, "status": "queued"})
}

// ReverifyAll queues re-verification of every stored certificate.
func (h *Handler) ReverifyAll(c *gin.Context) {
	ctx := c.Request.Context()
	ids, err := h.Certs.ListIDs(ctx)
	if err != nil {
		RespondError(c, err)
		return
	}
	n, err := h.Queue.EnqueueAll(ctx, ids, async.KindReverify)
	if err != nil {
		common.LoggerFrom(ctx, h.Logger).Warn("certificates.reverify_all.partial", "queued", n, "error", err)
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"success": true, "queued": n})
}

func (h *Handler) Delete(c *gin.Context) {
	id, ok := h.certificateID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	cert, err := h.Certs.Get(ctx, id)
	if err != nil {
		RespondError(c, err)
		return
	}
	if err := h.Certs.Delete(ctx, id); err != nil {
		RespondError(c, err)
		return
	}
	if err := os.Remove(cert.ImagePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		common.LoggerFrom(ctx, h.Logger).Warn("certificates.delete.file_failed", "path", cert.ImagePath, "error", err)
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Certificate deleted"})
}

func (h *Handler) Health(c *gin.Context) {
	ctx := c.Request.Context()
	status := http.StatusOK
	dbStatus := "ok"
	if err := h.DB.HealthCheck(ctx, 2*time.Second); err != nil {
		status = http.StatusServiceUnavailable
		dbStatus = "unavailable"
	}
	aiStatus := "missing"
	if h.AIConfigured {
		aiStatus = "configured"
	}
	registry := false
	if h.Registry != nil {
		registry = h.Registry.Reachable(ctx)
	}
	overall := "healthy"
	if status != http.StatusOK {
		overall = "unhealthy"
	}
	c.JSON(status, gin.H{
		"status":             overall,
		"service":            "certificate verification",
		"version":            version,
		"database":           dbStatus,
		"ai_status":          aiStatus,
		"extraction_mode":    h.Pipeline.Mode(),
		"registry_reachable": registry,
		"features": []string{
			"ocr", "field_extraction", "ai_summary", "university_verification", "export",
		},
	})
}
