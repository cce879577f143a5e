package ocr

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/certificate-verifier/constants"
	"github.com/joseph-ayodele/certificate-verifier/internal/common"
)

type Config struct {
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	TesseractLang string // default "eng"
	DPI           int    // rasterization DPI for scanned PDFs, default 300
	MaxPages      int    // 0 = no limit

	TessdataDir         string
	EnableTSVConfidence bool

	PSM int // e.g., 6 is good for uniform block of text
	OEM int // 1 = LSTM; leave 0 to use default
}

type ExtractionResult struct {
	Text       string
	Pages      int
	SourceType string // constants.PDF | constants.IMAGE
	Method     string // "pdf-text" | "pdftotext" | "pdf-ocr" | "image-ocr"
	Language   string
	Duration   time.Duration
	Warnings   []string
	Confidence float32
}

// Methods recorded on ExtractionResult.
const (
	MethodPDFText   = "pdf-text"
	MethodPdftotext = "pdftotext"
	MethodPDFOCR    = "pdf-ocr"
	MethodImageOCR  = "image-ocr"
)

type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	return &Extractor{cfg: cfg, runner: execRunner{logger: logger}, logger: logger}
}

// WithRunner swaps the command runner (tests use a fake).
func (e *Extractor) WithRunner(r Runner) *Extractor {
	if r != nil {
		e.runner = r
	}
	return e
}

// Extract picks a strategy based on file extension and guarantees non-empty text.
func (e *Extractor) Extract(ctx context.Context, path string) (ExtractionResult, error) {
	start := time.Now()
	ext := constants.NormalizeExt(filepath.Ext(path))
	e.logger.Debug("starting ocr extraction", "path", path, "ext", ext)

	format := constants.MapExtToFormat(ext)
	if format == "" {
		e.logger.Error("unsupported ocr extension", "extension", ext)
		return ExtractionResult{}, common.UnsupportedFormatError(ext)
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ExtractionResult{}, common.NotFoundErrorf("file %q not found", path)
		}
		return ExtractionResult{}, fmt.Errorf("stat %s: %w", path, err)
	}

	var (
		res ExtractionResult
		err error
	)
	switch format {
	case constants.PDF:
		res, err = e.extractPDF(ctx, path)
	default:
		res, err = e.extractImage(ctx, path)
	}
	res.Duration = time.Since(start)
	if err != nil {
		return res, err
	}
	if strings.TrimSpace(res.Text) == "" {
		e.logger.Warn("ocr produced no text", "path", path, "method", res.Method, "warnings", res.Warnings)
		return res, common.NoTextFoundError(path)
	}

	e.logger.Info("ocr.extract.ok",
		"path", path,
		"method", res.Method,
		"pages", res.Pages,
		"bytes", len(res.Text),
		"confidence", res.Confidence,
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}
