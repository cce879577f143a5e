// Package app builds the certificate pipeline from configuration. Both the
// HTTP daemon and the batch tool start from here.
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/certificate-verifier/internal/common"
	"github.com/joseph-ayodele/certificate-verifier/internal/export"
	"github.com/joseph-ayodele/certificate-verifier/internal/ingest"
	"github.com/joseph-ayodele/certificate-verifier/internal/llm"
	"github.com/joseph-ayodele/certificate-verifier/internal/llm/openai"
	"github.com/joseph-ayodele/certificate-verifier/internal/ocr"
	"github.com/joseph-ayodele/certificate-verifier/internal/pipeline"
	"github.com/joseph-ayodele/certificate-verifier/internal/repository"
	"github.com/joseph-ayodele/certificate-verifier/internal/verify"
)

// App holds the wired collaborators.
type App struct {
	Config    *common.Config
	Logger    *slog.Logger
	DB        *repository.DB
	Certs     repository.CertificateRepository
	Fields    repository.FieldRepository
	Uploads   *ingest.FSStore
	OCR       *ocr.Extractor
	Engine    llm.Engine
	Verifier  *verify.Client
	Processor *pipeline.Processor
	Exports   *export.Service
}

func DatabaseConfig(c common.DatabaseConfig) repository.Config {
	return repository.Config{
		Driver:           c.Driver,
		DSN:              c.DSN,
		MaxConns:         c.MaxConns,
		MinConns:         c.MinConns,
		MaxConnLifetime:  c.MaxConnLifetime,
		MaxConnIdleTime:  c.MaxConnIdleTime,
		DialTimeout:      c.DialTimeout,
		StatementTimeout: c.StatementTimeout,
	}
}

func OCRConfig(c common.OCRConfig) ocr.Config {
	return ocr.Config{
		TesseractLang:       c.Lang,
		DPI:                 c.DPI,
		TessdataDir:         c.TessdataDir,
		EnableTSVConfidence: c.TSVConfidence,
	}
}

func LLMConfig(c common.LLMConfig) openai.Config {
	return openai.Config{
		APIKey:      c.APIKey,
		BaseURL:     c.BaseURL,
		Model:       c.Model,
		Temperature: c.Temperature,
		Timeout:     c.Timeout,
	}
}

// OpenDB opens the configured database, pings it and ensures the schema.
func OpenDB(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*repository.DB, error) {
	db, err := repository.Open(ctx, DatabaseConfig(cfg), logger)
	if err != nil {
		return nil, err
	}
	if err := db.HealthCheck(ctx, 5*time.Second); err != nil {
		db.Close()
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// New wires everything the pipeline needs. Close releases the database.
func New(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := OpenDB(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Logger: logger, DB: db}
	a.Certs = repository.NewCertificateRepository(db, logger)
	a.Fields = repository.NewFieldRepository(db, logger)
	a.Uploads = ingest.NewFSStore(cfg.Storage.UploadDir, cfg.Storage.MaxFileSize, logger)
	a.OCR = ocr.NewExtractor(OCRConfig(cfg.OCR), logger)
	a.Engine = openai.SelectEngine(LLMConfig(cfg.LLM), cfg.LLM.FallbackEnabled, logger)
	a.Verifier = verify.NewClient(verify.Config{
		BaseURL: cfg.Registry.BaseURL,
		Timeout: cfg.Registry.Timeout,
	}, logger)
	a.Processor = pipeline.NewProcessor(logger, a.OCR, a.Engine, a.Verifier, a.Certs, a.Fields, cfg.OCR.Timeout)
	a.Exports = export.NewService(a.Certs, a.Fields, logger)

	logger.Info("app.ready",
		"db_driver", cfg.Database.Driver,
		"extraction_mode", a.Engine.Mode(),
		"ai_configured", cfg.LLM.AIConfigured(),
		"registry", cfg.Registry.BaseURL,
		"upload_dir", cfg.Storage.UploadDir,
	)
	return a, nil
}

func (a *App) Close() {
	a.DB.Close()
}
