package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/certificate-verifier/constants"
	"github.com/joseph-ayodele/certificate-verifier/internal/common"
	"github.com/joseph-ayodele/certificate-verifier/internal/ingest"
	"github.com/joseph-ayodele/certificate-verifier/internal/llm"
	"github.com/joseph-ayodele/certificate-verifier/internal/ocr"
	"github.com/joseph-ayodele/certificate-verifier/internal/repository"
	"github.com/joseph-ayodele/certificate-verifier/internal/verify"
)

// Outcome is what one pipeline run derived from a file.
type Outcome struct {
	OCR        ocr.ExtractionResult
	Extraction repository.Extraction
	Mode       llm.Mode
	RawJSON    []byte
}

// Result is a persisted run.
type Result struct {
	Certificate *repository.Certificate
	Outcome
}

// Processor runs OCR, field extraction, summary and verification, then
// persists everything for one certificate in a single transaction.
type Processor struct {
	logger     *slog.Logger
	ocr        TextExtractor
	engine     llm.Engine
	verifier   verify.Verifier
	certs      repository.CertificateRepository
	fields     repository.FieldRepository
	ocrTimeout time.Duration
}

func NewProcessor(
	logger *slog.Logger,
	textExtractor TextExtractor,
	engine llm.Engine,
	verifier verify.Verifier,
	certs repository.CertificateRepository,
	fields repository.FieldRepository,
	ocrTimeout time.Duration,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if ocrTimeout <= 0 {
		ocrTimeout = 2 * time.Minute
	}
	return &Processor{
		logger:     logger,
		ocr:        textExtractor,
		engine:     engine,
		verifier:   verifier,
		certs:      certs,
		fields:     fields,
		ocrTimeout: ocrTimeout,
	}
}

// Mode reports which engine extracts fields.
func (p *Processor) Mode() llm.Mode { return p.engine.Mode() }

func (p *Processor) fail(log *slog.Logger, stage string, err error) error {
	log.Error("pipeline."+stage+".failed", "stage", stage, "error", err, "code", common.CodeOf(err))
	return common.WrapError(err, stage)
}

// Analyze runs every stage except persistence.
func (p *Processor) Analyze(ctx context.Context, path string) (Outcome, error) {
	log := common.LoggerFrom(ctx, p.logger).With("path", path)
	var out Outcome

	ocrCtx, cancel := context.WithTimeout(ctx, p.ocrTimeout)
	res, err := p.ocr.Extract(ocrCtx, path)
	cancel()
	if err != nil {
		return out, p.fail(log, StageOCR, err)
	}
	out.OCR = res
	log.Info("pipeline.ocr.ok", "method", res.Method, "pages", res.Pages,
		"bytes", len(res.Text), "confidence", res.Confidence)

	fields, raw, err := p.engine.ExtractFields(ctx, res.Text)
	if err != nil {
		return out, p.fail(log, StageExtract, err)
	}
	out.Mode = p.engine.Mode()
	out.RawJSON = raw
	out.Extraction.Fields = fields
	log.Info("pipeline.extract.ok", "mode", out.Mode, "fields", fields.Present())

	summary, err := p.engine.Summarize(ctx, fields)
	if err != nil {
		return out, p.fail(log, StageSummary, err)
	}
	out.Extraction.Summary = summary
	log.Info("pipeline.summary.ok", "chars", len(summary))

	out.Extraction.Verification = p.verifier.Verify(ctx, fields)
	v := out.Extraction.Verification
	log.Info("pipeline.verify.done", "attempted", v.VerificationAttempted,
		"verified", v.Verified, "confidence", v.ConfidenceScore, "message", v.Message)
	return out, nil
}

// Process runs the pipeline over a stored upload and commits the certificate
// with all of its fields. Nothing is written when any stage fails.
func (p *Processor) Process(ctx context.Context, st ingest.Stored) (*Result, error) {
	start := time.Now()
	log := common.LoggerFrom(ctx, p.logger).With("filename", st.OriginalFilename)

	out, err := p.Analyze(ctx, st.Path)
	if err != nil {
		return nil, err
	}

	cert := &repository.Certificate{
		ImagePath:        st.Path,
		OriginalFilename: st.OriginalFilename,
		FileType:         st.FileType,
		ContentHash:      st.HashHex,
	}
	cert, err = p.certs.CreateWithExtraction(ctx, cert, out.Extraction)
	if err != nil {
		return nil, p.fail(log, StageStore, err)
	}
	log.Info("pipeline.store.ok", "certificate_id", cert.ID, "elapsed_ms", time.Since(start).Milliseconds())
	return &Result{Certificate: cert, Outcome: out}, nil
}

// Reprocess re-runs the full pipeline over an existing certificate's file and
// replaces all of its fields.
func (p *Processor) Reprocess(ctx context.Context, certID uuid.UUID) (*Result, error) {
	log := common.LoggerFrom(ctx, p.logger).With("certificate_id", certID)
	cert, err := p.certs.Get(ctx, certID)
	if err != nil {
		return nil, err
	}
	if err := p.certs.UpdateStatus(ctx, certID, constants.StatusProcessing); err != nil {
		return nil, err
	}

	out, err := p.Analyze(ctx, cert.ImagePath)
	if err == nil {
		err = p.fields.StoreExtraction(ctx, certID, out.Extraction)
		if err != nil {
			err = p.fail(log, StageStore, err)
		}
	}
	if err != nil {
		if uerr := p.certs.UpdateStatus(context.WithoutCancel(ctx), certID, constants.StatusFailed); uerr != nil {
			log.Warn("pipeline.reprocess.status_failed", "error", uerr)
		}
		return nil, err
	}

	cert.Status = constants.StatusCompleted
	log.Info("pipeline.reprocess.ok", "fields", out.Extraction.Fields.Present())
	return &Result{Certificate: cert, Outcome: out}, nil
}

// Reverify re-runs verification on the stored extracted fields and replaces
// only the verification field.
func (p *Processor) Reverify(ctx context.Context, certID uuid.UUID) (verify.Result, error) {
	log := common.LoggerFrom(ctx, p.logger).With("certificate_id", certID)
	if _, err := p.certs.Get(ctx, certID); err != nil {
		return verify.Result{}, err
	}
	fields, err := p.fields.Extracted(ctx, certID)
	if err != nil {
		return verify.Result{}, err
	}

	res := p.verifier.Verify(ctx, fields)
	if err := p.fields.UpsertVerification(ctx, certID, res); err != nil {
		return verify.Result{}, p.fail(log, StageStore, err)
	}
	log.Info("pipeline.reverify.ok", "attempted", res.VerificationAttempted,
		"verified", res.Verified, "confidence", res.ConfidenceScore)
	return res, nil
}
