package pipeline

import (
	"context"

	"github.com/joseph-ayodele/certificate-verifier/internal/ocr"
)

// TextExtractor is stage 1: file -> text.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (ocr.ExtractionResult, error)
}

// Stage names used in logs and wrapped errors.
const (
	StageOCR     = "ocr"
	StageExtract = "extract"
	StageSummary = "summary"
	StageVerify  = "verify"
	StageStore   = "store"
)
