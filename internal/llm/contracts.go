package llm

import "context"

// Mode names which engine produced the fields.
type Mode string

const (
	ModeAI       Mode = "ai"
	ModeFallback Mode = "fallback"
)

// FieldExtractor turns OCR text into the canonical certificate field set.
// Implementations must return fields that went through ValidateFields.
type FieldExtractor interface {
	ExtractFields(ctx context.Context, ocrText string) (Fields, []byte /*rawJSON*/, error)
}

// Summarizer produces a single-line synopsis of validated fields.
type Summarizer interface {
	Summarize(ctx context.Context, fields Fields) (string, error)
}

// Engine is both halves of the AI stage.
type Engine interface {
	FieldExtractor
	Summarizer
	Mode() Mode
}
