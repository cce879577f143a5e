package constants

// FieldKind tags a certificate field row.
type FieldKind string

const (
	FieldKindExtracted    FieldKind = "extracted"
	FieldKindSummary      FieldKind = "ai_summary"
	FieldKindVerification FieldKind = "verification"
)

// Fixed keys for the single-per-certificate kinds.
const (
	SummaryFieldKey      = "ai_summary"
	VerificationFieldKey = "verification_result"
)

// Confidence recorded on stored fields.
const (
	ExtractedFieldConfidence = 0.9
	SummaryFieldConfidence   = 1.0
)

// KeyForKind returns the fixed key of a singleton kind, or "" for extracted.
func KeyForKind(kind FieldKind) string {
	switch kind {
	case FieldKindSummary:
		return SummaryFieldKey
	case FieldKindVerification:
		return VerificationFieldKey
	default:
		return ""
	}
}
