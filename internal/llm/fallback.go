package llm

import (
	"context"
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxSummaryLen caps every stored summary.
const MaxSummaryLen = 200

const (
	defaultCertificateType = "Certificate"
	noAISummary            = "Certificate processed successfully (AI features require API key)"
)

// First matching pattern wins per key.
var fallbackPatterns = []struct {
	key      string
	patterns []*regexp.Regexp
}{
	{KeyStudentName, []*regexp.Regexp{
		regexp.MustCompile(`(?i)student[ \t]+name[ \t]*[:\-]?[ \t]*([A-Za-z][A-Za-z. ]*[A-Za-z.])`),
		regexp.MustCompile(`(?i)candidate[ \t]+name[ \t]*[:\-]?[ \t]*([A-Za-z][A-Za-z. ]*[A-Za-z.])`),
		regexp.MustCompile(`(?i)\bname[ \t]*[:\-]?[ \t]*([A-Za-z][A-Za-z. ]*[A-Za-z.])`),
	}},
	{KeyEnrollmentNumber, []*regexp.Regexp{
		regexp.MustCompile(`(?i)enrol+(?:ment)?[ \t]*(?:number|no\.?)[ \t]*[:\-]?[ \t]*([A-Za-z0-9]+)`),
		regexp.MustCompile(`(?i)enrol+(?:ment)?[ \t]*[:\-][ \t]*([A-Za-z0-9]+)`),
	}},
	{KeyDegree, []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(B\.[ ]?Tech|M\.[ ]?Tech|B\.E\.|B\.Sc|M\.Sc|B\.A\.?|M\.A\.?)(?:[^A-Za-z]|$)`),
		regexp.MustCompile(`(?i)degree[ \t]*[:\-][ \t]*([A-Za-z][A-Za-z. ]*)`),
	}},
	{KeyUniversityName, []*regexp.Regexp{
		regexp.MustCompile(`(?i)university[ \t]+name[ \t]*[:\-][ \t]*([^\n]+)`),
		regexp.MustCompile(`(?im)^[ \t]*([A-Za-z.&,' ]*\buniversity\b[A-Za-z.&,' ]*)$`),
		regexp.MustCompile(`(?i)university[ \t]*:[ \t]*([^\n]+)`),
		regexp.MustCompile(`(?i)institution[ \t]*[:\-][ \t]*([^\n]+)`),
	}},
	{KeyCGPA, []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bcgpa[ \t]*[:\-]?[ \t]*([0-9]+(?:\.[0-9]+)?)`),
	}},
	{KeySGPA, []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bsgpa[ \t]*[:\-]?[ \t]*([0-9]+(?:\.[0-9]+)?)`),
	}},
	{KeyGrade, []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bgrade[ \t]*[:\-][ \t]*([0-9]+(?:\.[0-9]+)?|[A-F][+\-]?)`),
	}},
}

// Fallback is the pattern-matching engine used when no model is configured.
type Fallback struct {
	logger *slog.Logger
}

// NewFallback builds the offline engine.
func NewFallback(logger *slog.Logger) *Fallback {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fallback{logger: logger}
}

func (f *Fallback) Mode() Mode { return ModeFallback }

// ExtractFields applies the label patterns to ocrText. It never fails; on an
// internal fault it returns the all-null record with defaults applied.
func (f *Fallback) ExtractFields(_ context.Context, ocrText string) (Fields, []byte, error) {
	fields := FallbackFields(ocrText, f.logger)
	raw, _ := json.Marshal(fields)
	f.logger.Info("llm.fallback.extract.ok", "present", fields.Present(), "text_len", len(ocrText))
	return fields, raw, nil
}

// Summarize composes the summary from the extracted parts.
func (f *Fallback) Summarize(_ context.Context, fields Fields) (string, error) {
	return FallbackSummary(fields), nil
}

// FallbackFields extracts what the label patterns can find.
func FallbackFields(ocrText string, logger *slog.Logger) (out Fields) {
	defer func() {
		if r := recover(); r != nil {
			if logger != nil {
				logger.Error("llm.fallback.extract.panic", "panic", r)
			}
			out = withDefaults(NewFields())
		}
	}()

	raw := make(map[string]any, len(CanonicalKeys))
	for _, fp := range fallbackPatterns {
		for _, re := range fp.patterns {
			if m := re.FindStringSubmatch(ocrText); m != nil {
				raw[fp.key] = strings.TrimSpace(m[1])
				break
			}
		}
	}
	return withDefaults(ValidateFields(raw))
}

func withDefaults(f Fields) Fields {
	if f[KeyCertificateType] == nil {
		f[KeyCertificateType] = defaultCertificateType
	}
	if f[KeySubjects] == nil {
		f[KeySubjects] = []any{}
	}
	return f
}

// FallbackSummary joins name, degree and branch, university and CGPA with " - ".
func FallbackSummary(fields Fields) string {
	var parts []string
	if v := fields.String(KeyStudentName); v != "" {
		parts = append(parts, v)
	}
	if v := strings.TrimSpace(fields.String(KeyDegree) + " " + fields.String(KeyBranch)); v != "" {
		parts = append(parts, v)
	}
	if v := fields.String(KeyUniversityName); v != "" {
		parts = append(parts, "from "+v)
	}
	if v := fields.String(KeyCGPA); v != "" {
		parts = append(parts, "(CGPA: "+v+")")
	}
	if len(parts) == 0 {
		return noAISummary
	}
	return TruncateSummary(strings.Join(parts, " - "))
}

// TruncateSummary cuts s to MaxSummaryLen characters, ending in "..." when cut.
func TruncateSummary(s string) string {
	if utf8.RuneCountInString(s) <= MaxSummaryLen {
		return s
	}
	r := []rune(s)
	return string(r[:MaxSummaryLen-3]) + "..."
}
