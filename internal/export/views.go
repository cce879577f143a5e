package export

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/certificate-verifier/internal/llm"
	"github.com/joseph-ayodele/certificate-verifier/internal/repository"
	"github.com/joseph-ayodele/certificate-verifier/internal/verify"
)

// Missing is shown in place of null fields.
const Missing = "-"

// listingKeys is the reduced column set of listing rows.
var listingKeys = []string{
	llm.KeyStudentName, llm.KeyDegree, llm.KeyBranch, llm.KeyUniversityName,
	llm.KeyEnrollmentNumber, llm.KeySGPA, llm.KeyCGPA, llm.KeySemester, llm.KeyAcademicYear,
}

func valueOrMissing(f llm.Fields, key string) any {
	if f == nil || f[key] == nil {
		return Missing
	}
	return f[key]
}

// Tabular renders every canonical field for display. Subjects is always a list.
func Tabular(f llm.Fields) map[string]any {
	out := make(map[string]any, len(llm.CanonicalKeys))
	for _, k := range llm.CanonicalKeys {
		if k == llm.KeySubjects {
			continue
		}
		out[k] = valueOrMissing(f, k)
	}
	out[llm.KeySubjects] = f.Subjects()
	return out
}

// ListingTabular renders the reduced set used by listings.
func ListingTabular(f llm.Fields) map[string]any {
	out := make(map[string]any, len(listingKeys))
	for _, k := range listingKeys {
		out[k] = valueOrMissing(f, k)
	}
	return out
}

// Document is the downloadable JSON form of one certificate.
type Document struct {
	CertificateID    uuid.UUID      `json:"certificate_id"`
	OriginalFilename string         `json:"original_filename"`
	CreatedAt        time.Time      `json:"created_at"`
	Status           string         `json:"status"`
	Summary          string         `json:"summary"`
	ExtractedFields  map[string]any `json:"extracted_fields"`
	Verification     *verify.Result `json:"verification"`
}

// NewDocument assembles the export document; ext may be nil for a certificate
// that has no fields yet.
func NewDocument(cert *repository.Certificate, ext *repository.Extraction) Document {
	doc := Document{
		CertificateID:    cert.ID,
		OriginalFilename: cert.OriginalFilename,
		CreatedAt:        cert.CreatedAt,
		Status:           string(cert.Status),
		ExtractedFields:  map[string]any{},
	}
	if ext == nil {
		return doc
	}
	doc.Summary = ext.Summary
	for _, k := range llm.CanonicalKeys {
		if v := ext.Fields[k]; v != nil {
			doc.ExtractedFields[k] = v
		}
	}
	v := ext.Verification
	doc.Verification = &v
	return doc
}
