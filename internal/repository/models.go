package repository

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/certificate-verifier/constants"
	"github.com/joseph-ayodele/certificate-verifier/internal/llm"
	"github.com/joseph-ayodele/certificate-verifier/internal/verify"
)

// Certificate is one uploaded document.
type Certificate struct {
	ID               uuid.UUID                   `json:"id"`
	ImagePath        string                      `json:"image_path"`
	OriginalFilename string                      `json:"original_filename"`
	FileType         string                      `json:"file_type"`
	ContentHash      string                      `json:"content_hash"`
	Status           constants.CertificateStatus `json:"status"`
	CreatedAt        time.Time                   `json:"created_at"`
}

// Field is one stored key/value of a certificate.
type Field struct {
	ID            uuid.UUID           `json:"id"`
	CertificateID uuid.UUID           `json:"certificate_id"`
	Key           string              `json:"key"`
	Value         string              `json:"value"`
	Confidence    float64             `json:"confidence"`
	Kind          constants.FieldKind `json:"kind"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// Extraction is everything the pipeline derives from one certificate.
type Extraction struct {
	Fields       llm.Fields
	Summary      string
	Verification verify.Result
}

// CertificateSummary is a listing row.
type CertificateSummary struct {
	Certificate
	Summary    string
	FieldCount int
}
