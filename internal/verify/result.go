package verify

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/joseph-ayodele/certificate-verifier/internal/common"
	"github.com/joseph-ayodele/certificate-verifier/internal/llm"
)

// Student is a registry record as returned with a match.
type Student struct {
	StudentName       string `json:"student_name"`
	EnrollmentNumber  string `json:"enrollment_number"`
	Degree            string `json:"degree,omitempty"`
	Branch            string `json:"branch,omitempty"`
	GraduationDate    string `json:"graduation_date,omitempty"`
	CGPA              string `json:"cgpa,omitempty"`
	CertificateNumber string `json:"certificate_number,omitempty"`
	Status            string `json:"status,omitempty"`
	AcademicYear      string `json:"academic_year,omitempty"`
}

// Query is the identity sent to the registry.
type Query struct {
	StudentName      string `json:"student_name"`
	EnrollmentNumber string `json:"enrollment_number"`
}

// Result is the verification verdict stored with a certificate.
type Result struct {
	StudentVerified       bool      `json:"student_verified"`
	EnrollmentVerified    bool      `json:"enrollment_verified"`
	Verified              bool      `json:"verified"`
	ConfidenceScore       float64   `json:"confidence_score"`
	MatchedStudent        *Student  `json:"matched_student,omitempty"`
	Message               string    `json:"message"`
	VerificationTimestamp time.Time `json:"verification_timestamp"`
	VerificationAttempted bool      `json:"verification_attempted"`
	SearchedFor           *Query    `json:"searched_for,omitempty"`
}

func studentSchema() map[string]any {
	str := map[string]any{"type": "string"}
	return map[string]any{
		"type":     "object",
		"required": []string{"student_name", "enrollment_number"},
		"properties": map[string]any{
			"student_name":       str,
			"enrollment_number":  str,
			"degree":             str,
			"branch":             str,
			"graduation_date":    str,
			"cgpa":               str,
			"certificate_number": str,
			"status":             str,
			"academic_year":      str,
		},
		"additionalProperties": false,
	}
}

// resultSchema is the stored record contract.
func resultSchema() map[string]any {
	boolean := map[string]any{"type": "boolean"}
	return map[string]any{
		"type": "object",
		"required": []string{
			"student_verified", "enrollment_verified", "verified", "confidence_score",
			"message", "verification_timestamp", "verification_attempted",
		},
		"properties": map[string]any{
			"student_verified":       boolean,
			"enrollment_verified":    boolean,
			"verified":               boolean,
			"verification_attempted": boolean,
			"confidence_score":       map[string]any{"type": "number", "minimum": 0, "maximum": 1},
			"message":                map[string]any{"type": "string"},
			"verification_timestamp": map[string]any{"type": "string", "minLength": 1},
			"matched_student":        studentSchema(),
			"searched_for": map[string]any{
				"type":     "object",
				"required": []string{"student_name", "enrollment_number"},
				"properties": map[string]any{
					"student_name":      map[string]any{"type": "string"},
					"enrollment_number": map[string]any{"type": "string"},
				},
				"additionalProperties": false,
			},
		},
		"additionalProperties": false,
	}
}

// Encode serialises r for storage.
func (r Result) Encode() ([]byte, error) {
	return json.Marshal(r)
}

// DecodeResult parses a stored verification record. Anything that does not match
// the record contract is a corrupt record.
func DecodeResult(data []byte) (Result, error) {
	if err := llm.ValidateJSONAgainstSchema(resultSchema(), data); err != nil {
		return Result{}, common.CorruptRecordError("verification record does not match its schema", err)
	}
	var r Result
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&r); err != nil {
		return Result{}, common.CorruptRecordError("verification record could not be decoded", err)
	}
	return r, nil
}
