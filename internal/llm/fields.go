package llm

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Canonical certificate keys.
const (
	KeyStudentName      = "student_name"
	KeyEnrollmentNumber = "enrollment_number"
	KeyDegree           = "degree"
	KeyBranch           = "branch"
	KeyUniversityName   = "university_name"
	KeyGraduationDate   = "graduation_date"
	KeyDateOfBirth      = "date_of_birth"
	KeyGrade            = "grade"
	KeyCertificateType  = "certificate_type"
	KeySemester         = "semester"
	KeyAcademicYear     = "academic_year"
	KeySGPA             = "sgpa"
	KeyCGPA             = "cgpa"
	KeySubjects         = "subjects"
	KeyTotalCredits     = "total_credits"
	KeyEarnedCredits    = "earned_credits"
)

// CanonicalKeys is the fixed, ordered key set every extraction returns.
var CanonicalKeys = []string{
	KeyStudentName, KeyEnrollmentNumber, KeyDegree, KeyBranch, KeyUniversityName,
	KeyGraduationDate, KeyDateOfBirth, KeyGrade, KeyCertificateType, KeySemester,
	KeyAcademicYear, KeySGPA, KeyCGPA, KeySubjects, KeyTotalCredits, KeyEarnedCredits,
}

var canonical = func() map[string]struct{} {
	m := make(map[string]struct{}, len(CanonicalKeys))
	for _, k := range CanonicalKeys {
		m[k] = struct{}{}
	}
	return m
}()

// IsCanonicalKey reports whether key belongs to the canonical set.
func IsCanonicalKey(key string) bool {
	_, ok := canonical[key]
	return ok
}

// Subject is one row of a transcript's subject table.
type Subject struct {
	SubjectCode string `json:"subject_code"`
	SubjectName string `json:"subject_name"`
	Grade       string `json:"grade"`
	Credits     string `json:"credits"`
}

// Fields maps every canonical key to nil, a trimmed non-empty string, or a non-empty list.
type Fields map[string]any

// NewFields returns the all-null record.
func NewFields() Fields {
	f := make(Fields, len(CanonicalKeys))
	for _, k := range CanonicalKeys {
		f[k] = nil
	}
	return f
}

// String returns the string value of key, or "" when null or a list.
func (f Fields) String(key string) string {
	s, _ := f[key].(string)
	return s
}

// IsNull reports whether key holds no value.
func (f Fields) IsNull(key string) bool {
	return f[key] == nil
}

// Present counts the non-null canonical values.
func (f Fields) Present() int {
	n := 0
	for _, k := range CanonicalKeys {
		if f[k] != nil {
			n++
		}
	}
	return n
}

// Subjects decodes the subjects list; entries that are not objects are skipped.
func (f Fields) Subjects() []Subject {
	list, _ := f[KeySubjects].([]any)
	out := make([]Subject, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, Subject{
			SubjectCode: scalarString(m["subject_code"]),
			SubjectName: scalarString(m["subject_name"]),
			Grade:       scalarString(m["grade"]),
			Credits:     scalarString(m["credits"]),
		})
	}
	return out
}

// ValidateFields normalizes a decoded model response into the canonical contract:
// absent, empty, or "null" values become nil; strings are trimmed; numbers and
// booleans are stringified; lists pass through unless empty; anything else is
// encoded as text. Keys outside the canonical set are dropped.
func ValidateFields(raw map[string]any) Fields {
	out := NewFields()
	for _, k := range CanonicalKeys {
		out[k] = normalizeValue(raw[k])
	}
	return out
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" || strings.EqualFold(s, "null") {
			return nil
		}
		return s
	case []any:
		if len(t) == 0 {
			return nil
		}
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		if b, err := json.Marshal(t); err == nil {
			return string(b)
		}
		return fmt.Sprint(t)
	}
}

func scalarString(v any) string {
	switch t := normalizeValue(v).(type) {
	case string:
		return t
	default:
		return ""
	}
}
