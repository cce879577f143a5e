package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joseph-ayodele/certificate-verifier/internal/common"
	"github.com/joseph-ayodele/certificate-verifier/internal/verify"
)

// ErrDuplicate is returned when an enrollment number is already registered.
var ErrDuplicate = errors.New("enrollment number already registered")

// Store is the JSON-file backed registry.
type Store struct {
	mu     sync.RWMutex
	path   string
	db     database
	logger *slog.Logger
	now    func() time.Time
}

// Open loads the registry file, seeding it with sample records when missing.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{path: path, logger: logger, now: func() time.Time { return time.Now().UTC() }}

	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		s.db = seedDatabase(s.timestamp())
		if err := s.save(); err != nil {
			return nil, err
		}
		logger.Info("registry.seeded", "path", path, "records", len(s.db.Certificates))
		return s, nil
	case err != nil:
		return nil, common.WrapError(err, "read registry")
	}

	if err := json.Unmarshal(b, &s.db); err != nil {
		return nil, common.CorruptRecordError("registry file is not valid JSON", err)
	}
	logger.Info("registry.loaded", "path", path, "records", len(s.db.Certificates))
	return s, nil
}

func (s *Store) timestamp() string {
	return s.now().Format(time.RFC3339)
}

// save writes the file atomically. Callers hold the write lock.
func (s *Store) save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return common.WrapError(err, "create registry dir")
	}
	b, err := json.MarshalIndent(s.db, "", "  ")
	if err != nil {
		return common.WrapError(err, "encode registry")
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".registry-*.json")
	if err != nil {
		return common.WrapError(err, "create temp registry")
	}
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return common.WrapError(err, "write registry")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return common.WrapError(err, "close registry")
	}
	return os.Rename(tmp.Name(), s.path)
}

// List returns a copy of every record and the metadata.
func (s *Store) List() ([]Record, Metadata) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, len(s.db.Certificates))
	copy(out, s.db.Certificates)
	return out, s.db.Metadata
}

// ByEnrollment returns every record whose enrollment number matches, ignoring case.
func (s *Store) ByEnrollment(enrollment string) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Record
	for _, r := range s.db.Certificates {
		if strings.EqualFold(strings.TrimSpace(r.EnrollmentNumber), strings.TrimSpace(enrollment)) {
			out = append(out, r)
		}
	}
	return out
}

// Add registers a new certificate and persists the file.
func (s *Store) Add(req AddRequest) (Record, error) {
	req.trim()
	if err := common.ValidateStruct(req); err != nil {
		return Record{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	want := verify.Normalize(req.EnrollmentNumber)
	for _, r := range s.db.Certificates {
		if verify.Normalize(r.EnrollmentNumber) == want {
			return Record{}, fmt.Errorf("%w: %s", ErrDuplicate, req.EnrollmentNumber)
		}
	}

	now := s.timestamp()
	seq := s.nextSequence()
	year := req.AcademicYear
	if i := strings.LastIndex(year, "-"); i >= 0 {
		year = year[i+1:]
	}
	degree := req.Degree
	if degree == "" {
		degree = "Bachelor of Technology"
	}
	cgpa := req.CGPA
	if cgpa == "" {
		cgpa = "N/A"
	}
	rec := Record{
		ID:                 fmt.Sprintf("%s%03d", juetCode, seq),
		StudentName:        req.StudentName,
		EnrollmentNumber:   req.EnrollmentNumber,
		RegistrationNumber: fmt.Sprintf("REG%s%03d", year, seq),
		Degree:             degree,
		Branch:             req.Branch,
		University:         juetName,
		GraduationDate:     year + "-06-15",
		CGPA:               cgpa,
		AcademicYear:       req.AcademicYear,
		CertificateType:    "Degree Certificate",
		IssueDate:          now[:10],
		CertificateNumber:  fmt.Sprintf("%s/%s/%s/%03d", juetCode, branchCode(req.Branch), year, seq),
		Status:             req.Status,
		UploadTimestamp:    now,
	}

	prev := s.db
	s.db.Certificates = append(append([]Record(nil), s.db.Certificates...), rec)
	s.db.Metadata.TotalCertificates = len(s.db.Certificates)
	s.db.Metadata.LastUpdated = now
	if err := s.save(); err != nil {
		s.db = prev
		return Record{}, err
	}
	s.logger.Info("registry.add", "enrollment", rec.EnrollmentNumber, "id", rec.ID)
	return rec, nil
}

func (s *Store) nextSequence() int {
	maxSeq := 0
	for _, r := range s.db.Certificates {
		if !strings.HasPrefix(r.ID, juetCode) {
			continue
		}
		if n, err := strconv.Atoi(r.ID[len(juetCode):]); err == nil && n > maxSeq {
			maxSeq = n
		}
	}
	return maxSeq + 1
}

// Search matches q against name, enrollment and certificate number, branch as a
// substring, and year against the academic year. Any matching filter selects a
// record; no filters select everything.
func (s *Store) Search(q, branch, year string) []Record {
	q = strings.ToLower(strings.TrimSpace(q))
	branch = strings.ToLower(strings.TrimSpace(branch))
	year = strings.TrimSpace(year)

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, 0)
	for _, r := range s.db.Certificates {
		match := q == "" && branch == "" && year == ""
		if q != "" {
			hay := strings.ToLower(r.StudentName + " " + r.EnrollmentNumber + " " + r.CertificateNumber)
			match = match || strings.Contains(hay, q)
		}
		if branch != "" && strings.Contains(strings.ToLower(r.Branch), branch) {
			match = true
		}
		if year != "" && strings.Contains(r.AcademicYear, year) {
			match = true
		}
		if match {
			out = append(out, r)
		}
	}
	return out
}

// Stats counts records by branch, academic year and degree.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Stats{
		TotalCertificates: len(s.db.Certificates),
		Branches:          map[string]int{},
		AcademicYears:     map[string]int{},
		Degrees:           map[string]int{},
		LastUpdated:       s.db.Metadata.LastUpdated,
		UniversityInfo: map[string]any{
			"name":     s.db.Metadata.UniversityName,
			"code":     s.db.Metadata.UniversityCode,
			"location": s.db.Metadata.Location,
			"website":  s.db.Metadata.Website,
		},
	}
	for _, r := range s.db.Certificates {
		st.Branches[orUnknown(r.Branch)]++
		st.AcademicYears[orUnknown(r.AcademicYear)]++
		st.Degrees[orUnknown(r.Degree)]++
	}
	return st
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
