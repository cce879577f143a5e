package registry

import (
	"math"
	"time"

	"github.com/agext/levenshtein"

	"github.com/joseph-ayodele/certificate-verifier/internal/verify"
)

const msgNotFound = "Certificate not found in university database"

// Verify looks the query up by normalised enrollment number. An exact name match
// scores 1.0; otherwise the score is scaled by name similarity and stays below 0.9.
func (s *Store) Verify(q verify.Query) verify.RegistryResponse {
	wantEnrollment := verify.Normalize(q.EnrollmentNumber)
	wantName := verify.Normalize(q.StudentName)

	s.mu.RLock()
	var best *Record
	bestScore := -1.0
	for i := range s.db.Certificates {
		r := &s.db.Certificates[i]
		if verify.Normalize(r.EnrollmentNumber) != wantEnrollment {
			continue
		}
		if score := nameScore(wantName, verify.Normalize(r.StudentName)); score > bestScore {
			best, bestScore = r, score
		}
	}
	var matched *verify.Student
	if best != nil {
		matched = best.Student()
	}
	s.mu.RUnlock()

	ts := s.now().Format(time.RFC3339)
	if matched == nil {
		zero := 0.0
		s.logger.Info("registry.verify.miss", "enrollment", q.EnrollmentNumber)
		return verify.RegistryResponse{
			Success:               true,
			ConfidenceScore:       &zero,
			Message:               msgNotFound,
			SearchedFor:           &q,
			VerificationTimestamp: ts,
		}
	}

	conf := bestScore
	s.logger.Info("registry.verify.hit", "enrollment", q.EnrollmentNumber, "confidence", conf)
	return verify.RegistryResponse{
		Success:               true,
		Verified:              true,
		ConfidenceScore:       &conf,
		MatchedCertificate:    matched,
		VerificationTimestamp: ts,
	}
}

func nameScore(a, b string) float64 {
	if a == b {
		return 1.0
	}
	sim := levenshtein.Similarity(a, b, nil)
	return math.Round((0.6+0.3*sim)*100) / 100
}
