package verify

import "time"

const (
	msgNotFound       = "Certificate not found in university database"
	msgVerified       = "Certificate verified against university records"
	msgNameMismatch   = "Enrollment number verified; student name does not match university records"
	msgOtherRecord    = "Registry match belongs to a different enrollment number"
	enrollmentOnlyCap = 0.7
)

// Interpret turns a successful registry reply into a verdict. The enrollment
// number decides the match; the name only raises confidence.
func Interpret(q Query, resp RegistryResponse, now time.Time) Result {
	res := Result{
		VerificationAttempted: true,
		VerificationTimestamp: now,
		SearchedFor:           &q,
		Message:               resp.Message,
	}
	m := resp.MatchedCertificate
	if !resp.Verified || m == nil {
		if res.Message == "" {
			res.Message = msgNotFound
		}
		return res
	}
	if !SameIdentity(m.EnrollmentNumber, q.EnrollmentNumber) {
		res.Message = msgOtherRecord
		return res
	}

	conf := 1.0
	if resp.ConfidenceScore != nil {
		conf = clamp01(*resp.ConfidenceScore)
	}
	res.Verified = true
	res.EnrollmentVerified = true
	res.MatchedStudent = m
	if SameIdentity(m.StudentName, q.StudentName) {
		res.StudentVerified = true
		res.ConfidenceScore = conf
		res.Message = msgVerified
		return res
	}
	res.ConfidenceScore = min(conf, enrollmentOnlyCap)
	res.Message = msgNameMismatch
	return res
}

func clamp01(v float64) float64 {
	return max(0, min(1, v))
}
