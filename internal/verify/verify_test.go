package verify

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joseph-ayodele/certificate-verifier/internal/common"
	"github.com/joseph-ayodele/certificate-verifier/internal/llm"
)

func identity(name, enrollment string) llm.Fields {
	f := llm.NewFields()
	if name != "" {
		f[llm.KeyStudentName] = name
	}
	if enrollment != "" {
		f[llm.KeyEnrollmentNumber] = enrollment
	}
	return f
}

func registry(t *testing.T, handler func(q Query) (int, any)) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if r.URL.Path != "/api/verify" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		var q Query
		if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
			t.Errorf("decode query: %v", err)
		}
		status, body := handler(q)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func matched(name, enrollment string, conf float64) RegistryResponse {
	return RegistryResponse{
		Success:         true,
		Verified:        true,
		ConfidenceScore: &conf,
		MatchedCertificate: &Student{
			StudentName:      name,
			EnrollmentNumber: enrollment,
			Degree:           "B.Tech",
			Branch:           "Computer Science",
		},
	}
}

func TestNormalize(t *testing.T) {
	cases := [][2]string{
		{"Prashant Singh", "  prashant   SINGH "},
		{"231B225", "231b225"},
		{"O'Brien, J.", "obrien j"},
	}
	for _, c := range cases {
		if Normalize(c[0]) != Normalize(c[1]) {
			t.Errorf("Normalize(%q)=%q != Normalize(%q)=%q", c[0], Normalize(c[0]), c[1], Normalize(c[1]))
		}
	}
	if got := Normalize("\tPrashant\n Singh  "); got != "prashant singh" {
		t.Errorf("got %q", got)
	}
}

func TestVerifyInsufficientDataMakesNoCall(t *testing.T) {
	srv, hits := registry(t, func(Query) (int, any) { return http.StatusOK, matched("x", "y", 1) })
	c := NewClient(Config{BaseURL: srv.URL}, nil)

	for _, f := range []llm.Fields{identity("Prashant Singh", ""), identity("", "231B225"), identity("   ", "231B225")} {
		res := c.Verify(context.Background(), f)
		if res.VerificationAttempted || res.Verified || res.ConfidenceScore != 0 {
			t.Errorf("want unattempted verdict, got %+v", res)
		}
		if res.Message != msgInsufficientData {
			t.Errorf("message: got %q", res.Message)
		}
	}
	if atomic.LoadInt32(hits) != 0 {
		t.Errorf("registry was called %d times", *hits)
	}
}

func TestVerifyExactMatch(t *testing.T) {
	srv, _ := registry(t, func(q Query) (int, any) {
		if q.StudentName != "Prashant Singh" || q.EnrollmentNumber != "231B225" {
			t.Errorf("unexpected query %+v", q)
		}
		return http.StatusOK, matched("Prashant Singh", "231B225", 1.0)
	})
	res := NewClient(Config{BaseURL: srv.URL + "/"}, nil).Verify(context.Background(), identity(" Prashant Singh ", "231B225"))

	if !res.Verified || !res.StudentVerified || !res.EnrollmentVerified || !res.VerificationAttempted {
		t.Fatalf("want full match, got %+v", res)
	}
	if res.ConfidenceScore < 0.9 {
		t.Errorf("confidence: got %v", res.ConfidenceScore)
	}
	if res.MatchedStudent == nil || res.MatchedStudent.Degree != "B.Tech" {
		t.Errorf("matched student: %+v", res.MatchedStudent)
	}
}

func TestVerifyMisspelledNameLowersConfidence(t *testing.T) {
	srv, _ := registry(t, func(Query) (int, any) {
		return http.StatusOK, matched("Prashant Singh", "231B225", 0.87)
	})
	res := NewClient(Config{BaseURL: srv.URL}, nil).Verify(context.Background(), identity("Prashnt Sing", "231b225"))

	if !res.Verified || !res.EnrollmentVerified {
		t.Fatalf("enrollment match must verify, got %+v", res)
	}
	if res.StudentVerified {
		t.Errorf("misspelled name must not be student-verified")
	}
	if res.ConfidenceScore > enrollmentOnlyCap || res.ConfidenceScore <= 0 {
		t.Errorf("confidence: got %v", res.ConfidenceScore)
	}
}

func TestVerifyNotFoundPassesMessageThrough(t *testing.T) {
	srv, _ := registry(t, func(q Query) (int, any) {
		zero := 0.0
		return http.StatusOK, RegistryResponse{Success: true, ConfidenceScore: &zero, Message: msgNotFound, SearchedFor: &q}
	})
	res := NewClient(Config{BaseURL: srv.URL}, nil).Verify(context.Background(), identity("Nobody", "000X000"))

	if res.Verified || !res.VerificationAttempted || res.ConfidenceScore != 0 {
		t.Errorf("want attempted, unverified verdict, got %+v", res)
	}
	if res.Message != msgNotFound {
		t.Errorf("message: got %q", res.Message)
	}
	if res.SearchedFor == nil || res.SearchedFor.EnrollmentNumber != "000X000" {
		t.Errorf("searched_for: %+v", res.SearchedFor)
	}
}

func TestVerifyMatchForOtherEnrollmentIsRejected(t *testing.T) {
	srv, _ := registry(t, func(Query) (int, any) {
		return http.StatusOK, matched("Prashant Singh", "999Z999", 1)
	})
	res := NewClient(Config{BaseURL: srv.URL}, nil).Verify(context.Background(), identity("Prashant Singh", "231B225"))
	if res.Verified || !res.VerificationAttempted {
		t.Errorf("got %+v", res)
	}
}

func TestVerifyRegistryFailures(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    any
		message string
	}{
		{"success false", http.StatusOK, map[string]any{"success": false, "error": "index rebuilding"}, "University verification failed: index rebuilding"},
		{"http error", http.StatusServiceUnavailable, map[string]any{"success": false}, "Unable to connect to university database (HTTP 503)"},
		{"bad shape", http.StatusOK, map[string]any{"verified": "yes"}, "University verification error: "},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv, _ := registry(t, func(Query) (int, any) { return tc.status, tc.body })
			res := NewClient(Config{BaseURL: srv.URL}, nil).Verify(context.Background(), identity("Prashant Singh", "231B225"))
			if res.VerificationAttempted || res.Verified {
				t.Errorf("want unattempted verdict, got %+v", res)
			}
			if !strings.HasPrefix(res.Message, tc.message) {
				t.Errorf("message: got %q, want prefix %q", res.Message, tc.message)
			}
		})
	}
}

func TestVerifyConnectionRefused(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := l.Addr().String()
	_ = l.Close()

	res := NewClient(Config{BaseURL: "http://" + addr}, nil).Verify(context.Background(), identity("Prashant Singh", "231B225"))
	if res.VerificationAttempted || res.Verified {
		t.Errorf("want unattempted verdict, got %+v", res)
	}
	if res.Message != msgUnavailable {
		t.Errorf("message: got %q", res.Message)
	}
}

func TestVerifyTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	res := NewClient(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond}, nil).
		Verify(context.Background(), identity("Prashant Singh", "231B225"))
	if res.VerificationAttempted {
		t.Errorf("timeout must not count as attempted")
	}
	if res.Message != msgTimedOut {
		t.Errorf("message: got %q", res.Message)
	}
}

func TestResultRoundTripAndCorruptRecords(t *testing.T) {
	res := Interpret(Query{StudentName: "Prashant Singh", EnrollmentNumber: "231B225"},
		matched("Prashant Singh", "231B225", 1), time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))
	b, err := res.Encode()
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeResult(b)
	if err != nil {
		t.Fatalf("DecodeResult: %v", err)
	}
	if !got.Verified || got.MatchedStudent == nil || !got.VerificationTimestamp.Equal(res.VerificationTimestamp) {
		t.Errorf("round trip lost data: %+v", got)
	}

	for _, bad := range []string{
		`not json`,
		`{"verified": true}`,
		strings.Replace(string(b), `"verified":true`, `"verified":"true"`, 1),
		strings.Replace(string(b), `"confidence_score":1`, `"confidence_score":3`, 1),
		strings.Replace(string(b), `"message":`, `"extra":1,"message":`, 1),
	} {
		if _, err := DecodeResult([]byte(bad)); !errors.Is(err, common.ErrCorruptRecord) {
			t.Errorf("%s: want ErrCorruptRecord, got %v", bad, err)
		}
	}
}
