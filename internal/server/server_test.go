package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/certificate-verifier/constants"
	"github.com/joseph-ayodele/certificate-verifier/internal/async"
	"github.com/joseph-ayodele/certificate-verifier/internal/common"
	"github.com/joseph-ayodele/certificate-verifier/internal/export"
	"github.com/joseph-ayodele/certificate-verifier/internal/ingest"
	"github.com/joseph-ayodele/certificate-verifier/internal/llm"
	"github.com/joseph-ayodele/certificate-verifier/internal/ocr"
	"github.com/joseph-ayodele/certificate-verifier/internal/pipeline"
	"github.com/joseph-ayodele/certificate-verifier/internal/registry"
	"github.com/joseph-ayodele/certificate-verifier/internal/repository"
	"github.com/joseph-ayodele/certificate-verifier/internal/verify"
)

const certificateText = `JAYPEE UNIVERSITY OF ENGINEERING AND TECHNOLOGY
Student Name: Prashant Singh
Enrollment No : 231B225
Programme: B.Tech CSE
CGPA: 6.07`

type stubOCR struct {
	mu   sync.Mutex
	text string
	err  error
}

func (s *stubOCR) set(text string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.text, s.err = text, err
}

func (s *stubOCR) Extract(_ context.Context, path string) (ocr.ExtractionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return ocr.ExtractionResult{}, s.err
	}
	return ocr.ExtractionResult{Text: s.text, Pages: 1, Method: ocr.MethodPDFText}, nil
}

type testServer struct {
	router    *gin.Engine
	ocr       *stubOCR
	certs     repository.CertificateRepository
	queue     *async.ProcessorQueue
	uploadDir string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	store, err := registry.Open(filepath.Join(t.TempDir(), "registry.json"), nil)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	reg := httptest.NewServer(registry.NewRouter(registry.NewHandler(store, nil)))
	t.Cleanup(reg.Close)

	db, err := repository.Open(ctx, repository.Config{
		Driver: repository.DriverSQLite,
		DSN:    repository.SQLiteDSN(filepath.Join(t.TempDir(), "api.db")),
	}, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(db.Close)
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	certs := repository.NewCertificateRepository(db, nil)
	fields := repository.NewFieldRepository(db, nil)
	text := &stubOCR{text: certificateText}
	verifier := verify.NewClient(verify.Config{BaseURL: reg.URL, Timeout: 5 * time.Second}, nil)
	proc := pipeline.NewProcessor(nil, text, llm.NewFallback(nil), verifier, certs, fields, time.Minute)
	queue := async.NewProcessorQueue(proc, nil, async.WithWorkers(1))
	t.Cleanup(func() { queue.Shutdown(context.Background()) })

	uploadDir := filepath.Join(t.TempDir(), "uploads")
	h := NewHandler(Deps{
		Pipeline: proc,
		Uploads:  ingest.NewFSStore(uploadDir, 1<<20, nil),
		Certs:    certs,
		Fields:   fields,
		Exports:  export.NewService(certs, fields, nil),
		Queue:    queue,
		DB:       db,
		Registry: verifier,
	})
	return &testServer{router: NewRouter(h), ocr: text, certs: certs, queue: queue, uploadDir: uploadDir}
}

func (s *testServer) do(t *testing.T, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func (s *testServer) upload(t *testing.T, name string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatalf("form: %v", err)
	}
	_, _ = part.Write(content)
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/certificates/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var env ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode error envelope %q: %v", rec.Body.String(), err)
	}
	return env.Error.Code
}

func uploadedFiles(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return 0
	}
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	return len(entries)
}

func TestUploadAndRead(t *testing.T) {
	s := newTestServer(t)

	rec := s.upload(t, "degree.pdf", []byte("%PDF-1.4 certificate"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload status %d: %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	id, _ := body["id"].(string)
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("id: %v", body["id"])
	}
	if body["file_type"] != constants.PDF {
		t.Errorf("file_type: %v", body["file_type"])
	}
	tab := body["tabular_data"].(map[string]any)
	if tab[llm.KeyStudentName] != "Prashant Singh" || tab[llm.KeyEnrollmentNumber] != "231B225" {
		t.Errorf("tabular_data: %v", tab)
	}
	if tab[llm.KeySGPA] != export.Missing {
		t.Errorf("missing sgpa should be %q, got %v", export.Missing, tab[llm.KeySGPA])
	}
	ver := body["verification"].(map[string]any)
	if ver["verified"] != true || ver["verification_attempted"] != true {
		t.Errorf("verification: %v", ver)
	}
	if body["confidence_score"] != ver["confidence_score"] {
		t.Errorf("confidence_score %v != %v", body["confidence_score"], ver["confidence_score"])
	}
	if !strings.Contains(body["summary"].(string), "Prashant Singh") {
		t.Errorf("summary: %v", body["summary"])
	}

	rec = s.do(t, http.MethodGet, "/api/certificates/"+id)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status %d", rec.Code)
	}
	detail := decode(t, rec)
	if detail["status"] != string(constants.StatusCompleted) {
		t.Errorf("status: %v", detail["status"])
	}
	if n, _ := detail["field_count"].(float64); n < 4 {
		t.Errorf("field_count: %v", detail["field_count"])
	}

	rec = s.do(t, http.MethodGet, "/api/certificates?limit=500")
	list := decode(t, rec)
	if rec.Code != http.StatusOK || list["count"] != float64(1) || list["limit"] != float64(maxLimit) {
		t.Fatalf("list: %d %v", rec.Code, list)
	}
	row := list["certificates"].([]any)[0].(map[string]any)
	if len(row["tabular_data"].(map[string]any)) != 9 {
		t.Errorf("listing tabular_data: %v", row["tabular_data"])
	}
	if row["summary"] != body["summary"] {
		t.Errorf("listing summary: got %v, want %v", row["summary"], body["summary"])
	}

	rec = s.do(t, http.MethodGet, "/api/certificates/my-certificates")
	mine := decode(t, rec)
	if rec.Code != http.StatusOK || mine["count"] != float64(1) {
		t.Fatalf("my-certificates: %d %v", rec.Code, mine)
	}

	rec = s.do(t, http.MethodGet, "/api/certificates/"+id+"/export")
	if rec.Code != http.StatusOK {
		t.Fatalf("export status %d", rec.Code)
	}
	if want := "attachment; filename=certificate_" + id + "_data.json"; rec.Header().Get("Content-Disposition") != want {
		t.Errorf("disposition: %q", rec.Header().Get("Content-Disposition"))
	}

	rec = s.do(t, http.MethodGet, "/api/certificates/"+id+"/download")
	if rec.Code != http.StatusOK || rec.Body.String() != "%PDF-1.4 certificate" {
		t.Errorf("download: %d %q", rec.Code, rec.Body.String())
	}

	rec = s.do(t, http.MethodGet, "/api/certificates/export.xlsx")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Header().Get("Content-Type"), "spreadsheetml") {
		t.Errorf("xlsx: %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}
}

func TestUploadRejections(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/certificates/upload", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("no file: %d", rec.Code)
	}

	rec = s.upload(t, "notes.txt", []byte("hello"))
	if rec.Code != http.StatusBadRequest || errorCode(t, rec) != common.CodeUnsupportedFormat {
		t.Errorf("txt: %d %s", rec.Code, rec.Body.String())
	}

	s.ocr.set("", common.NoTextFoundError("scan.pdf"))
	rec = s.upload(t, "scan.pdf", []byte("%PDF-1.4"))
	if rec.Code != http.StatusUnprocessableEntity || errorCode(t, rec) != common.CodeNoTextFound {
		t.Errorf("no text: %d %s", rec.Code, rec.Body.String())
	}
	if n := uploadedFiles(t, s.uploadDir); n != 0 {
		t.Errorf("failed upload left %d files", n)
	}

	list := decode(t, s.do(t, http.MethodGet, "/api/certificates"))
	if list["total"] != float64(0) {
		t.Errorf("failed uploads were stored: %v", list)
	}
}

func TestReverifyReprocessAndDelete(t *testing.T) {
	s := newTestServer(t)
	body := decode(t, s.upload(t, "degree.pdf", []byte("%PDF-1.4")))
	id := body["id"].(string)

	rec := s.do(t, http.MethodPost, "/api/certificates/"+id+"/reverify")
	if rec.Code != http.StatusOK {
		t.Fatalf("reverify: %d %s", rec.Code, rec.Body.String())
	}
	if out := decode(t, rec); out["success"] != true || out["message"] != "Certificate re-verified successfully" {
		t.Errorf("reverify body: %v", out)
	}

	rec = s.do(t, http.MethodPost, "/api/certificates/"+uuid.NewString()+"/reverify")
	if rec.Code != http.StatusNotFound || errorCode(t, rec) != common.CodeNotFound {
		t.Errorf("unknown reverify: %d %s", rec.Code, rec.Body.String())
	}
	if rec := s.do(t, http.MethodGet, "/api/certificates/not-a-uuid"); rec.Code != http.StatusBadRequest {
		t.Errorf("bad id: %d", rec.Code)
	}

	rec = s.do(t, http.MethodPost, "/api/certificates/"+id+"/reprocess")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("reprocess: %d %s", rec.Code, rec.Body.String())
	}
	rec = s.do(t, http.MethodPost, "/api/certificates/reverify")
	if out := decode(t, rec); rec.Code != http.StatusAccepted || out["queued"] != float64(1) {
		t.Fatalf("reverify all: %d %v", rec.Code, out)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.queue.Shutdown(ctx)

	cert, err := s.certs.Get(context.Background(), uuid.MustParse(id))
	if err != nil || cert.Status != constants.StatusCompleted {
		t.Fatalf("after reprocess: %v %+v", err, cert)
	}

	rec = s.do(t, http.MethodDelete, "/api/certificates/"+id)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: %d", rec.Code)
	}
	if _, err := os.Stat(cert.ImagePath); !os.IsNotExist(err) {
		t.Errorf("stored file survived delete: %v", err)
	}
	if rec := s.do(t, http.MethodGet, "/api/certificates/"+id); rec.Code != http.StatusNotFound {
		t.Errorf("get after delete: %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/api/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("health: %d", rec.Code)
	}
	out := decode(t, rec)
	if out["status"] != "healthy" || out["ai_status"] != "missing" || out["registry_reachable"] != true {
		t.Errorf("health body: %v", out)
	}
	if out["extraction_mode"] != string(llm.ModeFallback) {
		t.Errorf("mode: %v", out["extraction_mode"])
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{common.NotFoundError("x"), http.StatusNotFound},
		{common.UnsupportedFormatError(".txt"), http.StatusBadRequest},
		{common.NoTextFoundError("a.png"), http.StatusUnprocessableEntity},
		{common.ConfigurationError("no key"), http.StatusServiceUnavailable},
		{common.ExtractionError("upstream", nil), http.StatusBadGateway},
		{common.InvalidResponseError("garbage", nil), http.StatusBadGateway},
		{common.SummaryError("down", nil), http.StatusBadGateway},
		{common.CorruptRecordError("bad", nil), http.StatusInternalServerError},
		{common.WrapError(common.NotFoundError("x"), "store"), http.StatusNotFound},
		{async.ErrClosed, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		if got := StatusFor(tc.err); got != tc.want {
			t.Errorf("StatusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
