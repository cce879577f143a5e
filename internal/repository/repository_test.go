package repository

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/certificate-verifier/constants"
	"github.com/joseph-ayodele/certificate-verifier/internal/common"
	"github.com/joseph-ayodele/certificate-verifier/internal/llm"
	"github.com/joseph-ayodele/certificate-verifier/internal/verify"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()
	db, err := Open(ctx, Config{Driver: DriverSQLite, DSN: SQLiteDSN(filepath.Join(t.TempDir(), "test.db"))}, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(db.Close)
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return db
}

func sampleExtraction() Extraction {
	f := llm.NewFields()
	f[llm.KeyStudentName] = "Prashant Singh"
	f[llm.KeyEnrollmentNumber] = "231B225"
	f[llm.KeyCGPA] = "6.07"
	f[llm.KeySubjects] = []any{
		map[string]any{"subject_code": "CS101", "subject_name": "Programming", "grade": "A", "credits": "4"},
	}
	return Extraction{
		Fields:  f,
		Summary: "Prashant Singh - B.Tech - (CGPA: 6.07)",
		Verification: verify.Result{
			StudentVerified:       true,
			EnrollmentVerified:    true,
			Verified:              true,
			ConfidenceScore:       0.95,
			Message:               "Certificate verified in university database",
			VerificationTimestamp: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
			VerificationAttempted: true,
			SearchedFor:           &verify.Query{StudentName: "Prashant Singh", EnrollmentNumber: "231B225"},
		},
	}
}

func newCert(name string) *Certificate {
	return &Certificate{
		ImagePath:        "/tmp/uploads/" + name,
		OriginalFilename: name,
		FileType:         "png",
		ContentHash:      "hash-" + name,
	}
}

func TestCreateWithExtractionRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	certs := NewCertificateRepository(db, nil)
	fields := NewFieldRepository(db, nil)

	in := sampleExtraction()
	cert, err := certs.CreateWithExtraction(ctx, newCert("a.png"), in)
	if err != nil {
		t.Fatalf("CreateWithExtraction: %v", err)
	}

	got, err := certs.Get(ctx, cert.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != constants.StatusCompleted || got.OriginalFilename != "a.png" {
		t.Errorf("certificate: %+v", got)
	}

	out, err := fields.Load(ctx, cert.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	for _, k := range []string{llm.KeyStudentName, llm.KeyEnrollmentNumber, llm.KeyCGPA} {
		if out.Fields.String(k) != in.Fields.String(k) {
			t.Errorf("%s: got %q, want %q", k, out.Fields.String(k), in.Fields.String(k))
		}
	}
	if !out.Fields.IsNull(llm.KeyDegree) {
		t.Errorf("degree should stay null, got %v", out.Fields[llm.KeyDegree])
	}
	if subs := out.Fields.Subjects(); len(subs) != 1 || subs[0].SubjectCode != "CS101" {
		t.Errorf("subjects: %+v", subs)
	}
	if out.Summary != in.Summary {
		t.Errorf("summary: %q", out.Summary)
	}
	v := out.Verification
	if !v.Verified || v.ConfidenceScore != 0.95 || !v.VerificationTimestamp.Equal(in.Verification.VerificationTimestamp) {
		t.Errorf("verification: %+v", v)
	}

	// 4 extracted + summary + verification
	if n, _ := fields.Count(ctx, cert.ID); n != 6 {
		t.Errorf("field count: got %d, want 6", n)
	}
	list, err := fields.List(ctx, cert.ID)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	for _, f := range list {
		switch f.Kind {
		case constants.FieldKindExtracted:
			if f.Confidence != constants.ExtractedFieldConfidence {
				t.Errorf("%s confidence %v", f.Key, f.Confidence)
			}
		case constants.FieldKindSummary:
			if f.Key != constants.SummaryFieldKey || f.Confidence != 1.0 {
				t.Errorf("summary field: %+v", f)
			}
		case constants.FieldKindVerification:
			if f.Key != constants.VerificationFieldKey || f.Confidence != 0.95 {
				t.Errorf("verification field: %+v", f)
			}
		}
	}
}

func TestUpsertVerificationIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	certs := NewCertificateRepository(db, nil)
	fields := NewFieldRepository(db, nil)

	cert, err := certs.CreateWithExtraction(ctx, newCert("b.png"), sampleExtraction())
	if err != nil {
		t.Fatalf("CreateWithExtraction: %v", err)
	}

	res := verify.Result{Message: "University database is currently unavailable", VerificationTimestamp: time.Now().UTC()}
	for i := 0; i < 3; i++ {
		if err := fields.UpsertVerification(ctx, cert.ID, res); err != nil {
			t.Fatalf("UpsertVerification #%d: %v", i, err)
		}
	}

	list, _ := fields.List(ctx, cert.ID)
	n := 0
	for _, f := range list {
		if f.Kind == constants.FieldKindVerification {
			n++
		}
	}
	if n != 1 {
		t.Fatalf("verification fields: got %d, want 1", n)
	}
	out, err := fields.Load(ctx, cert.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if out.Verification.Verified || out.Verification.Message != res.Message {
		t.Errorf("verification not replaced: %+v", out.Verification)
	}
	if out.Fields.String(llm.KeyStudentName) != "Prashant Singh" {
		t.Errorf("extracted fields must be untouched")
	}
}

func TestUpsertVerificationInsertsWhenAbsent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	certs := NewCertificateRepository(db, nil)
	fields := NewFieldRepository(db, nil)

	cert, err := certs.Create(ctx, newCert("c.png"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := fields.UpsertVerification(ctx, cert.ID, verify.Result{VerificationTimestamp: time.Now()}); err != nil {
		t.Fatalf("UpsertVerification: %v", err)
	}
	if n, _ := fields.Count(ctx, cert.ID); n != 1 {
		t.Errorf("field count: got %d, want 1", n)
	}

	err = fields.UpsertVerification(ctx, uuid.New(), verify.Result{})
	if !errors.Is(err, common.ErrNotFound) {
		t.Errorf("missing certificate: want ErrNotFound, got %v", err)
	}
}

func TestStoreExtractionRollsBack(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	certs := NewCertificateRepository(db, nil)
	fields := NewFieldRepository(db, nil)

	cert, err := certs.CreateWithExtraction(ctx, newCert("d.png"), sampleExtraction())
	if err != nil {
		t.Fatalf("CreateWithExtraction: %v", err)
	}

	// NaN cannot be encoded, so the write fails after the old fields were deleted.
	bad := sampleExtraction()
	bad.Fields[llm.KeyStudentName] = "Someone Else"
	bad.Verification.ConfidenceScore = math.NaN()
	if err := fields.StoreExtraction(ctx, cert.ID, bad); err == nil {
		t.Fatal("expected StoreExtraction to fail")
	}

	out, err := fields.Load(ctx, cert.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if out.Fields.String(llm.KeyStudentName) != "Prashant Singh" {
		t.Errorf("partial write survived: %q", out.Fields.String(llm.KeyStudentName))
	}

	if err := fields.StoreExtraction(ctx, uuid.New(), sampleExtraction()); err == nil {
		t.Error("storing fields for a missing certificate should fail")
	}
}

func TestStoreExtractionReplacesFields(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	certs := NewCertificateRepository(db, nil)
	fields := NewFieldRepository(db, nil)

	cert, err := certs.CreateWithExtraction(ctx, newCert("e.png"), sampleExtraction())
	if err != nil {
		t.Fatalf("CreateWithExtraction: %v", err)
	}
	next := sampleExtraction()
	next.Fields[llm.KeySubjects] = nil
	next.Fields[llm.KeyDegree] = "B.Tech"
	if err := fields.StoreExtraction(ctx, cert.ID, next); err != nil {
		t.Fatalf("StoreExtraction: %v", err)
	}
	out, err := fields.Load(ctx, cert.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !out.Fields.IsNull(llm.KeySubjects) || out.Fields.String(llm.KeyDegree) != "B.Tech" {
		t.Errorf("fields not replaced: %+v", out.Fields)
	}
}

func TestDeleteCascades(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	certs := NewCertificateRepository(db, nil)
	fields := NewFieldRepository(db, nil)

	cert, err := certs.CreateWithExtraction(ctx, newCert("f.png"), sampleExtraction())
	if err != nil {
		t.Fatalf("CreateWithExtraction: %v", err)
	}
	if err := certs.Delete(ctx, cert.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if n, _ := fields.Count(ctx, cert.ID); n != 0 {
		t.Errorf("fields left after delete: %d", n)
	}
	if _, err := certs.Get(ctx, cert.ID); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("Get after delete: %v", err)
	}
	if err := certs.Delete(ctx, cert.ID); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("second Delete: %v", err)
	}
}

func TestListNewestFirst(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	certs := NewCertificateRepository(db, nil)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range []string{"old.png", "mid.png", "new.png"} {
		c := newCert(name)
		c.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		if _, err := certs.Create(ctx, c); err != nil {
			t.Fatalf("Create %s: %v", name, err)
		}
	}

	page, total, err := certs.List(ctx, 2, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 3 || len(page) != 2 || page[0].OriginalFilename != "new.png" || page[1].OriginalFilename != "mid.png" {
		t.Fatalf("page 1: total=%d %+v", total, page)
	}
	page, _, _ = certs.List(ctx, 2, 2)
	if len(page) != 1 || page[0].OriginalFilename != "old.png" {
		t.Errorf("page 2: %+v", page)
	}

	byHash, err := certs.GetByHash(ctx, "hash-mid.png")
	if err != nil || byHash.OriginalFilename != "mid.png" {
		t.Errorf("GetByHash: %v %+v", err, byHash)
	}
	ids, err := certs.ListIDs(ctx)
	if err != nil || len(ids) != 3 {
		t.Errorf("ListIDs: %v %d", err, len(ids))
	}
	if err := certs.UpdateStatus(ctx, byHash.ID, constants.StatusFailed); err != nil {
		t.Errorf("UpdateStatus: %v", err)
	}
}

func TestLoadCorruptVerification(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	certs := NewCertificateRepository(db, nil)
	fields := NewFieldRepository(db, nil)

	cert, err := certs.CreateWithExtraction(ctx, newCert("g.png"), sampleExtraction())
	if err != nil {
		t.Fatalf("CreateWithExtraction: %v", err)
	}
	_, err = exec(ctx, db.drv, entsql.Dialect(db.Dialect()).Update(tableFields).
		Set("value", `{"verified": "yes"}`).
		Where(entsql.EQ("kind", string(constants.FieldKindVerification))))
	if err != nil {
		t.Fatalf("corrupt: %v", err)
	}

	if _, err := fields.Load(ctx, cert.ID); !errors.Is(err, common.ErrCorruptRecord) {
		t.Fatalf("want ErrCorruptRecord, got %v", err)
	}
	if _, err := fields.Load(ctx, uuid.New()); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("unknown certificate: want ErrNotFound, got %v", err)
	}

	summary, err := fields.Summary(ctx, cert.ID)
	if err != nil || summary != "Prashant Singh - B.Tech - (CGPA: 6.07)" {
		t.Errorf("Summary beside a corrupt verification: got %q, %v", summary, err)
	}
	if s, err := fields.Summary(ctx, uuid.New()); err != nil || s != "" {
		t.Errorf("Summary of unknown certificate: got %q, %v", s, err)
	}
}

func TestBracketedScalarsRoundTripAsText(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	certs := NewCertificateRepository(db, nil)
	fields := NewFieldRepository(db, nil)

	in := sampleExtraction()
	in.Fields[llm.KeyGrade] = "[10]"
	in.Fields[llm.KeySemester] = "[]"
	cert, err := certs.CreateWithExtraction(ctx, newCert("h.png"), in)
	if err != nil {
		t.Fatalf("CreateWithExtraction: %v", err)
	}

	out, err := fields.Load(ctx, cert.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got, ok := out.Fields[llm.KeyGrade].(string); !ok || got != "[10]" {
		t.Errorf("grade: got %#v, want string \"[10]\"", out.Fields[llm.KeyGrade])
	}
	if got, ok := out.Fields[llm.KeySemester].(string); !ok || got != "[]" {
		t.Errorf("semester: got %#v, want string \"[]\"", out.Fields[llm.KeySemester])
	}
	if _, ok := out.Fields[llm.KeySubjects].([]any); !ok {
		t.Errorf("subjects: got %T, want a list", out.Fields[llm.KeySubjects])
	}

	extracted, err := fields.Extracted(ctx, cert.ID)
	if err != nil {
		t.Fatalf("Extracted: %v", err)
	}
	if extracted.String(llm.KeyGrade) != "[10]" {
		t.Errorf("Extracted grade: %#v", extracted[llm.KeyGrade])
	}
}

func TestHealthCheck(t *testing.T) {
	db := openTestDB(t)
	if err := db.HealthCheck(context.Background(), time.Second); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
}
