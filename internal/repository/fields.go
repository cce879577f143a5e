package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/certificate-verifier/constants"
	"github.com/joseph-ayodele/certificate-verifier/internal/common"
	"github.com/joseph-ayodele/certificate-verifier/internal/llm"
	"github.com/joseph-ayodele/certificate-verifier/internal/verify"
)

var fieldColumns = []string{"id", "certificate_id", "key", "value", "confidence", "kind", "created_at", "updated_at"}

type FieldRepository interface {
	// StoreExtraction replaces every field of the certificate in one transaction
	// and marks it completed.
	StoreExtraction(ctx context.Context, certID uuid.UUID, ext Extraction) error
	// UpsertVerification replaces the verification field, inserting it when absent.
	UpsertVerification(ctx context.Context, certID uuid.UUID, res verify.Result) error
	Load(ctx context.Context, certID uuid.UUID) (*Extraction, error)
	// Extracted returns only the extracted values and never reads the verification record.
	Extracted(ctx context.Context, certID uuid.UUID) (llm.Fields, error)
	// Summary returns the stored summary text, or "" when none is stored.
	Summary(ctx context.Context, certID uuid.UUID) (string, error)
	List(ctx context.Context, certID uuid.UUID) ([]*Field, error)
	Count(ctx context.Context, certID uuid.UUID) (int, error)
}

type fieldRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewFieldRepository(db *DB, logger *slog.Logger) FieldRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &fieldRepository{db: db, logger: logger}
}

func (r *fieldRepository) builder() *entsql.DialectBuilder {
	return entsql.Dialect(r.db.dialect)
}

// encodeValue renders a field value as stored text; lists are JSON.
func encodeValue(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case []any:
		b, err := json.Marshal(t)
		if err != nil {
			return "", err
		}
		return string(b), nil
	default:
		return fmt.Sprint(t), nil
	}
}

// decodeValue reverses encodeValue. Only subjects is stored as a JSON list;
// every other key comes back as the text it was stored as.
func decodeValue(key, s string) any {
	if key != llm.KeySubjects {
		return s
	}
	var list []any
	if err := json.Unmarshal([]byte(s), &list); err == nil {
		return list
	}
	return s
}

func insertField(ctx context.Context, b *entsql.DialectBuilder, ex dialect.ExecQuerier, f Field) error {
	_, err := exec(ctx, ex, b.Insert(tableFields).
		Columns(fieldColumns...).
		Values(f.ID, f.CertificateID, f.Key, f.Value, f.Confidence, string(f.Kind), f.CreatedAt, f.UpdatedAt))
	return err
}

// writeFields runs inside a transaction owned by the caller.
func writeFields(ctx context.Context, b *entsql.DialectBuilder, ex dialect.ExecQuerier, certID uuid.UUID, ext Extraction, now time.Time) error {
	if _, err := exec(ctx, ex, b.Delete(tableFields).Where(entsql.EQ("certificate_id", certID))); err != nil {
		return common.DatabaseError("clear fields", err)
	}

	newField := func(key, value string, conf float64, kind constants.FieldKind) Field {
		return Field{
			ID:            uuid.New(),
			CertificateID: certID,
			Key:           key,
			Value:         value,
			Confidence:    conf,
			Kind:          kind,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
	}

	for _, key := range llm.CanonicalKeys {
		v := ext.Fields[key]
		if v == nil {
			continue
		}
		value, err := encodeValue(v)
		if err != nil {
			return common.WrapError(err, "encode field "+key)
		}
		f := newField(key, value, constants.ExtractedFieldConfidence, constants.FieldKindExtracted)
		if err := insertField(ctx, b, ex, f); err != nil {
			return common.DatabaseError("insert field "+key, err)
		}
	}

	summary := newField(constants.SummaryFieldKey, ext.Summary, constants.SummaryFieldConfidence, constants.FieldKindSummary)
	if err := insertField(ctx, b, ex, summary); err != nil {
		return common.DatabaseError("insert summary", err)
	}

	payload, err := ext.Verification.Encode()
	if err != nil {
		return common.WrapError(err, "encode verification")
	}
	vf := newField(constants.VerificationFieldKey, string(payload), ext.Verification.ConfidenceScore, constants.FieldKindVerification)
	if err := insertField(ctx, b, ex, vf); err != nil {
		return common.DatabaseError("insert verification", err)
	}

	res, err := exec(ctx, ex, b.Update(tableCertificates).
		Set("status", string(constants.StatusCompleted)).
		Where(entsql.EQ("id", certID)))
	if err != nil {
		return common.DatabaseError("complete certificate", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.NotFoundErrorf("certificate %s not found", certID)
	}
	return nil
}

func (r *fieldRepository) StoreExtraction(ctx context.Context, certID uuid.UUID, ext Extraction) error {
	err := r.db.withTx(ctx, func(tx dialect.Tx) error {
		return writeFields(ctx, r.builder(), tx, certID, ext, time.Now().UTC())
	})
	if err != nil {
		r.logger.Error("failed to store extraction", "certificate_id", certID, "error", err)
		return err
	}
	r.logger.Info("extraction stored", "certificate_id", certID, "fields", ext.Fields.Present())
	return nil
}

func (r *fieldRepository) certificateExists(ctx context.Context, ex dialect.ExecQuerier, certID uuid.UUID) (bool, error) {
	sel := r.builder().Select("id").From(r.builder().Table(tableCertificates)).Where(entsql.EQ("id", certID)).Limit(1)
	rows, err := query(ctx, ex, sel)
	if err != nil {
		return false, err
	}
	defer rows.Close()
	found := rows.Next()
	return found, rows.Err()
}

func (r *fieldRepository) UpsertVerification(ctx context.Context, certID uuid.UUID, res verify.Result) error {
	payload, err := res.Encode()
	if err != nil {
		return common.WrapError(err, "encode verification")
	}
	now := time.Now().UTC()

	err = r.db.withTx(ctx, func(tx dialect.Tx) error {
		upd, err := exec(ctx, tx, r.builder().Update(tableFields).
			Set("value", string(payload)).
			Set("confidence", res.ConfidenceScore).
			Set("updated_at", now).
			Where(entsql.And(
				entsql.EQ("certificate_id", certID),
				entsql.EQ("kind", string(constants.FieldKindVerification)),
			)))
		if err != nil {
			return common.DatabaseError("update verification", err)
		}
		if n, _ := upd.RowsAffected(); n > 0 {
			return nil
		}

		ok, err := r.certificateExists(ctx, tx, certID)
		if err != nil {
			return common.DatabaseError("lookup certificate", err)
		}
		if !ok {
			return common.NotFoundErrorf("certificate %s not found", certID)
		}
		f := Field{
			ID:            uuid.New(),
			CertificateID: certID,
			Key:           constants.VerificationFieldKey,
			Value:         string(payload),
			Confidence:    res.ConfidenceScore,
			Kind:          constants.FieldKindVerification,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := insertField(ctx, r.builder(), tx, f); err != nil {
			return common.DatabaseError("insert verification", err)
		}
		return nil
	})
	if err != nil {
		r.logger.Error("failed to upsert verification", "certificate_id", certID, "error", err)
		return err
	}
	r.logger.Info("verification stored", "certificate_id", certID,
		"verified", res.Verified, "confidence", res.ConfidenceScore)
	return nil
}

func (r *fieldRepository) List(ctx context.Context, certID uuid.UUID) ([]*Field, error) {
	sel := r.builder().Select(fieldColumns...).
		From(r.builder().Table(tableFields)).
		Where(entsql.EQ("certificate_id", certID)).
		OrderBy("kind", "key")
	rows, err := query(ctx, r.db.drv, sel)
	if err != nil {
		return nil, common.DatabaseError("list fields", err)
	}
	defer rows.Close()

	var out []*Field
	for rows.Next() {
		var (
			f    Field
			kind string
		)
		if err := rows.Scan(&f.ID, &f.CertificateID, &f.Key, &f.Value, &f.Confidence, &kind, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, common.DatabaseError("scan field", err)
		}
		f.Kind = constants.FieldKind(kind)
		out = append(out, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, common.DatabaseError("list fields", err)
	}
	return out, nil
}

func (r *fieldRepository) Count(ctx context.Context, certID uuid.UUID) (int, error) {
	sel := r.builder().Select(entsql.Count("*")).
		From(r.builder().Table(tableFields)).
		Where(entsql.EQ("certificate_id", certID))
	rows, err := query(ctx, r.db.drv, sel)
	if err != nil {
		return 0, common.DatabaseError("count fields", err)
	}
	defer rows.Close()
	var n int
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, common.DatabaseError("count fields", err)
		}
	}
	return n, rows.Err()
}

func (r *fieldRepository) Extracted(ctx context.Context, certID uuid.UUID) (llm.Fields, error) {
	list, err := r.List(ctx, certID)
	if err != nil {
		return nil, err
	}
	out := llm.NewFields()
	for _, f := range list {
		if f.Kind == constants.FieldKindExtracted && llm.IsCanonicalKey(f.Key) {
			out[f.Key] = decodeValue(f.Key, f.Value)
		}
	}
	return out, nil
}

func (r *fieldRepository) Summary(ctx context.Context, certID uuid.UUID) (string, error) {
	sel := r.builder().Select("value").
		From(r.builder().Table(tableFields)).
		Where(entsql.And(
			entsql.EQ("certificate_id", certID),
			entsql.EQ("kind", string(constants.FieldKindSummary)),
		)).
		Limit(1)
	rows, err := query(ctx, r.db.drv, sel)
	if err != nil {
		return "", common.DatabaseError("read summary", err)
	}
	defer rows.Close()
	var summary string
	if rows.Next() {
		if err := rows.Scan(&summary); err != nil {
			return "", common.DatabaseError("scan summary", err)
		}
	}
	return summary, rows.Err()
}

// Load reassembles the extraction of a certificate. A certificate with no
// fields yet is NotFound; an unreadable verification record is CorruptRecord.
func (r *fieldRepository) Load(ctx context.Context, certID uuid.UUID) (*Extraction, error) {
	fields, err := r.List(ctx, certID)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, common.NotFoundErrorf("no fields stored for certificate %s", certID)
	}

	ext := &Extraction{Fields: llm.NewFields()}
	for _, f := range fields {
		switch f.Kind {
		case constants.FieldKindExtracted:
			if llm.IsCanonicalKey(f.Key) {
				ext.Fields[f.Key] = decodeValue(f.Key, f.Value)
			}
		case constants.FieldKindSummary:
			ext.Summary = f.Value
		case constants.FieldKindVerification:
			res, err := verify.DecodeResult([]byte(f.Value))
			if err != nil {
				r.logger.Error("verification record unreadable", "certificate_id", certID, "field_id", f.ID, "error", err)
				return nil, err
			}
			ext.Verification = res
		}
	}
	return ext, nil
}
