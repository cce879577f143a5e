package repository

import (
	"context"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/certificate-verifier/constants"
	"github.com/joseph-ayodele/certificate-verifier/internal/common"
)

var certificateColumns = []string{"id", "image_path", "original_filename", "file_type", "content_hash", "status", "created_at"}

type CertificateRepository interface {
	// CreateWithExtraction inserts the certificate and all of its fields in one transaction.
	CreateWithExtraction(ctx context.Context, cert *Certificate, ext Extraction) (*Certificate, error)
	// Create inserts a bare certificate row.
	Create(ctx context.Context, cert *Certificate) (*Certificate, error)
	Get(ctx context.Context, id uuid.UUID) (*Certificate, error)
	GetByHash(ctx context.Context, hash string) (*Certificate, error)
	List(ctx context.Context, limit, offset int) ([]*Certificate, int, error)
	ListIDs(ctx context.Context) ([]uuid.UUID, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status constants.CertificateStatus) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type certificateRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewCertificateRepository(db *DB, logger *slog.Logger) CertificateRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &certificateRepository{db: db, logger: logger}
}

func (r *certificateRepository) builder() *entsql.DialectBuilder {
	return entsql.Dialect(r.db.dialect)
}

func prepareCertificate(cert *Certificate) {
	if cert.ID == uuid.Nil {
		cert.ID = uuid.New()
	}
	if cert.CreatedAt.IsZero() {
		cert.CreatedAt = time.Now().UTC()
	}
	if cert.Status == "" {
		cert.Status = constants.StatusPending
	}
}

func (r *certificateRepository) insert(ctx context.Context, ex dialect.ExecQuerier, cert *Certificate) error {
	_, err := exec(ctx, ex, r.builder().Insert(tableCertificates).
		Columns(certificateColumns...).
		Values(cert.ID, cert.ImagePath, cert.OriginalFilename, cert.FileType, cert.ContentHash, string(cert.Status), cert.CreatedAt))
	return err
}

func (r *certificateRepository) Create(ctx context.Context, cert *Certificate) (*Certificate, error) {
	prepareCertificate(cert)
	if err := r.insert(ctx, r.db.drv, cert); err != nil {
		r.logger.Error("failed to create certificate", "filename", cert.OriginalFilename, "error", err)
		return nil, common.DatabaseError("create certificate", err)
	}
	return cert, nil
}

func (r *certificateRepository) CreateWithExtraction(ctx context.Context, cert *Certificate, ext Extraction) (*Certificate, error) {
	prepareCertificate(cert)
	cert.Status = constants.StatusCompleted

	err := r.db.withTx(ctx, func(tx dialect.Tx) error {
		if err := r.insert(ctx, tx, cert); err != nil {
			return common.DatabaseError("insert certificate", err)
		}
		return writeFields(ctx, r.builder(), tx, cert.ID, ext, cert.CreatedAt)
	})
	if err != nil {
		r.logger.Error("failed to create certificate with extraction",
			"certificate_id", cert.ID, "filename", cert.OriginalFilename, "error", err)
		return nil, err
	}
	r.logger.Info("certificate stored", "certificate_id", cert.ID, "fields", ext.Fields.Present())
	return cert, nil
}

func (r *certificateRepository) selectCertificates() *entsql.Selector {
	t := r.builder().Table(tableCertificates)
	return r.builder().Select(certificateColumns...).From(t)
}

func (r *certificateRepository) scanOne(ctx context.Context, sel *entsql.Selector, what string) (*Certificate, error) {
	rows, err := query(ctx, r.db.drv, sel.Limit(1))
	if err != nil {
		return nil, common.DatabaseError("query certificate", err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, common.DatabaseError("query certificate", err)
		}
		return nil, common.NotFoundErrorf("certificate %s not found", what)
	}
	c, err := scanCertificate(rows)
	if err != nil {
		return nil, common.DatabaseError("scan certificate", err)
	}
	return c, nil
}

func scanCertificate(rows *entsql.Rows) (*Certificate, error) {
	var (
		c      Certificate
		status string
	)
	if err := rows.Scan(&c.ID, &c.ImagePath, &c.OriginalFilename, &c.FileType, &c.ContentHash, &status, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.Status = constants.CertificateStatus(status)
	return &c, nil
}

func (r *certificateRepository) Get(ctx context.Context, id uuid.UUID) (*Certificate, error) {
	return r.scanOne(ctx, r.selectCertificates().Where(entsql.EQ("id", id)), id.String())
}

func (r *certificateRepository) GetByHash(ctx context.Context, hash string) (*Certificate, error) {
	sel := r.selectCertificates().Where(entsql.EQ("content_hash", hash)).OrderBy(entsql.Desc("created_at"))
	return r.scanOne(ctx, sel, "with hash "+hash)
}

// List returns certificates newest first along with the total count.
func (r *certificateRepository) List(ctx context.Context, limit, offset int) ([]*Certificate, int, error) {
	countSel := r.builder().Select(entsql.Count("*")).From(r.builder().Table(tableCertificates))
	rows, err := query(ctx, r.db.drv, countSel)
	if err != nil {
		return nil, 0, common.DatabaseError("count certificates", err)
	}
	var total int
	if rows.Next() {
		if err := rows.Scan(&total); err != nil {
			_ = rows.Close()
			return nil, 0, common.DatabaseError("count certificates", err)
		}
	}
	_ = rows.Close()

	sel := r.selectCertificates().
		OrderBy(entsql.Desc("created_at"), entsql.Desc("id")).
		Limit(limit).
		Offset(offset)
	rows, err = query(ctx, r.db.drv, sel)
	if err != nil {
		return nil, 0, common.DatabaseError("list certificates", err)
	}
	defer rows.Close()

	var out []*Certificate
	for rows.Next() {
		c, err := scanCertificate(rows)
		if err != nil {
			return nil, 0, common.DatabaseError("scan certificate", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, common.DatabaseError("list certificates", err)
	}
	return out, total, nil
}

func (r *certificateRepository) ListIDs(ctx context.Context) ([]uuid.UUID, error) {
	sel := r.builder().Select("id").From(r.builder().Table(tableCertificates)).OrderBy("created_at")
	rows, err := query(ctx, r.db.drv, sel)
	if err != nil {
		return nil, common.DatabaseError("list certificate ids", err)
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, common.DatabaseError("scan certificate id", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *certificateRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status constants.CertificateStatus) error {
	res, err := exec(ctx, r.db.drv, r.builder().Update(tableCertificates).
		Set("status", string(status)).
		Where(entsql.EQ("id", id)))
	if err != nil {
		r.logger.Error("failed to update certificate status", "certificate_id", id, "status", status, "error", err)
		return common.DatabaseError("update status", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.NotFoundErrorf("certificate %s not found", id)
	}
	return nil
}

// Delete removes the certificate; its fields go with it through the cascading foreign key.
func (r *certificateRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := exec(ctx, r.db.drv, r.builder().Delete(tableCertificates).Where(entsql.EQ("id", id)))
	if err != nil {
		r.logger.Error("failed to delete certificate", "certificate_id", id, "error", err)
		return common.DatabaseError("delete certificate", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.NotFoundErrorf("certificate %s not found", id)
	}
	r.logger.Info("certificate deleted", "certificate_id", id)
	return nil
}
