package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/certificate-verifier/internal/common"
	"github.com/joseph-ayodele/certificate-verifier/internal/llm"
	"github.com/joseph-ayodele/certificate-verifier/internal/repository"
)

const (
	sheetName = "Certificates"
	pageSize  = 100
)

var headers = []string{
	"Certificate ID",
	"Uploaded",
	"File",
	"Status",
	"Student Name",
	"Enrollment Number",
	"Degree",
	"Branch",
	"University",
	"CGPA",
	"SGPA",
	"Academic Year",
	"Verified",
	"Confidence",
	"Verification Message",
	"Summary",
}

// Service produces certificate exports from the repositories.
type Service struct {
	certs  repository.CertificateRepository
	fields repository.FieldRepository
	logger *slog.Logger
}

func NewService(certs repository.CertificateRepository, fields repository.FieldRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{certs: certs, fields: fields, logger: logger}
}

// Document loads one certificate as its JSON export document.
func (s *Service) Document(ctx context.Context, id uuid.UUID) (Document, error) {
	cert, err := s.certs.Get(ctx, id)
	if err != nil {
		return Document{}, err
	}
	ext, err := s.fields.Load(ctx, id)
	switch {
	case errors.Is(err, common.ErrNotFound):
		return NewDocument(cert, nil), nil
	case err != nil:
		return Document{}, err
	}
	return NewDocument(cert, ext), nil
}

// row loads what a spreadsheet row needs. An unreadable verification record
// still exports the extracted fields.
func (s *Service) row(ctx context.Context, cert *repository.Certificate) (*repository.Extraction, string, error) {
	ext, err := s.fields.Load(ctx, cert.ID)
	switch {
	case err == nil:
		return ext, ext.Verification.Message, nil
	case errors.Is(err, common.ErrNotFound):
		return &repository.Extraction{Fields: llm.NewFields()}, "", nil
	case errors.Is(err, common.ErrCorruptRecord):
		fields, ferr := s.fields.Extracted(ctx, cert.ID)
		if ferr != nil {
			return nil, "", ferr
		}
		return &repository.Extraction{Fields: fields}, "verification record unreadable", nil
	default:
		return nil, "", err
	}
}

// CertificatesXLSX returns an XLSX workbook of every certificate, newest first.
func (s *Service) CertificatesXLSX(ctx context.Context) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, err
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheetName, cell, h)
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		last, _ := excelize.CoordinatesToCellName(len(headers), 1)
		_ = f.SetCellStyle(sheetName, "A1", last, style)
	}

	row := 2
	for offset := 0; ; offset += pageSize {
		certs, total, err := s.certs.List(ctx, pageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("list certificates: %w", err)
		}
		for _, c := range certs {
			ext, message, err := s.row(ctx, c)
			if err != nil {
				return nil, fmt.Errorf("load certificate %s: %w", c.ID, err)
			}
			fv := func(key string) any { return valueOrMissing(ext.Fields, key) }
			values := []any{
				c.ID.String(),
				c.CreatedAt.UTC().Format(time.RFC3339),
				c.OriginalFilename,
				string(c.Status),
				fv(llm.KeyStudentName),
				fv(llm.KeyEnrollmentNumber),
				fv(llm.KeyDegree),
				fv(llm.KeyBranch),
				fv(llm.KeyUniversityName),
				fv(llm.KeyCGPA),
				fv(llm.KeySGPA),
				fv(llm.KeyAcademicYear),
				yesNo(ext.Verification.Verified),
				ext.Verification.ConfidenceScore,
				message,
				ext.Summary,
			}
			cell, _ := excelize.CoordinatesToCellName(1, row)
			if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
				return nil, fmt.Errorf("xlsx row: %w", err)
			}
			row++
		}
		if len(certs) == 0 || offset+len(certs) >= total {
			break
		}
	}

	_ = f.SetColWidth(sheetName, "A", "A", 38) // id
	_ = f.SetColWidth(sheetName, "B", "D", 20)
	_ = f.SetColWidth(sheetName, "E", "L", 22)
	_ = f.SetColWidth(sheetName, "M", "N", 12)
	_ = f.SetColWidth(sheetName, "O", "P", 60)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", row-2,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
