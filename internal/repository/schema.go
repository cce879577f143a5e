package repository

import (
	"context"
	"math"

	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"

	"github.com/joseph-ayodele/certificate-verifier/internal/common"
)

const (
	tableCertificates = "certificates"
	tableFields       = "fields"
)

var (
	// CertificatesColumns holds the columns for the "certificates" table.
	CertificatesColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "image_path", Type: field.TypeString},
		{Name: "original_filename", Type: field.TypeString},
		{Name: "file_type", Type: field.TypeString, Size: 16},
		{Name: "content_hash", Type: field.TypeString, Size: 64},
		{Name: "status", Type: field.TypeString, Size: 16},
		{Name: "created_at", Type: field.TypeTime},
	}
	// CertificatesTable holds the schema information for the "certificates" table.
	CertificatesTable = &schema.Table{
		Name:       tableCertificates,
		Columns:    CertificatesColumns,
		PrimaryKey: []*schema.Column{CertificatesColumns[0]},
		Indexes: []*schema.Index{
			{
				Name:    "certificate_content_hash",
				Unique:  false,
				Columns: []*schema.Column{CertificatesColumns[4]},
			},
			{
				Name:    "certificate_created_at",
				Unique:  false,
				Columns: []*schema.Column{CertificatesColumns[6]},
			},
		},
	}
	// FieldsColumns holds the columns for the "fields" table.
	FieldsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "certificate_id", Type: field.TypeUUID},
		{Name: "key", Type: field.TypeString, Size: 128},
		{Name: "value", Type: field.TypeString, Size: math.MaxInt32},
		{Name: "confidence", Type: field.TypeFloat64},
		{Name: "kind", Type: field.TypeString, Size: 32},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
	}
	// FieldsTable holds the schema information for the "fields" table.
	FieldsTable = &schema.Table{
		Name:       tableFields,
		Columns:    FieldsColumns,
		PrimaryKey: []*schema.Column{FieldsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "fields_certificates_fields",
				Columns:    []*schema.Column{FieldsColumns[1]},
				RefColumns: []*schema.Column{CertificatesColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{
				Name:    "field_certificate_id_key",
				Unique:  true,
				Columns: []*schema.Column{FieldsColumns[1], FieldsColumns[2]},
			},
			{
				Name:    "field_certificate_id_kind",
				Unique:  false,
				Columns: []*schema.Column{FieldsColumns[1], FieldsColumns[5]},
			},
		},
	}
	// Tables holds all the tables in the schema.
	Tables = []*schema.Table{
		CertificatesTable,
		FieldsTable,
	}
)

func init() {
	FieldsTable.ForeignKeys[0].RefTable = CertificatesTable
}

// Migrate creates or updates the tables.
func (d *DB) Migrate(ctx context.Context) error {
	m, err := schema.NewMigrate(d.drv)
	if err != nil {
		return common.DatabaseError("init migrate", err)
	}
	if err := m.Create(ctx, Tables...); err != nil {
		d.logger.Error("schema migration failed", "error", err)
		return common.DatabaseError("migrate", err)
	}
	d.logger.Info("schema up to date", "tables", len(Tables))
	return nil
}
