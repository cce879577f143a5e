package ingest

import (
	"context"
	"io"
	"time"
)

// Stored describes one file saved into the upload directory.
type Stored struct {
	Path             string
	OriginalFilename string
	Ext              string // lowercased, without '.'
	FileType         string // constants.PDF or constants.IMAGE
	HashHex          string
	Size             int64
	Reencoded        bool
	StoredAt         time.Time
}

// FileResult is the per-file outcome of a directory run.
type FileResult struct {
	SourcePath    string
	CertificateID string
	Skipped       bool
	Err           string
}

// DirStats summarizes a directory run.
type DirStats struct {
	Scanned   uint32
	Matched   uint32
	Succeeded uint32
	Skipped   uint32
	Failed    uint32
}

// Saver is the behavior the HTTP layer and the batch tool depend on.
type Saver interface {
	// Save stores r under the upload directory using a sanitized copy of name.
	Save(ctx context.Context, name string, r io.Reader) (Stored, error)
	// SaveFile copies an existing file into the upload directory.
	SaveFile(ctx context.Context, path string) (Stored, error)
}

// FileHandler processes one discovered file. A true skipped result counts
// the file as already known.
type FileHandler func(ctx context.Context, path string) (certificateID string, skipped bool, err error)
