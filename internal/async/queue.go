package async

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Kind selects what a job re-runs.
type Kind string

const (
	KindReprocess Kind = "reprocess"
	KindReverify  Kind = "reverify"
)

// ErrClosed is returned by Enqueue after Shutdown.
var ErrClosed = errors.New("queue is shutting down")

// Job is one background unit of work for a single certificate.
type Job struct {
	CertificateID uuid.UUID
	Kind          Kind
	SubmittedAt   time.Time
	RequestID     string
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
