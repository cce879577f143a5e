package async

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/certificate-verifier/internal/common"
	"github.com/joseph-ayodele/certificate-verifier/internal/pipeline"
	"github.com/joseph-ayodele/certificate-verifier/internal/verify"
)

// Processor is the part of the pipeline the workers drive.
type Processor interface {
	Reprocess(ctx context.Context, certID uuid.UUID) (*pipeline.Result, error)
	Reverify(ctx context.Context, certID uuid.UUID) (verify.Result, error)
}

type ProcessorQueue struct {
	proc    Processor
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}
func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}
func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewProcessorQueue(proc Processor, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		proc:    proc,
		logger:  logger,
		workers: 4,
		timeout: 3 * time.Minute,
		ch:      make(chan Job, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Debug("worker started", "worker_id", workerID)
				for job := range q.ch {
					q.run(workerID, job)
				}
				q.logger.Debug("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

// run isolates one job: a failure or panic never reaches other certificates.
func (q *ProcessorQueue) run(workerID int, job Job) {
	log := q.logger.With("worker_id", workerID, "certificate_id", job.CertificateID, "kind", job.Kind)
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()
	if job.RequestID != "" {
		ctx = common.WithRequestID(ctx, job.RequestID)
	}

	start := time.Now()
	err := func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("panic: %v", p)
			}
		}()
		switch job.Kind {
		case KindReprocess:
			_, err = q.proc.Reprocess(ctx, job.CertificateID)
		case KindReverify:
			_, err = q.proc.Reverify(ctx, job.CertificateID)
		default:
			err = fmt.Errorf("unknown job kind %q", job.Kind)
		}
		return err
	}()

	if err != nil {
		log.Error("queue.job.failed", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return
	}
	log.Info("queue.job.ok", "elapsed_ms", time.Since(start).Milliseconds(),
		"waited_ms", start.Sub(job.SubmittedAt).Milliseconds())
}

func (q *ProcessorQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("cannot enqueue: queue is shutting down", "certificate_id", job.CertificateID)
		return ErrClosed
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	select {
	case q.ch <- job:
		q.logger.Debug("queued certificate", "certificate_id", job.CertificateID, "kind", job.Kind)
		return nil
	default:
	}
	q.logger.Warn("queue full, applying backpressure", "certificate_id", job.CertificateID)
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// EnqueueAll queues one job of kind per certificate and reports how many were accepted.
func (q *ProcessorQueue) EnqueueAll(ctx context.Context, ids []uuid.UUID, kind Kind) (int, error) {
	reqID := common.RequestIDFromContext(ctx)
	for i, id := range ids {
		if err := q.Enqueue(ctx, Job{CertificateID: id, Kind: kind, RequestID: reqID}); err != nil {
			return i, err
		}
	}
	return len(ids), nil
}

func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context")
	case <-done:
		q.logger.Info("queue drained, shutdown complete")
	}
}
