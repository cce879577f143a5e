package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"time"
)

// maxStderr bounds how much diagnostic output a failing binary can put in a
// warning or a log line.
const maxStderr = 4 << 10

// Runner executes the OCR binaries. Tests substitute a fake.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

type execRunner struct {
	logger *slog.Logger
}

// cappedBuffer keeps the first limit bytes and silently drops the rest.
type cappedBuffer struct {
	buf     bytes.Buffer
	limit   int
	dropped int
}

func (c *cappedBuffer) Write(p []byte) (int, error) {
	room := c.limit - c.buf.Len()
	if room <= 0 {
		c.dropped += len(p)
		return len(p), nil
	}
	if len(p) > room {
		c.buf.Write(p[:room])
		c.dropped += len(p) - room
		return len(p), nil
	}
	return c.buf.Write(p)
}

func (c *cappedBuffer) Bytes() []byte {
	if c.dropped == 0 {
		return c.buf.Bytes()
	}
	return append(c.buf.Bytes(), fmt.Sprintf("...(%d bytes dropped)", c.dropped)...)
}

func (r execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	log := r.logger.With("cmd", name, "argc", len(args))
	var stdout bytes.Buffer
	stderr := &cappedBuffer{limit: maxStderr}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start).Milliseconds()

	switch {
	case err == nil:
		log.Debug("ocr.exec.ok", "duration_ms", elapsed, "stdout_bytes", stdout.Len())
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		err = fmt.Errorf("%s timed out after %dms: %w", name, elapsed, ctx.Err())
		log.Error("ocr.exec.timeout", "duration_ms", elapsed)
	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			err = fmt.Errorf("%s exited with code %d: %w", name, exitErr.ExitCode(), err)
		}
		log.Error("ocr.exec.failed", "duration_ms", elapsed, "error", err, "stderr", string(stderr.Bytes()))
	}
	return stdout.Bytes(), stderr.Bytes(), err
}
