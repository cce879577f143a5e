package verify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/certificate-verifier/internal/common"
	"github.com/joseph-ayodele/certificate-verifier/internal/llm"
)

const (
	msgInsufficientData = "Insufficient data for university verification"
	msgUnavailable      = "University database is currently unavailable"
	msgTimedOut         = "University database verification timed out"
)

const maxRegistryBody = 1 << 20

// Verifier checks extracted identity fields against the registry.
type Verifier interface {
	Verify(ctx context.Context, fields llm.Fields) Result
}

// Config points the client at a registry.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client calls the registry's verify endpoint.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
	logger  *slog.Logger
	now     func() time.Time
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		timeout: cfg.Timeout,
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Verify never fails: transport and registry problems come back as an
// unattempted verdict carrying the reason.
func (c *Client) Verify(ctx context.Context, fields llm.Fields) Result {
	name := strings.TrimSpace(fields.String(llm.KeyStudentName))
	enrollment := strings.TrimSpace(fields.String(llm.KeyEnrollmentNumber))
	log := common.LoggerFrom(ctx, c.logger)

	if name == "" || enrollment == "" {
		log.Info("verify.skip", "reason", "missing identity fields",
			"has_name", name != "", "has_enrollment", enrollment != "")
		return Result{Message: msgInsufficientData, VerificationTimestamp: c.now()}
	}

	q := Query{StudentName: name, EnrollmentNumber: enrollment}
	status, body, err := c.sendJSON(ctx, http.MethodPost, c.baseURL+"/api/verify", q)
	if err != nil {
		return c.unattempted(log, transportMessage(err), err)
	}
	if status != http.StatusOK {
		return c.unattempted(log, fmt.Sprintf("Unable to connect to university database (HTTP %d)", status), nil)
	}

	if err := llm.ValidateJSONAgainstSchema(registryResponseSchema(), body); err != nil {
		return c.unattempted(log, "University verification error: "+err.Error(), err)
	}
	var resp RegistryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return c.unattempted(log, "University verification error: "+err.Error(), err)
	}
	if !resp.Success {
		reason := resp.Error
		if reason == "" {
			reason = resp.Message
		}
		if reason == "" {
			reason = "unknown error"
		}
		return c.unattempted(log, "University verification failed: "+reason, nil)
	}

	res := Interpret(q, resp, c.now())
	log.Info("verify.ok",
		"verified", res.Verified,
		"student_verified", res.StudentVerified,
		"confidence", res.ConfidenceScore,
	)
	return res
}

// Reachable reports whether the registry answers HTTP at all.
func (c *Client) Reachable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	status, _, err := c.sendJSON(ctx, http.MethodGet, c.baseURL+"/api/stats", nil)
	return err == nil && status < http.StatusInternalServerError
}

func (c *Client) unattempted(log *slog.Logger, message string, cause error) Result {
	log.Warn("verify.unattempted", "message", message, "error", cause)
	return Result{Message: message, VerificationTimestamp: c.now()}
}

func transportMessage(err error) string {
	var ne net.Error
	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return msgUnavailable
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &ne) && ne.Timeout():
		return msgTimedOut
	default:
		return "University verification error: " + err.Error()
	}
}

// sendJSON issues one request with the client timeout and returns status and body.
func (c *Client) sendJSON(ctx context.Context, method, url string, in any) (int, []byte, error) {
	rid := uuid.New().String()
	start := time.Now()

	var reader io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if id := common.RequestIDFromContext(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	c.logger.Debug("verify.http.request", "req_id", rid, "method", method, "url", url)
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("verify.http.error", "req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRegistryBody))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read registry response: %w", err)
	}
	c.logger.Info("verify.http.response", "req_id", rid, "status", resp.StatusCode,
		"bytes", len(body), "elapsed_ms", time.Since(start).Milliseconds())
	return resp.StatusCode, body, nil
}
