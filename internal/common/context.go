package common

import (
	"context"
	"log/slog"
)

// Context keys for storing values in context
type contextKey string

const (
	ContextKeyRequestID     contextKey = "request_id"
	ContextKeyCertificateID contextKey = "certificate_id"
)

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// RequestIDFromContext extracts the request ID from context
func RequestIDFromContext(ctx context.Context) string {
	if requestID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return requestID
	}
	return ""
}

// WithCertificateID adds a certificate ID to the context
func WithCertificateID(ctx context.Context, certificateID string) context.Context {
	return context.WithValue(ctx, ContextKeyCertificateID, certificateID)
}

// CertificateIDFromContext extracts the certificate ID from context
func CertificateIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(ContextKeyCertificateID).(string); ok {
		return id
	}
	return ""
}

// LoggerFrom decorates logger with the request and certificate ids found in ctx.
func LoggerFrom(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	if rid := RequestIDFromContext(ctx); rid != "" {
		logger = logger.With("request_id", rid)
	}
	if cid := CertificateIDFromContext(ctx); cid != "" {
		logger = logger.With("certificate_id", cid)
	}
	return logger
}
