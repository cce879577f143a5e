package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")
	ErrDatabase     = errors.New("database error")
	ErrValidation   = errors.New("validation failed")

	ErrConfiguration     = errors.New("configuration error")
	ErrExtraction        = errors.New("extraction failed")
	ErrInvalidResponse   = errors.New("invalid model response")
	ErrSummary           = errors.New("summary generation failed")
	ErrNoTextFound       = errors.New("no text found")
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrCorruptRecord     = errors.New("corrupt record")
)

// Error codes carried by AppError.Code.
const (
	CodeConfiguration     = "CONFIGURATION_ERROR"
	CodeExtraction        = "EXTRACTION_ERROR"
	CodeInvalidResponse   = "INVALID_RESPONSE"
	CodeSummary           = "SUMMARY_ERROR"
	CodeNoTextFound       = "NO_TEXT_FOUND"
	CodeUnsupportedFormat = "UNSUPPORTED_FORMAT"
	CodeNotFound          = "NOT_FOUND"
	CodeCorruptRecord     = "CORRUPT_RECORD"
	CodeValidation        = "VALIDATION_ERROR"
	CodeDatabase          = "DATABASE_ERROR"
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// join keeps both the sentinel and the underlying cause reachable via errors.Is.
func join(sentinel, cause error) error {
	if cause == nil {
		return sentinel
	}
	return errors.Join(sentinel, cause)
}

func ConfigurationError(message string) error {
	return NewAppError(CodeConfiguration, message, ErrConfiguration)
}

func ExtractionError(message string, cause error) error {
	return NewAppError(CodeExtraction, message, join(ErrExtraction, cause))
}

func InvalidResponseError(message string, cause error) error {
	return NewAppError(CodeInvalidResponse, message, join(ErrInvalidResponse, cause))
}

func SummaryError(message string, cause error) error {
	return NewAppError(CodeSummary, message, join(ErrSummary, cause))
}

func NoTextFoundError(path string) error {
	return NewAppError(CodeNoTextFound, fmt.Sprintf("no text could be extracted from %q", path), ErrNoTextFound)
}

func UnsupportedFormatError(ext string) error {
	return NewAppError(CodeUnsupportedFormat, fmt.Sprintf("unsupported extension: %q", ext), ErrUnsupportedFormat)
}

func NotFoundError(message string) error {
	return NewAppError(CodeNotFound, message, ErrNotFound)
}

func NotFoundErrorf(format string, args ...any) error {
	return NotFoundError(fmt.Sprintf(format, args...))
}

func CorruptRecordError(message string, cause error) error {
	return NewAppError(CodeCorruptRecord, message, join(ErrCorruptRecord, cause))
}

func DatabaseError(message string, cause error) error {
	return NewAppError(CodeDatabase, message, join(ErrDatabase, cause))
}

// CodeOf returns the AppError code in err's chain, or "" if none.
func CodeOf(err error) string {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}
