package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/certificate-verifier/internal/async"
	"github.com/joseph-ayodele/certificate-verifier/internal/common"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// StatusFor maps an error chain to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrUnsupportedFormat),
		errors.Is(err, common.ErrValidation),
		errors.Is(err, common.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrNoTextFound):
		return http.StatusUnprocessableEntity
	case errors.Is(err, common.ErrConfiguration), errors.Is(err, async.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, common.ErrExtraction),
		errors.Is(err, common.ErrInvalidResponse),
		errors.Is(err, common.ErrSummary):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// codeFor prefers the AppError code and falls back to a status-derived one.
func codeFor(err error, status int) string {
	if code := common.CodeOf(err); code != "" {
		return code
	}
	switch status {
	case http.StatusNotFound:
		return common.CodeNotFound
	case http.StatusBadRequest:
		return common.CodeValidation
	case http.StatusServiceUnavailable:
		return "UNAVAILABLE"
	default:
		return "INTERNAL_ERROR"
	}
}

// RespondError writes the error envelope. Server-side failures hide their
// cause chain behind the AppError message.
func RespondError(c *gin.Context, err error) {
	status := StatusFor(err)
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	var ae *common.AppError
	if status >= http.StatusInternalServerError && errors.As(err, &ae) {
		msg = ae.Message
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    codeFor(err, status),
		},
	})
}

// RespondBadRequest reports a request the client must fix.
func RespondBadRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorEnvelope{
		Error: APIError{Message: message, Code: common.CodeValidation},
	})
}
