// Package errors classifies request failures and builds the structured log
// entries written when a page cannot be rendered.
package errors

import (
	"context"
	stderrors "errors"
	"runtime"

	"github.com/google/uuid"
	"github.com/nickoftime/keyvault-spo/internal/posts"
	"github.com/nickoftime/keyvault-spo/internal/sharepoint"
	"github.com/nickoftime/keyvault-spo/internal/vault"
)

// Error codes recorded with every failed request.
const (
	CodeAuthenticationFailed = "AUTHENTICATION_FAILED"
	CodeSecretNotFound       = "SECRET_NOT_FOUND"
	CodeInvalidSecret        = "INVALID_SECRET"
	CodeListNotFound         = "LIST_NOT_FOUND"
	CodeInvalidListItem      = "INVALID_LIST_ITEM"
	CodeTimeout              = "TIMEOUT"
	CodeCanceled             = "REQUEST_CANCELED"
	CodeInternalError        = "INTERNAL_ERROR"
)

// Classify maps an error from the posts pipeline to its error code.
func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case stderrors.Is(err, vault.ErrAuthentication), stderrors.Is(err, sharepoint.ErrUnauthorized):
		return CodeAuthenticationFailed
	case stderrors.Is(err, vault.ErrSecretNotFound):
		return CodeSecretNotFound
	case stderrors.Is(err, vault.ErrInvalidSecret):
		return CodeInvalidSecret
	case stderrors.Is(err, sharepoint.ErrListNotFound):
		return CodeListNotFound
	case stderrors.Is(err, posts.ErrMissingField), stderrors.Is(err, posts.ErrInvalidField):
		return CodeInvalidListItem
	case stderrors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	case stderrors.Is(err, context.Canceled):
		return CodeCanceled
	default:
		return CodeInternalError
	}
}

// NewCorrelationID returns a fresh correlation id.
func NewCorrelationID() string {
	return uuid.NewString()
}

// ValidCorrelationID reports whether id is acceptable as an inbound
// correlation id.
func ValidCorrelationID(id string) bool {
	if id == "" || len(id) > 64 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// GetStackTrace returns the current stack trace as a string.
func GetStackTrace() string {
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}

// ErrorLogEntry represents a structured error log entry.
type ErrorLogEntry struct {
	CorrelationID string `json:"correlation_id"`
	ErrorCode     string `json:"error_code"`
	Message       string `json:"message"`
	StackTrace    string `json:"stack_trace"`
}

// NewErrorLogEntry creates a new error log entry with all required fields.
func NewErrorLogEntry(correlationID, errorCode, message string) *ErrorLogEntry {
	return &ErrorLogEntry{
		CorrelationID: correlationID,
		ErrorCode:     errorCode,
		Message:       message,
		StackTrace:    GetStackTrace(),
	}
}

// NewErrorLogEntryFromError classifies err and records its message.
func NewErrorLogEntryFromError(err error, correlationID string) *ErrorLogEntry {
	return NewErrorLogEntry(correlationID, Classify(err), err.Error())
}

// ToSlogAttrs returns the error log entry as slog attributes for structured logging.
func (e *ErrorLogEntry) ToSlogAttrs() []any {
	return []any{
		"correlation_id", e.CorrelationID,
		"error_code", e.ErrorCode,
		"message", e.Message,
		"stack_trace", e.StackTrace,
	}
}
