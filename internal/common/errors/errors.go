// internal/common/errors/errors.go

// Package errors provides the standardized error taxonomy for the
// application lifecycle. Write paths fail loudly with one of these; read
// paths degrade to empty results on authorization failure.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeUnauthorized          ErrorCode = "UNAUTHORIZED"
	ErrCodeTokenExpired          ErrorCode = "TOKEN_EXPIRED"
	ErrCodeValidationFailed      ErrorCode = "VALIDATION_FAILED"
	ErrCodeMissingIdentifier     ErrorCode = "MISSING_IDENTIFIER"
	ErrCodeInvalidLoanType       ErrorCode = "INVALID_LOAN_TYPE"
	ErrCodeStoreUnavailable      ErrorCode = "STORE_UNAVAILABLE"
	ErrCodeRegistryLookupFailed  ErrorCode = "REGISTRY_LOOKUP_FAILED"
	ErrCodeInvalidWebhookPayload ErrorCode = "INVALID_WEBHOOK_PAYLOAD"
)

// StandardError is a structured application error. Field is set only for
// VALIDATION_FAILED and names the first offending schema field.
type StandardError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Field     string    `json:"field,omitempty"`
	Details   string    `json:"details,omitempty"`
	Retryable bool      `json:"retryable"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *StandardError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s[%s]: %s", e.Code, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// As unwraps err into a *StandardError when possible.
func As(err error) (*StandardError, bool) {
	var stdErr *StandardError
	ok := errors.As(err, &stdErr)
	return stdErr, ok
}

// Is reports whether err carries the given error code.
func Is(err error, code ErrorCode) bool {
	stdErr, ok := As(err)
	return ok && stdErr.Code == code
}

// NewUnauthorizedError creates a non-retryable owner-resolution failure.
func NewUnauthorizedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnauthorized,
		Message:   "No resolvable owner identity",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTokenExpiredError creates a non-retryable expired-credential failure.
// Callers are expected to refresh and re-invoke.
func NewTokenExpiredError() *StandardError {
	return &StandardError{
		Code:      ErrCodeTokenExpired,
		Message:   "Access token has expired",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewValidationFailedError creates a non-retryable submit rejection naming
// the first invalid field so the caller can direct the farmer's attention.
func NewValidationFailedError(field, reason string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   reason,
		Field:     field,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewMissingIdentifierError creates a non-retryable draft rejection: a draft
// without any identifying contact value is never persisted.
func NewMissingIdentifierError() *StandardError {
	return &StandardError{
		Code:      ErrCodeMissingIdentifier,
		Message:   "Mobile number is required to save a draft",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidLoanTypeError creates a non-retryable rejection for a category
// outside the closed enumeration.
func NewInvalidLoanTypeError(loanType string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidLoanType,
		Message:   "Invalid loan type",
		Details:   fmt.Sprintf("loanType: %s", loanType),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewStoreUnavailableError creates a retryable persistence failure. The
// engine itself never retries; re-invocation is the caller's concern.
func NewStoreUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStoreUnavailable,
		Message:   "Application store operation failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewRegistryLookupFailedError creates a retryable land-registry failure.
func NewRegistryLookupFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeRegistryLookupFailed,
		Message:   "Land registry lookup failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidWebhookPayloadError creates a non-retryable webhook rejection.
func NewInvalidWebhookPayloadError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidWebhookPayload,
		Message:   "Webhook payload failed schema validation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}
