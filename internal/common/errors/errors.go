// Package errors provides standardized error handling for the admin API.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeUnauthenticated ErrorCode = "UNAUTHENTICATED"
	ErrCodeForbidden       ErrorCode = "FORBIDDEN"

	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"

	ErrCodeNotFound          ErrorCode = "NOT_FOUND"
	ErrCodeIntegrityMismatch ErrorCode = "INTEGRITY_MISMATCH"
	ErrCodeAlreadyReviewed   ErrorCode = "ALREADY_REVIEWED"
	ErrCodeInvalidState      ErrorCode = "INVALID_STATE"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeQueryTimeout             ErrorCode = "QUERY_TIMEOUT"

	ErrCodeSearchQueryFailed ErrorCode = "SEARCH_QUERY_FAILED"

	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. Error Constructors
// ==========================

// NewUnauthenticatedError creates a non-retryable authentication error.
func NewUnauthenticatedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnauthenticated,
		Message:   "Missing or invalid credential",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewForbiddenError creates a non-retryable authorization error.
func NewForbiddenError(capability string) *StandardError {
	return &StandardError{
		Code:      ErrCodeForbidden,
		Message:   "Caller lacks required capability",
		Details:   fmt.Sprintf("capability: %s", capability),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewValidationFailedError creates a non-retryable request validation error.
func NewValidationFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Request validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotFoundError creates a non-retryable missing-document error.
// resource names which document was absent ("application", "user", "nestedApplication").
func NewNotFoundError(resource, id string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotFound,
		Message:   fmt.Sprintf("Referenced %s not found", resource),
		Details:   fmt.Sprintf("%s: %s", resource, id),
		Retryable: false,
		Metadata:  map[string]interface{}{"resource": resource},
		Timestamp: time.Now().UTC(),
	}
}

// NewIntegrityMismatchError creates a non-retryable cross-document integrity error.
// projection is "global" or "nested".
func NewIntegrityMismatchError(projection string) *StandardError {
	return &StandardError{
		Code:      ErrCodeIntegrityMismatch,
		Message:   "Applicant id mismatch between projections",
		Details:   fmt.Sprintf("projection: %s", projection),
		Retryable: false,
		Metadata:  map[string]interface{}{"projection": projection},
		Timestamp: time.Now().UTC(),
	}
}

// NewAlreadyReviewedError creates a non-retryable idempotency-guard error.
func NewAlreadyReviewedError(currentStatus string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAlreadyReviewed,
		Message:   "Application was already reviewed",
		Details:   fmt.Sprintf("currentStatus: %s", currentStatus),
		Retryable: false,
		Metadata:  map[string]interface{}{"currentStatus": currentStatus},
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidStateError creates a non-retryable lifecycle error.
func NewInvalidStateError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidState,
		Message:   "Operation not allowed in current state",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryExecutionFailedError creates a retryable query execution error.
func NewQueryExecutionFailedError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryExecutionFailed,
		Message:   "Database query execution error",
		Details:   fmt.Sprintf("operation: %s, error: %s", operation, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryTimeoutError creates a retryable query timeout error.
func NewQueryTimeoutError(operation string) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryTimeout,
		Message:   "Database query timeout",
		Details:   fmt.Sprintf("operation: %s", operation),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSearchQueryFailedError creates a retryable search query error.
func NewSearchQueryFailedError(index string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSearchQueryFailed,
		Message:   "Search query error",
		Details:   fmt.Sprintf("index: %s, error: %s", index, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationSendFailedError creates the non-fatal notification error.
// It is reported inside an otherwise-successful result, never raised to the caller.
func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   "Notification delivery failed",
		Details:   fmt.Sprintf("channel: %s, error: %s", channel, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewInternalError creates a non-retryable catch-all error.
func NewInternalError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. HTTP Status Mapping
// ==========================

// HTTPStatusMapping maps internal error codes to HTTP status classes.
var HTTPStatusMapping = map[ErrorCode]int{
	ErrCodeUnauthenticated:          401,
	ErrCodeForbidden:                403,
	ErrCodeValidationFailed:         400,
	ErrCodeIntegrityMismatch:        400,
	ErrCodeAlreadyReviewed:          409,
	ErrCodeInvalidState:             409,
	ErrCodeNotFound:                 404,
	ErrCodeDatabaseConnectionFailed: 500,
	ErrCodeQueryExecutionFailed:     500,
	ErrCodeQueryTimeout:             500,
	ErrCodeSearchQueryFailed:        500,
	ErrCodeNotificationSendFailed:   500,
	ErrCodeInternal:                 500,
}

// GetHTTPStatus returns the HTTP status for an error code, 500 when unmapped.
func GetHTTPStatus(code ErrorCode) int {
	if status, exists := HTTPStatusMapping[code]; exists {
		return status
	}
	return 500
}

// ==========================
// 4. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeQueryTimeout,
		ErrCodeSearchQueryFailed,
		ErrCodeNotificationSendFailed:
		return true
	default:
		return false
	}
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "UNAUTHENTICATED") || strings.Contains(codeStr, "FORBIDDEN"):
		return "AUTH"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY"):
		return "DATABASE"
	case strings.Contains(codeStr, "SEARCH"):
		return "SEARCH"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	case strings.Contains(codeStr, "NOT_FOUND") || strings.Contains(codeStr, "INTEGRITY") ||
		strings.Contains(codeStr, "REVIEWED") || strings.Contains(codeStr, "STATE"):
		return "LIFECYCLE"
	default:
		return "OTHER"
	}
}
