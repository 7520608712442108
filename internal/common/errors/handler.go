// internal/common/errors/handler.go
package errors

import (
	"encoding/json"
	"net/http"
	"time"
)

// ErrorHandler writes failed requests with standardized error handling
type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// ErrorResponse is the JSON body written for every failed request.
type ErrorResponse struct {
	Error     string                 `json:"error"`
	Code      string                 `json:"code"`
	Details   string                 `json:"details,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// HandleRequestError handles any error raised by an operation handler.
func (h *ErrorHandler) HandleRequestError(w http.ResponseWriter, r *http.Request, err error) {
	// Normalize to StandardError
	stdErr := h.normalizeError(err)

	status := GetHTTPStatus(stdErr.Code)

	h.logError(r, stdErr, status)

	resp := ErrorResponse{
		Error:     stdErr.Message,
		Code:      string(stdErr.Code),
		Details:   stdErr.Details,
		Metadata:  stdErr.Metadata,
		Timestamp: stdErr.Timestamp,
	}

	// 5xx details stay server-side
	if status >= 500 {
		resp.Details = ""
		resp.Metadata = nil
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// normalizeError ensures we always have a StandardError
func (h *ErrorHandler) normalizeError(err error) *StandardError {
	if stdErr, ok := err.(*StandardError); ok {
		return stdErr
	}
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func (h *ErrorHandler) logError(r *http.Request, stdErr *StandardError, status int) {
	fields := map[string]interface{}{
		"method":        r.Method,
		"path":          r.URL.Path,
		"errorCode":     string(stdErr.Code),
		"message":       stdErr.Message,
		"details":       stdErr.Details,
		"retryable":     stdErr.Retryable,
		"errorCategory": GetErrorCategory(stdErr.Code),
		"status":        status,
	}
	if status >= 500 {
		h.logger.Error("Request failed", fields)
	} else {
		h.logger.Warn("Request rejected", fields)
	}
}
