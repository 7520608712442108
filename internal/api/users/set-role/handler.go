// internal/api/users/set-role/handler.go
package setrole

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"kalikascan-admin/internal/common/auth"
	"kalikascan-admin/internal/common/errors"
	"kalikascan-admin/internal/common/logger"
	"kalikascan-admin/internal/common/metrics"
	"kalikascan-admin/internal/common/validation"
)

const (
	OperationName = "set-role"
)

type AccessGuard interface {
	RequireAdmin(ctx context.Context, authorizationHeader string) (*auth.Principal, error)
}

var requestSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"uid", "role"},
	"properties": map[string]interface{}{
		"uid":  map[string]interface{}{"type": "string", "minLength": 1},
		"role": map[string]interface{}{"type": "string", "enum": []interface{}{"regular", "expert"}},
	},
	"additionalProperties": false,
}

type Handler struct {
	config     *Config
	db         *sql.DB
	logger     logger.Logger
	guard      AccessGuard
	errHandler *errors.ErrorHandler
}

func NewHandler(config *Config, db *sql.DB, log logger.Logger, guard AccessGuard) *Handler {
	l := log.WithFields(map[string]interface{}{"operation": OperationName})
	return &Handler{
		config:     config,
		db:         db,
		logger:     l,
		guard:      guard,
		errHandler: errors.NewErrorHandler(l),
	}
}

func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		metrics.AdminRequestDuration.WithLabelValues(OperationName).Observe(time.Since(start).Seconds())
	}()

	principal, err := h.guard.RequireAdmin(r.Context(), r.Header.Get("Authorization"))
	if err != nil {
		h.failRequest(w, r, err)
		return
	}

	input, err := h.decodeInput(r)
	if err != nil {
		h.failRequest(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, principal, input)
	if err != nil {
		h.failRequest(w, r, err)
		return
	}

	metrics.AdminRequestsCompleted.WithLabelValues(OperationName).Inc()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(output)
}

func (h *Handler) decodeInput(r *http.Request) (*Input, error) {
	var raw map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, errors.NewValidationFailedError("invalid JSON body: " + err.Error())
	}

	result, err := validation.ValidateDocument(requestSchema, raw)
	if err != nil {
		return nil, errors.NewValidationFailedError(err.Error())
	}
	if !result.Valid {
		return nil, errors.NewValidationFailedError(strings.Join(result.GetErrorMessages(), "; "))
	}

	rawJSON, _ := json.Marshal(raw)
	var input Input
	if err := json.Unmarshal(rawJSON, &input); err != nil {
		return nil, errors.NewValidationFailedError("invalid request body: " + err.Error())
	}
	return &input, nil
}

// execute sets the role directly, outside the application workflow. Used to
// correct roles after manual vetting or a reversed decision.
func (h *Handler) execute(ctx context.Context, principal *auth.Principal, input *Input) (*Output, error) {
	if principal.UID == input.UID {
		return nil, errors.NewForbiddenError("modify own account")
	}

	res, err := h.db.ExecContext(ctx, `
		UPDATE users SET role = $1, updated_at = NOW() WHERE uid = $2`,
		input.Role, input.UID)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("update role", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("update role", err)
	}
	if rows == 0 {
		return nil, errors.NewNotFoundError("user", input.UID)
	}

	h.logger.Info("role updated", map[string]interface{}{
		"uid":     input.UID,
		"role":    input.Role,
		"adminId": principal.UID,
	})

	return &Output{
		Success: true,
		UID:     input.UID,
		Role:    input.Role,
	}, nil
}

func (h *Handler) failRequest(w http.ResponseWriter, r *http.Request, err error) {
	code := "INTERNAL_ERROR"
	if stdErr, ok := err.(*errors.StandardError); ok {
		code = string(stdErr.Code)
	}
	metrics.AdminRequestsFailed.WithLabelValues(OperationName, code).Inc()
	h.errHandler.HandleRequestError(w, r, err)
}

func (h *Handler) Execute(ctx context.Context, principal *auth.Principal, input *Input) (*Output, error) {
	return h.execute(ctx, principal, input)
}
