// internal/api/applications/delete-application/handler.go
package deleteapplication

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
	"kalikascan-admin/internal/models"
)

const (
	OperationName = "delete-application"
)

type AccessGuard interface {
	RequireAdmin(ctx context.Context, authorizationHeader string) (*auth.Principal, error)
}

var requestSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"applicationId"},
	"properties": map[string]interface{}{
		"applicationId": map[string]interface{}{"type": "string", "minLength": 1},
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

	_, err := h.guard.RequireAdmin(r.Context(), r.Header.Get("Authorization"))
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

	output, err := h.execute(ctx, input)
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

// execute removes both projections of a reviewed application. Pending
// applications cannot be deleted; they must go through review first.
func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewDatabaseConnectionFailedError(err)
	}
	defer tx.Rollback()

	var globalUserID, globalStatus string
	err = tx.QueryRowContext(ctx, `
		SELECT user_id, status FROM expert_applications
		WHERE id = $1 FOR UPDATE`, input.ApplicationID).
		Scan(&globalUserID, &globalStatus)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("application", input.ApplicationID)
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("read application", err)
	}

	if !models.IsTerminalStatus(globalStatus) {
		return nil, errors.NewInvalidStateError("only approved or rejected applications can be deleted, current status: " + globalStatus)
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM expert_applications WHERE id = $1`, input.ApplicationID)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("delete application", err)
	}

	// The owning user comes from the global row, not the request.
	_, err = tx.ExecContext(ctx, `
		DELETE FROM user_expert_applications
		WHERE user_id = $1 AND application_id = $2`,
		globalUserID, input.ApplicationID)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("delete nested application", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("commit delete", err)
	}

	h.logger.Info("application deleted", map[string]interface{}{
		"applicationId": input.ApplicationID,
		"applicantId":   globalUserID,
		"status":        globalStatus,
	})

	return &Output{
		Success:       true,
		ApplicationID: input.ApplicationID,
		DeletedAt:     time.Now().UTC().Format(time.RFC3339),
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

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
