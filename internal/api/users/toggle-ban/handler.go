// internal/api/users/toggle-ban/handler.go
package toggleban

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
	OperationName = "toggle-ban"
)

type AccessGuard interface {
	RequireAdmin(ctx context.Context, authorizationHeader string) (*auth.Principal, error)
}

// IdentityAdmin disables or enables sign-in at the identity provider.
type IdentityAdmin interface {
	SetDisabled(ctx context.Context, uid string, disabled bool) error
}

var requestSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"uid"},
	"properties": map[string]interface{}{
		"uid": map[string]interface{}{"type": "string", "minLength": 1},
	},
	"additionalProperties": false,
}

type Handler struct {
	config     *Config
	db         *sql.DB
	logger     logger.Logger
	guard      AccessGuard
	identity   IdentityAdmin
	errHandler *errors.ErrorHandler
}

func NewHandler(config *Config, db *sql.DB, log logger.Logger, guard AccessGuard, identity IdentityAdmin) *Handler {
	l := log.WithFields(map[string]interface{}{"operation": OperationName})
	return &Handler{
		config:     config,
		db:         db,
		logger:     l,
		guard:      guard,
		identity:   identity,
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

// execute flips the ban flag. The identity provider is updated before the
// commit so a provider outage never leaves a banned user able to sign in.
func (h *Handler) execute(ctx context.Context, principal *auth.Principal, input *Input) (*Output, error) {
	// Admins cannot ban themselves
	if principal.UID == input.UID {
		return nil, errors.NewForbiddenError("modify own account")
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewDatabaseConnectionFailedError(err)
	}
	defer tx.Rollback()

	var banned bool
	err = tx.QueryRowContext(ctx, `
		SELECT banned FROM users WHERE uid = $1 FOR UPDATE`, input.UID).
		Scan(&banned)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("user", input.UID)
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("read user", err)
	}

	newBanned := !banned

	_, err = tx.ExecContext(ctx, `
		UPDATE users SET banned = $1, updated_at = NOW() WHERE uid = $2`,
		newBanned, input.UID)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("update ban flag", err)
	}

	if err := h.identity.SetDisabled(ctx, input.UID, newBanned); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("commit ban toggle", err)
	}

	h.logger.Info("ban flag toggled", map[string]interface{}{
		"uid":     input.UID,
		"banned":  newBanned,
		"adminId": principal.UID,
	})

	return &Output{
		Success: true,
		UID:     input.UID,
		Banned:  newBanned,
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
