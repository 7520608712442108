// internal/api/applications/review-application/handler.go
package reviewapplication

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
	"kalikascan-admin/internal/notifier"
)

const (
	OperationName = "review-application"
)

// AccessGuard verifies the bearer token and the admin claim.
type AccessGuard interface {
	RequireAdmin(ctx context.Context, authorizationHeader string) (*auth.Principal, error)
}

// Notifier delivers the post-commit applicant notification.
type Notifier interface {
	NotifyWithTimeout(ctx context.Context, msg notifier.Message) notifier.Report
}

var requestSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"applicationId", "applicantId", "decision"},
	"properties": map[string]interface{}{
		"applicationId": map[string]interface{}{"type": "string", "minLength": 1},
		"applicantId":   map[string]interface{}{"type": "string", "minLength": 1},
		"decision":      map[string]interface{}{"type": "string", "enum": []interface{}{"approved", "rejected"}},
		"adminNote":     map[string]interface{}{"type": []interface{}{"string", "null"}},
	},
	"additionalProperties": false,
}

type Handler struct {
	config     *Config
	db         *sql.DB
	logger     logger.Logger
	guard      AccessGuard
	notifier   Notifier
	errHandler *errors.ErrorHandler
}

func NewHandler(config *Config, db *sql.DB, log logger.Logger, guard AccessGuard, n Notifier) *Handler {
	l := log.WithFields(map[string]interface{}{"operation": OperationName})
	return &Handler{
		config:     config,
		db:         db,
		logger:     l,
		guard:      guard,
		notifier:   n,
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

	h.logger.Info("processing review", map[string]interface{}{
		"applicationId": input.ApplicationID,
		"applicantId":   input.ApplicantID,
		"decision":      input.Decision,
		"reviewerUid":   principal.UID,
	})

	ctx, cancel := context.WithTimeout(r.Context(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, principal, input)
	if err != nil {
		h.failRequest(w, r, err)
		return
	}

	metrics.AdminRequestsCompleted.WithLabelValues(OperationName).Inc()
	metrics.ApplicationsReviewed.WithLabelValues(input.Decision).Inc()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(output)
}

func (h *Handler) decodeInput(r *http.Request) (*Input, error) {
	var raw map[string]interface{}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&raw); err != nil {
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

// execute runs the six precondition checks and the three writes inside one
// transaction, then sends the applicant notification after commit. Row locks
// on all three records make concurrent reviews of the same application
// serialize; the loser observes a terminal status and gets ALREADY_REVIEWED.
func (h *Handler) execute(ctx context.Context, principal *auth.Principal, input *Input) (*Output, error) {
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

	var userRole string
	err = tx.QueryRowContext(ctx, `
		SELECT role FROM users WHERE uid = $1 FOR UPDATE`, input.ApplicantID).
		Scan(&userRole)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("user", input.ApplicantID)
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("read user", err)
	}

	var nestedApplicantUID, nestedStatus string
	err = tx.QueryRowContext(ctx, `
		SELECT applicant_uid, status FROM user_expert_applications
		WHERE user_id = $1 AND application_id = $2 FOR UPDATE`,
		input.ApplicantID, input.ApplicationID).
		Scan(&nestedApplicantUID, &nestedStatus)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("nestedApplication", input.ApplicationID)
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("read nested application", err)
	}

	if globalUserID != input.ApplicantID {
		return nil, errors.NewIntegrityMismatchError("global")
	}
	if nestedApplicantUID != input.ApplicantID {
		return nil, errors.NewIntegrityMismatchError("nested")
	}

	if globalStatus != models.ApplicationStatusPending {
		return nil, errors.NewAlreadyReviewedError(globalStatus)
	}

	status := models.StatusForDecision(input.Decision)
	role := models.RoleForDecision(input.Decision)

	// Both projections get the identical review patch. A review without a
	// note stores NULL, never the empty string.
	var reviewedAt time.Time
	err = tx.QueryRowContext(ctx, `
		UPDATE expert_applications
		SET status = $1, reviewed_by = $2, review_notes = $3, reviewed_at = NOW(), updated_at = NOW()
		WHERE id = $4
		RETURNING reviewed_at`,
		status, principal.UID, input.AdminNote, input.ApplicationID).
		Scan(&reviewedAt)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("update application", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE user_expert_applications
		SET status = $1, reviewed_by = $2, review_notes = $3, reviewed_at = NOW(), updated_at = NOW()
		WHERE user_id = $4 AND application_id = $5`,
		status, principal.UID, input.AdminNote, input.ApplicantID, input.ApplicationID)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("update nested application", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE users SET role = $1, updated_at = NOW() WHERE uid = $2`,
		role, input.ApplicantID)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("update user role", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("commit review", err)
	}

	h.logger.Info("application reviewed", map[string]interface{}{
		"applicationId": input.ApplicationID,
		"applicantId":   input.ApplicantID,
		"status":        status,
		"role":          role,
	})

	report := h.notifyApplicant(ctx, input, status)

	return &Output{
		Success:       true,
		ApplicationID: input.ApplicationID,
		ApplicantID:   input.ApplicantID,
		Status:        status,
		ReviewedAt:    reviewedAt.UTC().Format(time.RFC3339),
		Notification:  report,
	}, nil
}

// notifyApplicant runs strictly after commit. Its failure is reported inside
// the success payload and never turns the reviewed application into an error.
func (h *Handler) notifyApplicant(ctx context.Context, input *Input, status string) notifier.Report {
	title := "Expert application rejected"
	body := "Your expert application has been rejected."
	if status == models.ApplicationStatusApproved {
		title = "Expert application approved"
		body = "Congratulations! Your expert application has been approved."
	}
	if input.AdminNote != nil && strings.TrimSpace(*input.AdminNote) != "" {
		body += "\n\nAdmin note: " + strings.TrimSpace(*input.AdminNote)
	}

	return h.notifier.NotifyWithTimeout(ctx, notifier.Message{
		RecipientUID: input.ApplicantID,
		Type:         models.NotificationTypeApplicationReviewed,
		Title:        title,
		Body:         body,
		Data: map[string]string{
			"type":          models.NotificationTypeApplicationReviewed,
			"status":        status,
			"applicationId": input.ApplicationID,
		},
	})
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
