// internal/api/notifications/send-push/handler.go
package sendpush

import (
	"context"
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
	OperationName = "send-push"
)

type AccessGuard interface {
	RequireAdmin(ctx context.Context, authorizationHeader string) (*auth.Principal, error)
}

type Notifier interface {
	NotifyWithTimeout(ctx context.Context, msg notifier.Message) notifier.Report
}

var requestSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"uid", "title", "body"},
	"properties": map[string]interface{}{
		"uid":      map[string]interface{}{"type": "string", "minLength": 1},
		"title":    map[string]interface{}{"type": "string", "minLength": 1, "maxLength": 200},
		"body":     map[string]interface{}{"type": "string", "minLength": 1, "maxLength": 2000},
		"priority": map[string]interface{}{"type": "string", "enum": []interface{}{"normal", "high"}},
		"data": map[string]interface{}{
			"type":                 "object",
			"additionalProperties": map[string]interface{}{"type": "string"},
		},
	},
	"additionalProperties": false,
}

type Handler struct {
	config     *Config
	logger     logger.Logger
	guard      AccessGuard
	notifier   Notifier
	errHandler *errors.ErrorHandler
}

func NewHandler(config *Config, log logger.Logger, guard AccessGuard, n Notifier) *Handler {
	l := log.WithFields(map[string]interface{}{"operation": OperationName})
	return &Handler{
		config:     config,
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

	ctx, cancel := context.WithTimeout(r.Context(), h.config.Timeout)
	defer cancel()

	output := h.execute(ctx, principal, input)

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

// execute hands the message to the notifier. Delivery is best effort, so the
// operation succeeds regardless of the outcome and reports what happened.
func (h *Handler) execute(ctx context.Context, principal *auth.Principal, input *Input) *Output {
	// Messages to yourself are dropped, matching the app's behavior.
	if input.UID == principal.UID {
		return &Output{
			Success: true,
			UID:     input.UID,
			Notification: notifier.Report{
				Attempted: false,
				Detail:    "self notification skipped",
			},
		}
	}

	report := h.notifier.NotifyWithTimeout(ctx, notifier.Message{
		RecipientUID: input.UID,
		Type:         models.NotificationTypeDirect,
		Title:        input.Title,
		Body:         input.Body,
		Priority:     input.Priority,
		Data:         input.Data,
	})

	h.logger.Info("direct notification dispatched", map[string]interface{}{
		"recipientUid": input.UID,
		"adminId":      principal.UID,
		"delivered":    report.Delivered,
		"channel":      report.Channel,
	})

	return &Output{
		Success:      true,
		UID:          input.UID,
		Notification: report,
	}
}

func (h *Handler) failRequest(w http.ResponseWriter, r *http.Request, err error) {
	code := "INTERNAL_ERROR"
	if stdErr, ok := err.(*errors.StandardError); ok {
		code = string(stdErr.Code)
	}
	metrics.AdminRequestsFailed.WithLabelValues(OperationName, code).Inc()
	h.errHandler.HandleRequestError(w, r, err)
}

func (h *Handler) Execute(ctx context.Context, principal *auth.Principal, input *Input) *Output {
	return h.execute(ctx, principal, input)
}
