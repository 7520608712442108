// internal/api/admins/create-admin/handler.go
package createadmin

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"kalikascan-admin/internal/common/auth"
	awsclients "kalikascan-admin/internal/common/aws"
	"kalikascan-admin/internal/common/config"
	"kalikascan-admin/internal/common/errors"
	"kalikascan-admin/internal/common/logger"
	"kalikascan-admin/internal/common/metrics"
	"kalikascan-admin/internal/common/validation"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/google/uuid"
)

const (
	OperationName = "create-admin"
)

type AccessGuard interface {
	RequireAdmin(ctx context.Context, authorizationHeader string) (*auth.Principal, error)
}

// IdentityAdmin covers the provider calls needed to provision an operator
// account.
type IdentityAdmin interface {
	CreateUser(ctx context.Context, user *auth.IdentityUser) (*auth.IdentityUser, error)
	SetAdminClaim(ctx context.Context, uid string, admin bool) error
}

var requestSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"email"},
	"properties": map[string]interface{}{
		"email":       map[string]interface{}{"type": "string", "format": "email"},
		"displayName": map[string]interface{}{"type": "string"},
		"superAdmin":  map[string]interface{}{"type": "boolean"},
	},
	"additionalProperties": false,
}

type Handler struct {
	config     *Config
	notifCfg   config.NotificationConfig
	db         *sql.DB
	logger     logger.Logger
	guard      AccessGuard
	identity   IdentityAdmin
	sesClient  awsclients.SESService
	errHandler *errors.ErrorHandler
}

func NewHandler(cfg *Config, notifCfg config.NotificationConfig, db *sql.DB, log logger.Logger, guard AccessGuard, identity IdentityAdmin, sesClient awsclients.SESService) *Handler {
	l := log.WithFields(map[string]interface{}{"operation": OperationName})
	return &Handler{
		config:     cfg,
		notifCfg:   notifCfg,
		db:         db,
		logger:     l,
		guard:      guard,
		identity:   identity,
		sesClient:  sesClient,
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
	w.WriteHeader(http.StatusCreated)
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
	if !validation.ValidateEmail(input.Email) {
		return nil, errors.NewValidationFailedError("email is not a valid address")
	}
	return &input, nil
}

// execute provisions the operator account. Only super admins may create
// operators. The identity provider account and the admins row are created
// first; the welcome email is best effort.
func (h *Handler) execute(ctx context.Context, principal *auth.Principal, input *Input) (*Output, error) {
	if !principal.SuperAdmin {
		return nil, errors.NewForbiddenError("superAdmin")
	}

	// Temporary password, rotated on first sign-in by the provider policy.
	tempPassword := uuid.New().String()

	created, err := h.identity.CreateUser(ctx, &auth.IdentityUser{
		Email:       input.Email,
		Password:    tempPassword,
		DisplayName: input.DisplayName,
	})
	if err != nil {
		return nil, err
	}

	if err := h.identity.SetAdminClaim(ctx, created.UID, true); err != nil {
		return nil, err
	}

	_, err = h.db.ExecContext(ctx, `
		INSERT INTO admins (uid, email, display_name, super_admin, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())`,
		created.UID, input.Email, input.DisplayName, input.SuperAdmin, principal.UID)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("insert admin", err)
	}

	welcomeSent := h.sendWelcomeEmail(ctx, input.Email, input.DisplayName, tempPassword)

	h.logger.Info("admin account created", map[string]interface{}{
		"uid":        created.UID,
		"email":      input.Email,
		"superAdmin": input.SuperAdmin,
		"createdBy":  principal.UID,
	})

	return &Output{
		Success:     true,
		UID:         created.UID,
		Email:       input.Email,
		SuperAdmin:  input.SuperAdmin,
		WelcomeSent: welcomeSent,
	}, nil
}

func (h *Handler) sendWelcomeEmail(ctx context.Context, email, displayName, tempPassword string) bool {
	if !h.notifCfg.Email.Enabled || h.sesClient == nil {
		return false
	}

	name := displayName
	if name == "" {
		name = email
	}
	body := "Hello " + name + ",\n\n" +
		"An administrator account has been created for you on the KalikaScan console.\n" +
		"Sign in with this email address and the temporary password below, then change it immediately.\n\n" +
		"Temporary password: " + tempPassword + "\n"

	_, err := h.sesClient.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{email},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: awssdk.String("Your KalikaScan admin account")},
			Body: &types.Body{
				Text: &types.Content{Data: awssdk.String(body)},
			},
		},
		Source: awssdk.String(h.notifCfg.Email.FromEmail),
	})
	if err != nil {
		h.logger.Warn("welcome email failed", map[string]interface{}{
			"email": email,
			"error": err.Error(),
		})
		return false
	}
	return true
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
