// internal/api/presence/heartbeat/handler.go
package heartbeat

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"kalikascan-admin/internal/common/auth"
	"kalikascan-admin/internal/common/errors"
	"kalikascan-admin/internal/common/logger"
	"kalikascan-admin/internal/common/metrics"
)

const (
	OperationName = "heartbeat"
)

type AccessGuard interface {
	RequireAdmin(ctx context.Context, authorizationHeader string) (*auth.Principal, error)
}

// PresenceTracker is the slice of the presence tracker this operation needs.
type PresenceTracker interface {
	Touch(ctx context.Context, uid string) (time.Time, error)
	Online(ctx context.Context) ([]string, error)
}

type Handler struct {
	config     *Config
	tracker    PresenceTracker
	logger     logger.Logger
	guard      AccessGuard
	errHandler *errors.ErrorHandler
}

func NewHandler(config *Config, tracker PresenceTracker, log logger.Logger, guard AccessGuard) *Handler {
	l := log.WithFields(map[string]interface{}{"operation": OperationName})
	return &Handler{
		config:     config,
		tracker:    tracker,
		logger:     l,
		guard:      guard,
		errHandler: errors.NewErrorHandler(l),
	}
}

// Handle refreshes the caller's online marker.
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

	ctx, cancel := context.WithTimeout(r.Context(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, principal)
	if err != nil {
		h.failRequest(w, r, err)
		return
	}

	metrics.AdminRequestsCompleted.WithLabelValues(OperationName).Inc()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(output)
}

// HandleOnline lists admins currently holding a live marker.
func (h *Handler) HandleOnline(w http.ResponseWriter, r *http.Request) {
	if _, err := h.guard.RequireAdmin(r.Context(), r.Header.Get("Authorization")); err != nil {
		h.failRequest(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.config.Timeout)
	defer cancel()

	uids, err := h.tracker.Online(ctx)
	if err != nil {
		h.failRequest(w, r, errors.NewInternalError(err))
		return
	}
	if uids == nil {
		uids = []string{}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(&OnlineOutput{Online: uids, Count: len(uids)})
}

func (h *Handler) execute(ctx context.Context, principal *auth.Principal) (*Output, error) {
	expires, err := h.tracker.Touch(ctx, principal.UID)
	if err != nil {
		return nil, errors.NewInternalError(err)
	}

	return &Output{
		Success:   true,
		UID:       principal.UID,
		ExpiresAt: expires,
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

func (h *Handler) Execute(ctx context.Context, principal *auth.Principal) (*Output, error) {
	return h.execute(ctx, principal)
}
