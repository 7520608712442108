// internal/api/reports/map-posts/handler.go
package mapposts

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"kalikascan-admin/internal/common/auth"
	"kalikascan-admin/internal/common/errors"
	"kalikascan-admin/internal/common/logger"
	"kalikascan-admin/internal/common/metrics"
	"kalikascan-admin/internal/models"
)

const (
	OperationName = "map-posts"
)

type AccessGuard interface {
	RequireAdmin(ctx context.Context, authorizationHeader string) (*auth.Principal, error)
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

	if _, err := h.guard.RequireAdmin(r.Context(), r.Header.Get("Authorization")); err != nil {
		h.failRequest(w, r, err)
		return
	}

	input, err := h.parseQuery(r)
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

func (h *Handler) parseQuery(r *http.Request) (*Input, error) {
	q := r.URL.Query()

	input := &Input{
		Limit:       h.config.DefaultLimit,
		FlaggedOnly: q.Get("flagged") == "true",
	}

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return nil, errors.NewValidationFailedError("limit must be a positive integer")
		}
		input.Limit = limit
	}
	if input.Limit > h.config.MaxLimit {
		input.Limit = h.config.MaxLimit
	}

	if raw := q.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return nil, errors.NewValidationFailedError("offset must be a non-negative integer")
		}
		input.Offset = offset
	}

	return input, nil
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	countQuery := `SELECT COUNT(*) FROM map_posts`
	listQuery := `
		SELECT id, user_id, title, body, plant_name, latitude, longitude, flagged, created_at
		FROM map_posts`

	if input.FlaggedOnly {
		countQuery += ` WHERE flagged = TRUE`
		listQuery += ` WHERE flagged = TRUE`
	}
	listQuery += ` ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	var total int
	if err := h.db.QueryRowContext(ctx, countQuery).Scan(&total); err != nil {
		return nil, errors.NewQueryExecutionFailedError("count map posts", err)
	}

	rows, err := h.db.QueryContext(ctx, listQuery, input.Limit, input.Offset)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("list map posts", err)
	}
	defer rows.Close()

	posts := make([]models.MapPost, 0, input.Limit)
	for rows.Next() {
		var p models.MapPost
		var body, plantName sql.NullString
		if err := rows.Scan(&p.ID, &p.UserID, &p.Title, &body, &plantName, &p.Latitude, &p.Longitude, &p.Flagged, &p.CreatedAt); err != nil {
			return nil, errors.NewQueryExecutionFailedError("scan map post", err)
		}
		p.Body = body.String
		p.PlantName = plantName.String
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("list map posts", err)
	}

	return &Output{
		Posts:  posts,
		Total:  total,
		Limit:  input.Limit,
		Offset: input.Offset,
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
