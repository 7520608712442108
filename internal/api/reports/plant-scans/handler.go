// internal/api/reports/plant-scans/handler.go
package plantscans

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"kalikascan-admin/internal/common/auth"
	"kalikascan-admin/internal/common/errors"
	"kalikascan-admin/internal/common/logger"
	"kalikascan-admin/internal/common/metrics"
	"kalikascan-admin/internal/models"
)

const (
	OperationName = "plant-scans"
)

type AccessGuard interface {
	RequireAdmin(ctx context.Context, authorizationHeader string) (*auth.Principal, error)
}

type Handler struct {
	config     *Config
	client     *elasticsearch.Client
	logger     logger.Logger
	guard      AccessGuard
	errHandler *errors.ErrorHandler
}

func NewHandler(config *Config, client *elasticsearch.Client, log logger.Logger, guard AccessGuard) *Handler {
	l := log.WithFields(map[string]interface{}{"operation": OperationName})
	return &Handler{
		config:     config,
		client:     client,
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
		Keywords: q.Get("keywords"),
		UserID:   q.Get("userId"),
		Disease:  q.Get("disease"),
		Size:     h.config.DefaultLimit,
	}

	if raw := q.Get("from"); raw != "" {
		from, err := strconv.Atoi(raw)
		if err != nil || from < 0 {
			return nil, errors.NewValidationFailedError("from must be a non-negative integer")
		}
		input.From = from
	}
	if raw := q.Get("size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size < 1 {
			return nil, errors.NewValidationFailedError("size must be a positive integer")
		}
		input.Size = size
	}
	if input.Size > h.config.MaxLimit {
		input.Size = h.config.MaxLimit
	}

	return input, nil
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	queryBody := buildScanQuery(input)

	body, _ := json.Marshal(queryBody)

	req := esapi.SearchRequest{
		Index: []string{h.config.Index},
		Body:  strings.NewReader(string(body)),
		From:  &input.From,
		Size:  &input.Size,
	}

	start := time.Now()
	res, err := req.Do(ctx, h.client)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errors.NewQueryTimeoutError("search plant scans")
		}
		return nil, errors.NewSearchQueryFailedError(h.config.Index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, errors.NewSearchQueryFailedError(h.config.Index, fmt.Errorf("search returned %s", res.Status()))
	}

	var r struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				ID     string          `json:"_id"`
				Source json.RawMessage `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, errors.NewSearchQueryFailedError(h.config.Index, err)
	}

	scans := make([]models.PlantScan, 0, len(r.Hits.Hits))
	for _, hit := range r.Hits.Hits {
		var scan models.PlantScan
		if err := json.Unmarshal(hit.Source, &scan); err != nil {
			h.logger.Warn("skipping malformed scan document", map[string]interface{}{
				"documentId": hit.ID,
				"error":      err.Error(),
			})
			continue
		}
		if scan.ID == "" {
			scan.ID = hit.ID
		}
		scans = append(scans, scan)
	}

	return &Output{
		Scans:     scans,
		TotalHits: r.Hits.Total.Value,
		Took:      time.Since(start).Milliseconds(),
		From:      input.From,
		Size:      input.Size,
	}, nil
}

// buildScanQuery assembles the bool query from the optional filters. An empty
// input matches everything, newest first.
func buildScanQuery(input *Input) map[string]interface{} {
	mustClauses := []interface{}{}
	filterClauses := []interface{}{}

	if input.Keywords != "" {
		mustClauses = append(mustClauses, map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  input.Keywords,
				"fields": []string{"plantName^3", "disease^2"},
				"type":   "best_fields",
			},
		})
	}
	if input.UserID != "" {
		filterClauses = append(filterClauses, map[string]interface{}{
			"term": map[string]interface{}{"userId": input.UserID},
		})
	}
	if input.Disease != "" {
		filterClauses = append(filterClauses, map[string]interface{}{
			"term": map[string]interface{}{"disease": input.Disease},
		})
	}

	boolQuery := map[string]interface{}{}
	if len(mustClauses) > 0 {
		boolQuery["must"] = mustClauses
	}
	if len(filterClauses) > 0 {
		boolQuery["filter"] = filterClauses
	}
	if len(boolQuery) == 0 {
		boolQuery["must"] = []interface{}{
			map[string]interface{}{"match_all": map[string]interface{}{}},
		}
	}

	return map[string]interface{}{
		"query": map[string]interface{}{"bool": boolQuery},
		"sort": []interface{}{
			map[string]interface{}{"scannedAt": map[string]interface{}{"order": "desc"}},
		},
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

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
