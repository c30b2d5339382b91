package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/inventory-sync/internal/core/domain"
	"github.com/rl1809/inventory-sync/internal/core/service"
)

type HTTPHandler struct {
	inventory *service.InventoryService
	advisor   *service.Advisor
	logger    *zap.Logger
	timeout   time.Duration
}

func NewHTTPHandler(inventory *service.InventoryService, advisor *service.Advisor, logger *zap.Logger, timeout time.Duration) *HTTPHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPHandler{
		inventory: inventory,
		advisor:   advisor,
		logger:    logger,
		timeout:   timeout,
	}
}

// Routes registers every endpoint on a fresh mux wrapped in the request
// timeout and access log middleware.
func (h *HTTPHandler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.HealthCheck)
	mux.HandleFunc("GET /api/articles", h.ListArticles)
	mux.HandleFunc("GET /api/articles/{sku}", h.GetArticle)
	mux.HandleFunc("POST /api/articles", h.CreateArticle)
	mux.HandleFunc("PUT /api/articles/adjust", h.Adjust)
	mux.HandleFunc("PUT /api/articles/reserve", h.Reserve)
	mux.HandleFunc("POST /api/sync/batch", h.Batch)
	mux.HandleFunc("GET /api/sync/changes", h.Changes)
	mux.HandleFunc("GET /api/advisories", h.Advisories)
	return h.middleware(mux)
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) ListArticles(w http.ResponseWriter, r *http.Request) {
	articles, err := h.inventory.LookupAll(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, articles)
}

func (h *HTTPHandler) GetArticle(w http.ResponseWriter, r *http.Request) {
	sku, err := strconv.ParseInt(r.PathValue("sku"), 10, 64)
	if err != nil || sku <= 0 {
		h.writeError(w, r, domain.Errorf(domain.KindInvalidArgument, "invalid sku %q", r.PathValue("sku")))
		return
	}

	article, err := h.inventory.Lookup(r.Context(), sku)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if article == nil {
		h.writeError(w, r, domain.Errorf(domain.KindNotFound, "article %d not found", sku))
		return
	}
	writeJSON(w, http.StatusOK, article)
}

func (h *HTTPHandler) CreateArticle(w http.ResponseWriter, r *http.Request) {
	var req CreateArticleRequest
	if !h.decode(w, r, &req) {
		return
	}

	article, err := h.inventory.Create(r.Context(), req.Name, req.InitialQuantity)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/articles/"+strconv.FormatInt(article.Sku, 10))
	writeJSON(w, http.StatusCreated, article)
}

func (h *HTTPHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	var req AdjustArticleRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.inventory.Adjust(r.Context(), service.AdjustRequest{
		Sku:             req.Sku,
		Delta:           req.Delta,
		Reason:          req.Reason,
		ExpectedVersion: req.ExpectedVersion,
		StoreID:         req.StoreID,
		OperationID:     req.OperationID,
	})
	h.writeMutation(w, r, res, err)
}

func (h *HTTPHandler) Reserve(w http.ResponseWriter, r *http.Request) {
	var req ReserveArticleRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.inventory.Reserve(r.Context(), service.ReserveRequest{
		Sku:             req.Sku,
		Amount:          req.Amount,
		ExpectedVersion: req.ExpectedVersion,
		StoreID:         req.StoreID,
		OperationID:     req.OperationID,
	})
	h.writeMutation(w, r, res, err)
}

func (h *HTTPHandler) Batch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.inventory.ProcessBatch(r.Context(), req.Operations)
	if err != nil {
		status, body := errorResponse(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("batch failed", zap.Error(err))
		}
		writeJSON(w, status, BatchResponse{BatchSyncResult: result, Error: &body})
		return
	}
	writeJSON(w, http.StatusOK, BatchResponse{BatchSyncResult: result})
}

func (h *HTTPHandler) Changes(w http.ResponseWriter, r *http.Request) {
	from, err := queryInt(r, "from", 0)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	pageSize, err := queryInt(r, "page_size", 0)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	next, entries, err := h.inventory.ChangeLog(r.Context(), int64(from), pageSize)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ChangesResponse{NextPosition: next, Entries: entries})
}

func (h *HTTPHandler) Advisories(w http.ResponseWriter, r *http.Request) {
	advisor := h.advisor
	threshold, err := queryInt(r, "threshold", 0)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if threshold > 0 || advisor == nil {
		advisor = service.NewAdvisor(threshold)
	}

	recs, err := h.inventory.Advise(r.Context(), advisor)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (h *HTTPHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Kind:    domain.KindInvalidArgument,
			Message: "invalid request body",
		})
		return false
	}
	return true
}

func (h *HTTPHandler) writeMutation(w http.ResponseWriter, r *http.Request, res domain.MutationResult, err error) {
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if res.Outcome == domain.OutcomeVersionConflict {
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Kind:    domain.KindVersionConflict,
			Message: "version conflict: the article was updated by someone else",
			Current: res.Article,
		})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := errorResponse(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeJSON(w, status, body)
}

func errorResponse(err error) (int, ErrorResponse) {
	var derr *domain.Error
	if !errors.As(err, &derr) {
		if errors.Is(err, context.DeadlineExceeded) {
			return http.StatusGatewayTimeout, ErrorResponse{Message: "request timed out"}
		}
		return http.StatusInternalServerError, ErrorResponse{Message: "internal error"}
	}

	body := ErrorResponse{Kind: derr.Kind, Message: derr.Error(), Current: derr.Current}
	switch derr.Kind {
	case domain.KindInvalidArgument:
		return http.StatusBadRequest, body
	case domain.KindNotFound:
		return http.StatusNotFound, body
	case domain.KindAlreadyExists, domain.KindVersionConflict, domain.KindDuplicateOperation:
		return http.StatusConflict, body
	case domain.KindInsufficientStock, domain.KindInvalidState:
		return http.StatusUnprocessableEntity, body
	default:
		return http.StatusInternalServerError, body
	}
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.Errorf(domain.KindInvalidArgument, "invalid %s %q", key, raw)
	}
	return v, nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

func (h *HTTPHandler) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.timeout > 0 {
			ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
			defer cancel()
			r = r.WithContext(ctx)
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		h.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)))
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
