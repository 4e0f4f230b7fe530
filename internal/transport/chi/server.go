package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/Eddie-Kan/research-archive-website-sub001/internal/domain"
	"github.com/Eddie-Kan/research-archive-website-sub001/internal/domain/entity"
	"github.com/Eddie-Kan/research-archive-website-sub001/internal/domain/search/request"
	"github.com/Eddie-Kan/research-archive-website-sub001/internal/domain/search/result"
	"github.com/Eddie-Kan/research-archive-website-sub001/internal/logger"
	"github.com/Eddie-Kan/research-archive-website-sub001/internal/metrics"
	healthuc "github.com/Eddie-Kan/research-archive-website-sub001/internal/usecase/health"
	indexinguc "github.com/Eddie-Kan/research-archive-website-sub001/internal/usecase/indexing"
	searchuc "github.com/Eddie-Kan/research-archive-website-sub001/internal/usecase/search"
)

// maxEntityBody bounds PUT /entities/{id} payloads.
const maxEntityBody = 1 << 20

// retryAfterSeconds is advertised on retryable 503 responses.
const retryAfterSeconds = 1

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server holds the HTTP handlers of the archive search API.
type Server struct {
	search        *searchuc.Service
	indexing      *indexinguc.Service
	health        *healthuc.Service
	limits        request.Limits
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	search *searchuc.Service,
	indexing *indexinguc.Service,
	health *healthuc.Service,
	limits request.Limits,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		search:   search,
		indexing: indexing,
		health:   health,
		limits:   limits,
		logger:   logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidInput, http.StatusBadRequest, ErrorResponseCodeValidationFailed),
		sentinelHandler(domain.ErrInvalidEntity, http.StatusBadRequest, ErrorResponseCodeInvalidEntity),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, ErrorResponseCodeNotFound),
		retryableHandler(domain.ErrUpstreamTimeout, http.StatusServiceUnavailable, ErrorResponseCodeUpstreamTimeout),
		retryableHandler(domain.ErrOverloaded, http.StatusServiceUnavailable, ErrorResponseCodeOverloaded),
		retryableHandler(domain.ErrEmbeddingProviderError,
			http.StatusBadGateway, ErrorResponseCodeEmbeddingProviderError),
		sentinelHandler(domain.ErrVectorDimMismatch, http.StatusConflict, ErrorResponseCodeReindexRequired),
		sentinelHandler(domain.ErrModelVersionMismatch, http.StatusConflict, ErrorResponseCodeReindexRequired),
		retryableHandler(indexinguc.ErrClosed, http.StatusServiceUnavailable, ErrorResponseCodeUnavailable),
		retryableHandler(context.Canceled, http.StatusServiceUnavailable, ErrorResponseCodeUnavailable),
	}
	return s
}

// KeywordSearch handles GET /search.
func (s *Server) KeywordSearch(w http.ResponseWriter, r *http.Request) {
	req, ok := s.parseSearch(w, r)
	if !ok {
		return
	}

	page, err := s.search.KeywordSearch(r.Context(), &req, IsAuthorized(r.Context()))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, SearchResponse{
		Results: resultsToAPI(page.Results),
		Total:   page.Total,
		Facets:  page.Facets,
		Page:    page.Page,
		Limit:   page.Limit,
	})
}

// SemanticSearch handles GET /search/semantic.
func (s *Server) SemanticSearch(w http.ResponseWriter, r *http.Request) {
	req, ok := s.parseSearch(w, r)
	if !ok {
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	page, err := s.search.SemanticSearch(ctx, &req, IsAuthorized(r.Context()))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, SemanticSearchResponse{
		Results: resultsToAPI(page.Results),
		Total:   page.Total,
	})
}

// SemanticStatus handles GET /search/semantic/status.
func (s *Server) SemanticStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusToAPI(s.search.SemanticStatus(r.Context())))
}

// PutEntity handles PUT /entities/{id}.
func (s *Server) PutEntity(w http.ResponseWriter, r *http.Request) {
	id, err := bindEntityID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, err.Error())
		return
	}

	var req EntityRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEntityBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	e, err := entity.New(entityFromAPI(id, req))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	if err := s.indexing.OnEntityChanged(r.Context(), e); err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, EntityResponse{ID: e.ID(), UpdatedAt: e.UpdatedAt()})
}

// DeleteEntity handles DELETE /entities/{id}. Deleting an unknown id succeeds.
func (s *Server) DeleteEntity(w http.ResponseWriter, r *http.Request) {
	id, err := bindEntityID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, err.Error())
		return
	}
	if err := s.indexing.OnEntityDeleted(r.Context(), id); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Reembed handles POST /admin/reembed.
func (s *Server) Reembed(w http.ResponseWriter, r *http.Request) {
	n, err := s.indexing.ReembedStale(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	logger.FromContextOr(r.Context(), s.logger).Info("Re-embedding scheduled", zap.Int("jobs", n))
	writeJSON(w, http.StatusAccepted, ReembedResponse{Scheduled: n})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	metrics.Handler().ServeHTTP(w, r)
}

func (s *Server) parseSearch(w http.ResponseWriter, r *http.Request) (request.Request, bool) {
	params, err := bindSearchParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, err.Error())
		return request.Request{}, false
	}
	req, err := params.toRequest(s.limits)
	if err != nil {
		s.handleDomainError(w, r, err)
		return request.Request{}, false
	}
	return req, true
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if usage != nil && usage.Used {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.TotalTokens))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorResponseCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a client-safe message. Validation errors carry
// caller-supplied detail; every other class is reduced to its sentinel text.
func safeDomainMessage(err error) string {
	if errors.Is(err, domain.ErrInvalidInput) || errors.Is(err, domain.ErrInvalidEntity) {
		return err.Error()
	}
	sentinels := []error{
		domain.ErrNotFound,
		domain.ErrUpstreamTimeout,
		domain.ErrOverloaded,
		domain.ErrEmbeddingProviderError,
		domain.ErrVectorDimMismatch,
		domain.ErrModelVersionMismatch,
		indexinguc.ErrClosed,
		context.Canceled,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorResponseCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// retryableHandler is a sentinelHandler that also advertises Retry-After.
func retryableHandler(sentinel error, status int, code ErrorResponseCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
		writeJSON(w, status, ErrorResponse{Code: code, Message: msg, Retryable: true})
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContextOr(r.Context(), s.logger)
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			log.Warn("Request failed", zap.Error(err))
			return
		}
	}
	log.Error("Internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorResponseCodeInternalError, "internal error")
}

func resultsToAPI(rs []result.Result) []SearchResultItem {
	items := make([]SearchResultItem, len(rs))
	for i := range rs {
		r := &rs[i]
		var fields []string
		for _, f := range r.MatchedFields() {
			fields = append(fields, string(f))
		}
		items[i] = SearchResultItem{
			ID:            r.ID(),
			Score:         r.Score(),
			UpdatedAt:     r.UpdatedAt(),
			MatchedFields: fields,
		}
	}
	return items
}

func statusToAPI(st result.IndexStatus) SemanticStatusResponse {
	return SemanticStatusResponse{
		Available:     st.Available(),
		TotalEntities: st.TotalEntities,
		EmbeddedCount: st.EmbeddedCount,
		StaleCount:    st.StaleCount,
		PendingCount:  st.Pending(),
		ModelVersion:  st.ModelVersion,
		Dimensions:    st.Dimensions,
	}
}

func entityFromAPI(id string, req EntityRequest) entity.Params {
	p := entity.Params{
		ID:         id,
		Type:       req.Type,
		TitleEN:    req.TitleEN,
		TitleZH:    req.TitleZH,
		BodyEN:     req.BodyEN,
		BodyZH:     req.BodyZH,
		Tags:       req.Tags,
		Status:     req.Status,
		Visibility: req.Visibility,
		CreatedAt:  req.CreatedAt,
	}
	if req.UpdatedAt != nil {
		p.UpdatedAt = *req.UpdatedAt
	}
	return p
}
