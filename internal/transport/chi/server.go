// Package chi exposes the indexing and search services over HTTP.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/semdex/internal/domain"
	dombatch "github.com/kailas-cloud/semdex/internal/domain/batch"
	domdoc "github.com/kailas-cloud/semdex/internal/domain/document"
	logpkg "github.com/kailas-cloud/semdex/internal/logger"
	healthuc "github.com/kailas-cloud/semdex/internal/usecase/health"
	indexuc "github.com/kailas-cloud/semdex/internal/usecase/index"
	searchuc "github.com/kailas-cloud/semdex/internal/usecase/search"
)

// Indexer is the ingestion contract the transport consumes.
type Indexer interface {
	Index(ctx context.Context, path string, metadata map[string]string, overwrite bool) (indexuc.IndexResult, error)
	IndexDirectory(ctx context.Context, root string, metadata map[string]string, overwrite bool) ([]dombatch.Result, error)
	DeleteByID(ctx context.Context, id string) (indexuc.DeleteResult, error)
	DeleteByPath(ctx context.Context, path string) (indexuc.DeleteResult, error)
	List(ctx context.Context) ([]domdoc.Document, error)
	Stats(ctx context.Context) (indexuc.Stats, error)
}

// Searcher is the query contract the transport consumes.
type Searcher interface {
	Search(ctx context.Context, query string, topK int, minScore float64) (searchuc.Response, error)
	InvalidateCache()
	CacheSize() int
}

// HealthChecker reports component availability.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// FormatLister reports the supported source formats.
type FormatLister interface {
	AllowedExtensions() []string
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server is the HTTP API server.
type Server struct {
	indexer       Indexer
	searcher      Searcher
	health        HealthChecker
	formats       FormatLister
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	indexer Indexer,
	searcher Searcher,
	health HealthChecker,
	formats FormatLister,
	logger *zap.Logger,
) *Server {
	s := &Server{
		indexer:  indexer,
		searcher: searcher,
		health:   health,
		formats:  formats,
		logger:   logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, codeNotFound),
		sentinelHandler(domain.ErrAlreadyIndexed, http.StatusConflict, codeAlreadyIndexed),
		sentinelHandler(domain.ErrInvalidArgument, http.StatusBadRequest, codeInvalidArgument),
		sentinelHandler(domain.ErrUnsupportedFormat, http.StatusUnsupportedMediaType, codeUnsupportedFormat),
		sentinelHandler(domain.ErrEmptyDocument, http.StatusUnprocessableEntity, codeEmptyDocument),
		sentinelHandler(domain.ErrConversion, http.StatusUnprocessableEntity, codeConversionFailed),
		sentinelHandler(domain.ErrEmbeddingProvider, http.StatusBadGateway, codeEmbeddingProvider),
	}
	return s
}

// Register mounts the API routes on a chi router.
func (s *Server) Register(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/index", s.indexDocument)
		r.Post("/index/directory", s.indexDirectory)
		r.Post("/search", s.searchFragments)
		r.Get("/documents", s.listDocuments)
		r.Delete("/documents", s.deleteDocument)
		r.Delete("/cache", s.clearCache)
		r.Get("/status", s.status)
		r.Get("/formats", s.listFormats)
	})
	r.Get("/health", s.healthCheck)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
}

// indexDocument handles POST /api/v1/index.
func (s *Server) indexDocument(w http.ResponseWriter, r *http.Request) {
	var req indexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, codeInvalidArgument, "path is required")
		return
	}

	res, err := s.indexer.Index(r.Context(), req.Path, req.Metadata, req.Overwrite)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	status := http.StatusCreated
	if res.Deduplicated {
		status = http.StatusOK
	}
	writeJSON(w, status, indexResponseFromResult(res))
}

// indexDirectory handles POST /api/v1/index/directory.
func (s *Server) indexDirectory(w http.ResponseWriter, r *http.Request) {
	var req indexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, codeInvalidArgument, "path is required")
		return
	}

	results, err := s.indexer.IndexDirectory(r.Context(), req.Path, req.Metadata, req.Overwrite)
	if err != nil && len(results) == 0 {
		s.handleDomainError(w, r, err)
		return
	}

	succeeded, failed := 0, 0
	items := make([]batchItemResponse, len(results))
	for i, res := range results {
		items[i] = batchItemFromResult(res)
		if res.Status() == dombatch.StatusOK {
			succeeded++
		} else {
			failed++
		}
	}

	resp := directoryResponse{
		Items:     items,
		Succeeded: succeeded,
		Failed:    failed,
	}
	// A walk aborted partway still produced results; report the abort
	// so the caller never mistakes a partial run for a complete one.
	if err != nil {
		s.logger.Warn("directory walk aborted", zap.Error(err))
		resp.Error = err.Error()
	}

	writeJSON(w, http.StatusOK, resp)
}

// searchFragments handles POST /api/v1/search.
func (s *Server) searchFragments(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	resp, err := s.searcher.Search(r.Context(), req.Query, req.TopK, req.MinScore)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items := make([]searchItemResponse, len(resp.Results))
	for i := range resp.Results {
		items[i] = searchItemFromResult(&resp.Results[i])
	}

	writeJSON(w, http.StatusOK, searchResponse{
		Items:  items,
		Total:  len(items),
		Cached: resp.Cached,
	})
}

// listDocuments handles GET /api/v1/documents.
func (s *Server) listDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.indexer.List(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items := make([]documentResponse, len(docs))
	for i := range docs {
		items[i] = documentFromDomain(&docs[i])
	}

	writeJSON(w, http.StatusOK, documentListResponse{Items: items, Total: len(items)})
}

// deleteDocument handles DELETE /api/v1/documents. Exactly one of the
// id and path query parameters selects the document.
func (s *Server) deleteDocument(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	path := r.URL.Query().Get("path")

	if (id == "") == (path == "") {
		writeError(w, http.StatusBadRequest, codeInvalidArgument, "exactly one of id or path is required")
		return
	}

	var res indexuc.DeleteResult
	var err error
	if id != "" {
		res, err = s.indexer.DeleteByID(r.Context(), id)
	} else {
		res, err = s.indexer.DeleteByPath(r.Context(), path)
	}
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, deleteResponse{
		DocumentID:       res.DocumentID,
		SourcePath:       res.SourcePath,
		FragmentsRemoved: res.FragmentsRemoved,
	})
}

// clearCache handles DELETE /api/v1/cache.
func (s *Server) clearCache(w http.ResponseWriter, _ *http.Request) {
	s.searcher.InvalidateCache()
	w.WriteHeader(http.StatusNoContent)
}

// status handles GET /api/v1/status.
func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	stats, err := s.indexer.Stats(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		Documents:    stats.Documents,
		Fragments:    stats.Fragments,
		CacheEntries: s.searcher.CacheSize(),
	})
}

// listFormats handles GET /api/v1/formats.
func (s *Server) listFormats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, formatsResponse{Extensions: s.formats.AllowedExtensions()})
}

// healthCheck handles GET /health.
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	writeJSON(w, httpStatus, healthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client
// without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrNotFound,
		domain.ErrAlreadyIndexed,
		domain.ErrInvalidArgument,
		domain.ErrUnsupportedFormat,
		domain.ErrEmptyDocument,
		domain.ErrConversion,
		domain.ErrEmbeddingProvider,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// handleDomainError logs with the request-scoped logger so error lines
// carry the request id stamped by the middleware.
func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.FromContext(r.Context())
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			log.Warn("domain error", zap.Error(err))
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
}

func documentFromDomain(d *domdoc.Document) documentResponse {
	return documentResponse{
		ID:            d.ID(),
		SourcePath:    d.SourcePath(),
		Fingerprint:   d.Fingerprint(),
		TextLength:    d.TextLength(),
		FragmentCount: d.FragmentCount(),
		Metadata:      d.Metadata(),
		IndexedAt:     d.IndexedAt().UTC().Format(time.RFC3339),
	}
}
