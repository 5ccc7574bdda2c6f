package chi

import (
	dombatch "github.com/kailas-cloud/semdex/internal/domain/batch"
	"github.com/kailas-cloud/semdex/internal/domain/search/result"
	indexuc "github.com/kailas-cloud/semdex/internal/usecase/index"
)

// Error response codes.
const (
	codeBadRequest        = "bad_request"
	codeInvalidArgument   = "invalid_argument"
	codeNotFound          = "not_found"
	codeAlreadyIndexed    = "already_indexed"
	codeUnsupportedFormat = "unsupported_format"
	codeConversionFailed  = "conversion_failed"
	codeEmptyDocument     = "empty_document"
	codeEmbeddingProvider = "embedding_provider_error"
	codeInternal          = "internal_error"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type indexRequest struct {
	Path      string            `json:"path"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Overwrite bool              `json:"overwrite,omitempty"`
}

type indexResponse struct {
	DocumentID       string `json:"document_id"`
	SourcePath       string `json:"source_path"`
	FragmentCount    int    `json:"fragment_count"`
	SkippedFragments int    `json:"skipped_fragments,omitempty"`
	Deduplicated     bool   `json:"deduplicated"`
}

func indexResponseFromResult(res indexuc.IndexResult) indexResponse {
	return indexResponse{
		DocumentID:       res.DocumentID,
		SourcePath:       res.SourcePath,
		FragmentCount:    res.FragmentCount,
		SkippedFragments: res.SkippedFragments,
		Deduplicated:     res.Deduplicated,
	}
}

type batchItemResponse struct {
	SourcePath    string `json:"source_path"`
	DocumentID    string `json:"document_id,omitempty"`
	FragmentCount int    `json:"fragment_count,omitempty"`
	Status        string `json:"status"`
	Error         string `json:"error,omitempty"`
}

func batchItemFromResult(res dombatch.Result) batchItemResponse {
	item := batchItemResponse{
		SourcePath:    res.SourcePath(),
		DocumentID:    res.DocumentID(),
		FragmentCount: res.FragmentCount(),
		Status:        string(res.Status()),
	}
	if res.Err() != nil {
		item.Error = safeDomainMessage(res.Err())
	}
	return item
}

type directoryResponse struct {
	Items     []batchItemResponse `json:"items"`
	Succeeded int                 `json:"succeeded"`
	Failed    int                 `json:"failed"`
	// Error reports a walk aborted after partial progress.
	Error string `json:"error,omitempty"`
}

type searchRequest struct {
	Query    string  `json:"query"`
	TopK     int     `json:"top_k,omitempty"`
	MinScore float64 `json:"min_score,omitempty"`
}

type searchItemResponse struct {
	FragmentID string            `json:"fragment_id"`
	DocumentID string            `json:"document_id"`
	Ordinal    int               `json:"ordinal"`
	Score      float64           `json:"score"`
	Text       string            `json:"text"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

func searchItemFromResult(r *result.Result) searchItemResponse {
	return searchItemResponse{
		FragmentID: r.FragmentID(),
		DocumentID: r.DocumentID(),
		Ordinal:    r.Ordinal(),
		Score:      r.Score(),
		Text:       r.Text(),
		Metadata:   r.Metadata(),
	}
}

type searchResponse struct {
	Items  []searchItemResponse `json:"items"`
	Total  int                  `json:"total"`
	Cached bool                 `json:"cached"`
}

type documentResponse struct {
	ID            string            `json:"id"`
	SourcePath    string            `json:"source_path"`
	Fingerprint   string            `json:"fingerprint"`
	TextLength    int               `json:"text_length"`
	FragmentCount int               `json:"fragment_count"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	IndexedAt     string            `json:"indexed_at"`
}

type documentListResponse struct {
	Items []documentResponse `json:"items"`
	Total int                `json:"total"`
}

type deleteResponse struct {
	DocumentID       string `json:"document_id"`
	SourcePath       string `json:"source_path"`
	FragmentsRemoved int    `json:"fragments_removed"`
}

type statusResponse struct {
	Documents    int `json:"documents"`
	Fragments    int `json:"fragments"`
	CacheEntries int `json:"cache_entries"`
}

type formatsResponse struct {
	Extensions []string `json:"extensions"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
