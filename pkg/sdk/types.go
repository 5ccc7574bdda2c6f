package semdex

import "fmt"

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("semdex: %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("semdex: HTTP %d: %s", e.StatusCode, e.Message)
}

type indexRequest struct {
	Path      string            `json:"path"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Overwrite bool              `json:"overwrite,omitempty"`
}

// IndexResult is the outcome of indexing one document.
type IndexResult struct {
	DocumentID       string `json:"document_id"`
	SourcePath       string `json:"source_path"`
	FragmentCount    int    `json:"fragment_count"`
	SkippedFragments int    `json:"skipped_fragments,omitempty"`
	Deduplicated     bool   `json:"deduplicated"`
}

// DirectoryItem is the outcome for one file in a directory run.
type DirectoryItem struct {
	SourcePath    string `json:"source_path"`
	DocumentID    string `json:"document_id,omitempty"`
	FragmentCount int    `json:"fragment_count,omitempty"`
	Status        string `json:"status"`
	Error         string `json:"error,omitempty"`
}

// DirectoryResult summarizes a directory indexing run. A non-empty
// Error means the walk aborted and Items covers only part of the tree.
type DirectoryResult struct {
	Items     []DirectoryItem `json:"items"`
	Succeeded int             `json:"succeeded"`
	Failed    int             `json:"failed"`
	Error     string          `json:"error,omitempty"`
}

type searchRequest struct {
	Query    string  `json:"query"`
	TopK     int     `json:"top_k,omitempty"`
	MinScore float64 `json:"min_score,omitempty"`
}

// SearchOption tunes a search request.
type SearchOption func(*searchRequest)

// WithTopK sets the maximum number of results.
func WithTopK(k int) SearchOption {
	return func(r *searchRequest) { r.TopK = k }
}

// WithMinScore drops results scoring below the threshold.
func WithMinScore(score float64) SearchOption {
	return func(r *searchRequest) { r.MinScore = score }
}

// SearchItem is one ranked hit.
type SearchItem struct {
	FragmentID string            `json:"fragment_id"`
	DocumentID string            `json:"document_id"`
	Ordinal    int               `json:"ordinal"`
	Score      float64           `json:"score"`
	Text       string            `json:"text"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// SearchResult is a ranked result list.
type SearchResult struct {
	Items  []SearchItem `json:"items"`
	Total  int          `json:"total"`
	Cached bool         `json:"cached"`
}

// Document is an indexed document record.
type Document struct {
	ID            string            `json:"id"`
	SourcePath    string            `json:"source_path"`
	Fingerprint   string            `json:"fingerprint"`
	TextLength    int               `json:"text_length"`
	FragmentCount int               `json:"fragment_count"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	IndexedAt     string            `json:"indexed_at"`
}

// DocumentList is the full document listing.
type DocumentList struct {
	Items []Document `json:"items"`
	Total int        `json:"total"`
}

// DeleteResult is the outcome of removing a document.
type DeleteResult struct {
	DocumentID       string `json:"document_id"`
	SourcePath       string `json:"source_path"`
	FragmentsRemoved int    `json:"fragments_removed"`
}

// Status is an index size snapshot.
type Status struct {
	Documents    int `json:"documents"`
	Fragments    int `json:"fragments"`
	CacheEntries int `json:"cache_entries"`
}

// Health is the component availability report.
type Health struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

type formatsResponse struct {
	Extensions []string `json:"extensions"`
}
