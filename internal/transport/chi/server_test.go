package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	chirouter "github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/semdex/internal/domain"
	dombatch "github.com/kailas-cloud/semdex/internal/domain/batch"
	domdoc "github.com/kailas-cloud/semdex/internal/domain/document"
	"github.com/kailas-cloud/semdex/internal/domain/search/result"
	healthuc "github.com/kailas-cloud/semdex/internal/usecase/health"
	indexuc "github.com/kailas-cloud/semdex/internal/usecase/index"
	searchuc "github.com/kailas-cloud/semdex/internal/usecase/search"
)

// --- Mocks ---

type mockIndexer struct {
	indexResult indexuc.IndexResult
	indexErr    error
	dirResults  []dombatch.Result
	dirErr      error
	delResult   indexuc.DeleteResult
	delErr      error
	docs        []domdoc.Document
	stats       indexuc.Stats

	lastPath      string
	lastMetadata  map[string]string
	lastOverwrite bool
	deletedID     string
	deletedPath   string
}

func (m *mockIndexer) Index(_ context.Context, path string, metadata map[string]string, overwrite bool) (indexuc.IndexResult, error) {
	m.lastPath = path
	m.lastMetadata = metadata
	m.lastOverwrite = overwrite
	return m.indexResult, m.indexErr
}

func (m *mockIndexer) IndexDirectory(_ context.Context, root string, _ map[string]string, overwrite bool) ([]dombatch.Result, error) {
	m.lastPath = root
	m.lastOverwrite = overwrite
	return m.dirResults, m.dirErr
}

func (m *mockIndexer) DeleteByID(_ context.Context, id string) (indexuc.DeleteResult, error) {
	m.deletedID = id
	return m.delResult, m.delErr
}

func (m *mockIndexer) DeleteByPath(_ context.Context, path string) (indexuc.DeleteResult, error) {
	m.deletedPath = path
	return m.delResult, m.delErr
}

func (m *mockIndexer) List(_ context.Context) ([]domdoc.Document, error) {
	return m.docs, nil
}

func (m *mockIndexer) Stats(_ context.Context) (indexuc.Stats, error) {
	return m.stats, nil
}

type mockSearcher struct {
	response    searchuc.Response
	err         error
	invalidated bool
	cacheSize   int

	lastQuery    string
	lastTopK     int
	lastMinScore float64
}

func (m *mockSearcher) Search(_ context.Context, query string, topK int, minScore float64) (searchuc.Response, error) {
	m.lastQuery = query
	m.lastTopK = topK
	m.lastMinScore = minScore
	return m.response, m.err
}

func (m *mockSearcher) InvalidateCache() { m.invalidated = true }
func (m *mockSearcher) CacheSize() int   { return m.cacheSize }

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(_ context.Context) healthuc.Report { return m.report }

type mockFormats struct{}

func (mockFormats) AllowedExtensions() []string { return []string{".md", ".txt"} }

func newTestServer(indexer *mockIndexer, searcher *mockSearcher, health *mockHealth) *httptest.Server {
	if health == nil {
		health = &mockHealth{report: healthuc.Report{
			Status: healthuc.Healthy,
			Checks: map[string]healthuc.CheckResult{"database": healthuc.CheckOK},
		}}
	}
	srv := NewServer(indexer, searcher, health, mockFormats{}, zap.NewNop())
	r := chirouter.NewRouter()
	srv.Register(r)
	return httptest.NewServer(r)
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatal(err)
	}
	return resp, buf.Bytes()
}

// --- Tests ---

func TestIndexDocument(t *testing.T) {
	indexer := &mockIndexer{indexResult: indexuc.IndexResult{
		DocumentID:    "doc-1",
		SourcePath:    "/docs/a.md",
		FragmentCount: 4,
	}}
	ts := newTestServer(indexer, &mockSearcher{}, nil)
	defer ts.Close()

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/v1/index", map[string]any{
		"path":      "/docs/a.md",
		"metadata":  map[string]string{"team": "docs"},
		"overwrite": true,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, body: %s", resp.StatusCode, body)
	}

	var out indexResponse
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatal(err)
	}
	if out.DocumentID != "doc-1" || out.FragmentCount != 4 {
		t.Errorf("unexpected response: %+v", out)
	}
	if indexer.lastPath != "/docs/a.md" || indexer.lastMetadata["team"] != "docs" {
		t.Errorf("request not forwarded: %s %v", indexer.lastPath, indexer.lastMetadata)
	}
	if !indexer.lastOverwrite {
		t.Error("overwrite flag not forwarded")
	}
}

func TestIndexDocument_DeduplicatedReturns200(t *testing.T) {
	indexer := &mockIndexer{indexResult: indexuc.IndexResult{
		DocumentID:   "doc-1",
		Deduplicated: true,
	}}
	ts := newTestServer(indexer, &mockSearcher{}, nil)
	defer ts.Close()

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/v1/index", map[string]any{"path": "/a.md"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 for dedup", resp.StatusCode)
	}
}

func TestIndexDocument_MissingPath(t *testing.T) {
	ts := newTestServer(&mockIndexer{}, &mockSearcher{}, nil)
	defer ts.Close()

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/v1/index", map[string]any{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), codeInvalidArgument) {
		t.Errorf("body: %s", body)
	}
}

func TestIndexDocument_ErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("x: %w", domain.ErrUnsupportedFormat), http.StatusUnsupportedMediaType, codeUnsupportedFormat},
		{fmt.Errorf("x: %w", domain.ErrEmptyDocument), http.StatusUnprocessableEntity, codeEmptyDocument},
		{fmt.Errorf("x: %w", domain.ErrConversion), http.StatusUnprocessableEntity, codeConversionFailed},
		{fmt.Errorf("x: %w", domain.ErrEmbeddingProvider), http.StatusBadGateway, codeEmbeddingProvider},
		{fmt.Errorf("x: %w", domain.ErrNotFound), http.StatusNotFound, codeNotFound},
		{fmt.Errorf("x: %w", domain.ErrAlreadyIndexed), http.StatusConflict, codeAlreadyIndexed},
		{fmt.Errorf("boom"), http.StatusInternalServerError, codeInternal},
	}

	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			ts := newTestServer(&mockIndexer{indexErr: tc.err}, &mockSearcher{}, nil)
			defer ts.Close()

			resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/v1/index", map[string]any{"path": "/a.md"})
			if resp.StatusCode != tc.status {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tc.status)
			}
			var er errorResponse
			if err := json.Unmarshal(body, &er); err != nil {
				t.Fatal(err)
			}
			if er.Code != tc.code {
				t.Errorf("code = %q, want %q", er.Code, tc.code)
			}
		})
	}
}

func TestIndexDirectory(t *testing.T) {
	indexer := &mockIndexer{dirResults: []dombatch.Result{
		dombatch.NewOK("/docs/a.md", "doc-1", 3),
		dombatch.NewError("/docs/b.md", fmt.Errorf("x: %w", domain.ErrEmptyDocument)),
	}}
	ts := newTestServer(indexer, &mockSearcher{}, nil)
	defer ts.Close()

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/v1/index/directory", map[string]any{"path": "/docs"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var out directoryResponse
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatal(err)
	}
	if out.Succeeded != 1 || out.Failed != 1 || len(out.Items) != 2 {
		t.Fatalf("unexpected summary: %+v", out)
	}
	if out.Items[1].Error == "" {
		t.Error("failed item must carry an error message")
	}
	if out.Error != "" {
		t.Errorf("completed walk must not report an error: %q", out.Error)
	}
}

func TestIndexDirectory_AbortedWalkReportsError(t *testing.T) {
	indexer := &mockIndexer{
		dirResults: []dombatch.Result{
			dombatch.NewOK("/docs/a.md", "doc-1", 3),
		},
		dirErr: fmt.Errorf("walk /docs/sub: permission denied"),
	}
	ts := newTestServer(indexer, &mockSearcher{}, nil)
	defer ts.Close()

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/v1/index/directory", map[string]any{"path": "/docs"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var out directoryResponse
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatal(err)
	}
	if out.Succeeded != 1 || len(out.Items) != 1 {
		t.Fatalf("partial results dropped: %+v", out)
	}
	if !strings.Contains(out.Error, "permission denied") {
		t.Errorf("walk abort not reported: %q", out.Error)
	}
}

func TestSearchEndpoint(t *testing.T) {
	searcher := &mockSearcher{response: searchuc.Response{
		Results: []result.Result{
			result.New("doc-1:0", "doc-1", 0, 0.92, "matching text", map[string]string{"file_name": "a.md"}),
		},
		Cached: true,
	}}
	ts := newTestServer(&mockIndexer{}, searcher, nil)
	defer ts.Close()

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/v1/search", map[string]any{
		"query":     "what is semdex",
		"top_k":     5,
		"min_score": 0.4,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body: %s", resp.StatusCode, body)
	}

	var out searchResponse
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatal(err)
	}
	if !out.Cached || out.Total != 1 {
		t.Errorf("unexpected response: %+v", out)
	}
	if out.Items[0].FragmentID != "doc-1:0" || out.Items[0].Score != 0.92 {
		t.Errorf("unexpected item: %+v", out.Items[0])
	}
	if searcher.lastQuery != "what is semdex" || searcher.lastTopK != 5 || searcher.lastMinScore != 0.4 {
		t.Errorf("request not forwarded: %q %d %g", searcher.lastQuery, searcher.lastTopK, searcher.lastMinScore)
	}
}

func TestSearch_InvalidArgument(t *testing.T) {
	searcher := &mockSearcher{err: fmt.Errorf("q: %w", domain.ErrInvalidArgument)}
	ts := newTestServer(&mockIndexer{}, searcher, nil)
	defer ts.Close()

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/v1/search", map[string]any{"query": ""})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestDeleteDocument_ByID(t *testing.T) {
	indexer := &mockIndexer{delResult: indexuc.DeleteResult{
		DocumentID:       "doc-1",
		SourcePath:       "/a.md",
		FragmentsRemoved: 3,
	}}
	ts := newTestServer(indexer, &mockSearcher{}, nil)
	defer ts.Close()

	resp, body := doJSON(t, http.MethodDelete, ts.URL+"/api/v1/documents?id=doc-1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var out deleteResponse
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatal(err)
	}
	if out.FragmentsRemoved != 3 || indexer.deletedID != "doc-1" {
		t.Errorf("unexpected: %+v, deleted %q", out, indexer.deletedID)
	}
}

func TestDeleteDocument_RequiresExactlyOneSelector(t *testing.T) {
	ts := newTestServer(&mockIndexer{}, &mockSearcher{}, nil)
	defer ts.Close()

	for _, q := range []string{"", "?id=a&path=/b"} {
		resp, _ := doJSON(t, http.MethodDelete, ts.URL+"/api/v1/documents"+q, nil)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("query %q: status = %d", q, resp.StatusCode)
		}
	}
}

func TestListDocuments(t *testing.T) {
	doc := domdoc.Reconstruct("doc-1", "/a.md", "fp", 120, 2,
		map[string]string{"file_name": "a.md"}, time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	ts := newTestServer(&mockIndexer{docs: []domdoc.Document{doc}}, &mockSearcher{}, nil)
	defer ts.Close()

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/v1/documents", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var out documentListResponse
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatal(err)
	}
	if out.Total != 1 || out.Items[0].ID != "doc-1" || out.Items[0].FragmentCount != 2 {
		t.Errorf("unexpected: %+v", out)
	}
}

func TestClearCache(t *testing.T) {
	searcher := &mockSearcher{}
	ts := newTestServer(&mockIndexer{}, searcher, nil)
	defer ts.Close()

	resp, _ := doJSON(t, http.MethodDelete, ts.URL+"/api/v1/cache", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !searcher.invalidated {
		t.Error("cache not invalidated")
	}
}

func TestStatus(t *testing.T) {
	ts := newTestServer(
		&mockIndexer{stats: indexuc.Stats{Documents: 7, Fragments: 42}},
		&mockSearcher{cacheSize: 3},
		nil,
	)
	defer ts.Close()

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/v1/status", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var out statusResponse
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatal(err)
	}
	if out.Documents != 7 || out.Fragments != 42 || out.CacheEntries != 3 {
		t.Errorf("unexpected: %+v", out)
	}
}

func TestFormats(t *testing.T) {
	ts := newTestServer(&mockIndexer{}, &mockSearcher{}, nil)
	defer ts.Close()

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/v1/formats", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var out formatsResponse
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatal(err)
	}
	if len(out.Extensions) != 2 || out.Extensions[0] != ".md" {
		t.Errorf("unexpected: %+v", out)
	}
}

func TestHealth(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		ts := newTestServer(&mockIndexer{}, &mockSearcher{}, nil)
		defer ts.Close()

		resp, _ := doJSON(t, http.MethodGet, ts.URL+"/health", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
	})

	t.Run("degraded", func(t *testing.T) {
		health := &mockHealth{report: healthuc.Report{
			Status: healthuc.Degraded,
			Checks: map[string]healthuc.CheckResult{"database": healthuc.CheckError},
		}}
		ts := newTestServer(&mockIndexer{}, &mockSearcher{}, health)
		defer ts.Close()

		resp, body := doJSON(t, http.MethodGet, ts.URL+"/health", nil)
		if resp.StatusCode != http.StatusServiceUnavailable {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		var out healthResponse
		if err := json.Unmarshal(body, &out); err != nil {
			t.Fatal(err)
		}
		if out.Status != "degraded" || out.Checks["database"] != "error" {
			t.Errorf("unexpected: %+v", out)
		}
	})
}
