package semdex

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNew_ValidatesBaseURL(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty base URL")
	}
	c, err := New("http://localhost:8080/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.baseURL != "http://localhost:8080" {
		t.Errorf("trailing slash not trimmed: %q", c.baseURL)
	}
}

func TestWithHTTPClient(t *testing.T) {
	custom := &http.Client{Timeout: 5 * time.Second}
	c, err := New("http://localhost:8080", WithHTTPClient(custom))
	if err != nil {
		t.Fatal(err)
	}
	if c.http != custom {
		t.Error("custom client not applied")
	}
}

func TestIndex(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/index" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var req indexRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.Path != "/docs/a.md" || req.Metadata["team"] != "docs" || !req.Overwrite {
			t.Errorf("unexpected body: %+v", req)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(IndexResult{
			DocumentID:    "doc-1",
			SourcePath:    "/docs/a.md",
			FragmentCount: 4,
		})
	}))
	defer ts.Close()

	c, _ := New(ts.URL)
	res, err := c.Index(context.Background(), "/docs/a.md", map[string]string{"team": "docs"}, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.DocumentID != "doc-1" || res.FragmentCount != 4 {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestSearch_Options(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req searchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.Query != "hello" || req.TopK != 5 || req.MinScore != 0.4 {
			t.Errorf("unexpected body: %+v", req)
		}
		_ = json.NewEncoder(w).Encode(SearchResult{
			Items: []SearchItem{{FragmentID: "doc-1:0", Score: 0.9}},
			Total: 1,
		})
	}))
	defer ts.Close()

	c, _ := New(ts.URL)
	res, err := c.Search(context.Background(), "hello", WithTopK(5), WithMinScore(0.4))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Total != 1 || res.Items[0].FragmentID != "doc-1:0" {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestDelete_QueryEscaping(t *testing.T) {
	var gotQuery string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_ = json.NewEncoder(w).Encode(DeleteResult{DocumentID: "doc-1", FragmentsRemoved: 2})
	}))
	defer ts.Close()

	c, _ := New(ts.URL)
	res, err := c.DeleteByPath(context.Background(), "/docs/with space&odd.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.FragmentsRemoved != 2 {
		t.Errorf("unexpected result: %+v", res)
	}
	if gotQuery != "path=%2Fdocs%2Fwith+space%26odd.md" {
		t.Errorf("query not escaped: %q", gotQuery)
	}
}

func TestAPIError_Structured(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code": "not_found", "message": "document not found"}`))
	}))
	defer ts.Close()

	c, _ := New(ts.URL)
	_, err := c.DeleteByID(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected error")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusNotFound || apiErr.Code != "not_found" {
		t.Errorf("unexpected error: %+v", apiErr)
	}
	if apiErr.Message != "document not found" {
		t.Errorf("message = %q", apiErr.Message)
	}
}

func TestAPIError_UnstructuredBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream unavailable"))
	}))
	defer ts.Close()

	c, _ := New(ts.URL)
	_, err := c.Status(context.Background())

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusBadGateway || apiErr.Message != "upstream unavailable" {
		t.Errorf("unexpected error: %+v", apiErr)
	}
}

func TestClearCache_NoContent(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/api/v1/cache" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	c, _ := New(ts.URL)
	if err := c.ClearCache(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestFormats(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(formatsResponse{Extensions: []string{".md", ".txt"}})
	}))
	defer ts.Close()

	c, _ := New(ts.URL)
	exts, err := c.Formats(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(exts) != 2 || exts[0] != ".md" {
		t.Errorf("unexpected extensions: %v", exts)
	}
}

func TestHealth_Degraded(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(Health{
			Status: "degraded",
			Checks: map[string]string{"database": "error"},
		})
	}))
	defer ts.Close()

	c, _ := New(ts.URL)
	_, err := c.Health(context.Background())

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d", apiErr.StatusCode)
	}
}
