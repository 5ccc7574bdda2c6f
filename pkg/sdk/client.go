// Package semdex is the HTTP client for the semdex API.
package semdex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Client talks to a semdex server.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a Client for the given base URL, e.g. "http://localhost:8080".
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		return nil, errors.New("semdex: base URL required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("semdex: invalid base URL: %w", err)
	}

	c := &Client{
		baseURL: baseURL,
		http:    http.DefaultClient,
	}
	for _, o := range opts {
		o.apply(c)
	}
	return c, nil
}

// Index ingests one source file on the server host. A path that is
// already indexed is rejected with a 409 unless overwrite is set.
func (c *Client) Index(ctx context.Context, path string, metadata map[string]string, overwrite bool) (IndexResult, error) {
	var out IndexResult
	err := c.do(ctx, http.MethodPost, "/api/v1/index",
		indexRequest{Path: path, Metadata: metadata, Overwrite: overwrite}, &out)
	return out, err
}

// IndexDirectory ingests every supported file under a directory.
func (c *Client) IndexDirectory(ctx context.Context, path string, metadata map[string]string, overwrite bool) (DirectoryResult, error) {
	var out DirectoryResult
	err := c.do(ctx, http.MethodPost, "/api/v1/index/directory",
		indexRequest{Path: path, Metadata: metadata, Overwrite: overwrite}, &out)
	return out, err
}

// Search returns the fragments nearest to the query.
func (c *Client) Search(ctx context.Context, query string, opts ...SearchOption) (SearchResult, error) {
	req := searchRequest{Query: query}
	for _, o := range opts {
		o(&req)
	}

	var out SearchResult
	err := c.do(ctx, http.MethodPost, "/api/v1/search", req, &out)
	return out, err
}

// DeleteByID removes a document and its fragments by document id.
func (c *Client) DeleteByID(ctx context.Context, id string) (DeleteResult, error) {
	var out DeleteResult
	err := c.do(ctx, http.MethodDelete, "/api/v1/documents?id="+url.QueryEscape(id), nil, &out)
	return out, err
}

// DeleteByPath removes the document registered for a source path.
func (c *Client) DeleteByPath(ctx context.Context, path string) (DeleteResult, error) {
	var out DeleteResult
	err := c.do(ctx, http.MethodDelete, "/api/v1/documents?path="+url.QueryEscape(path), nil, &out)
	return out, err
}

// ListDocuments returns all indexed document records.
func (c *Client) ListDocuments(ctx context.Context) (DocumentList, error) {
	var out DocumentList
	err := c.do(ctx, http.MethodGet, "/api/v1/documents", nil, &out)
	return out, err
}

// ClearCache drops every cached query result on the server.
func (c *Client) ClearCache(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/cache", nil, nil)
}

// Status returns index size and cache occupancy.
func (c *Client) Status(ctx context.Context) (Status, error) {
	var out Status
	err := c.do(ctx, http.MethodGet, "/api/v1/status", nil, &out)
	return out, err
}

// Formats returns the server's supported source extensions.
func (c *Client) Formats(ctx context.Context) ([]string, error) {
	var out formatsResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/formats", nil, &out); err != nil {
		return nil, err
	}
	return out.Extensions, nil
}

// Health reports component availability. A degraded server responds
// with 503, surfaced as an *APIError.
func (c *Client) Health(ctx context.Context) (Health, error) {
	var out Health
	err := c.do(ctx, http.MethodGet, "/health", nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("semdex: encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("semdex: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("semdex: %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return parseAPIError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("semdex: decode response: %w", err)
	}
	return nil
}

func parseAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err == nil && len(data) > 0 {
		var body struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &body) == nil && body.Code != "" {
			apiErr.Code = body.Code
			apiErr.Message = body.Message
			return apiErr
		}
		apiErr.Message = string(data)
	}
	return apiErr
}
