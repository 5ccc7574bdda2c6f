// Package convert turns source files into normalized text plus
// document-level metadata. Format support is driven by a configurable
// extension allow-list; unsupported or unreadable sources fail with the
// corresponding domain sentinel.
package convert

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/semdex/internal/domain"
)

// FileConverter reads local files and produces normalized text.
type FileConverter struct {
	allowed map[string]bool
	logger  *zap.Logger
}

// New creates a converter restricted to the given extensions
// (lower-case, dot-prefixed, e.g. ".txt").
func New(allowedExts []string, logger *zap.Logger) *FileConverter {
	allowed := make(map[string]bool, len(allowedExts))
	for _, ext := range allowedExts {
		allowed[strings.ToLower(ext)] = true
	}
	return &FileConverter{allowed: allowed, logger: logger}
}

// Supported reports whether the file's extension is in the allow-list.
func (c *FileConverter) Supported(path string) bool {
	return c.allowed[strings.ToLower(filepath.Ext(path))]
}

// AllowedExtensions returns the allow-list in sorted order.
func (c *FileConverter) AllowedExtensions() []string {
	exts := make([]string, 0, len(c.allowed))
	for ext := range c.allowed {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Convert reads and normalizes a source file. It fails with
// domain.ErrUnsupportedFormat, domain.ErrConversion, or
// domain.ErrEmptyDocument.
func (c *FileConverter) Convert(_ context.Context, path string) (string, map[string]string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !c.allowed[ext] {
		return "", nil, fmt.Errorf("extension %q: %w", ext, domain.ErrUnsupportedFormat)
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", nil, fmt.Errorf("stat %s: %w: %w", path, err, domain.ErrConversion)
	}
	if info.IsDir() {
		return "", nil, fmt.Errorf("%s is a directory: %w", path, domain.ErrConversion)
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return "", nil, fmt.Errorf("read %s: %w: %w", path, err, domain.ErrConversion)
	}

	text := string(data)
	if ext == ".html" || ext == ".htm" {
		text = stripHTML(text)
	}
	text = NormalizeText(text)

	if text == "" {
		return "", nil, fmt.Errorf("%s: %w", path, domain.ErrEmptyDocument)
	}

	metadata := map[string]string{
		"file_name":   filepath.Base(path),
		"file_type":   ext,
		"file_size":   strconv.FormatInt(info.Size(), 10),
		"modified_at": info.ModTime().UTC().Format(time.RFC3339),
	}

	c.logger.Debug("Converted document",
		zap.String("path", path),
		zap.String("type", ext),
		zap.Int("text_length", len(text)),
	)

	return text, metadata, nil
}

var multiBlank = regexp.MustCompile(`\n{3,}`)

// NormalizeText canonicalizes line endings, collapses runs of blank
// lines, and trims surrounding whitespace. The result is the input to
// chunking and fingerprinting, so it must be deterministic.
func NormalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = multiBlank.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
