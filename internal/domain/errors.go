package domain

import "errors"

var (
	// ErrNotFound signals a missing document.
	ErrNotFound = errors.New("document not found")
	// ErrAlreadyIndexed signals an indexed source re-submitted without overwrite.
	ErrAlreadyIndexed = errors.New("document already indexed")
	// ErrUnsupportedFormat signals a source whose extension is not in the allow-list.
	ErrUnsupportedFormat = errors.New("unsupported document format")
	// ErrConversion signals an unreadable or corrupt source.
	ErrConversion = errors.New("document conversion failed")
	// ErrEmptyDocument signals a source with no text content after conversion.
	ErrEmptyDocument = errors.New("document is empty after conversion")
	// ErrInvalidChunkConfig signals a chunking configuration that cannot terminate.
	ErrInvalidChunkConfig = errors.New("invalid chunk configuration")
	// ErrEmbeddingProvider signals an embedding provider failure.
	ErrEmbeddingProvider = errors.New("embedding provider error")
	// ErrInvalidArgument signals a malformed request parameter.
	ErrInvalidArgument = errors.New("invalid argument")
)
