package document

import (
	"fmt"
	"time"
)

// Document is the record of one indexed source version (immutable value object).
// A re-index with overwrite produces a new Document with a fresh ID; fragment
// IDs derive from the document ID, so versions never collide in the store.
type Document struct {
	id            string
	sourcePath    string
	fingerprint   string
	textLength    int
	fragmentCount int
	metadata      map[string]string
	indexedAt     time.Time
}

// New validates and creates a Document.
func New(
	id, sourcePath, fingerprint string,
	textLength, fragmentCount int,
	metadata map[string]string,
	indexedAt time.Time,
) (Document, error) {
	if id == "" {
		return Document{}, fmt.Errorf("document ID is required")
	}
	if sourcePath == "" {
		return Document{}, fmt.Errorf("source path is required")
	}
	if fingerprint == "" {
		return Document{}, fmt.Errorf("fingerprint is required")
	}
	if textLength <= 0 {
		return Document{}, fmt.Errorf("text length must be positive, got %d", textLength)
	}
	if fragmentCount <= 0 {
		return Document{}, fmt.Errorf("fragment count must be positive, got %d", fragmentCount)
	}

	return Document{
		id:            id,
		sourcePath:    sourcePath,
		fingerprint:   fingerprint,
		textLength:    textLength,
		fragmentCount: fragmentCount,
		metadata:      cloneMap(metadata),
		indexedAt:     indexedAt.UTC(),
	}, nil
}

// Reconstruct creates a Document without validation (storage hydration).
func Reconstruct(
	id, sourcePath, fingerprint string,
	textLength, fragmentCount int,
	metadata map[string]string,
	indexedAt time.Time,
) Document {
	return Document{
		id:            id,
		sourcePath:    sourcePath,
		fingerprint:   fingerprint,
		textLength:    textLength,
		fragmentCount: fragmentCount,
		metadata:      metadata,
		indexedAt:     indexedAt,
	}
}

// ID returns the document identifier.
func (d *Document) ID() string { return d.id }

// SourcePath returns the normalized source path, the identity used for
// overwrite detection.
func (d *Document) SourcePath() string { return d.sourcePath }

// Fingerprint returns the content hash of the normalized text.
func (d *Document) Fingerprint() string { return d.fingerprint }

// TextLength returns the normalized text length in characters.
func (d *Document) TextLength() int { return d.textLength }

// FragmentCount returns the number of fragments committed for this version.
func (d *Document) FragmentCount() int { return d.fragmentCount }

// Metadata returns the document-level metadata.
func (d *Document) Metadata() map[string]string { return d.metadata }

// IndexedAt returns the ingestion timestamp.
func (d *Document) IndexedAt() time.Time { return d.indexedAt }

func cloneMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	c := make(map[string]string, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
