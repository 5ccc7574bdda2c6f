// Package document persists document records: one hash per indexed
// version plus a path pointer used for overwrite detection.
package document

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/kailas-cloud/semdex/internal/db"
	"github.com/kailas-cloud/semdex/internal/domain"
	domdoc "github.com/kailas-cloud/semdex/internal/domain/document"
)

// store is the consumer interface for document persistence (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, key string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Repo implements the indexing use case's DocumentStore contract.
type Repo struct {
	store  store
	prefix string
}

// New creates a document repository. prefix namespaces all keys.
func New(s store, prefix string) *Repo {
	if prefix == "" {
		prefix = domain.DefaultKeyPrefix
	}
	return &Repo{store: s, prefix: prefix}
}

// Save persists a document record and points its source path at it.
// The path pointer moves to the new version atomically from the reader's
// perspective: lookups either see the old version or the new one.
func (r *Repo) Save(ctx context.Context, doc domdoc.Document) error {
	if err := r.store.HSet(ctx, r.docKey(doc.ID()), fieldsFromDocument(doc)); err != nil {
		return fmt.Errorf("save document %s: %w", doc.ID(), err)
	}
	if err := r.store.Set(ctx, r.pathKey(doc.SourcePath()), []byte(doc.ID())); err != nil {
		return fmt.Errorf("point path %s at %s: %w", doc.SourcePath(), doc.ID(), err)
	}
	return nil
}

// GetByID returns the document record for an id.
func (r *Repo) GetByID(ctx context.Context, id string) (domdoc.Document, error) {
	fields, err := r.store.HGetAll(ctx, r.docKey(id))
	if err != nil {
		return domdoc.Document{}, fmt.Errorf("get document %s: %w", id, err)
	}
	if len(fields) == 0 {
		return domdoc.Document{}, fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	return documentFromFields(fields)
}

// GetByPath resolves a source path to its current document record.
func (r *Repo) GetByPath(ctx context.Context, path string) (domdoc.Document, error) {
	id, err := r.store.Get(ctx, r.pathKey(path))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domdoc.Document{}, fmt.Errorf("path %s: %w", path, domain.ErrNotFound)
		}
		return domdoc.Document{}, fmt.Errorf("resolve path %s: %w", path, err)
	}
	return r.GetByID(ctx, string(id))
}

// DeleteRecord removes a document record hash. The path pointer is left
// alone so an overwrite can retire the superseded version without
// unlinking the path from its replacement.
func (r *Repo) DeleteRecord(ctx context.Context, id string) error {
	if err := r.store.Del(ctx, r.docKey(id)); err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	return nil
}

// DeletePath removes the path pointer, but only while it still points at
// the given document id.
func (r *Repo) DeletePath(ctx context.Context, path, id string) error {
	current, err := r.store.Get(ctx, r.pathKey(path))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil
		}
		return fmt.Errorf("resolve path %s: %w", path, err)
	}
	if string(current) != id {
		return nil
	}
	if err := r.store.Del(ctx, r.pathKey(path)); err != nil {
		return fmt.Errorf("delete path %s: %w", path, err)
	}
	return nil
}

// List returns all document records sorted by source path.
func (r *Repo) List(ctx context.Context) ([]domdoc.Document, error) {
	keys, err := r.store.Scan(ctx, r.prefix+"doc:*")
	if err != nil {
		return nil, fmt.Errorf("scan documents: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	hashes, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("fetch documents: %w", err)
	}

	docs := make([]domdoc.Document, 0, len(hashes))
	for i, fields := range hashes {
		if len(fields) == 0 {
			continue // deleted between SCAN and HGETALL
		}
		doc, err := documentFromFields(fields)
		if err != nil {
			return nil, fmt.Errorf("parse document %s: %w", keys[i], err)
		}
		docs = append(docs, doc)
	}

	sort.Slice(docs, func(i, j int) bool {
		return docs[i].SourcePath() < docs[j].SourcePath()
	})
	return docs, nil
}

func (r *Repo) docKey(id string) string {
	return r.prefix + "doc:" + id
}

func (r *Repo) pathKey(path string) string {
	return r.prefix + "path:" + pathDigest(path)
}
