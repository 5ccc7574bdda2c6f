package index

import (
	"context"

	"github.com/kailas-cloud/semdex/internal/chunk"
	"github.com/kailas-cloud/semdex/internal/domain"
	domdoc "github.com/kailas-cloud/semdex/internal/domain/document"
	domfrag "github.com/kailas-cloud/semdex/internal/domain/fragment"
)

// Converter turns a source file into normalized text plus metadata.
type Converter interface {
	Convert(ctx context.Context, path string) (text string, metadata map[string]string, err error)
	Supported(path string) bool
}

// Chunker splits normalized text into ordered spans.
type Chunker interface {
	Split(text string) []chunk.Span
}

// Embedder vectorizes a batch of texts.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) (domain.EmbeddingBatch, error)
}

// FragmentStore persists embedded fragments.
type FragmentStore interface {
	UpsertBatch(ctx context.Context, fragments []domfrag.Fragment) error
	DeleteByDocument(ctx context.Context, documentID string) (int, error)
	CountAll(ctx context.Context) (int, error)
}

// DocumentStore persists document records and path pointers.
type DocumentStore interface {
	Save(ctx context.Context, doc domdoc.Document) error
	GetByID(ctx context.Context, id string) (domdoc.Document, error)
	GetByPath(ctx context.Context, path string) (domdoc.Document, error)
	DeleteRecord(ctx context.Context, id string) error
	DeletePath(ctx context.Context, path, id string) error
	List(ctx context.Context) ([]domdoc.Document, error)
}

// CacheInvalidator drops derived query results after index mutations.
type CacheInvalidator interface {
	Clear()
}
