package search

import (
	"context"

	"github.com/kailas-cloud/semdex/internal/domain"
	"github.com/kailas-cloud/semdex/internal/domain/search/result"
)

// Repository runs nearest-neighbor queries over indexed fragments.
type Repository interface {
	Query(ctx context.Context, vector []float32, topK int) ([]result.Result, error)
}

// Embedder vectorizes the query text.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) (domain.EmbeddingBatch, error)
}

// Cache stores ranked result lists keyed by query signature.
type Cache interface {
	Get(key string) ([]result.Result, bool)
	Put(key string, results []result.Result)
	Clear()
	Len() int
}
