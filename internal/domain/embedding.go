package domain

import "context"

// DefaultKeyPrefix namespaces all store keys.
const DefaultKeyPrefix = "semdex:"

// EmbeddingBatch is the outcome of one batch embedding call.
// Vectors is positionally aligned with the input texts.
type EmbeddingBatch struct {
	Vectors      [][]float32
	PromptTokens int
	TotalTokens  int
}

// Embedder vectorizes batches of text. The embedding dimension is fixed
// per provider instance.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) (EmbeddingBatch, error)
}

// HealthChecker is implemented by collaborators that can probe their backend.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
