// Package search implements the query orchestrator: embed the query,
// rank nearest fragments, filter, and serve repeats from a bounded
// result cache.
package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/semdex/internal/domain"
	"github.com/kailas-cloud/semdex/internal/domain/search/result"
	"github.com/kailas-cloud/semdex/internal/metrics"
	"github.com/kailas-cloud/semdex/internal/retry"
)

// Config tunes the query side.
type Config struct {
	// DefaultTopK applies when the request does not set a limit.
	DefaultTopK int
	// MaxTopK caps the request limit.
	MaxTopK int
	// EmbedTimeout bounds a single query-embedding attempt.
	EmbedTimeout time.Duration
	// StoreTimeout bounds the vector store query.
	StoreTimeout time.Duration
	// RetryAttempts bounds query-embedding retries.
	RetryAttempts int
	// RetryBaseDelay is the initial backoff delay.
	RetryBaseDelay time.Duration
}

func (c *Config) applyDefaults() {
	if c.DefaultTopK <= 0 {
		c.DefaultTopK = 10
	}
	if c.MaxTopK <= 0 {
		c.MaxTopK = 100
	}
	if c.EmbedTimeout <= 0 {
		c.EmbedTimeout = 30 * time.Second
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = 10 * time.Second
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = 3
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = 100 * time.Millisecond
	}
}

// Response is a ranked result list plus its cache provenance.
type Response struct {
	Results []result.Result
	// Cached is true when the list was served from the query cache.
	Cached bool
}

// Service handles semantic search requests.
type Service struct {
	repo     Repository
	embedder Embedder
	cache    Cache
	cfg      Config
	logger   *zap.Logger
}

// New creates a search service.
func New(repo Repository, embedder Embedder, cache Cache, cfg Config, logger *zap.Logger) *Service {
	cfg.applyDefaults()
	return &Service{
		repo:     repo,
		embedder: embedder,
		cache:    cache,
		cfg:      cfg,
		logger:   logger,
	}
}

// Search returns the topK fragments nearest to the query, highest
// similarity first, dropping results below minScore. Identical requests
// are answered from the cache until the next index mutation; only fully
// successful result lists are ever cached.
func (s *Service) Search(ctx context.Context, query string, topK int, minScore float64) (Response, error) {
	if strings.TrimSpace(query) == "" {
		return Response{}, fmt.Errorf("query text is required: %w", domain.ErrInvalidArgument)
	}
	if minScore < 0 || minScore > 1 {
		return Response{}, fmt.Errorf("min_score must be in [0, 1], got %g: %w", minScore, domain.ErrInvalidArgument)
	}
	if topK <= 0 {
		topK = s.cfg.DefaultTopK
	}
	if topK > s.cfg.MaxTopK {
		topK = s.cfg.MaxTopK
	}

	start := time.Now()
	defer func() {
		metrics.SearchRequestDuration.Observe(time.Since(start).Seconds())
	}()

	key := Signature(query, topK, minScore)

	if cached, ok := s.cache.Get(key); ok {
		metrics.SearchCacheTotal.WithLabelValues("hit").Inc()
		return Response{Results: cached, Cached: true}, nil
	}
	metrics.SearchCacheTotal.WithLabelValues("miss").Inc()

	vector, err := s.embedQuery(ctx, query)
	if err != nil {
		return Response{}, err
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	results, err := s.repo.Query(storeCtx, vector, topK)
	cancel()
	if err != nil {
		return Response{}, fmt.Errorf("query fragments: %w", err)
	}

	results = filterByScore(results, minScore)
	sortRanked(results)

	s.cache.Put(key, results)

	s.logger.Debug("Search completed",
		zap.Int("top_k", topK),
		zap.Float64("min_score", minScore),
		zap.Int("results", len(results)),
	)

	return Response{Results: results}, nil
}

// InvalidateCache drops every cached result list.
func (s *Service) InvalidateCache() {
	s.cache.Clear()
}

// CacheSize returns the number of cached result lists.
func (s *Service) CacheSize() int {
	return s.cache.Len()
}

func (s *Service) embedQuery(ctx context.Context, query string) ([]float32, error) {
	var batch domain.EmbeddingBatch
	err := retry.Do(ctx, s.cfg.RetryAttempts, s.cfg.RetryBaseDelay, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, s.cfg.EmbedTimeout)
		defer cancel()

		var embedErr error
		batch, embedErr = s.embedder.EmbedBatch(attemptCtx, []string{query})
		return embedErr
	})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(batch.Vectors) != 1 {
		return nil, fmt.Errorf("expected one query vector, got %d: %w", len(batch.Vectors), domain.ErrEmbeddingProvider)
	}
	return batch.Vectors[0], nil
}

func filterByScore(results []result.Result, minScore float64) []result.Result {
	if minScore <= 0 {
		return results
	}
	filtered := results[:0]
	for _, r := range results {
		if r.Score() >= minScore {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

// sortRanked orders by similarity descending; score ties break by
// document id and then ordinal so the ranking is deterministic.
func sortRanked(results []result.Result) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score() != results[j].Score() {
			return results[i].Score() > results[j].Score()
		}
		if results[i].DocumentID() != results[j].DocumentID() {
			return results[i].DocumentID() < results[j].DocumentID()
		}
		return results[i].Ordinal() < results[j].Ordinal()
	})
}
