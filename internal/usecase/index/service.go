// Package index implements the ingestion orchestrator: convert, chunk,
// embed in batches, commit, retire the superseded version, invalidate
// the query cache.
package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/semdex/internal/chunk"
	"github.com/kailas-cloud/semdex/internal/domain"
	"github.com/kailas-cloud/semdex/internal/domain/batch"
	domdoc "github.com/kailas-cloud/semdex/internal/domain/document"
	domfrag "github.com/kailas-cloud/semdex/internal/domain/fragment"
	"github.com/kailas-cloud/semdex/internal/metrics"
	"github.com/kailas-cloud/semdex/internal/retry"
)

// Policy selects how a failed embedding batch is handled after retries
// are exhausted.
type Policy string

// Embedding failure policies.
const (
	// PolicyAbort fails the whole document on the first exhausted batch.
	PolicyAbort Policy = "abort"
	// PolicySkip drops the failed batch's fragments and keeps going.
	PolicySkip Policy = "skip"
)

// Config tunes the orchestrator.
type Config struct {
	// BatchSize is the number of fragments embedded per provider call.
	BatchSize int
	// EmbedTimeout bounds a single embedding attempt.
	EmbedTimeout time.Duration
	// StoreTimeout bounds a single store operation.
	StoreTimeout time.Duration
	// OnEmbeddingError selects the failure policy.
	OnEmbeddingError Policy
	// RetryAttempts bounds embedding retries per batch.
	RetryAttempts int
	// RetryBaseDelay is the initial backoff delay.
	RetryBaseDelay time.Duration
}

func (c *Config) applyDefaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = 32
	}
	if c.EmbedTimeout <= 0 {
		c.EmbedTimeout = 30 * time.Second
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = 10 * time.Second
	}
	if c.OnEmbeddingError == "" {
		c.OnEmbeddingError = PolicyAbort
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = 3
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = 100 * time.Millisecond
	}
}

// IndexResult is the outcome of indexing one document.
type IndexResult struct {
	DocumentID       string
	SourcePath       string
	FragmentCount    int
	SkippedFragments int
	// Deduplicated is true when the source content was already indexed
	// and the stored version was left untouched.
	Deduplicated bool
}

// DeleteResult is the outcome of removing a document.
type DeleteResult struct {
	DocumentID       string
	SourcePath       string
	FragmentsRemoved int
}

// Stats is a snapshot of the index size.
type Stats struct {
	Documents int
	Fragments int
}

// Service orchestrates document ingestion. Operations on the same
// source path are serialized; distinct paths proceed concurrently.
type Service struct {
	converter Converter
	chunker   Chunker
	embedder  Embedder
	fragments FragmentStore
	documents DocumentStore
	cache     CacheInvalidator
	locks     *keyedMutex
	cfg       Config
	logger    *zap.Logger
}

// New creates an indexing service.
func New(
	converter Converter,
	chunker Chunker,
	embedder Embedder,
	fragments FragmentStore,
	documents DocumentStore,
	cache CacheInvalidator,
	cfg Config,
	logger *zap.Logger,
) *Service {
	cfg.applyDefaults()
	return &Service{
		converter: converter,
		chunker:   chunker,
		embedder:  embedder,
		fragments: fragments,
		documents: documents,
		cache:     cache,
		locks:     newKeyedMutex(),
		cfg:       cfg,
		logger:    logger,
	}
}

// Index ingests one source file. A source already registered for the
// path is rejected unless overwrite is set; with overwrite, re-indexing
// an unchanged file is a no-op reported via Deduplicated, and a changed
// file gets a fresh document id with the superseded version retired
// only after the new one is fully committed, so readers never observe
// a gap.
func (s *Service) Index(ctx context.Context, path string, metadata map[string]string, overwrite bool) (IndexResult, error) {
	path = filepath.Clean(path)

	unlock := s.locks.Lock(path)
	defer unlock()

	text, fileMeta, err := s.converter.Convert(ctx, path)
	if err != nil {
		metrics.IndexedDocumentsTotal.WithLabelValues("error").Inc()
		return IndexResult{}, fmt.Errorf("convert %s: %w", path, err)
	}

	merged := mergeMetadata(fileMeta, metadata)
	fingerprint := contentFingerprint(text)

	previous, hasPrevious, err := s.currentVersion(ctx, path)
	if err != nil {
		return IndexResult{}, err
	}
	if hasPrevious && !overwrite {
		metrics.IndexedDocumentsTotal.WithLabelValues("rejected").Inc()
		return IndexResult{}, fmt.Errorf("%s is registered as %s: %w", path, previous.ID(), domain.ErrAlreadyIndexed)
	}
	if hasPrevious && previous.Fingerprint() == fingerprint {
		metrics.IndexedDocumentsTotal.WithLabelValues("deduplicated").Inc()
		s.logger.Debug("Content unchanged, skipping re-index",
			zap.String("path", path),
			zap.String("document_id", previous.ID()),
		)
		return IndexResult{
			DocumentID:    previous.ID(),
			SourcePath:    path,
			FragmentCount: previous.FragmentCount(),
			Deduplicated:  true,
		}, nil
	}

	spans := s.chunker.Split(text)
	if len(spans) == 0 {
		metrics.IndexedDocumentsTotal.WithLabelValues("error").Inc()
		return IndexResult{}, fmt.Errorf("%s: %w", path, domain.ErrEmptyDocument)
	}

	documentID := uuid.NewString()

	committed, skipped, err := s.embedAndCommit(ctx, documentID, text, spans, merged)
	if err != nil {
		// Fragments from completed batches are unreachable (nothing
		// points at the fresh id yet); clean them up best-effort.
		s.discardPartial(documentID)
		metrics.IndexedDocumentsTotal.WithLabelValues("error").Inc()
		return IndexResult{}, err
	}
	if committed == 0 {
		s.discardPartial(documentID)
		metrics.IndexedDocumentsTotal.WithLabelValues("error").Inc()
		return IndexResult{}, fmt.Errorf("all fragment batches failed for %s: %w", path, domain.ErrEmbeddingProvider)
	}

	doc, err := domdoc.New(documentID, path, fingerprint, len([]rune(text)), committed, merged, time.Now())
	if err != nil {
		s.discardPartial(documentID)
		return IndexResult{}, fmt.Errorf("build document record: %w", err)
	}
	storeCtx, cancel := s.storeCtx(ctx)
	err = s.documents.Save(storeCtx, doc)
	cancel()
	if err != nil {
		s.discardPartial(documentID)
		metrics.IndexedDocumentsTotal.WithLabelValues("error").Inc()
		return IndexResult{}, fmt.Errorf("commit document %s: %w", documentID, err)
	}

	if hasPrevious {
		s.retire(ctx, previous)
	}

	s.cache.Clear()

	metrics.IndexedDocumentsTotal.WithLabelValues("ok").Inc()
	metrics.IndexedFragmentsTotal.Add(float64(committed))

	s.logger.Info("Indexed document",
		zap.String("path", path),
		zap.String("document_id", documentID),
		zap.Int("fragments", committed),
		zap.Int("skipped", skipped),
		zap.Bool("overwrite", hasPrevious),
	)

	return IndexResult{
		DocumentID:       documentID,
		SourcePath:       path,
		FragmentCount:    committed,
		SkippedFragments: skipped,
	}, nil
}

// IndexDirectory walks root and indexes every supported file in it.
// A single file's failure is recorded and never aborts the batch;
// cancellation stops between files with the results gathered so far.
func (s *Service) IndexDirectory(ctx context.Context, root string, metadata map[string]string, overwrite bool) ([]batch.Result, error) {
	root = filepath.Clean(root)

	var results []batch.Result

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		if !s.converter.Supported(path) {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		res, err := s.Index(ctx, path, metadata, overwrite)
		if err != nil {
			s.logger.Warn("Failed to index file",
				zap.String("path", path),
				zap.Error(err),
			)
			results = append(results, batch.NewError(path, err))
			return nil
		}
		results = append(results, batch.NewOK(path, res.DocumentID, res.FragmentCount))
		return nil
	})
	if err != nil {
		return results, fmt.Errorf("walk %s: %w", root, err)
	}
	return results, nil
}

// DeleteByID removes a document and all of its fragments.
func (s *Service) DeleteByID(ctx context.Context, id string) (DeleteResult, error) {
	storeCtx, cancel := s.storeCtx(ctx)
	doc, err := s.documents.GetByID(storeCtx, id)
	cancel()
	if err != nil {
		return DeleteResult{}, fmt.Errorf("get document %s: %w", id, err)
	}
	return s.delete(ctx, doc)
}

// DeleteByPath removes the document currently registered for a source path.
func (s *Service) DeleteByPath(ctx context.Context, path string) (DeleteResult, error) {
	path = filepath.Clean(path)
	storeCtx, cancel := s.storeCtx(ctx)
	doc, err := s.documents.GetByPath(storeCtx, path)
	cancel()
	if err != nil {
		return DeleteResult{}, fmt.Errorf("resolve path %s: %w", path, err)
	}
	return s.delete(ctx, doc)
}

// List returns all document records.
func (s *Service) List(ctx context.Context) ([]domdoc.Document, error) {
	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()

	docs, err := s.documents.List(storeCtx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// Stats reports the current index size.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()

	docs, err := s.documents.List(storeCtx)
	if err != nil {
		return Stats{}, fmt.Errorf("list documents: %w", err)
	}
	fragments, err := s.fragments.CountAll(storeCtx)
	if err != nil {
		return Stats{}, fmt.Errorf("count fragments: %w", err)
	}
	return Stats{Documents: len(docs), Fragments: fragments}, nil
}

func (s *Service) delete(ctx context.Context, doc domdoc.Document) (DeleteResult, error) {
	unlock := s.locks.Lock(doc.SourcePath())
	defer unlock()

	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()

	removed, err := s.fragments.DeleteByDocument(storeCtx, doc.ID())
	if err != nil {
		return DeleteResult{}, fmt.Errorf("delete fragments of %s: %w", doc.ID(), err)
	}
	if err := s.documents.DeleteRecord(storeCtx, doc.ID()); err != nil {
		return DeleteResult{}, fmt.Errorf("delete document %s: %w", doc.ID(), err)
	}
	if err := s.documents.DeletePath(storeCtx, doc.SourcePath(), doc.ID()); err != nil {
		return DeleteResult{}, fmt.Errorf("unlink path %s: %w", doc.SourcePath(), err)
	}

	s.cache.Clear()

	s.logger.Info("Deleted document",
		zap.String("document_id", doc.ID()),
		zap.String("path", doc.SourcePath()),
		zap.Int("fragments_removed", removed),
	)

	return DeleteResult{
		DocumentID:       doc.ID(),
		SourcePath:       doc.SourcePath(),
		FragmentsRemoved: removed,
	}, nil
}

// embedAndCommit embeds spans batch by batch and upserts each embedded
// batch immediately. Cancellation is honored between batches, never
// inside one. Returns committed and skipped fragment counts.
func (s *Service) embedAndCommit(
	ctx context.Context,
	documentID, text string,
	spans []chunk.Span,
	metadata map[string]string,
) (int, int, error) {
	committed := 0
	skipped := 0

	for offset := 0; offset < len(spans); offset += s.cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			return committed, skipped, fmt.Errorf("indexing canceled: %w", err)
		}

		end := offset + s.cfg.BatchSize
		if end > len(spans) {
			end = len(spans)
		}
		window := spans[offset:end]

		texts := make([]string, len(window))
		for i, sp := range window {
			texts[i] = sp.Text(text)
		}

		var embedded domain.EmbeddingBatch
		err := retry.Do(ctx, s.cfg.RetryAttempts, s.cfg.RetryBaseDelay, func(ctx context.Context) error {
			attemptCtx, cancel := context.WithTimeout(ctx, s.cfg.EmbedTimeout)
			defer cancel()

			var embedErr error
			embedded, embedErr = s.embedder.EmbedBatch(attemptCtx, texts)
			return embedErr
		})
		if err != nil {
			if s.cfg.OnEmbeddingError == PolicySkip && !errors.Is(err, context.Canceled) {
				skipped += len(window)
				s.logger.Warn("Skipping fragment batch after exhausted retries",
					zap.String("document_id", documentID),
					zap.Int("batch_start", offset),
					zap.Int("batch_size", len(window)),
					zap.Error(err),
				)
				continue
			}
			return committed, skipped, fmt.Errorf("embed batch at %d: %w", offset, err)
		}

		fragments := make([]domfrag.Fragment, len(window))
		for i, sp := range window {
			fragments[i] = domfrag.New(
				documentID, sp.Ordinal, sp.Start, sp.End,
				texts[i], sp.Overlap, sp.Total, metadata,
			).WithVector(embedded.Vectors[i])
		}

		storeCtx, cancel := s.storeCtx(ctx)
		err = s.fragments.UpsertBatch(storeCtx, fragments)
		cancel()
		if err != nil {
			return committed, skipped, fmt.Errorf("commit batch at %d: %w", offset, err)
		}
		committed += len(window)
	}

	return committed, skipped, nil
}

// currentVersion resolves the document currently registered for a path.
func (s *Service) currentVersion(ctx context.Context, path string) (domdoc.Document, bool, error) {
	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()

	doc, err := s.documents.GetByPath(storeCtx, path)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domdoc.Document{}, false, nil
		}
		return domdoc.Document{}, false, fmt.Errorf("resolve path %s: %w", path, err)
	}
	return doc, true, nil
}

// retire removes a superseded document version. Failures are logged,
// not returned: the new version is already committed and stale data is
// only unreachable garbage at this point.
func (s *Service) retire(ctx context.Context, doc domdoc.Document) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	if _, err := s.fragments.DeleteByDocument(ctx, doc.ID()); err != nil {
		s.logger.Warn("Failed to delete superseded fragments",
			zap.String("document_id", doc.ID()),
			zap.Error(err),
		)
	}
	if err := s.documents.DeleteRecord(ctx, doc.ID()); err != nil {
		s.logger.Warn("Failed to delete superseded document record",
			zap.String("document_id", doc.ID()),
			zap.Error(err),
		)
	}
}

// storeCtx bounds a store operation with the configured timeout.
func (s *Service) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.cfg.StoreTimeout)
}

// discardPartial removes fragments committed for a document id that
// never got a record. Uses a detached context so cleanup still runs
// when the request context is already canceled.
func (s *Service) discardPartial(documentID string) {
	ctx, cancel := s.storeCtx(context.Background())
	defer cancel()

	if _, err := s.fragments.DeleteByDocument(ctx, documentID); err != nil {
		s.logger.Warn("Failed to discard partial fragments",
			zap.String("document_id", documentID),
			zap.Error(err),
		)
	}
}

// contentFingerprint hashes normalized text for change detection.
func contentFingerprint(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// mergeMetadata overlays request metadata on converter metadata.
func mergeMetadata(base, override map[string]string) map[string]string {
	if len(base) == 0 && len(override) == 0 {
		return nil
	}
	merged := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range override {
		merged[k] = v
	}
	return merged
}
