// Package fragment persists embedded fragments as Redis hashes under an
// FT vector index and serves nearest-neighbor queries over them.
package fragment

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/semdex/internal/db"
	"github.com/kailas-cloud/semdex/internal/domain"
	domfrag "github.com/kailas-cloud/semdex/internal/domain/fragment"
	"github.com/kailas-cloud/semdex/internal/domain/search/result"
)

// store is the consumer interface for fragment persistence (ISP).
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	DelMulti(ctx context.Context, keys []string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
}

// HNSWConfig tunes the vector index build parameters.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Repo implements the orchestrators' FragmentStore contracts.
type Repo struct {
	store  store
	prefix string
	dim    int
	hnsw   HNSWConfig
}

// New creates a fragment repository. prefix namespaces all keys, dim is
// the embedding dimension the index is built for.
func New(s store, prefix string, dim int) *Repo {
	if prefix == "" {
		prefix = domain.DefaultKeyPrefix
	}
	return &Repo{store: s, prefix: prefix, dim: dim}
}

// WithHNSW overrides the index build parameters.
func (r *Repo) WithHNSW(cfg HNSWConfig) *Repo {
	r.hnsw = cfg
	return r
}

// EnsureIndex creates the fragment vector index if it does not exist yet.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	def := &db.IndexDefinition{
		Name:     r.indexName(),
		Prefixes: []string{r.prefix + "frag:"},
		Fields: []db.IndexField{
			{Name: fieldDocumentID, Type: db.IndexFieldTag},
			{Name: fieldOrdinal, Type: db.IndexFieldNumeric},
			{
				Name:              fieldVector,
				Type:              db.IndexFieldVector,
				VectorAlgo:        db.VectorHNSW,
				VectorDim:         r.dim,
				VectorDistance:    db.DistanceCosine,
				VectorM:           r.hnsw.M,
				VectorEFConstruct: r.hnsw.EFConstruct,
			},
		},
	}

	if err := r.store.CreateIndex(ctx, def); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return nil
		}
		return fmt.Errorf("create fragment index: %w", err)
	}
	return nil
}

// UpsertBatch commits a batch of embedded fragments in one pipelined
// round-trip, keyed by fragment id.
func (r *Repo) UpsertBatch(ctx context.Context, fragments []domfrag.Fragment) error {
	if len(fragments) == 0 {
		return nil
	}

	items := make([]db.HashSetItem, len(fragments))
	for i := range fragments {
		items[i] = db.HashSetItem{
			Key:    r.fragKey(fragments[i].ID()),
			Fields: fieldsFromFragment(&fragments[i]),
		}
	}

	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("upsert %d fragments: %w", len(fragments), err)
	}
	return nil
}

// DeleteByDocument removes every fragment owned by a document and
// returns the number removed. Fragment keys embed the document id, so
// deletion is a key-pattern operation rather than an index query.
func (r *Repo) DeleteByDocument(ctx context.Context, documentID string) (int, error) {
	keys, err := r.store.Scan(ctx, r.prefix+"frag:"+documentID+":*")
	if err != nil {
		return 0, fmt.Errorf("scan fragments of %s: %w", documentID, err)
	}
	if len(keys) == 0 {
		return 0, nil
	}
	if err := r.store.DelMulti(ctx, keys); err != nil {
		return 0, fmt.Errorf("delete fragments of %s: %w", documentID, err)
	}
	return len(keys), nil
}

// Query runs a KNN search and returns ranked results with fragment and
// document metadata attached. Scores arrive already converted to
// similarities by the db layer.
func (r *Repo) Query(ctx context.Context, vector []float32, topK int) ([]result.Result, error) {
	q := &db.KNNQuery{
		IndexName: r.indexName(),
		Vector:    vector,
		K:         topK,
		ReturnFields: []string{
			fieldDocumentID, fieldOrdinal, fieldContent, fieldMetadata, "__vector_score",
		},
	}

	sr, err := r.store.SearchKNN(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search knn: %w", err)
	}
	if sr == nil || len(sr.Entries) == 0 {
		return nil, nil
	}

	results := make([]result.Result, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		res, err := resultFromEntry(entry)
		if err != nil {
			return nil, fmt.Errorf("parse entry %s: %w", entry.Key, err)
		}
		results = append(results, res)
	}
	return results, nil
}

// CountAll returns the total number of indexed fragments.
func (r *Repo) CountAll(ctx context.Context) (int, error) {
	count, err := r.store.SearchCount(ctx, r.indexName(), "*")
	if err != nil {
		return 0, fmt.Errorf("count fragments: %w", err)
	}
	return count, nil
}

func (r *Repo) indexName() string {
	return r.prefix + "fragments:idx"
}

func (r *Repo) fragKey(fragmentID string) string {
	return r.prefix + "frag:" + fragmentID
}
