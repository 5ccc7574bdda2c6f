package embcache

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/semdex/internal/db"
	"github.com/kailas-cloud/semdex/internal/domain"
)

// --- Mocks ---

type mockStore struct {
	data   map[string][]byte
	getErr error
	setErr error
}

func newMockStore() *mockStore {
	return &mockStore{data: make(map[string][]byte)}
}

func (m *mockStore) Get(_ context.Context, key string) ([]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *mockStore) Set(_ context.Context, key string, value []byte) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	return nil
}

type mockInner struct {
	calls     int
	lastTexts []string
	err       error
}

func (m *mockInner) EmbedBatch(_ context.Context, texts []string) (domain.EmbeddingBatch, error) {
	m.calls++
	m.lastTexts = texts
	if m.err != nil {
		return domain.EmbeddingBatch{}, m.err
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = []float32{float32(len(text)), 1.0}
	}
	return domain.EmbeddingBatch{Vectors: vectors, TotalTokens: len(texts) * 3}, nil
}

// --- Tests ---

func TestEmbedBatch_MissThenHit(t *testing.T) {
	store := newMockStore()
	inner := &mockInner{}
	c := New(inner, store, "test:", "test-model", nil, zap.NewNop())

	first, err := c.EmbedBatch(context.Background(), []string{"alpha", "beta"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("inner calls = %d, want 1", inner.calls)
	}
	if len(first.Vectors) != 2 {
		t.Fatalf("vectors = %d, want 2", len(first.Vectors))
	}

	second, err := c.EmbedBatch(context.Background(), []string{"alpha", "beta"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("full hit must not call inner, calls = %d", inner.calls)
	}
	if second.TotalTokens != 0 {
		t.Errorf("full hit reports %d tokens, want 0", second.TotalTokens)
	}
	for i := range first.Vectors {
		if len(second.Vectors[i]) != len(first.Vectors[i]) {
			t.Fatalf("vector %d length changed", i)
		}
		for j := range first.Vectors[i] {
			if second.Vectors[i][j] != first.Vectors[i][j] {
				t.Errorf("vector %d differs after round-trip", i)
				break
			}
		}
	}
}

func TestEmbedBatch_PartialMissPreservesOrder(t *testing.T) {
	store := newMockStore()
	inner := &mockInner{}
	c := New(inner, store, "test:", "test-model", nil, zap.NewNop())

	// Warm the cache with "beta" only.
	if _, err := c.EmbedBatch(context.Background(), []string{"beta"}); err != nil {
		t.Fatal(err)
	}
	inner.calls = 0

	batch, err := c.EmbedBatch(context.Background(), []string{"alpha", "beta", "gamma"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("inner calls = %d, want 1", inner.calls)
	}
	if len(inner.lastTexts) != 2 || inner.lastTexts[0] != "alpha" || inner.lastTexts[1] != "gamma" {
		t.Fatalf("inner received %v, want misses only", inner.lastTexts)
	}

	// Vector for each position matches the one the inner embedder would
	// produce for that text (first component encodes text length).
	wantFirst := []float32{5, 4, 5} // alpha, beta, gamma
	for i, w := range wantFirst {
		if batch.Vectors[i][0] != w {
			t.Errorf("position %d got first component %g, want %g", i, batch.Vectors[i][0], w)
		}
	}
}

func TestEmbedBatch_ModelPartOfKey(t *testing.T) {
	store := newMockStore()
	first := &mockInner{}
	second := &mockInner{}

	a := New(first, store, "test:", "model-a", nil, zap.NewNop())
	b := New(second, store, "test:", "model-b", nil, zap.NewNop())

	if _, err := a.EmbedBatch(context.Background(), []string{"same text"}); err != nil {
		t.Fatal(err)
	}
	if _, err := b.EmbedBatch(context.Background(), []string{"same text"}); err != nil {
		t.Fatal(err)
	}
	if second.calls != 1 {
		t.Errorf("different model must miss the cache, inner calls = %d", second.calls)
	}
}

func TestEmbedBatch_InnerFailurePropagates(t *testing.T) {
	store := newMockStore()
	inner := &mockInner{err: domain.ErrEmbeddingProvider}
	c := New(inner, store, "test:", "test-model", nil, zap.NewNop())

	if _, err := c.EmbedBatch(context.Background(), []string{"x"}); !errors.Is(err, domain.ErrEmbeddingProvider) {
		t.Fatalf("expected ErrEmbeddingProvider, got %v", err)
	}
	if len(store.data) != 0 {
		t.Error("failed batch must not populate the cache")
	}
}

func TestEmbedBatch_StoreFailuresDegradeToMiss(t *testing.T) {
	store := newMockStore()
	store.getErr = errors.New("store down")
	inner := &mockInner{}
	c := New(inner, store, "test:", "test-model", nil, zap.NewNop())

	batch, err := c.EmbedBatch(context.Background(), []string{"x"})
	if err != nil {
		t.Fatalf("cache store failure must not fail embedding: %v", err)
	}
	if len(batch.Vectors) != 1 {
		t.Fatalf("vectors = %d", len(batch.Vectors))
	}
	if inner.calls != 1 {
		t.Errorf("inner calls = %d, want 1", inner.calls)
	}
}

func TestEmbedBatch_Empty(t *testing.T) {
	c := New(&mockInner{}, newMockStore(), "test:", "test-model", nil, zap.NewNop())

	batch, err := c.EmbedBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batch.Vectors) != 0 {
		t.Fatalf("vectors = %d", len(batch.Vectors))
	}
}

func TestVectorBytesRoundTrip(t *testing.T) {
	in := []float32{0.25, -1.5, 3.25e-3, 0}
	out, err := bytesToVector(vectorToCacheBytes(in))
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != len(in) {
		t.Fatalf("len = %d", len(out))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("component %d: %g != %g", i, out[i], in[i])
		}
	}
}

func TestBytesToVector_RejectsBadLength(t *testing.T) {
	if _, err := bytesToVector([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for non-multiple-of-4 data")
	}
}
