package cache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/kailas-cloud/semdex/internal/domain/search/result"
)

func results(ids ...string) []result.Result {
	out := make([]result.Result, len(ids))
	for i, id := range ids {
		out[i] = result.New(id+":0", id, 0, 0.5, "text", nil)
	}
	return out
}

func TestQueryCache_GetMiss(t *testing.T) {
	c := New(4)
	if _, ok := c.Get("absent"); ok {
		t.Fatal("expected miss on empty cache")
	}
}

func TestQueryCache_PutGet(t *testing.T) {
	c := New(4)
	c.Put("k", results("doc-1"))

	got, ok := c.Get("k")
	if !ok {
		t.Fatal("expected hit")
	}
	if len(got) != 1 || got[0].DocumentID() != "doc-1" {
		t.Fatalf("unexpected results: %+v", got)
	}
}

func TestQueryCache_CachesEmptyResultList(t *testing.T) {
	// An empty list is a valid answer and must be served from cache too.
	c := New(4)
	c.Put("empty", nil)

	got, ok := c.Get("empty")
	if !ok {
		t.Fatal("expected hit for empty result list")
	}
	if len(got) != 0 {
		t.Fatalf("expected empty results, got %d", len(got))
	}
}

func TestQueryCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := New(2)
	c.Put("a", results("a"))
	c.Put("b", results("b"))

	// Touch "a" so "b" becomes the eviction candidate.
	if _, ok := c.Get("a"); !ok {
		t.Fatal("expected hit for a")
	}

	c.Put("c", results("c"))

	if _, ok := c.Get("b"); ok {
		t.Error("expected b to be evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("expected a to survive")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("expected c to be present")
	}
	if c.Len() != 2 {
		t.Errorf("len = %d, want 2", c.Len())
	}
}

func TestQueryCache_PutRefreshesExisting(t *testing.T) {
	c := New(2)
	c.Put("a", results("old"))
	c.Put("b", results("b"))
	c.Put("a", results("new"))
	c.Put("c", results("c")) // evicts b, not a

	got, ok := c.Get("a")
	if !ok {
		t.Fatal("expected a to survive after refresh")
	}
	if got[0].DocumentID() != "new" {
		t.Errorf("expected refreshed value, got %s", got[0].DocumentID())
	}
	if _, ok := c.Get("b"); ok {
		t.Error("expected b to be evicted")
	}
}

func TestQueryCache_Clear(t *testing.T) {
	c := New(4)
	c.Put("a", results("a"))
	c.Put("b", results("b"))

	c.Clear()

	if c.Len() != 0 {
		t.Fatalf("len after clear = %d", c.Len())
	}
	if _, ok := c.Get("a"); ok {
		t.Error("expected miss after clear")
	}
}

func TestQueryCache_DefaultCapacity(t *testing.T) {
	c := New(0)
	for i := 0; i < DefaultCapacity+10; i++ {
		c.Put(fmt.Sprintf("k%d", i), nil)
	}
	if c.Len() != DefaultCapacity {
		t.Fatalf("len = %d, want %d", c.Len(), DefaultCapacity)
	}
}

func TestQueryCache_ConcurrentAccess(t *testing.T) {
	c := New(16)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("k%d", (n+j)%32)
				c.Put(key, results(key))
				c.Get(key)
				if j%25 == 0 {
					c.Clear()
				}
			}
		}(i)
	}
	wg.Wait()

	if c.Len() > 16 {
		t.Fatalf("len %d exceeds capacity", c.Len())
	}
}
