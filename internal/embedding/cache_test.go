package embedding

import (
	"context"
	"testing"
)

func TestEmbeddingCache_GetSet(t *testing.T) {
	ctx := context.Background()
	c := NewEmbeddingCache(2)
	if v, ok := c.Get(ctx, "a"); ok || v != nil {
		t.Fatal("expected miss")
	}
	c.Set(ctx, "a", []float32{1, 2, 3})
	v, ok := c.Get(ctx, "a")
	if !ok || len(v) != 3 || v[0] != 1 {
		t.Errorf("Get: got %v, %v", v, ok)
	}
	c.Set(ctx, "b", []float32{4, 5})
	c.Set(ctx, "c", []float32{6}) // evicts a
	if _, ok := c.Get(ctx, "a"); ok {
		t.Error("expected a to be evicted")
	}
	if _, ok := c.Get(ctx, "b"); !ok {
		t.Error("expected b to remain")
	}
	if _, ok := c.Get(ctx, "c"); !ok {
		t.Error("expected c to be present")
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}
}

func TestEmbeddingCache_GetRefreshesRecency(t *testing.T) {
	ctx := context.Background()
	c := NewEmbeddingCache(2)
	c.Set(ctx, "a", []float32{1})
	c.Set(ctx, "b", []float32{2})
	c.Get(ctx, "a")
	c.Set(ctx, "c", []float32{3}) // evicts b, not a
	if _, ok := c.Get(ctx, "a"); !ok {
		t.Error("a was used recently and should remain")
	}
	if _, ok := c.Get(ctx, "b"); ok {
		t.Error("b should be evicted")
	}
}

func TestEmbeddingCache_Overwrite(t *testing.T) {
	ctx := context.Background()
	c := NewEmbeddingCache(2)
	c.Set(ctx, "a", []float32{1})
	c.Set(ctx, "a", []float32{9})
	v, _ := c.Get(ctx, "a")
	if v[0] != 9 || c.Len() != 1 {
		t.Errorf("overwrite: got %v len=%d", v, c.Len())
	}
}
