package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// CachedEmbedder wraps an Embedder and serves repeated texts from a Cache. Only
// uncached texts are sent to the wrapped embedder.
type CachedEmbedder struct {
	inner Embedder
	cache Cache
	model string
}

// NewCachedEmbedder wraps inner with cache. model namespaces the cache keys so
// switching models never returns stale vectors.
func NewCachedEmbedder(inner Embedder, cache Cache, model string) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, cache: cache, model: model}
}

// Embed returns the cached embedding for text or asks the wrapped embedder.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.key(text)
	if v, ok := c.cache.Get(ctx, key); ok {
		return v, nil
	}
	v, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Set(ctx, key, v)
	return v, nil
}

// EmbedBatch embeds the uncached texts in a single call to the wrapped embedder.
// If that call fails the whole batch fails.
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	var (
		uncached    []string
		uncachedIdx []int
	)
	for i, text := range texts {
		if v, ok := c.cache.Get(ctx, c.key(text)); ok {
			results[i] = v
			continue
		}
		uncached = append(uncached, text)
		uncachedIdx = append(uncachedIdx, i)
	}
	if len(uncached) == 0 {
		return results, nil
	}

	embeddings, err := c.inner.EmbedBatch(ctx, uncached)
	if err != nil {
		return nil, err
	}
	if len(embeddings) != len(uncached) {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrCardinalityMismatch, len(embeddings), len(uncached))
	}
	for j, idx := range uncachedIdx {
		results[idx] = embeddings[j]
		c.cache.Set(ctx, c.key(uncached[j]), embeddings[j])
	}
	return results, nil
}

// Dimensions returns the wrapped embedder's dimension.
func (c *CachedEmbedder) Dimensions() int {
	return c.inner.Dimensions()
}

// Close closes the wrapped embedder.
func (c *CachedEmbedder) Close() error {
	return c.inner.Close()
}

func (c *CachedEmbedder) key(text string) string {
	h := sha256.Sum256([]byte(c.model + ":" + text))
	return hex.EncodeToString(h[:16])
}
