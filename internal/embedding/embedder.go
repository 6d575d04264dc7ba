// Package embedding provides text embedding providers, caching, and token estimation.
package embedding

import (
	"context"
	"errors"
)

// ErrCardinalityMismatch is returned when a provider answers a batch with a different
// number of vectors than texts it was given.
var ErrCardinalityMismatch = errors.New("embedding count does not match input count")

// Embedder produces vector embeddings for text. EmbedBatch returns vectors in input
// order and fails as a whole; it never signals partial success.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}
