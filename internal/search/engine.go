// Package search answers text queries against a vector store.
package search

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/vector"
)

// ErrQueryEmbedding wraps failures to embed the query text.
var ErrQueryEmbedding = errors.New("query embedding failed")

// Engine embeds a query and ranks the store's chunks against it.
type Engine struct {
	embedder   embedding.Embedder
	similarity vector.SimilarityFunc
}

// Option configures an Engine.
type Option func(*Engine)

// WithSimilarity overrides the similarity function (cosine by default).
func WithSimilarity(fn vector.SimilarityFunc) Option {
	return func(e *Engine) { e.similarity = fn }
}

// NewEngine creates a search engine that embeds queries with embedder.
func NewEngine(embedder embedding.Embedder, opts ...Option) *Engine {
	e := &Engine{embedder: embedder, similarity: vector.CosineSimilarity}
	for _, opt := range opts {
		opt(e)
	}
	if e.similarity == nil {
		e.similarity = vector.CosineSimilarity
	}
	return e
}

// SearchByText returns the k chunks of store most similar to query, best first.
func (e *Engine) SearchByText(ctx context.Context, store *vector.Store, query string, k int) ([]vector.ScoredResult, error) {
	if k <= 0 {
		return []vector.ScoredResult{}, nil
	}
	q, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryEmbedding, err)
	}
	return store.Search(q, k, e.similarity), nil
}

// SearchTexts is SearchByText returning only the chunk texts.
func (e *Engine) SearchTexts(ctx context.Context, store *vector.Store, query string, k int) ([]string, error) {
	results, err := e.SearchByText(ctx, store, query, k)
	if err != nil {
		return nil, err
	}
	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Key
	}
	return texts, nil
}
