package vector

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/pkg/utils"
)

// DefaultMaxTokensPerBatch is the estimated token budget of one EmbedBatch request.
const DefaultMaxTokensPerBatch = 250000

// batchSampleSize is how many leading chunks are sampled to estimate chunk size.
const batchSampleSize = 5

// SkippedChunk records a chunk that could not be embedded even individually.
type SkippedChunk struct {
	Index int
	Chunk string
	Err   error
}

// BuildReport summarizes one Build call.
type BuildReport struct {
	Chunks          int
	Batches         int
	BatchSize       int
	Inserted        int
	FallbackBatches int
	Skipped         []SkippedChunk
	Duration        time.Duration
}

// Builder embeds text chunks in token-bounded batches and inserts them into a Store.
type Builder struct {
	embedder    embedding.Embedder
	estimator   embedding.TokenEstimator
	maxTokens   int
	concurrency int
	logger      *zap.Logger
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithLogger sets the logger used for batch progress.
func WithLogger(l *zap.Logger) BuilderOption {
	return func(b *Builder) { b.logger = utils.OrNop(l) }
}

// WithMaxTokensPerBatch sets the estimated token budget per batch. Non-positive values
// keep the default.
func WithMaxTokensPerBatch(n int) BuilderOption {
	return func(b *Builder) {
		if n > 0 {
			b.maxTokens = n
		}
	}
}

// WithConcurrency sets how many batches may be embedded at once.
func WithConcurrency(n int) BuilderOption {
	return func(b *Builder) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithTokenEstimator replaces the default 4-characters-per-token estimator.
func WithTokenEstimator(e embedding.TokenEstimator) BuilderOption {
	return func(b *Builder) {
		if e != nil {
			b.estimator = e
		}
	}
}

// NewBuilder creates a Builder that embeds with e.
func NewBuilder(e embedding.Embedder, opts ...BuilderOption) *Builder {
	b := &Builder{
		embedder:    e,
		estimator:   embedding.CharRatioEstimator{CharsPerToken: embedding.CharsPerToken},
		maxTokens:   DefaultMaxTokensPerBatch,
		concurrency: 1,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// BatchSize returns how many chunks fit in one batch of maxTokens using the default
// token estimate.
func BatchSize(chunks []string, maxTokens int) int {
	return batchSize(chunks, maxTokens, embedding.CharRatioEstimator{CharsPerToken: embedding.CharsPerToken})
}

// batchSize samples the first few chunks, averages their estimated token counts and
// returns max(1, floor(maxTokens/avg)) capped at len(chunks). A zero average puts
// everything in one batch.
func batchSize(chunks []string, maxTokens int, est embedding.TokenEstimator) int {
	if len(chunks) == 0 {
		return 0
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokensPerBatch
	}
	sample := chunks[:min(batchSampleSize, len(chunks))]
	total := 0
	for _, c := range sample {
		total += est.EstimateTokens(c)
	}
	avg := float64(total) / float64(len(sample))
	if avg == 0 {
		return len(chunks)
	}
	n := int(float64(maxTokens) / avg)
	return max(1, min(n, len(chunks)))
}

type batchResult struct {
	vectors  [][]float32
	ok       []bool
	fallback bool
	skipped  []SkippedChunk
	done     bool
}

// Build embeds chunks and inserts each (chunk, vector) pair into store. Embedding
// failures never fail the build: a failed batch is retried one chunk at a time and
// chunks that still fail are reported in BuildReport.Skipped. The only error returned
// is the context's.
//
// Batches may be embedded concurrently but are inserted in batch order, so a chunk
// that appears more than once ends up with the vector of its last occurrence.
func (b *Builder) Build(ctx context.Context, store *Store, chunks []string) (*BuildReport, error) {
	start := time.Now()
	report := &BuildReport{Chunks: len(chunks)}
	if len(chunks) == 0 {
		return report, nil
	}

	size := batchSize(chunks, b.maxTokens, b.estimator)
	batches := make([][]string, 0, (len(chunks)+size-1)/size)
	for i := 0; i < len(chunks); i += size {
		batches = append(batches, chunks[i:min(i+size, len(chunks))])
	}
	report.Batches = len(batches)
	report.BatchSize = size
	b.logger.Info("Building vector store",
		zap.Int("chunks", len(chunks)),
		zap.Int("batches", len(batches)),
		zap.Int("batch_size", size),
	)

	results := make([]batchResult, len(batches))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for i, batch := range batches {
		i, batch := i, batch
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			results[i] = b.embedBatch(gctx, i, i*size, batch)
			return nil
		})
	}
	_ = g.Wait()

	for i, res := range results {
		if !res.done {
			break
		}
		for j, chunk := range batches[i] {
			if res.ok[j] {
				store.Insert(chunk, res.vectors[j])
				report.Inserted++
			}
		}
		if res.fallback {
			report.FallbackBatches++
		}
		report.Skipped = append(report.Skipped, res.skipped...)
	}
	report.Duration = time.Since(start)

	if err := ctx.Err(); err != nil {
		return report, err
	}
	b.logger.Info("Vector store built",
		zap.Int("inserted", report.Inserted),
		zap.Int("fallback_batches", report.FallbackBatches),
		zap.Int("skipped", len(report.Skipped)),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}

// embedBatch embeds one batch, falling back to per-chunk calls when the batch call
// fails. The result is marked done only when every chunk has a final outcome.
func (b *Builder) embedBatch(ctx context.Context, n, offset int, batch []string) batchResult {
	tokens := 0
	for _, c := range batch {
		tokens += b.estimator.EstimateTokens(c)
	}
	b.logger.Info("Embedding batch",
		zap.Int("batch", n+1),
		zap.Int("chunks", len(batch)),
		zap.Int("estimated_tokens", tokens),
	)

	res := batchResult{
		vectors: make([][]float32, len(batch)),
		ok:      make([]bool, len(batch)),
	}
	vecs, err := b.embedder.EmbedBatch(ctx, batch)
	if err == nil && len(vecs) == len(batch) {
		copy(res.vectors, vecs)
		for j := range res.ok {
			res.ok[j] = true
		}
		res.done = true
		return res
	}
	if ctx.Err() != nil {
		return res
	}
	if err == nil {
		err = embedding.ErrCardinalityMismatch
	}
	b.logger.Warn("Batch embedding failed, falling back to single embeds",
		zap.Int("batch", n+1),
		zap.Error(err),
	)

	res.fallback = true
	for j, chunk := range batch {
		v, err := b.embedder.Embed(ctx, chunk)
		if err != nil {
			if ctx.Err() != nil {
				return res
			}
			b.logger.Warn("Skipping chunk",
				zap.Int("chunk", offset+j),
				zap.String("preview", utils.Truncate(chunk, 50)),
				zap.Error(err),
			)
			res.skipped = append(res.skipped, SkippedChunk{Index: offset + j, Chunk: chunk, Err: err})
			continue
		}
		res.vectors[j] = v
		res.ok[j] = true
	}
	res.done = true
	return res
}
