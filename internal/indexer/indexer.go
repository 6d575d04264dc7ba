// Package indexer splits documents into chunks and builds vector stores from them.
package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/extract"
	"github.com/hyperjump/kotae/internal/vector"
	"github.com/hyperjump/kotae/pkg/utils"
)

// Indexer turns documents into chunks and inserts their embeddings into a store.
type Indexer struct {
	splitter        Splitter
	builder         *vector.Builder
	extractor       *extract.Extractor
	removeStopwords bool
	logger          *zap.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for debug output (file indexed, directory walked, etc.).
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = utils.OrNop(l) }
}

// WithStopwordRemoval strips English stopwords from documents before splitting.
func WithStopwordRemoval(enabled bool) IndexerOption {
	return func(idx *Indexer) { idx.removeStopwords = enabled }
}

// NewIndexer creates an indexer. extractor may be nil; when nil, files are read as
// plain text.
func NewIndexer(splitter Splitter, builder *vector.Builder, extractor *extract.Extractor, opts ...IndexerOption) *Indexer {
	idx := &Indexer{
		splitter:  splitter,
		builder:   builder,
		extractor: extractor,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// NewSplitter returns the splitter selected by cfg.Mode.
func NewSplitter(cfg config.ChunkingConfig) (Splitter, error) {
	switch cfg.Mode {
	case config.ChunkModeParagraph:
		return NewParagraphSplitter(cfg.ParagraphMaxChars)
	case config.ChunkModeCharacter, "":
		return NewCharacterSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	default:
		return nil, fmt.Errorf("%w: unknown chunking mode %q", ErrInvalidChunkConfig, cfg.Mode)
	}
}

// IndexText splits docs and builds their chunks into store. The report's Chunks field
// is the number of chunks produced.
func (idx *Indexer) IndexText(ctx context.Context, store *vector.Store, docs ...string) (*vector.BuildReport, error) {
	if idx.removeStopwords {
		cleaned := make([]string, len(docs))
		for i, d := range docs {
			cleaned[i] = RemoveStopwords(d)
		}
		docs = cleaned
	}
	chunks := SplitTexts(idx.splitter, docs)
	idx.logger.Debug("indexer split documents", zap.Int("documents", len(docs)), zap.Int("chunks", len(chunks)))
	return idx.builder.Build(ctx, store, chunks)
}

// ExtractFile returns the text of the file at path. If allowedExts is non-empty, the
// file's extension must be in the list (case-insensitive).
func (idx *Indexer) ExtractFile(path string, allowedExts []string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("absolute path: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(absPath))
	if len(allowedExts) > 0 && !extensionAllowed(ext, allowedExts) {
		return "", fmt.Errorf("extension %q not in allowed list", ext)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return "", fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("not a regular file: %s", absPath)
	}
	if idx.extractor == nil {
		content, err := os.ReadFile(absPath)
		if err != nil {
			return "", fmt.Errorf("read file: %w", err)
		}
		return string(content), nil
	}
	text, err := idx.extractor.Extract(absPath)
	if err != nil {
		return "", fmt.Errorf("extract content: %w", err)
	}
	return text, nil
}

// IndexFile extracts the file at path and builds its chunks into store.
func (idx *Indexer) IndexFile(ctx context.Context, store *vector.Store, path string, allowedExts []string) (*vector.BuildReport, error) {
	idx.logger.Debug("indexer indexing file", zap.String("path", path))
	text, err := idx.ExtractFile(path, allowedExts)
	if err != nil {
		return nil, err
	}
	report, err := idx.IndexText(ctx, store, text)
	if err != nil {
		return report, err
	}
	idx.logger.Debug("indexer file indexed", zap.String("path", path), zap.Int("chunks", report.Chunks))
	return report, nil
}

// IndexDirectory walks dir recursively, extracts every regular file whose extension is
// in allowedExts (all files when empty) and builds them into store in one pass. Files
// that cannot be extracted are logged and skipped. Returns the number of files read.
func (idx *Indexer) IndexDirectory(ctx context.Context, store *vector.Store, dir string, allowedExts []string) (*vector.BuildReport, int, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, 0, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return nil, 0, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return nil, 0, fmt.Errorf("not a directory: %s", absDir)
	}

	var docs []string
	err = filepath.WalkDir(absDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if len(allowedExts) > 0 && !extensionAllowed(ext, allowedExts) {
			return nil
		}
		// Resolve symlinks so we only read regular files
		finfo, statErr := os.Stat(path)
		if statErr != nil || !finfo.Mode().IsRegular() {
			return nil
		}
		text, extractErr := idx.ExtractFile(path, allowedExts)
		if extractErr != nil {
			idx.logger.Warn("indexer skipping file", zap.String("path", path), zap.Error(extractErr))
			return nil
		}
		docs = append(docs, text)
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	report, err := idx.IndexText(ctx, store, docs...)
	return report, len(docs), err
}

func extensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}
