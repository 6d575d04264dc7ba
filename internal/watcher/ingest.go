package watcher

import (
	"context"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/indexer"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/session"
	"github.com/hyperjump/kotae/pkg/utils"
)

// SessionIngester is a Handler that ingests changed files into a session.
type SessionIngester struct {
	session    *session.Session
	indexer    *indexer.Indexer
	extensions []string
	logger     *zap.Logger
}

// NewSessionIngester returns a handler feeding sess through ix.
func NewSessionIngester(sess *session.Session, ix *indexer.Indexer, extensions []string, logger *zap.Logger) *SessionIngester {
	return &SessionIngester{session: sess, indexer: ix, extensions: extensions, logger: utils.OrNop(logger)}
}

// FileChanged extracts path and ingests it. Unchanged content is not embedded again.
func (s *SessionIngester) FileChanged(ctx context.Context, path string) {
	text, err := s.indexer.ExtractFile(path, s.extensions)
	if err != nil {
		s.logger.Warn("watch: cannot read file", zap.String("path", path), zap.Error(err))
		return
	}
	doc, duplicate, err := s.session.IngestText(ctx, s.indexer, filepath.Base(path), models.SourceFile, text)
	if err != nil {
		s.logger.Warn("watch: ingest failed", zap.String("path", path), zap.Error(err))
		return
	}
	if duplicate {
		s.logger.Debug("watch: content already ingested", zap.String("path", path))
		return
	}
	s.logger.Info("Ingested file",
		zap.String("path", path),
		zap.String("session_id", s.session.ID()),
		zap.Int("chunks", doc.Chunks),
		zap.Int("skipped", doc.Skipped),
	)
}

// FileRemoved only logs: stores are insert-only, so chunks of a removed file remain
// searchable until the session is discarded.
func (s *SessionIngester) FileRemoved(_ context.Context, path string) {
	s.logger.Info("Watched file removed; its chunks remain in the session", zap.String("path", path))
}
