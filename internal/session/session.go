package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hyperjump/kotae/internal/fileid"
	"github.com/hyperjump/kotae/internal/indexer"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/search"
	"github.com/hyperjump/kotae/internal/vector"
)

// Session owns one vector store and the documents ingested into it. All store access
// goes through the session mutex, so an ingest and a search never interleave.
type Session struct {
	id        string
	createdAt time.Time
	pinned    bool
	engine    *search.Engine
	now       func() time.Time

	mu         sync.Mutex
	store      *vector.Store
	documents  []*models.Document
	byID       map[string]*models.Document
	lastReport *vector.BuildReport

	lastUsed atomic.Int64 // unix nanoseconds
}

func newSession(id string, engine *search.Engine, now func() time.Time, pinned bool) *Session {
	s := &Session{
		id:        id,
		createdAt: now(),
		pinned:    pinned,
		engine:    engine,
		now:       now,
		store:     vector.NewStore(),
		byID:      make(map[string]*models.Document),
	}
	s.lastUsed.Store(s.createdAt.UnixNano())
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// IngestText chunks and embeds text into the session's store using ix. Text already
// ingested into this session is not embedded again; the earlier record is returned
// with duplicate set.
func (s *Session) IngestText(ctx context.Context, ix *indexer.Indexer, name, source, text string) (doc *models.Document, duplicate bool, err error) {
	id := fileid.FromContent(text)

	s.touch()
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.byID[id]; ok {
		return existing, true, nil
	}

	report, err := ix.IndexText(ctx, s.store, text)
	if err != nil {
		return nil, false, err
	}
	doc = &models.Document{
		ID:         id,
		Name:       name,
		Source:     source,
		Chunks:     report.Chunks,
		Inserted:   report.Inserted,
		Skipped:    len(report.Skipped),
		IngestedAt: s.now(),
	}
	s.documents = append(s.documents, doc)
	s.byID[id] = doc
	s.lastReport = report
	return doc, false, nil
}

// SearchByText ranks the session's chunks against query.
func (s *Session) SearchByText(ctx context.Context, query string, k int) ([]vector.ScoredResult, error) {
	s.touch()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.SearchByText(ctx, s.store, query, k)
}

// SearchTexts is SearchByText returning only the chunk texts.
func (s *Session) SearchTexts(ctx context.Context, query string, k int) ([]string, error) {
	s.touch()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.SearchTexts(ctx, s.store, query, k)
}

// HasIndex reports whether anything has been indexed into the session.
func (s *Session) HasIndex() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Len() > 0
}

// LastReport returns the build report of the most recent ingest, or nil.
func (s *Session) LastReport() *vector.BuildReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastReport
}

// Info returns a snapshot of the session's state.
func (s *Session) Info() models.SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	docs := make([]*models.Document, len(s.documents))
	for i, d := range s.documents {
		cp := *d
		docs[i] = &cp
	}
	return models.SessionInfo{
		ID:        s.id,
		CreatedAt: s.createdAt,
		LastUsed:  time.Unix(0, s.lastUsed.Load()),
		Chunks:    s.store.Len(),
		Documents: docs,
	}
}

func (s *Session) touch() {
	s.lastUsed.Store(s.now().UnixNano())
}

func (s *Session) idle(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, s.lastUsed.Load()))
}
