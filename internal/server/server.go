// Package server provides the HTTP API for kotae.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/chat"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/extract"
	"github.com/hyperjump/kotae/internal/indexer"
	"github.com/hyperjump/kotae/internal/session"
	"github.com/hyperjump/kotae/pkg/utils"
)

// requestTimeout bounds every request, including streamed answers.
const requestTimeout = 5 * time.Minute

// WatchService manages watched directories at runtime.
type WatchService interface {
	Directories() []string
	AddDirectory(path string, syncExisting bool) error
	RemoveDirectory(path string) error
}

// CompleterFactory builds a completer for a caller-supplied API key.
type CompleterFactory func(apiKey string) (chat.Completer, error)

// Server is the HTTP server for the kotae API.
type Server struct {
	sessions     *session.Manager
	indexer      *indexer.Indexer
	extractor    *extract.Extractor
	completer    chat.Completer
	newCompleter CompleterFactory
	cfg          *config.Config
	logger       *zap.Logger
	server       *http.Server

	watch      WatchService
	configPath string
	configMu   sync.Mutex
}

// Option configures a Server.
type Option func(*Server)

// WithWatch exposes watch directory management. When configPath is set, directory
// changes are written back to the config file.
func WithWatch(ws WatchService, configPath string) Option {
	return func(s *Server) {
		s.watch = ws
		s.configPath = configPath
	}
}

// WithCompleterFactory lets chat requests carry their own API key.
func WithCompleterFactory(f CompleterFactory) Option {
	return func(s *Server) { s.newCompleter = f }
}

// NewServer creates a server. uploads indexes uploaded documents; completer may be nil
// when chat is not configured.
func NewServer(
	sessions *session.Manager,
	uploads *indexer.Indexer,
	completer chat.Completer,
	cfg *config.Config,
	logger *zap.Logger,
	opts ...Option,
) *Server {
	s := &Server{
		sessions:  sessions,
		indexer:   uploads,
		extractor: extract.NewExtractor(),
		completer: completer,
		cfg:       cfg,
		logger:    utils.OrNop(logger),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(cors)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Post("/sessions", s.handleCreateSession)
		r.Get("/sessions/{id}", s.handleGetSession)
		r.Delete("/sessions/{id}", s.handleDeleteSession)
		r.Post("/sessions/{id}/search", s.handleSearch)

		r.Post("/upload-pdf", s.handleUploadPDF)
		r.Post("/upload-text", s.handleUploadText)

		r.Post("/chat", s.handleChat)
		r.Post("/chat-messages", s.handleChatMessages)
		r.Post("/chat-pdf", s.handleChatPDF)

		r.Get("/watch/directories", s.handleWatchDirectoriesList)
		r.Post("/watch/directories", s.handleWatchDirectoriesAdd)
		r.Delete("/watch/directories", s.handleWatchDirectoriesRemove)
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// cors allows any origin, method and header.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "*")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
