package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/chat"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/extract"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/search"
	"github.com/hyperjump/kotae/internal/session"
)

const msgNoIndex = "No PDF has been uploaded and indexed yet."

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Create()
	s.respondJSON(w, http.StatusCreated, sess.Info())
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessions.Get(chi.URLParam(r, "id"))
	if !ok {
		s.respondError(w, http.StatusNotFound, "session not found")
		return
	}
	s.respondJSON(w, http.StatusOK, sess.Info())
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.sessions.Delete(id) {
		s.respondError(w, http.StatusNotFound, "session not found")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessions.Get(chi.URLParam(r, "id"))
	if !ok {
		s.respondError(w, http.StatusNotFound, "session not found")
		return
	}
	var req models.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("search request", zap.String("session_id", sess.ID()), zap.String("query", req.Query), zap.Int("k", req.K))

	resp := models.SearchResponse{Query: req.Query}
	if req.ReturnAsText {
		texts, err := sess.SearchTexts(r.Context(), req.Query, req.K)
		if err != nil {
			s.respondSearchError(w, err)
			return
		}
		resp.Texts = texts
	} else {
		results, err := sess.SearchByText(r.Context(), req.Query, req.K)
		if err != nil {
			s.respondSearchError(w, err)
			return
		}
		resp.Results = make([]models.SearchHit, len(results))
		for i, res := range results {
			resp.Results[i] = models.SearchHit{Text: res.Key, Score: res.Score}
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) respondSearchError(w http.ResponseWriter, err error) {
	s.logger.Error("search failed", zap.Error(err))
	if errors.Is(err, search.ErrQueryEmbedding) {
		s.respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.respondError(w, http.StatusInternalServerError, err.Error())
}

func (s *Server) handleUploadPDF(w http.ResponseWriter, r *http.Request) {
	s.handleUpload(w, r, func(contentType, filename string) (string, bool) {
		return ".pdf", contentType == "application/pdf"
	}, "Only PDF files are supported.")
}

func (s *Server) handleUploadText(w http.ResponseWriter, r *http.Request) {
	s.handleUpload(w, r, func(contentType, filename string) (string, bool) {
		ext := strings.ToLower(filepath.Ext(filename))
		switch ext {
		case ".txt", ".md", ".rst":
			return ext, true
		}
		if strings.HasPrefix(contentType, "text/plain") {
			return ".txt", true
		}
		return "", false
	}, "Only plain text files are supported.")
}

// handleUpload reads the multipart "file" field, extracts it as the extension chosen by
// accept, and ingests it into the session named by the "session_id" form field, or a
// new session when none is given.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request, accept func(contentType, filename string) (string, bool), rejectMsg string) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		s.respondError(w, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	ext, ok := accept(header.Header.Get("Content-Type"), header.Filename)
	if !ok {
		s.respondError(w, http.StatusBadRequest, rejectMsg)
		return
	}

	var sess *session.Session
	if id := r.FormValue("session_id"); id != "" {
		if sess, ok = s.sessions.Get(id); !ok {
			s.respondError(w, http.StatusNotFound, "session not found")
			return
		}
	}

	content, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "failed to read upload")
		return
	}
	text, err := s.extractor.ExtractBytes(content, ext)
	if errors.Is(err, extract.ErrUnsupportedFormat) {
		s.respondError(w, http.StatusBadRequest, rejectMsg)
		return
	}
	if err != nil {
		s.logger.Error("upload extraction failed", zap.String("file", header.Filename), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "Failed to process document: "+err.Error())
		return
	}

	if sess == nil {
		sess = s.sessions.Create()
	}
	doc, duplicate, err := sess.IngestText(r.Context(), s.indexer, header.Filename, models.SourceUpload, text)
	if err != nil {
		s.logger.Error("upload ingest failed", zap.String("file", header.Filename), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "Failed to process document: "+err.Error())
		return
	}
	s.logger.Info("Document uploaded",
		zap.String("session_id", sess.ID()),
		zap.String("file", header.Filename),
		zap.Int("chunks", doc.Chunks),
		zap.Int("skipped", doc.Skipped),
		zap.Bool("duplicate", duplicate),
	)
	s.respondJSON(w, http.StatusOK, models.UploadResponse{
		Status:        "success",
		SessionID:     sess.ID(),
		DocumentID:    doc.ID,
		ChunksIndexed: doc.Chunks,
		Skipped:       doc.Skipped,
		Duplicate:     duplicate,
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	messages := []chat.Message{
		{Role: chat.RoleDeveloper, Content: req.DeveloperMessage},
		{Role: chat.RoleUser, Content: req.UserMessage},
	}
	s.streamCompletion(w, r, req.APIKey, messages, req.Model)
}

func (s *Server) handleChatMessages(w http.ResponseWriter, r *http.Request) {
	var req models.ChatMessagesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	messages := make([]chat.Message, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = chat.Message{Role: m.Role, Content: m.Content}
	}
	s.streamCompletion(w, r, req.APIKey, chat.WithSystemPrompt(messages), req.Model)
}

func (s *Server) handleChatPDF(w http.ResponseWriter, r *http.Request) {
	req := models.ChatPDFRequest{TopK: s.cfg.Chat.TopK}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	sess, ok := s.sessions.Get(req.SessionID)
	if !ok || !sess.HasIndex() {
		s.respondError(w, http.StatusBadRequest, msgNoIndex)
		return
	}
	contexts, err := sess.SearchTexts(r.Context(), req.Query, req.TopK)
	if err != nil {
		s.respondSearchError(w, err)
		return
	}
	messages := []chat.Message{{Role: chat.RoleSystem, Content: chat.GroundedPrompt(contexts, req.Query)}}
	s.streamCompletion(w, r, req.APIKey, messages, req.Model)
}

// streamCompletion writes completion deltas as text/plain, flushing after each one.
// Errors before the first delta become JSON error responses; later errors can only
// end the stream.
func (s *Server) streamCompletion(w http.ResponseWriter, r *http.Request, apiKey string, messages []chat.Message, model string) {
	completer, err := s.completerFor(apiKey)
	if err != nil {
		s.respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if model == "" {
		model = s.cfg.Chat.Model
	}

	flusher, _ := w.(http.Flusher)
	started := false
	err = completer.Stream(r.Context(), messages, model, func(delta string) error {
		if !started {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusOK)
			started = true
		}
		if _, err := io.WriteString(w, delta); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	})
	switch {
	case err != nil && !started:
		s.logger.Error("completion failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
	case err != nil:
		s.logger.Warn("completion stream interrupted", zap.Error(err))
	case !started:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
	}
}

func (s *Server) completerFor(apiKey string) (chat.Completer, error) {
	if apiKey != "" && s.newCompleter != nil {
		return s.newCompleter(apiKey)
	}
	if s.completer == nil {
		return nil, errors.New("chat is not configured: set an API key")
	}
	return s.completer, nil
}

func (s *Server) handleWatchDirectoriesList(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"directories": s.watch.Directories()})
}

type watchAddRequest struct {
	Path string `json:"path"`
	Sync *bool  `json:"sync,omitempty"`
}

func (s *Server) handleWatchDirectoriesAdd(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	var req watchAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	abs, err := filepath.Abs(req.Path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			s.respondError(w, http.StatusNotFound, "directory not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !info.IsDir() {
		s.respondError(w, http.StatusBadRequest, "path is not a directory")
		return
	}
	syncExisting := req.Sync == nil || *req.Sync
	if err := s.watch.AddDirectory(abs, syncExisting); err != nil {
		s.logger.Error("watch add directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusCreated, map[string]string{"path": abs, "status": "added"})
}

func (s *Server) handleWatchDirectoriesRemove(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		s.respondError(w, http.StatusBadRequest, "path query parameter is required")
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	if err := s.watch.RemoveDirectory(abs); err != nil {
		s.logger.Error("watch remove directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusOK, map[string]string{"path": abs, "status": "removed"})
}

func (s *Server) persistWatchDirectories() {
	if s.configPath == "" {
		return
	}
	s.configMu.Lock()
	defer s.configMu.Unlock()
	s.cfg.Watch.Directories = s.watch.Directories()
	if err := config.Save(s.configPath, s.cfg); err != nil {
		s.logger.Warn("failed to persist watch config", zap.Error(err))
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
