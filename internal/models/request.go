package models

import (
	"errors"
	"fmt"
)

const (
	// DefaultTopK is the number of chunks retrieved for a grounded answer.
	DefaultTopK = 3
	// DefaultSearchK is the number of results for a search request without k.
	DefaultSearchK = 4
	// MaxK caps k and top_k.
	MaxK = 100
)

// ErrEmptyQuery is returned when a request carries no query text.
var ErrEmptyQuery = errors.New("query cannot be empty")

// SearchRequest is the body of a session search.
type SearchRequest struct {
	Query        string `json:"query"`
	K            int    `json:"k,omitempty"`
	ReturnAsText bool   `json:"return_as_text,omitempty"`
}

// Validate checks the query and normalizes K into [1, MaxK].
func (r *SearchRequest) Validate() error {
	if r.Query == "" {
		return ErrEmptyQuery
	}
	r.K = clampK(r.K, DefaultSearchK)
	return nil
}

// SearchHit is one ranked chunk.
type SearchHit struct {
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// SearchResponse answers a search request. Exactly one of Results or Texts is set,
// depending on return_as_text.
type SearchResponse struct {
	Query   string      `json:"query"`
	Results []SearchHit `json:"results,omitempty"`
	Texts   []string    `json:"texts,omitempty"`
}

// ChatRequest sends one developer and one user message.
type ChatRequest struct {
	DeveloperMessage string `json:"developer_message"`
	UserMessage      string `json:"user_message"`
	Model            string `json:"model,omitempty"`
	APIKey           string `json:"api_key,omitempty"`
}

// Validate requires a user message.
func (r *ChatRequest) Validate() error {
	if r.UserMessage == "" {
		return errors.New("user_message cannot be empty")
	}
	return nil
}

// ChatMessage is a role/content pair as sent by chat clients.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatMessagesRequest continues a conversation.
type ChatMessagesRequest struct {
	Messages []ChatMessage `json:"messages"`
	Model    string        `json:"model,omitempty"`
	APIKey   string        `json:"api_key,omitempty"`
}

// Validate requires at least one message and known roles.
func (r *ChatMessagesRequest) Validate() error {
	if len(r.Messages) == 0 {
		return errors.New("messages cannot be empty")
	}
	for i, m := range r.Messages {
		switch m.Role {
		case "system", "developer", "user", "assistant":
		default:
			return fmt.Errorf("messages[%d]: unknown role %q", i, m.Role)
		}
	}
	return nil
}

// ChatPDFRequest asks a question grounded in a session's documents.
type ChatPDFRequest struct {
	SessionID string `json:"session_id"`
	Query     string `json:"query"`
	Model     string `json:"model,omitempty"`
	TopK      int    `json:"top_k,omitempty"`
	APIKey    string `json:"api_key,omitempty"`
}

// Validate checks the query and normalizes TopK (default DefaultTopK).
func (r *ChatPDFRequest) Validate() error {
	if r.Query == "" {
		return ErrEmptyQuery
	}
	if r.SessionID == "" {
		return errors.New("session_id cannot be empty")
	}
	r.TopK = clampK(r.TopK, DefaultTopK)
	return nil
}

// UploadResponse reports the outcome of a document upload.
type UploadResponse struct {
	Status        string `json:"status"`
	SessionID     string `json:"session_id"`
	DocumentID    string `json:"document_id"`
	ChunksIndexed int    `json:"chunks_indexed"`
	Skipped       int    `json:"skipped"`
	Duplicate     bool   `json:"duplicate,omitempty"`
}

func clampK(k, def int) int {
	if k <= 0 {
		return def
	}
	if k > MaxK {
		return MaxK
	}
	return k
}
