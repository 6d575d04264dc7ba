// Package models defines the records and request/response bodies shared by the
// session registry, the HTTP server and the CLI.
package models

import "time"

// Document sources.
const (
	SourceUpload = "upload"
	SourceFile   = "file"
	SourceText   = "text"
)

// Document records one ingested document within a session.
type Document struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Source     string    `json:"source"`
	Chunks     int       `json:"chunks"`
	Inserted   int       `json:"inserted"`
	Skipped    int       `json:"skipped"`
	IngestedAt time.Time `json:"ingested_at"`
}

// SessionInfo is the externally visible state of a session.
type SessionInfo struct {
	ID        string      `json:"id"`
	CreatedAt time.Time   `json:"created_at"`
	LastUsed  time.Time   `json:"last_used"`
	Chunks    int         `json:"chunks"`
	Documents []*Document `json:"documents"`
}
