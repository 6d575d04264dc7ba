// Package extract turns uploaded or on-disk documents into plain text for chunking.
package extract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// ErrUnsupportedFormat is returned for extensions the extractor cannot read.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// SupportedExtensions lists the extensions Extract understands, lowercase with a leading dot.
var SupportedExtensions = []string{".pdf", ".xlsx", ".txt", ".md", ".rst"}

// Extractor extracts plain text from document files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Supports reports whether ext (e.g. ".PDF") can be extracted.
func (e *Extractor) Supports(ext string) bool {
	return slices.Contains(SupportedExtensions, strings.ToLower(ext))
}

// Extract reads the file at path and returns its text content.
func (e *Extractor) Extract(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !e.Supports(ext) {
		return "", fmt.Errorf("%s: %w", filepath.Base(path), ErrUnsupportedFormat)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content, ext)
}

// ExtractBytes extracts text from content based on ext, which includes the leading dot.
// PDF pages are each followed by a newline; spreadsheet cells are tab separated.
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	switch strings.ToLower(ext) {
	case ".pdf":
		return extractPDF(content)
	case ".xlsx":
		return extractExcel(content)
	case ".txt", ".md", ".rst":
		return extractPlain(content), nil
	default:
		return "", fmt.Errorf("%q: %w", ext, ErrUnsupportedFormat)
	}
}
