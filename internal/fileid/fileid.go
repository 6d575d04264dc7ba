// Package fileid derives deterministic document IDs for ingested sources.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

const (
	pathPrefix    = "file:"
	contentPrefix = "sha256:"
)

// FromPath returns a stable ID for the given absolute path.
// Same path always yields the same ID regardless of trailing slashes or "." elements.
func FromPath(absolutePath string) string {
	normalized := filepath.Clean(absolutePath)
	hash := sha256.Sum256([]byte(normalized))
	return pathPrefix + hex.EncodeToString(hash[:])
}

// FromContent returns an ID derived from the extracted text of a document, so that
// identical uploads map to the same ID whatever their file name.
func FromContent(text string) string {
	hash := sha256.Sum256([]byte(text))
	return contentPrefix + hex.EncodeToString(hash[:16])
}
