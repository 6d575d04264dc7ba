package indexer

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidChunkConfig is returned when splitter parameters cannot produce chunks.
var ErrInvalidChunkConfig = errors.New("invalid chunk configuration")

// Splitter splits a document into an ordered sequence of chunks.
type Splitter interface {
	Split(text string) []string
}

// CharacterSplitter splits text into fixed-size character windows that overlap.
type CharacterSplitter struct {
	chunkSize    int
	chunkOverlap int
}

// NewCharacterSplitter creates a splitter with the given size and overlap (in characters).
// Both must be positive and chunkSize must be greater than chunkOverlap.
func NewCharacterSplitter(chunkSize, chunkOverlap int) (*CharacterSplitter, error) {
	if chunkSize <= 0 || chunkOverlap < 0 {
		return nil, fmt.Errorf("%w: chunk size %d must be positive and overlap %d non-negative", ErrInvalidChunkConfig, chunkSize, chunkOverlap)
	}
	if chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("%w: chunk size %d must be greater than overlap %d", ErrInvalidChunkConfig, chunkSize, chunkOverlap)
	}
	return &CharacterSplitter{chunkSize: chunkSize, chunkOverlap: chunkOverlap}, nil
}

// Split returns windows of chunkSize characters whose starts advance by
// chunkSize-chunkOverlap. The last window may be shorter; no window is emitted
// once the previous one reached the end of the text.
func (c *CharacterSplitter) Split(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	step := c.chunkSize - c.chunkOverlap
	chunks := make([]string, 0, len(runes)/step+1)
	for i := 0; i < len(runes); i += step {
		end := i + c.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
		if end >= len(runes) {
			break
		}
	}
	return chunks
}

// ParagraphSplitter groups whole newline-delimited paragraphs into chunks bounded by
// a character budget.
type ParagraphSplitter struct {
	maxChars int
}

// NewParagraphSplitter creates a paragraph splitter with the given per-chunk budget.
func NewParagraphSplitter(maxChars int) (*ParagraphSplitter, error) {
	if maxChars <= 0 {
		return nil, fmt.Errorf("%w: paragraph budget %d must be positive", ErrInvalidChunkConfig, maxChars)
	}
	return &ParagraphSplitter{maxChars: maxChars}, nil
}

// Split trims each line, drops blank ones, and packs the rest into chunks joined by
// newlines. A paragraph is never split; one that alone exceeds the budget becomes
// its own chunk.
func (p *ParagraphSplitter) Split(text string) []string {
	var (
		chunks  []string
		current strings.Builder
		curLen  int
	)
	for _, line := range strings.Split(text, "\n") {
		para := strings.TrimSpace(line)
		if para == "" {
			continue
		}
		paraLen := len([]rune(para))
		// +2 reserves room for the separator, matching the budget rule of the
		// splitter this replaces.
		if curLen > 0 && curLen+paraLen+2 > p.maxChars {
			chunks = append(chunks, current.String())
			current.Reset()
			curLen = 0
		}
		if curLen > 0 {
			current.WriteByte('\n')
			curLen++
		}
		current.WriteString(para)
		curLen += paraLen
	}
	if curLen > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

// SplitTexts splits each document independently and concatenates the chunks in
// document order.
func SplitTexts(s Splitter, texts []string) []string {
	var chunks []string
	for _, text := range texts {
		chunks = append(chunks, s.Split(text)...)
	}
	return chunks
}
