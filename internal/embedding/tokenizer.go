package embedding

import (
	"math"
	"strings"
	"unicode/utf8"
)

// CharsPerToken is the characters-per-token ratio used by the default estimator.
const CharsPerToken = 4

// TokenEstimator estimates how many provider tokens a text will cost.
type TokenEstimator interface {
	EstimateTokens(text string) int
}

// CharRatioEstimator estimates tokens as character count divided by a fixed ratio.
// It is coarse but needs no model vocabulary.
type CharRatioEstimator struct {
	CharsPerToken int
}

// EstimateTokens returns floor(chars / CharsPerToken).
func (e CharRatioEstimator) EstimateTokens(text string) int {
	cpt := e.CharsPerToken
	if cpt <= 0 {
		cpt = CharsPerToken
	}
	return utf8.RuneCountInString(text) / cpt
}

// EstimateTokens estimates tokens with the default 4-characters-per-token ratio.
func EstimateTokens(text string) int {
	return CharRatioEstimator{CharsPerToken: CharsPerToken}.EstimateTokens(text)
}

// SplitWords splits text on whitespace and returns non-empty lowercase words with
// surrounding punctuation removed.
func SplitWords(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	words := fields[:0]
	for _, f := range fields {
		w := strings.TrimFunc(f, func(r rune) bool {
			return strings.ContainsRune(`.,;:!?"'()[]{}`, r)
		})
		if w != "" {
			words = append(words, w)
		}
	}
	return words
}

// HashString returns a deterministic non-negative hash of s.
func HashString(s string) int {
	var h uint64
	for _, c := range s {
		h = 31*h + uint64(c)
	}
	return int(h & math.MaxInt64)
}
