// Package vector provides an in-memory key/vector store with brute-force similarity
// search, and a batched builder that fills it from text chunks.
package vector

import (
	"math"
	"sort"
	"sync"
)

// ScoredResult is a single search hit. Key is the chunk text the vector was stored under.
type ScoredResult struct {
	Key   string
	Score float64
}

type entry struct {
	key    string
	vector []float32
}

// Store maps text keys to vectors. Insert order is remembered so that equal scores
// rank in the order keys were first inserted.
type Store struct {
	mu      sync.RWMutex
	index   map[string]int
	entries []entry
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{index: make(map[string]int)}
}

// Insert stores a copy of vector under key, replacing any previous vector for that key.
// A replaced key keeps its original insertion position.
func (s *Store) Insert(key string, vector []float32) {
	vec := make([]float32, len(vector))
	copy(vec, vector)
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.index[key]; ok {
		s.entries[i].vector = vec
		return
	}
	s.index[key] = len(s.entries)
	s.entries = append(s.entries, entry{key: key, vector: vec})
}

// Retrieve returns the vector stored under key.
func (s *Store) Retrieve(key string) ([]float32, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[key]
	if !ok {
		return nil, false
	}
	return s.entries[i].vector, true
}

// Search returns up to k entries ranked by fn(query, vector), best first. A nil fn
// means CosineSimilarity.
func (s *Store) Search(query []float32, k int, fn SimilarityFunc) []ScoredResult {
	if k <= 0 {
		return []ScoredResult{}
	}
	if fn == nil {
		fn = CosineSimilarity
	}
	s.mu.RLock()
	scores := make([]ScoredResult, len(s.entries))
	for i, e := range s.entries {
		score := fn(query, e.vector)
		if math.IsNaN(score) || math.IsInf(score, 0) {
			score = 0
		}
		scores[i] = ScoredResult{Key: e.key, Score: score}
	}
	s.mu.RUnlock()

	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Score > scores[j].Score })
	if k > len(scores) {
		k = len(scores)
	}
	return scores[:k]
}

// Len returns the number of stored keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Keys returns all keys in insertion order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, len(s.entries))
	for i, e := range s.entries {
		keys[i] = e.key
	}
	return keys
}
