package search

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/vector"
)

// topicEmbedder places texts on a food axis and a pet axis by counting topic words.
type topicEmbedder struct {
	err error
}

var (
	foodWords = []string{"fruit", "banana", "apple", "smoothie", "mango", "breakfast", "salad"}
	petWords  = []string{"cat", "dog", "hamster", "pet", "puppy", "kitten", "chinchilla"}
)

func (e topicEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	v := []float32{0, 0, 0.1}
	for _, w := range embedding.SplitWords(text) {
		for _, f := range foodWords {
			if strings.HasPrefix(w, f) {
				v[0]++
			}
		}
		for _, p := range petWords {
			if strings.HasPrefix(w, p) {
				v[1]++
			}
		}
	}
	return v, nil
}

func (e topicEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (topicEmbedder) Dimensions() int { return 3 }
func (topicEmbedder) Close() error    { return nil }

func buildStore(t *testing.T, e embedding.Embedder, chunks []string) *vector.Store {
	t.Helper()
	s := vector.NewStore()
	if _, err := vector.NewBuilder(e).Build(context.Background(), s, chunks); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestEngine_SearchFruit(t *testing.T) {
	sentences := []string{
		"My cat sleeps all afternoon.",
		"A banana and mango smoothie makes a good breakfast.",
		"The dog barks at the mail carrier.",
		"Apple slices go well in a fruit salad.",
		"Our hamster runs on its wheel at night.",
	}
	e := topicEmbedder{}
	store := buildStore(t, e, sentences)
	engine := NewEngine(e)

	results, err := engine.SearchByText(context.Background(), store, "fruit", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	food := map[string]bool{sentences[1]: true, sentences[3]: true}
	for _, r := range results {
		if !food[r.Key] {
			t.Errorf("non-food result ranked in top 2: %q", r.Key)
		}
	}

	texts, err := engine.SearchTexts(context.Background(), store, "fruit", 2)
	if err != nil {
		t.Fatal(err)
	}
	if texts[0] != results[0].Key || texts[1] != results[1].Key {
		t.Errorf("SearchTexts = %v, want keys of SearchByText", texts)
	}
}

func TestEngine_QueryEmbeddingError(t *testing.T) {
	store := buildStore(t, topicEmbedder{}, []string{"a banana"})
	cause := errors.New("provider down")
	engine := NewEngine(topicEmbedder{err: cause})

	_, err := engine.SearchByText(context.Background(), store, "fruit", 1)
	if !errors.Is(err, ErrQueryEmbedding) || !errors.Is(err, cause) {
		t.Errorf("err = %v, want ErrQueryEmbedding wrapping cause", err)
	}
}

func TestEngine_NonPositiveK(t *testing.T) {
	store := buildStore(t, topicEmbedder{}, []string{"a banana"})
	engine := NewEngine(topicEmbedder{err: errors.New("not called")})
	got, err := engine.SearchByText(context.Background(), store, "fruit", 0)
	if err != nil || len(got) != 0 {
		t.Errorf("k=0: got %v, %v", got, err)
	}
}

func TestEngine_WithSimilarity(t *testing.T) {
	e := embedding.NewMockEmbedder(64)
	store := buildStore(t, e, []string{"red apple", "blue sky"})
	engine := NewEngine(e, WithSimilarity(vector.InnerProduct))
	results, err := engine.SearchByText(context.Background(), store, "red apple", 1)
	if err != nil {
		t.Fatal(err)
	}
	if results[0].Key != "red apple" {
		t.Errorf("top result = %q", results[0].Key)
	}
}
