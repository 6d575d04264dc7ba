package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

type embeddingsRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

// fakeEmbeddingsServer answers /embeddings with a 3-dimension vector per input whose
// first component is the input length. Items are returned in reverse order to check
// that the client reorders by index.
func fakeEmbeddingsServer(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Method != http.MethodPost || r.URL.Path != "/embeddings" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var req embeddingsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		for _, in := range req.Input {
			if in == "poison" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":{"message":"bad input","type":"invalid_request_error"}}`))
				return
			}
		}
		data := make([]map[string]any, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, map[string]any{
				"object":    "embedding",
				"index":     i,
				"embedding": []float64{float64(len(req.Input[i])), 1, 0},
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  req.Model,
			"data":   data,
			"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
}

func newTestOpenAIEmbedder(t *testing.T, url string) *OpenAIEmbedder {
	t.Helper()
	e, err := NewOpenAIEmbedder(OpenAIConfig{APIKey: "sk-test", BaseURL: url, Model: "test-model"})
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestOpenAIEmbedder_EmbedBatch(t *testing.T) {
	var calls atomic.Int32
	srv := fakeEmbeddingsServer(t, &calls)
	defer srv.Close()
	e := newTestOpenAIEmbedder(t, srv.URL)

	out, err := e.EmbedBatch(context.Background(), []string{"a", "bbb", "cc"})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 3 {
		t.Fatalf("got %d vectors, want 3", len(out))
	}
	for i, want := range []float32{1, 3, 2} {
		if out[i][0] != want {
			t.Errorf("vector %d first component = %v, want %v", i, out[i][0], want)
		}
	}
	if e.Dimensions() != 3 {
		t.Errorf("Dimensions() = %d, want 3", e.Dimensions())
	}
	if calls.Load() != 1 {
		t.Errorf("server calls = %d, want 1", calls.Load())
	}
}

func TestOpenAIEmbedder_Embed(t *testing.T) {
	var calls atomic.Int32
	srv := fakeEmbeddingsServer(t, &calls)
	defer srv.Close()
	e := newTestOpenAIEmbedder(t, srv.URL+"/")

	v, err := e.Embed(context.Background(), "four")
	if err != nil {
		t.Fatal(err)
	}
	if len(v) != 3 || v[0] != 4 {
		t.Errorf("Embed() = %v", v)
	}
}

func TestOpenAIEmbedder_ProviderError(t *testing.T) {
	var calls atomic.Int32
	srv := fakeEmbeddingsServer(t, &calls)
	defer srv.Close()
	e := newTestOpenAIEmbedder(t, srv.URL)

	if _, err := e.EmbedBatch(context.Background(), []string{"ok", "poison"}); err == nil {
		t.Fatal("expected error for rejected batch")
	}
	if calls.Load() != 1 {
		t.Errorf("4xx should not be retried: calls = %d", calls.Load())
	}
}

func TestOpenAIEmbedder_EmptyBatch(t *testing.T) {
	e, err := NewOpenAIEmbedder(OpenAIConfig{APIKey: "sk-test", BaseURL: "http://127.0.0.1:1"})
	if err != nil {
		t.Fatal(err)
	}
	out, err := e.EmbedBatch(context.Background(), nil)
	if err != nil || len(out) != 0 {
		t.Errorf("empty batch: got %v, %v", out, err)
	}
}

func TestNewOpenAIEmbedder_RequiresKey(t *testing.T) {
	if _, err := NewOpenAIEmbedder(OpenAIConfig{}); err == nil {
		t.Error("expected error without API key")
	}
}
