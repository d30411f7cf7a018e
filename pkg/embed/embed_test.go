package embed_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/haivivi/quotevoice/pkg/embed"
)

// fakeEmbeddingResponse builds a minimal OpenAI-compatible embedding
// response. When drop >= 0 that index is omitted.
func fakeEmbeddingResponse(dim int, texts []string, drop int) []byte {
	type embItem struct {
		Object    string    `json:"object"`
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	}
	type resp struct {
		Object string    `json:"object"`
		Model  string    `json:"model"`
		Data   []embItem `json:"data"`
		Usage  struct {
			PromptTokens int `json:"prompt_tokens"`
			TotalTokens  int `json:"total_tokens"`
		} `json:"usage"`
	}

	r := resp{Object: "list", Model: "test-model"}
	for i := range texts {
		if i == drop {
			continue
		}
		vec := make([]float64, dim)
		for j := range vec {
			vec[j] = float64(i+1) * 0.01 * float64(j+1)
		}
		r.Data = append(r.Data, embItem{Object: "embedding", Index: i, Embedding: vec})
	}
	b, _ := json.Marshal(r)
	return b
}

func decodeInputs(r *http.Request) ([]string, error) {
	var req struct {
		Input any `json:"input"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, err
	}
	switch v := req.Input.(type) {
	case string:
		return []string{v}, nil
	case []any:
		texts := make([]string, len(v))
		for i, item := range v {
			texts[i] = fmt.Sprint(item)
		}
		return texts, nil
	}
	return nil, fmt.Errorf("unexpected input %T", req.Input)
}

func newFakeOpenAI(t *testing.T, dim, drop int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		texts, err := decodeInputs(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(fakeEmbeddingResponse(dim, texts, drop))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAI_Embed(t *testing.T) {
	const dim = 8
	srv := newFakeOpenAI(t, dim, -1)
	e := embed.NewOpenAI("test-key", embed.WithBaseURL(srv.URL), embed.WithDimension(dim))

	if e.Dimension() != dim {
		t.Fatalf("Dimension() = %d, want %d", e.Dimension(), dim)
	}
	vec, err := e.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != dim {
		t.Fatalf("len(vec) = %d, want %d", len(vec), dim)
	}
}

func TestOpenAI_EmbedBatch(t *testing.T) {
	const dim = 4
	srv := newFakeOpenAI(t, dim, -1)
	e := embed.NewOpenAI("test-key", embed.WithBaseURL(srv.URL), embed.WithDimension(dim))

	texts := []string{"a", "b", "c", "d"}
	vecs, err := e.EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(vecs) != len(texts) {
		t.Fatalf("len(vecs) = %d, want %d", len(vecs), len(texts))
	}
	// Vectors come back in request order.
	if vecs[1][0] <= vecs[0][0] {
		t.Fatalf("order not preserved: %v", vecs)
	}
}

func TestOpenAI_MissingVector(t *testing.T) {
	srv := newFakeOpenAI(t, 4, 1)
	e := embed.NewOpenAI("test-key", embed.WithBaseURL(srv.URL), embed.WithDimension(4))

	_, err := e.EmbedBatch(context.Background(), []string{"a", "b"})
	if !errors.Is(err, embed.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestOpenAI_WrongDimension(t *testing.T) {
	srv := newFakeOpenAI(t, 3, -1)
	e := embed.NewOpenAI("test-key", embed.WithBaseURL(srv.URL), embed.WithDimension(4))

	_, err := e.Embed(context.Background(), "a")
	if !errors.Is(err, embed.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestOpenAI_ServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	e := embed.NewOpenAI("test-key", embed.WithBaseURL(srv.URL))

	_, err := e.Embed(context.Background(), "a")
	if !errors.Is(err, embed.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("server called %d times, want 1 (no retries)", n)
	}
}

func TestOpenAI_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	e := embed.NewOpenAI("test-key", embed.WithBaseURL(url))
	_, err := e.Embed(context.Background(), "a")
	if !errors.Is(err, embed.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestEmptyInput(t *testing.T) {
	srv := newFakeOpenAI(t, 4, -1)
	ollama, err := embed.NewOllama(embed.WithBaseURL(srv.URL))
	if err != nil {
		t.Fatal(err)
	}
	embedders := map[string]embed.Embedder{
		"openai": embed.NewOpenAI("k", embed.WithBaseURL(srv.URL)),
		"ollama": ollama,
		"cached": embed.NewCached(ollama, 4),
	}
	for name, e := range embedders {
		t.Run(name, func(t *testing.T) {
			if _, err := e.Embed(context.Background(), ""); !errors.Is(err, embed.ErrEmptyInput) {
				t.Fatalf("Embed empty: got %v", err)
			}
			if _, err := e.EmbedBatch(context.Background(), nil); !errors.Is(err, embed.ErrEmptyInput) {
				t.Fatalf("EmbedBatch nil: got %v", err)
			}
		})
	}
}
