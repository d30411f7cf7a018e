package rag

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/haivivi/quotevoice/pkg/embed"
	"github.com/haivivi/quotevoice/pkg/llm"
	"github.com/haivivi/quotevoice/pkg/quote"
)

// vecEmbedder maps known texts to fixed vectors.
type vecEmbedder struct {
	vecs map[string][]float32
	err  error
}

func (e *vecEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	if v, ok := e.vecs[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 0, 1}, nil
}

type fakeGenerator struct {
	calls  int
	prompt string
	params llm.Params
	reply  string
	err    error
}

func (g *fakeGenerator) Generate(_ context.Context, prompt string, p llm.Params) (string, error) {
	g.calls++
	g.prompt = prompt
	g.params = p
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}

func loveStore() *quote.Memory {
	return quote.NewMemory(
		quote.Quote{ID: "fear", ShortText: "The only thing we have to fear is fear itself.", Authors: []string{"FDR"}, Embedding: []float32{0, 1, 0, 0}},
		quote.Quote{ID: "time", ShortText: "Lost time is never found again.", Authors: []string{"Franklin"}, Embedding: []float32{0, 0, 1, 0}},
		quote.Quote{ID: "love", ShortText: "Love all, trust a few, do wrong to none.", Authors: []string{"Shakespeare"}, Work: "All's Well That Ends Well", Embedding: []float32{0.95, 0.1, 0.05, 0}},
		quote.Quote{ID: "war", ShortText: "War is peace.", Authors: []string{"Orwell"}, Work: "1984", Embedding: []float32{-0.2, 0, 0, 0.9}},
		quote.Quote{ID: "bread", ShortText: "Let them eat cake.", Embedding: []float32{0, 0, -1, 0}},
	)
}

func newEngine(store CandidateSource, gen llm.Generator) (*Engine, *vecEmbedder) {
	emb := &vecEmbedder{vecs: map[string][]float32{"tell me about love": {1, 0, 0, 0}}}
	return &Engine{
		Retriever: &Retriever{Embedder: emb, Source: store},
		Composer:  NewComposer(gen, WithRand(rand.New(rand.NewPCG(1, 2)))),
	}, emb
}

func TestAskLoveQuery(t *testing.T) {
	gen := &fakeGenerator{reply: " Love all, Alice, as Shakespeare said. "}
	e, _ := newEngine(loveStore(), gen)

	resp, err := e.Ask(context.Background(), Request{Query: "tell me about love", Username: "Alice", Style: "uk"})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if resp.Method != MethodRAG {
		t.Fatalf("method = %q", resp.Method)
	}
	if len(resp.Quotes) != DefaultTopK || resp.Quotes[0].ID != "love" {
		t.Fatalf("quotes = %+v", resp.Quotes)
	}
	if resp.Response != "Love all, Alice, as Shakespeare said." {
		t.Fatalf("response = %q", resp.Response)
	}
	if gen.calls != 1 || gen.params.MaxTokens != 150 || gen.params.Temperature != 0.7 {
		t.Fatalf("calls = %d, params = %+v", gen.calls, gen.params)
	}
	for _, want := range []string{
		`User: "tell me about love"`,
		`1. "Love all, trust a few, do wrong to none." - Shakespeare (All's Well That Ends Well)`,
		"Address the user as Alice",
		"polite and formal",
	} {
		if !strings.Contains(gen.prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, gen.prompt)
		}
	}
}

func TestAskEmptyPoolFallsBackWithoutModel(t *testing.T) {
	gen := &fakeGenerator{reply: "unused"}
	e, _ := newEngine(quote.NewMemory(), gen)

	resp, err := e.Ask(context.Background(), Request{Query: "tell me about love"})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if resp.Method != MethodFallback || resp.Response != NoStyleFallback {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.Quotes == nil || len(resp.Quotes) != 0 {
		t.Fatalf("quotes = %#v", resp.Quotes)
	}
	if gen.calls != 0 {
		t.Fatalf("generator called %d times", gen.calls)
	}
}

func TestAskBelowFloorFallsBack(t *testing.T) {
	gen := &fakeGenerator{reply: "unused"}
	e, _ := newEngine(loveStore(), gen)

	e.Retriever.Embedder = &vecEmbedder{vecs: map[string][]float32{"q": {0.1, -1, -0.1, -0.1}}}
	resp, err := e.Ask(context.Background(), Request{Query: "q", Username: "Bob", Style: "german"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Method != MethodFallback || gen.calls != 0 {
		t.Fatalf("resp = %+v, calls = %d", resp, gen.calls)
	}
	if !strings.Contains(resp.Response, ", Bob") {
		t.Fatalf("fallback not personalized: %q", resp.Response)
	}
}

func TestAskGenerationTimeoutIsNotFallback(t *testing.T) {
	gen := &fakeGenerator{err: &llm.Error{Provider: "ollama", Kind: llm.KindTimeout, Err: context.DeadlineExceeded}}
	e, _ := newEngine(loveStore(), gen)

	_, err := e.Ask(context.Background(), Request{Query: "tell me about love"})
	if !errors.Is(err, llm.ErrUnavailable) {
		t.Fatalf("expected llm.ErrUnavailable, got %v", err)
	}
	if llm.KindOf(err) != llm.KindTimeout {
		t.Fatalf("kind = %q", llm.KindOf(err))
	}
}

func TestAskEmbeddingFailureIsNotFallback(t *testing.T) {
	gen := &fakeGenerator{}
	e, emb := newEngine(loveStore(), gen)
	emb.err = fmt.Errorf("embed: ollama: %w", embed.ErrUnavailable)

	_, err := e.Ask(context.Background(), Request{Query: "tell me about love"})
	if !errors.Is(err, embed.ErrUnavailable) {
		t.Fatalf("expected embed.ErrUnavailable, got %v", err)
	}
	if gen.calls != 0 {
		t.Fatal("generator must not be called")
	}
}

type failingSource struct{ err error }

func (f failingSource) Candidates(context.Context, int) ([]quote.Quote, error) { return nil, f.err }

func TestAskStoreFailureIsNotFallback(t *testing.T) {
	boom := errors.New("neo4j down")
	e, _ := newEngine(failingSource{boom}, &fakeGenerator{})
	if _, err := e.Ask(context.Background(), Request{Query: "tell me about love"}); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
}

func TestRetrieveKLargerThanPool(t *testing.T) {
	r := &Retriever{Embedder: &vecEmbedder{}, Source: loveStore()}
	matches, err := r.Retrieve(context.Background(), "anything", 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 5 {
		t.Fatalf("len = %d, want the whole pool", len(matches))
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].Similarity > matches[i-1].Similarity {
			t.Fatalf("not sorted at %d: %+v", i, matches)
		}
	}
}

func TestRetrieveExcludesDegenerateCandidates(t *testing.T) {
	store := quote.NewMemory(
		quote.Quote{ID: "zero", ShortText: "zero", Embedding: []float32{0, 0, 0, 0}},
		quote.Quote{ID: "short", ShortText: "short", Embedding: []float32{1, 0}},
		quote.Quote{ID: "none", ShortText: "none"},
		quote.Quote{ID: "ok", ShortText: "ok", Embedding: []float32{0, 0, 0, 2}},
	)
	r := &Retriever{Embedder: &vecEmbedder{}, Source: store}
	matches, err := r.Retrieve(context.Background(), "anything", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 || matches[0].ID != "ok" || matches[0].Similarity != 1 {
		t.Fatalf("matches = %+v", matches)
	}
}

func TestRetrieveStableTies(t *testing.T) {
	var quotes []quote.Quote
	for i := range 6 {
		quotes = append(quotes, quote.Quote{ID: fmt.Sprint(i), ShortText: "t", Embedding: []float32{0, 0, 0, 1}})
	}
	r := &Retriever{Embedder: &vecEmbedder{}, Source: quote.NewMemory(quotes...)}
	for range 5 {
		matches, err := r.Retrieve(context.Background(), "anything", 4)
		if err != nil {
			t.Fatal(err)
		}
		for i, m := range matches {
			if m.ID != fmt.Sprint(i) {
				t.Fatalf("tie order broken: %+v", matches)
			}
		}
	}
}

func TestRetrievePoolSizeIsPassed(t *testing.T) {
	src := &recordingSource{}
	r := &Retriever{Embedder: &vecEmbedder{}, Source: src}
	if _, err := r.Retrieve(context.Background(), "q", 0); err != nil {
		t.Fatal(err)
	}
	if src.limit != DefaultPoolSize {
		t.Fatalf("limit = %d", src.limit)
	}
	r.PoolSize = 10
	r.Retrieve(context.Background(), "q", 0)
	if src.limit != 10 {
		t.Fatalf("limit = %d", src.limit)
	}
}

type recordingSource struct{ limit int }

func (r *recordingSource) Candidates(_ context.Context, limit int) ([]quote.Quote, error) {
	r.limit = limit
	return nil, nil
}

func TestRetrieveEmptyQuery(t *testing.T) {
	r := &Retriever{Embedder: &vecEmbedder{}, Source: loveStore()}
	if _, err := r.Retrieve(context.Background(), "   ", 3); !errors.Is(err, ErrEmptyQuery) {
		t.Fatalf("err = %v", err)
	}
}

func TestRetrieveEmptyQueryVector(t *testing.T) {
	r := &Retriever{Embedder: &vecEmbedder{vecs: map[string][]float32{"q": {}}}, Source: loveStore()}
	if _, err := r.Retrieve(context.Background(), "q", 3); !errors.Is(err, embed.ErrUnavailable) {
		t.Fatalf("err = %v", err)
	}
}
