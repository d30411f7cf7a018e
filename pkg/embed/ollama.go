package embed

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"sync/atomic"

	ollama "github.com/ollama/ollama/api"
)

const (
	// ModelNomicEmbedText is Ollama's default text embedding model (768 dims).
	ModelNomicEmbedText = "nomic-embed-text"

	// DefaultOllamaHost is used when neither WithBaseURL nor OLLAMA_HOST is set.
	DefaultOllamaHost = "http://localhost:11434"
)

// Ollama implements [Embedder] with a local Ollama server's /api/embed.
type Ollama struct {
	client *ollama.Client
	model  string
	dim    int
	seen   atomic.Int64
}

var _ Embedder = (*Ollama)(nil)

// NewOllama creates an Ollama embedder. The host comes from WithBaseURL,
// then OLLAMA_HOST, then DefaultOllamaHost.
func NewOllama(opts ...Option) (*Ollama, error) {
	cfg := newConfig(ModelNomicEmbedText, 0, opts)
	host := cfg.baseURL
	if host == "" {
		host = os.Getenv("OLLAMA_HOST")
	}
	if host == "" {
		host = DefaultOllamaHost
	}
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("embed: invalid ollama host %q: %w", host, err)
	}
	return &Ollama{
		client: ollama.NewClient(u, cfg.httpClient),
		model:  cfg.model,
		dim:    cfg.dim,
	}, nil
}

func (o *Ollama) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyInput
	}
	vecs, err := o.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (o *Ollama) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}
	var input any = texts
	if len(texts) == 1 {
		input = texts[0]
	}
	res, err := o.client.Embed(ctx, &ollama.EmbedRequest{Model: o.model, Input: input})
	if err != nil {
		return nil, unavailable("ollama", err)
	}
	if len(res.Embeddings) != len(texts) {
		return nil, unavailable("ollama", fmt.Errorf("got %d embeddings for %d inputs", len(res.Embeddings), len(texts)))
	}
	for i, v := range res.Embeddings {
		if err := checkVector(v, o.dim); err != nil {
			return nil, unavailable("ollama", fmt.Errorf("index %d: %w", i, err))
		}
	}
	o.seen.Store(int64(len(res.Embeddings[0])))
	return res.Embeddings, nil
}

// Dimension returns the configured dimension, or the length of the last
// vector seen when none was configured.
func (o *Ollama) Dimension() int {
	if o.dim > 0 {
		return o.dim
	}
	return int(o.seen.Load())
}

func (o *Ollama) Model() string { return o.model }
