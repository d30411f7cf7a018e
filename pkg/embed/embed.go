// Package embed turns text into dense float32 vectors for semantic search.
//
// Two remote implementations are provided:
//
//   - [OpenAI] for the OpenAI embeddings API and compatible endpoints
//     (DashScope, SiliconFlow) selected with WithBaseURL
//   - [Ollama] for a local Ollama server (nomic-embed-text by default)
//
// [Cached] wraps either one with a bounded LRU so repeated queries skip
// the network.
//
//	e := embed.NewOllama(embed.WithModel("nomic-embed-text"))
//	vec, err := e.Embed(ctx, "tell me about love")
//
// Every failure to obtain a usable vector (unreachable endpoint, HTTP
// error, timeout, response without a vector) matches [ErrUnavailable].
// An Embedder never returns an empty vector in place of an error.
package embed

import (
	"context"
	"errors"
	"fmt"
)

// Embedder converts text into dense float32 vectors.
type Embedder interface {
	// Embed returns the embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one vector per text, in order. Implementations
	// may split large batches into several API calls.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the dimensionality of the output vectors, or 0
	// if it is not known yet.
	Dimension() int
}

var (
	// ErrEmptyInput is returned when the input text is empty.
	ErrEmptyInput = errors.New("embed: empty input")

	// ErrUnavailable is matched by every error caused by the embedding
	// backend: connection failures, timeouts, HTTP errors, and responses
	// that carry no usable vector.
	ErrUnavailable = errors.New("embed: embedding unavailable")
)

func unavailable(provider string, err error) error {
	return fmt.Errorf("embed: %s: %w: %w", provider, ErrUnavailable, err)
}
