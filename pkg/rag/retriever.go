// Package rag answers free-text questions from the quote graph: it ranks a
// bounded pool of embedded quotes by cosine similarity to the question and
// has a language model phrase a reply grounded on the best matches.
//
// Similarity here is raw cosine in [-1, 1]. The relevance floor is on the
// same scale.
package rag

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/haivivi/quotevoice/pkg/embed"
	"github.com/haivivi/quotevoice/pkg/quote"
	"github.com/haivivi/quotevoice/pkg/vecmath"
)

const (
	// DefaultTopK is the number of matches returned when k <= 0.
	DefaultTopK = 3
	// DefaultPoolSize bounds the candidates fetched per query.
	DefaultPoolSize = 500
)

// ErrEmptyQuery is returned for blank queries.
var ErrEmptyQuery = errors.New("rag: empty query")

// QueryEmbedder embeds a query string.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// CandidateSource supplies the pool of embedded quotes.
type CandidateSource interface {
	Candidates(ctx context.Context, limit int) ([]quote.Quote, error)
}

// Match is a ranked quote.
type Match struct {
	ID         string  `json:"-"`
	Text       string  `json:"text"`
	Author     string  `json:"author"`
	Work       string  `json:"work,omitempty"`
	Similarity float64 `json:"similarity"`
}

// Retriever ranks candidate quotes against a query.
type Retriever struct {
	Embedder QueryEmbedder
	Source   CandidateSource

	// PoolSize defaults to DefaultPoolSize.
	PoolSize int
	Logger   *slog.Logger
}

// Retrieve returns the k quotes most similar to query, best first. Ties
// keep the order the source returned them in. When fewer than k quotes
// are comparable, all of them are returned.
//
// Candidates without an embedding, with a zero-norm embedding, or with a
// dimension different from the query's are left out. A failure to embed
// the query matches embed.ErrUnavailable.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]Match, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if k <= 0 {
		k = DefaultTopK
	}
	pool := r.PoolSize
	if pool <= 0 {
		pool = DefaultPoolSize
	}
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	qv, err := r.Embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("rag: embed query: %w", err)
	}
	if len(qv) == 0 {
		return nil, fmt.Errorf("rag: embed query: %w: empty vector", embed.ErrUnavailable)
	}

	candidates, err := r.Source.Candidates(ctx, pool)
	if err != nil {
		return nil, fmt.Errorf("rag: fetch candidates: %w", err)
	}

	matches := make([]Match, 0, len(candidates))
	for _, c := range candidates {
		sim, ok := vecmath.Cosine(qv, c.Embedding)
		if !ok {
			continue
		}
		matches = append(matches, Match{
			ID:         c.ID,
			Text:       c.Text(),
			Author:     c.Author(),
			Work:       c.Work,
			Similarity: sim,
		})
	}
	logger.Debug("rag: ranked candidates",
		"candidates", len(candidates),
		"excluded", len(candidates)-len(matches))

	slices.SortStableFunc(matches, func(a, b Match) int {
		return cmp.Compare(b.Similarity, a.Similarity)
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}
