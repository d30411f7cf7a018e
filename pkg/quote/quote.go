// Package quote is the boundary to the quote graph: full-text search, the
// bounded candidate pool used for similarity ranking, detail lookups, and
// the write-back path of the embedding backfill.
package quote

import (
	"context"
	"errors"
	"unicode/utf8"
)

// ErrNotFound is returned by Get when no quote has the given id.
var ErrNotFound = errors.New("quote: not found")

const (
	// DefaultSearchLimit is used when Search is called with k <= 0.
	DefaultSearchLimit = 8
	// MaxSearchLimit caps k for Search.
	MaxSearchLimit = 20
	// MinSearchLength is the shortest query, in runes, Search answers.
	MinSearchLength = 2
)

// Quote is one quote record. Embedding is nil until the backfill job has
// processed the quote.
type Quote struct {
	ID        string    `json:"id" yaml:"id"`
	ShortText string    `json:"short_text" yaml:"short_text"`
	FullText  string    `json:"full_text,omitempty" yaml:"full_text,omitempty"`
	Authors   []string  `json:"authors,omitempty" yaml:"authors,omitempty"`
	Work      string    `json:"work,omitempty" yaml:"work,omitempty"`
	Embedding []float32 `json:"-" yaml:"embedding,omitempty"`
}

// Text returns the display text: the short text when present.
func (q Quote) Text() string {
	if q.ShortText != "" {
		return q.ShortText
	}
	return q.FullText
}

// Author returns the first author, or "Unknown".
func (q Quote) Author() string {
	if len(q.Authors) == 0 || q.Authors[0] == "" {
		return "Unknown"
	}
	return q.Authors[0]
}

// Hit is a full-text search result.
type Hit struct {
	ID        string  `json:"quote_id"`
	ShortText string  `json:"short_text"`
	FullText  string  `json:"full_text"`
	Author    string  `json:"author,omitempty"`
	Score     float64 `json:"score"`
}

// Store is the quote graph.
type Store interface {
	// Search runs a full-text query and returns at most k hits ordered by
	// relevance, highest first.
	Search(ctx context.Context, text string, k int) ([]Hit, error)

	// Candidates returns up to limit quotes that have an embedding.
	// Repeated calls over unchanged data return the same quotes in the
	// same order.
	Candidates(ctx context.Context, limit int) ([]Quote, error)

	// Get returns one quote with all its authors, or ErrNotFound.
	Get(ctx context.Context, id string) (Quote, error)

	// Pending returns up to limit quotes without an embedding, skipping
	// the ids in skip.
	Pending(ctx context.Context, limit int, skip []string) ([]Quote, error)

	// CountPending returns the number of quotes without an embedding.
	CountPending(ctx context.Context) (int, error)

	// SetEmbedding stores vec on the quote.
	SetEmbedding(ctx context.Context, id string, vec []float32) error

	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error
}

// searchParams normalizes a search request. ok is false when the query is
// too short to answer.
func searchParams(text string, k int) (int, bool) {
	if k <= 0 {
		k = DefaultSearchLimit
	}
	k = min(k, MaxSearchLimit)
	return k, utf8.RuneCountInString(text) >= MinSearchLength
}
