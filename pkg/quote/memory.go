package quote

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"

	"github.com/goccy/go-yaml"
)

// Memory is an in-process Store. Quotes keep insertion order, which is
// the order Candidates and Pending return them in.
type Memory struct {
	mu     sync.RWMutex
	quotes []Quote
	index  map[string]int
}

var _ Store = (*Memory)(nil)

// NewMemory returns a store holding quotes. Quotes without an id are
// assigned "q<position>".
func NewMemory(quotes ...Quote) *Memory {
	m := &Memory{index: make(map[string]int)}
	for _, q := range quotes {
		m.Add(q)
	}
	return m
}

// LoadYAML reads a YAML list of quotes into a new Memory store.
func LoadYAML(r io.Reader) (*Memory, error) {
	var quotes []Quote
	if err := yaml.NewDecoder(r).Decode(&quotes); err != nil {
		return nil, fmt.Errorf("quote: decode yaml: %w", err)
	}
	return NewMemory(quotes...), nil
}

// Add inserts q, or replaces the quote with the same id.
func (m *Memory) Add(q Quote) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if q.ID == "" {
		q.ID = fmt.Sprintf("q%d", len(m.quotes)+1)
	}
	q.Authors = slices.Clone(q.Authors)
	q.Embedding = slices.Clone(q.Embedding)
	if i, ok := m.index[q.ID]; ok {
		m.quotes[i] = q
		return
	}
	m.index[q.ID] = len(m.quotes)
	m.quotes = append(m.quotes, q)
}

// Search scores each quote by the fraction of query words found in its
// text, so that results are ordered like a full-text index would.
func (m *Memory) Search(_ context.Context, text string, k int) ([]Hit, error) {
	text = strings.TrimSpace(text)
	k, ok := searchParams(text, k)
	if !ok {
		return nil, nil
	}
	terms := strings.Fields(strings.ToLower(text))

	m.mu.RLock()
	var hits []Hit
	for _, q := range m.quotes {
		body := strings.ToLower(q.ShortText + " " + q.FullText)
		n := 0
		for _, t := range terms {
			if strings.Contains(body, t) {
				n++
			}
		}
		if n == 0 {
			continue
		}
		hits = append(hits, Hit{
			ID:        q.ID,
			ShortText: q.Text(),
			FullText:  q.FullText,
			Author:    q.Author(),
			Score:     float64(n) / float64(len(terms)),
		})
	}
	m.mu.RUnlock()

	slices.SortStableFunc(hits, func(a, b Hit) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (m *Memory) Candidates(_ context.Context, limit int) ([]Quote, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Quote
	for _, q := range m.quotes {
		if limit > 0 && len(out) >= limit {
			break
		}
		if q.Embedding != nil {
			out = append(out, clone(q))
		}
	}
	return out, nil
}

func (m *Memory) Get(_ context.Context, id string) (Quote, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.index[id]
	if !ok {
		return Quote{}, fmt.Errorf("quote %s: %w", id, ErrNotFound)
	}
	return clone(m.quotes[i]), nil
}

func (m *Memory) Pending(_ context.Context, limit int, skip []string) ([]Quote, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Quote
	for _, q := range m.quotes {
		if limit > 0 && len(out) >= limit {
			break
		}
		if q.Embedding == nil && !slices.Contains(skip, q.ID) {
			out = append(out, clone(q))
		}
	}
	return out, nil
}

func (m *Memory) CountPending(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, q := range m.quotes {
		if q.Embedding == nil {
			n++
		}
	}
	return n, nil
}

func (m *Memory) SetEmbedding(_ context.Context, id string, vec []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.index[id]
	if !ok {
		return fmt.Errorf("quote %s: %w", id, ErrNotFound)
	}
	m.quotes[i].Embedding = slices.Clone(vec)
	return nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func clone(q Quote) Quote {
	q.Authors = slices.Clone(q.Authors)
	q.Embedding = slices.Clone(q.Embedding)
	return q
}
