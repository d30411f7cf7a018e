package quote

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type call struct {
	cypher string
	params map[string]any
	write  bool
}

// fakeRunner answers statements by the first matching cypher fragment.
type fakeRunner struct {
	calls   []call
	answers map[string][]map[string]any
	err     error
}

func (f *fakeRunner) Run(_ context.Context, cypher string, params map[string]any, write bool) ([]map[string]any, error) {
	f.calls = append(f.calls, call{cypher, params, write})
	if f.err != nil {
		return nil, f.err
	}
	for frag, rows := range f.answers {
		if strings.Contains(cypher, frag) {
			return rows, nil
		}
	}
	return nil, nil
}

func (f *fakeRunner) last() call { return f.calls[len(f.calls)-1] }

func TestNeo4jCandidates(t *testing.T) {
	r := &fakeRunner{answers: map[string][]map[string]any{
		"IS NOT NULL": {
			{"id": "4:a:1", "short_text": "Love is patient.", "authors": []any{"Paul"}, "work": nil, "embedding": []any{0.5, 0.25}},
			{"id": "4:a:2", "short_text": "Bad vector", "authors": []any{}, "embedding": []any{"x"}},
		},
	}}
	n := NewNeo4j(r, Neo4jOptions{})

	quotes, err := n.Candidates(context.Background(), 500)
	if err != nil {
		t.Fatal(err)
	}
	if len(quotes) != 2 {
		t.Fatalf("len = %d", len(quotes))
	}
	if q := quotes[0]; q.ID != "4:a:1" || q.Author() != "Paul" || len(q.Embedding) != 2 || q.Embedding[1] != 0.25 {
		t.Fatalf("quote = %+v", q)
	}
	if quotes[1].Embedding != nil || quotes[1].Author() != "Unknown" {
		t.Fatalf("malformed vector should be dropped: %+v", quotes[1])
	}
	c := r.last()
	if c.write || c.params["limit"] != 500 {
		t.Fatalf("call = %+v", c)
	}
}

func TestNeo4jSearch(t *testing.T) {
	r := &fakeRunner{answers: map[string][]map[string]any{
		"queryNodes": {{"id": "4:a:1", "short_text": "s", "full_text": "f", "author": "Paul", "score": 2.5}},
	}}
	n := NewNeo4j(r, Neo4jOptions{})

	hits, err := n.Search(context.Background(), "  love ", 99)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].Score != 2.5 || hits[0].Author != "Paul" {
		t.Fatalf("hits = %+v", hits)
	}
	c := r.last()
	if c.params["q"] != "love" || c.params["k"] != MaxSearchLimit || c.params["index"] != DefaultSearchIndex {
		t.Fatalf("params = %v", c.params)
	}

	before := len(r.calls)
	hits, err = n.Search(context.Background(), "l", 5)
	if err != nil || hits != nil || len(r.calls) != before {
		t.Fatal("short query should not reach the database")
	}
}

func TestNeo4jGet(t *testing.T) {
	r := &fakeRunner{answers: map[string][]map[string]any{
		"elementId(q) = $id": {{"id": "4:a:1", "short_text": "s", "authors": []any{"A", "B"}, "work": "W"}},
	}}
	n := NewNeo4j(r, Neo4jOptions{})
	q, err := n.Get(context.Background(), "4:a:1")
	if err != nil {
		t.Fatal(err)
	}
	if len(q.Authors) != 2 || q.Work != "W" {
		t.Fatalf("q = %+v", q)
	}

	empty := NewNeo4j(&fakeRunner{}, Neo4jOptions{})
	if _, err := empty.Get(context.Background(), "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestNeo4jWrites(t *testing.T) {
	r := &fakeRunner{answers: map[string][]map[string]any{
		"SET q.embedding": {{"id": "4:a:1"}},
		"count(q)":        {{"total": int64(7)}},
	}}
	n := NewNeo4j(r, Neo4jOptions{})
	ctx := context.Background()

	if err := n.SetEmbedding(ctx, "4:a:1", []float32{0.5, 1}); err != nil {
		t.Fatal(err)
	}
	c := r.last()
	if !c.write {
		t.Fatal("SetEmbedding must route to writers")
	}
	if emb, _ := c.params["embedding"].([]float64); len(emb) != 2 || emb[0] != 0.5 {
		t.Fatalf("embedding param = %v", c.params["embedding"])
	}

	total, err := n.CountPending(ctx)
	if err != nil || total != 7 {
		t.Fatalf("CountPending = %d, %v", total, err)
	}

	if _, err := n.Pending(ctx, 10, nil); err != nil {
		t.Fatal(err)
	}
	if skip, ok := r.last().params["skip"].([]string); !ok || skip == nil {
		t.Fatalf("skip must be a non-nil list, got %#v", r.last().params["skip"])
	}

	if err := n.EnsureSchema(ctx); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(r.last().cypher, "FULLTEXT INDEX quoteTextIndex") {
		t.Fatalf("cypher = %s", r.last().cypher)
	}
}

func TestNeo4jErrorsPropagate(t *testing.T) {
	boom := errors.New("connection reset")
	n := NewNeo4j(&fakeRunner{err: boom}, Neo4jOptions{})
	if _, err := n.Candidates(context.Background(), 10); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if err := n.Ping(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
}
