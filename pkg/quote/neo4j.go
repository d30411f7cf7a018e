package quote

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// DefaultSearchIndex is the full-text index over quote text.
const DefaultSearchIndex = "quoteTextIndex"

// Runner executes one Cypher statement and returns its rows as maps.
type Runner interface {
	Run(ctx context.Context, cypher string, params map[string]any, write bool) ([]map[string]any, error)
}

// DriverRunner runs statements with neo4j.ExecuteQuery, routed to readers
// or writers.
type DriverRunner struct {
	Driver   neo4j.DriverWithContext
	Database string
}

func (d DriverRunner) Run(ctx context.Context, cypher string, params map[string]any, write bool) ([]map[string]any, error) {
	opts := []neo4j.ExecuteQueryConfigurationOption{neo4j.ExecuteQueryWithDatabase(d.Database)}
	if write {
		opts = append(opts, neo4j.ExecuteQueryWithWritersRouting())
	} else {
		opts = append(opts, neo4j.ExecuteQueryWithReadersRouting())
	}
	res, err := neo4j.ExecuteQuery(ctx, d.Driver, cypher, params, neo4j.EagerResultTransformer, opts...)
	if err != nil {
		return nil, err
	}
	rows := make([]map[string]any, len(res.Records))
	for i, rec := range res.Records {
		rows[i] = rec.AsMap()
	}
	return rows, nil
}

// Neo4jOptions configures a Neo4j store.
type Neo4jOptions struct {
	// SearchIndex names the full-text index. Default DefaultSearchIndex.
	SearchIndex string
	// Timeout bounds each statement. Default 10s.
	Timeout time.Duration
	Logger  *slog.Logger
}

// Neo4j is a Store over a Neo4j graph of
// (:Quote)-[:SAID]-(:Author) and (:Quote)-[:FROM]->(:Work).
type Neo4j struct {
	run     Runner
	index   string
	timeout time.Duration
	logger  *slog.Logger
}

var _ Store = (*Neo4j)(nil)

// NewNeo4j creates a store that issues statements through r.
func NewNeo4j(r Runner, opts Neo4jOptions) *Neo4j {
	n := &Neo4j{run: r, index: opts.SearchIndex, timeout: opts.Timeout, logger: opts.Logger}
	if n.index == "" {
		n.index = DefaultSearchIndex
	}
	if n.timeout <= 0 {
		n.timeout = 10 * time.Second
	}
	if n.logger == nil {
		n.logger = slog.Default()
	}
	return n
}

// Dial opens a driver for uri with basic auth and wraps it in a store.
// The caller closes the returned driver.
func Dial(uri, user, password, database string, opts Neo4jOptions) (*Neo4j, neo4j.DriverWithContext, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, nil, fmt.Errorf("quote: neo4j driver: %w", err)
	}
	return NewNeo4j(DriverRunner{Driver: driver, Database: database}, opts), driver, nil
}

const (
	cypherSearch = `
CALL db.index.fulltext.queryNodes($index, $q) YIELD node AS q, score
MATCH (q)-[:SAID]-(a:Author)
WITH q, score, head(collect(a.name)) AS author
RETURN elementId(q) AS id,
       coalesce(q.short_text, q.text_clean, q.text) AS short_text,
       coalesce(q.full_text, q.text_clean, q.text) AS full_text,
       author, score
ORDER BY score DESC
LIMIT $k`

	cypherCandidates = `
MATCH (q:Quote)-[:SAID]-(a:Author)
WHERE q.embedding IS NOT NULL
OPTIONAL MATCH (q)-[:FROM]->(w:Work)
WITH q, collect(DISTINCT a.name) AS authors, head(collect(w.title)) AS work
RETURN elementId(q) AS id,
       coalesce(q.short_text, q.full_text, q.text) AS short_text,
       q.full_text AS full_text,
       authors, work, q.embedding AS embedding
ORDER BY id
LIMIT $limit`

	cypherGet = `
MATCH (q:Quote) WHERE elementId(q) = $id
OPTIONAL MATCH (q)-[:SAID]-(a:Author)
OPTIONAL MATCH (q)-[:FROM]->(w:Work)
RETURN elementId(q) AS id,
       coalesce(q.short_text, q.text_clean, q.text) AS short_text,
       coalesce(q.full_text, q.text_clean, q.text) AS full_text,
       collect(DISTINCT a.name) AS authors, head(collect(w.title)) AS work,
       q.embedding AS embedding`

	cypherPending = `
MATCH (q:Quote)
WHERE q.embedding IS NULL AND NOT elementId(q) IN $skip
RETURN elementId(q) AS id, coalesce(q.short_text, q.full_text, q.text) AS short_text
ORDER BY id
LIMIT $limit`

	cypherCountPending = `MATCH (q:Quote) WHERE q.embedding IS NULL RETURN count(q) AS total`

	cypherSetEmbedding = `
MATCH (q:Quote) WHERE elementId(q) = $id
SET q.embedding = $embedding
RETURN elementId(q) AS id`

	cypherPing = `RETURN 1 AS ok`

	cypherEnsureIndex = `
CREATE FULLTEXT INDEX %s IF NOT EXISTS
FOR (q:Quote) ON EACH [q.text_clean, q.short_text, q.full_text]`
)

func (n *Neo4j) query(ctx context.Context, cypher string, params map[string]any, write bool) ([]map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()
	start := time.Now()
	rows, err := n.run.Run(ctx, cypher, params, write)
	if err != nil {
		return nil, fmt.Errorf("quote: neo4j: %w", err)
	}
	n.logger.Debug("quote: neo4j query", "rows", len(rows), "took", time.Since(start))
	return rows, nil
}

func (n *Neo4j) Search(ctx context.Context, text string, k int) ([]Hit, error) {
	text = strings.TrimSpace(text)
	k, ok := searchParams(text, k)
	if !ok {
		return nil, nil
	}
	rows, err := n.query(ctx, cypherSearch, map[string]any{"index": n.index, "q": text, "k": k}, false)
	if err != nil {
		return nil, err
	}
	hits := make([]Hit, 0, len(rows))
	for _, r := range rows {
		hits = append(hits, Hit{
			ID:        str(r["id"]),
			ShortText: str(r["short_text"]),
			FullText:  str(r["full_text"]),
			Author:    str(r["author"]),
			Score:     num(r["score"]),
		})
	}
	return hits, nil
}

func (n *Neo4j) Candidates(ctx context.Context, limit int) ([]Quote, error) {
	rows, err := n.query(ctx, cypherCandidates, map[string]any{"limit": limit}, false)
	if err != nil {
		return nil, err
	}
	quotes := make([]Quote, 0, len(rows))
	for _, r := range rows {
		quotes = append(quotes, rowQuote(r))
	}
	return quotes, nil
}

func (n *Neo4j) Get(ctx context.Context, id string) (Quote, error) {
	rows, err := n.query(ctx, cypherGet, map[string]any{"id": id}, false)
	if err != nil {
		return Quote{}, err
	}
	if len(rows) == 0 || rows[0]["id"] == nil {
		return Quote{}, fmt.Errorf("quote %s: %w", id, ErrNotFound)
	}
	return rowQuote(rows[0]), nil
}

func (n *Neo4j) Pending(ctx context.Context, limit int, skip []string) ([]Quote, error) {
	if skip == nil {
		skip = []string{}
	}
	rows, err := n.query(ctx, cypherPending, map[string]any{"limit": limit, "skip": skip}, false)
	if err != nil {
		return nil, err
	}
	quotes := make([]Quote, 0, len(rows))
	for _, r := range rows {
		quotes = append(quotes, rowQuote(r))
	}
	return quotes, nil
}

func (n *Neo4j) CountPending(ctx context.Context) (int, error) {
	rows, err := n.query(ctx, cypherCountPending, nil, false)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return int(num(rows[0]["total"])), nil
}

func (n *Neo4j) SetEmbedding(ctx context.Context, id string, vec []float32) error {
	emb := make([]float64, len(vec))
	for i, v := range vec {
		emb[i] = float64(v)
	}
	rows, err := n.query(ctx, cypherSetEmbedding, map[string]any{"id": id, "embedding": emb}, true)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("quote %s: %w", id, ErrNotFound)
	}
	return nil
}

func (n *Neo4j) Ping(ctx context.Context) error {
	_, err := n.query(ctx, cypherPing, nil, false)
	return err
}

// EnsureSchema creates the full-text search index if it does not exist.
func (n *Neo4j) EnsureSchema(ctx context.Context) error {
	_, err := n.query(ctx, fmt.Sprintf(cypherEnsureIndex, n.index), nil, true)
	return err
}

func rowQuote(r map[string]any) Quote {
	q := Quote{
		ID:        str(r["id"]),
		ShortText: str(r["short_text"]),
		FullText:  str(r["full_text"]),
		Work:      str(r["work"]),
		Embedding: floats(r["embedding"]),
	}
	if authors, ok := r["authors"].([]any); ok {
		for _, a := range authors {
			if s := str(a); s != "" {
				q.Authors = append(q.Authors, s)
			}
		}
	}
	return q
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func num(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case int64:
		return float64(x)
	case int:
		return float64(x)
	}
	return 0
}

// floats converts a Neo4j list property to a vector. Lists holding
// anything but numbers yield nil, which excludes the quote from ranking.
func floats(v any) []float32 {
	switch x := v.(type) {
	case []float32:
		return x
	case []float64:
		out := make([]float32, len(x))
		for i, f := range x {
			out[i] = float32(f)
		}
		return out
	case []any:
		if len(x) == 0 {
			return nil
		}
		out := make([]float32, len(x))
		for i, e := range x {
			switch f := e.(type) {
			case float64:
				out[i] = float32(f)
			case int64:
				out[i] = float32(f)
			default:
				return nil
			}
		}
		return out
	}
	return nil
}
