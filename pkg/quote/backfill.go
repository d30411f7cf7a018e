package quote

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"
)

const (
	// DefaultBatchSize is the number of quotes embedded per request.
	DefaultBatchSize = 50
	// MinEmbedLength is the shortest text, in runes, worth embedding.
	MinEmbedLength = 5
)

// BatchEmbedder is the part of an embedding provider the backfill needs.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Progress reports backfill progress after each batch.
type Progress struct {
	// Total is the pending count when the run started, capped by Limit.
	Total     int `json:"total"`
	Embedded  int `json:"embedded"`
	Skipped   int `json:"skipped"`
	Processed int `json:"processed"`
}

// Backfill fills in missing quote embeddings.
type Backfill struct {
	Store    Store
	Embedder BatchEmbedder

	// BatchSize defaults to DefaultBatchSize.
	BatchSize int
	// Limit stops after this many quotes have been processed. Zero means
	// no limit.
	Limit int
	// OnProgress is called after every batch.
	OnProgress func(Progress)
	Logger     *slog.Logger
}

// Run embeds every pending quote. Quotes whose text is shorter than
// MinEmbedLength are skipped and left pending. Run stops at the first
// embedding or store error and returns it with the progress so far.
func (b *Backfill) Run(ctx context.Context) (Progress, error) {
	logger := b.Logger
	if logger == nil {
		logger = slog.Default()
	}
	size := b.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}

	var p Progress
	total, err := b.Store.CountPending(ctx)
	if err != nil {
		return p, err
	}
	if b.Limit > 0 {
		total = min(total, b.Limit)
	}
	p.Total = total
	logger.Info("quote: backfill starting", "pending", total, "batch_size", size)

	var skip []string
	for p.Processed < p.Total {
		if err := ctx.Err(); err != nil {
			return p, err
		}
		batch, err := b.Store.Pending(ctx, min(size, p.Total-p.Processed), skip)
		if err != nil {
			return p, err
		}
		if len(batch) == 0 {
			break
		}

		var ids, texts []string
		for _, q := range batch {
			text := strings.TrimSpace(q.Text())
			if utf8.RuneCountInString(text) < MinEmbedLength {
				skip = append(skip, q.ID)
				p.Skipped++
				continue
			}
			ids = append(ids, q.ID)
			texts = append(texts, text)
		}
		if len(texts) > 0 {
			vecs, err := b.Embedder.EmbedBatch(ctx, texts)
			if err != nil {
				return p, fmt.Errorf("quote: backfill: %w", err)
			}
			for i, id := range ids {
				if err := b.Store.SetEmbedding(ctx, id, vecs[i]); err != nil {
					return p, fmt.Errorf("quote: backfill: %w", err)
				}
				p.Embedded++
			}
		}
		p.Processed += len(batch)
		if b.OnProgress != nil {
			b.OnProgress(p)
		}
	}
	logger.Info("quote: backfill finished", "embedded", p.Embedded, "skipped", p.Skipped)
	return p, nil
}
