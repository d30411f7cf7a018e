package rag

import (
	"context"
	"log/slog"
)

// Request is a free-text question.
type Request struct {
	Query    string `json:"query"`
	Username string `json:"username,omitempty"`
	Style    string `json:"style,omitempty"`
}

// Engine runs retrieval then composition.
type Engine struct {
	Retriever *Retriever
	Composer  *Composer
	// TopK defaults to DefaultTopK.
	TopK   int
	Logger *slog.Logger
}

// Ask answers req. Errors from embedding, the store, or the model are
// returned as is; only a genuine lack of matches yields MethodFallback.
func (e *Engine) Ask(ctx context.Context, req Request) (Response, error) {
	logger := e.Logger
	if logger == nil {
		logger = slog.Default()
	}
	matches, err := e.Retriever.Retrieve(ctx, req.Query, e.TopK)
	if err != nil {
		logger.Error("rag: retrieval failed", "error", err)
		return Response{}, err
	}
	resp, err := e.Composer.Compose(ctx, Input{
		Query:   req.Query,
		Matches: matches,
		Name:    req.Username,
		Style:   req.Style,
	})
	if err != nil {
		logger.Error("rag: generation failed", "error", err)
		return Response{}, err
	}
	logger.Info("rag: answered", "method", resp.Method, "quotes", len(resp.Quotes))
	return resp, nil
}
