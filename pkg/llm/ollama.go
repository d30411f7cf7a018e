package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	ollama "github.com/ollama/ollama/api"
)

const (
	// DefaultOllamaModel is a small instruction-tuned model.
	DefaultOllamaModel = "llama3.2:3b"

	// DefaultOllamaHost is used when OLLAMA_HOST is not set.
	DefaultOllamaHost = "http://localhost:11434"
)

// DefaultOllamaStop ends a completion at the first blank line or a new
// speaker turn.
var DefaultOllamaStop = []string{"\n\n", "User:", "Assistant:"}

// Ollama generates text with a local Ollama server.
type Ollama struct {
	Client  *ollama.Client
	Model   string
	Stop    []string
	Timeout time.Duration
}

var _ Generator = (*Ollama)(nil)

// NewOllama connects to host, or OLLAMA_HOST, or DefaultOllamaHost.
func NewOllama(host, model string, timeout time.Duration) (*Ollama, error) {
	if host == "" {
		host = os.Getenv("OLLAMA_HOST")
	}
	if host == "" {
		host = DefaultOllamaHost
	}
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("llm: invalid ollama host %q: %w", host, err)
	}
	if model == "" {
		model = DefaultOllamaModel
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Ollama{
		Client:  ollama.NewClient(u, &http.Client{Timeout: timeout}),
		Model:   model,
		Stop:    DefaultOllamaStop,
		Timeout: timeout,
	}, nil
}

func (o *Ollama) Generate(ctx context.Context, prompt string, p Params) (string, error) {
	ctx, cancel := withTimeout(ctx, o.Timeout)
	defer cancel()

	stream := false
	opts := map[string]any{"temperature": p.Temperature}
	if p.MaxTokens > 0 {
		opts["num_predict"] = p.MaxTokens
	}
	if len(o.Stop) > 0 {
		opts["stop"] = o.Stop
	}
	req := &ollama.GenerateRequest{
		Model:   o.Model,
		Prompt:  prompt,
		Stream:  &stream,
		Options: opts,
	}

	var sb strings.Builder
	err := o.Client.Generate(ctx, req, func(gr ollama.GenerateResponse) error {
		sb.WriteString(gr.Response)
		return nil
	})
	if err != nil {
		return "", newError("ollama", o.Model, err, ollamaNotFound(err))
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", emptyResponse("ollama", o.Model)
	}
	return text, nil
}

// Check reports whether the configured model has been pulled. An error
// means the server itself could not be reached.
func (o *Ollama) Check(ctx context.Context) (bool, error) {
	ctx, cancel := withTimeout(ctx, o.Timeout)
	defer cancel()
	res, err := o.Client.List(ctx)
	if err != nil {
		return false, newError("ollama", o.Model, err, false)
	}
	for _, m := range res.Models {
		if m.Name == o.Model || m.Model == o.Model || strings.TrimSuffix(m.Name, ":latest") == o.Model {
			return true, nil
		}
	}
	return false, nil
}

func ollamaNotFound(err error) bool {
	var se ollama.StatusError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusNotFound
	}
	var sp *ollama.StatusError
	if errors.As(err, &sp) {
		return sp.StatusCode == http.StatusNotFound
	}
	return false
}
