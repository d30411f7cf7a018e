package embed

import (
	"net/http"
	"time"
)

// DefaultTimeout bounds each embedding request when no HTTP client is set.
const DefaultTimeout = 30 * time.Second

type config struct {
	model      string
	dim        int
	baseURL    string
	httpClient *http.Client
}

func newConfig(model string, dim int, opts []Option) config {
	cfg := config{model: model, dim: dim}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.httpClient == nil {
		cfg.httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return cfg
}

// Option configures an embedder.
type Option func(*config)

// WithModel sets the embedding model name.
func WithModel(model string) Option {
	return func(c *config) { c.model = model }
}

// WithDimension sets the expected output dimensionality. Responses of any
// other length are rejected. Zero accepts whatever the model returns.
func WithDimension(dim int) Option {
	return func(c *config) { c.dim = dim }
}

// WithBaseURL overrides the API base URL (or the Ollama host).
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithHTTPClient sets the HTTP client. Its Timeout bounds each call.
func WithHTTPClient(client *http.Client) Option {
	return func(c *config) { c.httpClient = client }
}

// WithTimeout is shorthand for an HTTP client with the given timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.httpClient = &http.Client{Timeout: d} }
}
