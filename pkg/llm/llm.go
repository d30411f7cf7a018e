// Package llm is the text-completion boundary: a prompt goes in, text comes
// out. Implementations cover a local Ollama server, OpenAI, Anthropic and
// Gemini.
//
// Every implementation bounds each call with a timeout and reports failures
// as *Error, which matches ErrUnavailable and tells connection failures,
// timeouts and missing models apart. A Generator never returns an empty
// string as success.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// DefaultTimeout bounds a single Generate call.
const DefaultTimeout = 60 * time.Second

// Params controls a single generation.
type Params struct {
	MaxTokens   int
	Temperature float64
}

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string, p Params) (string, error)
}

// ErrUnavailable is matched by every generation failure.
var ErrUnavailable = errors.New("llm: generation unavailable")

// Kind classifies a generation failure.
type Kind string

const (
	KindConnection    Kind = "connection"
	KindTimeout       Kind = "timeout"
	KindModelNotFound Kind = "model_not_found"
	KindEmpty         Kind = "empty_response"
	KindOther         Kind = "other"
)

// Error is a generation failure.
type Error struct {
	Provider string
	Model    string
	Kind     Kind
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("llm: %s %s: %s: %v", e.Provider, e.Model, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes every *Error match ErrUnavailable.
func (e *Error) Is(target error) bool { return target == ErrUnavailable }

// KindOf returns the Kind of err, or "" if err is not a generation failure.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// newError classifies err. notFound reports whether the provider's own
// error says the model does not exist.
func newError(provider, model string, err error, notFound bool) *Error {
	return &Error{Provider: provider, Model: model, Kind: classify(err, notFound), Err: err}
}

func classify(err error, notFound bool) Kind {
	switch {
	case notFound:
		return KindModelNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return KindConnection
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindConnection
	}
	return KindOther
}

func emptyResponse(provider, model string) *Error {
	return &Error{Provider: provider, Model: model, Kind: KindEmpty, Err: errors.New("model returned no text")}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = DefaultTimeout
	}
	return context.WithTimeout(ctx, d)
}
