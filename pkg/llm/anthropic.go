package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
)

// DefaultAnthropicModel is used when no model is configured.
const DefaultAnthropicModel = "claude-3-5-haiku-latest"

// Anthropic generates text with the Messages API.
type Anthropic struct {
	Client  *anthropic.Client
	Model   string
	Timeout time.Duration
}

var _ Generator = (*Anthropic)(nil)

// NewAnthropic creates an Anthropic generator with SDK retries disabled.
func NewAnthropic(apiKey, baseURL, model string, timeout time.Duration) *Anthropic {
	opts := []anthropicopt.RequestOption{
		anthropicopt.WithAPIKey(apiKey),
		anthropicopt.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, anthropicopt.WithBaseURL(baseURL))
	}
	if model == "" {
		model = DefaultAnthropicModel
	}
	cl := anthropic.NewClient(opts...)
	return &Anthropic{Client: &cl, Model: model, Timeout: timeout}
}

func (a *Anthropic) Generate(ctx context.Context, prompt string, p Params) (string, error) {
	ctx, cancel := withTimeout(ctx, a.Timeout)
	defer cancel()

	maxTokens := int64(p.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	msg, err := a.Client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(a.Model),
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(p.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		var apiErr *anthropic.Error
		notFound := errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
		return "", newError("anthropic", a.Model, err, notFound)
	}

	var b strings.Builder
	for _, cb := range msg.Content {
		if tb, ok := cb.AsAny().(anthropic.TextBlock); ok {
			b.WriteString(tb.Text)
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", emptyResponse("anthropic", a.Model)
	}
	return text, nil
}
