package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAI generates text with the chat completions API of OpenAI or any
// compatible endpoint.
type OpenAI struct {
	Client  *openai.Client
	Model   string
	Timeout time.Duration
}

var _ Generator = (*OpenAI)(nil)

// NewOpenAI creates an OpenAI generator with SDK retries disabled.
func NewOpenAI(apiKey, baseURL, model string, timeout time.Duration) *OpenAI {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	client := openai.NewClient(opts...)
	return &OpenAI{Client: &client, Model: model, Timeout: timeout}
}

func (g *OpenAI) Generate(ctx context.Context, prompt string, p Params) (string, error) {
	ctx, cancel := withTimeout(ctx, g.Timeout)
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Model:       g.Model,
		Messages:    []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
		Temperature: param.NewOpt(p.Temperature),
	}
	if p.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(p.MaxTokens))
	}
	resp, err := g.Client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		notFound := errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
		return "", newError("openai", g.Model, err, notFound)
	}
	if len(resp.Choices) == 0 {
		return "", emptyResponse("openai", g.Model)
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", emptyResponse("openai", g.Model)
	}
	return text, nil
}
