package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/genai"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.0-flash"

// Gemini generates text with the Google Gemini API.
type Gemini struct {
	Client *genai.Client
	// Model should not start with "models/".
	Model   string
	Timeout time.Duration
}

var _ Generator = (*Gemini)(nil)

// NewGemini creates a Gemini generator for the Gemini API backend.
func NewGemini(ctx context.Context, apiKey, model string, timeout time.Duration) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("llm: gemini client: %w", err)
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	return &Gemini{Client: client, Model: model, Timeout: timeout}, nil
}

func (g *Gemini) Generate(ctx context.Context, prompt string, p Params) (string, error) {
	ctx, cancel := withTimeout(ctx, g.Timeout)
	defer cancel()

	temp := float32(p.Temperature)
	cfg := &genai.GenerateContentConfig{Temperature: &temp}
	if p.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(p.MaxTokens)
	}
	contents := []*genai.Content{{Role: "user", Parts: []*genai.Part{genai.NewPartFromText(prompt)}}}
	resp, err := g.Client.Models.GenerateContent(ctx, g.Model, contents, cfg)
	if err != nil {
		return "", newError("gemini", g.Model, err, geminiNotFound(err))
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", emptyResponse("gemini", g.Model)
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", emptyResponse("gemini", g.Model)
	}
	return text, nil
}

func geminiNotFound(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusNotFound
	}
	var gaxErr *apierror.APIError
	if errors.As(err, &gaxErr) {
		return gaxErr.HTTPCode() == http.StatusNotFound
	}
	return false
}
