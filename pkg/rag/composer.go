package rag

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/haivivi/quotevoice/pkg/llm"
)

// DefaultFloor is the lowest top similarity that still counts as a match.
const DefaultFloor = 0.3

// Method tells which path produced a Response.
type Method string

const (
	MethodRAG      Method = "rag"
	MethodFallback Method = "fallback"
)

// Response is the reply to a query.
type Response struct {
	Response string  `json:"response"`
	Quotes   []Match `json:"quotes"`
	Method   Method  `json:"method"`
}

// Input is what Compose turns into a reply.
type Input struct {
	Query string
	// Matches are ranked best first.
	Matches []Match
	// Name addresses the user. Empty means anonymous.
	Name string
	// Style is an accent tag such as "uk" or "french".
	Style string
}

// Composer builds the grounded prompt and delegates to an llm.Generator.
type Composer struct {
	gen    llm.Generator
	floor  float64
	params llm.Params
	logger *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// ComposerOption configures a Composer.
type ComposerOption func(*Composer)

// WithFloor sets the relevance floor (raw cosine).
func WithFloor(f float64) ComposerOption {
	return func(c *Composer) { c.floor = f }
}

// WithParams overrides the generation parameters (150 tokens at 0.7).
func WithParams(p llm.Params) ComposerOption {
	return func(c *Composer) { c.params = p }
}

// WithRand sets the source used to pick fallback and greeting templates.
func WithRand(r *rand.Rand) ComposerOption {
	return func(c *Composer) { c.rng = r }
}

// WithLogger sets the logger. Default slog.Default().
func WithLogger(l *slog.Logger) ComposerOption {
	return func(c *Composer) { c.logger = l }
}

// NewComposer creates a Composer over gen. gen may be nil for a Composer
// that only produces greetings and fallbacks.
func NewComposer(gen llm.Generator, opts ...ComposerOption) *Composer {
	c := &Composer{
		gen:    gen,
		floor:  DefaultFloor,
		params: llm.Params{MaxTokens: 150, Temperature: 0.7},
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Compose answers in. When there are no matches, or the best one is below
// the floor, it returns a canned fallback with MethodFallback and the model
// is not called. Otherwise the model's reply is returned with MethodRAG.
//
// Generation failures are returned as errors matching llm.ErrUnavailable;
// they never turn into a fallback.
func (c *Composer) Compose(ctx context.Context, in Input) (Response, error) {
	if len(in.Matches) == 0 || in.Matches[0].Similarity < c.floor {
		top := 0.0
		if len(in.Matches) > 0 {
			top = in.Matches[0].Similarity
		}
		c.logger.Info("rag: no confident match", "matches", len(in.Matches), "top_similarity", top, "floor", c.floor)
		return Response{Response: c.Fallback(in.Name, in.Style), Quotes: []Match{}, Method: MethodFallback}, nil
	}

	if c.gen == nil {
		return Response{}, fmt.Errorf("rag: generate: %w", llm.ErrUnavailable)
	}
	prompt := BuildPrompt(in.Query, in.Matches, in.Name, in.Style)
	text, err := c.gen.Generate(ctx, prompt, c.params)
	if err != nil {
		return Response{}, fmt.Errorf("rag: generate: %w", err)
	}
	return Response{Response: strings.TrimSpace(text), Quotes: in.Matches, Method: MethodRAG}, nil
}

// Fallback returns a no-match message. Requests without a style get
// NoStyleFallback; styled ones get one of that style's templates.
func (c *Composer) Fallback(name, style string) string {
	if style == "" {
		return NoStyleFallback
	}
	suffix := ""
	if name != "" {
		suffix = ", " + name
	}
	return fmt.Sprintf(c.pick(lookup(fallbacks, style)), suffix)
}

// Greeting returns a personalized greeting in the given style.
func (c *Composer) Greeting(name, style string) string {
	if name == "" {
		name = "there"
	}
	return fmt.Sprintf(c.pick(lookup(greetings, style)), name)
}

func (c *Composer) pick(options []string) string {
	if c.rng == nil {
		return options[rand.IntN(len(options))]
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return options[c.rng.IntN(len(options))]
}

// BuildPrompt builds the model prompt: the numbered quotes with
// attribution and instructions on addressee, length and tone.
func BuildPrompt(query string, matches []Match, name, style string) string {
	tone := Tone(style)
	if name == "" {
		name = "there"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are a wise quote assistant speaking in a %s manner.\n\n", tone)
	fmt.Fprintf(&sb, "User: \"%s\"\n\n", query)
	sb.WriteString("Relevant quotes:\n\n")
	for i, m := range matches {
		fmt.Fprintf(&sb, "%d. \"%s\" - %s", i+1, m.Text, m.Author)
		if m.Work != "" {
			fmt.Fprintf(&sb, " (%s)", m.Work)
		}
		sb.WriteByte('\n')
	}
	sb.WriteString("\nTask: Respond to the user's query using the quotes above.\n")
	fmt.Fprintf(&sb, "- Address the user as %s\n", name)
	sb.WriteString("- Reference the most relevant quote\n")
	sb.WriteString("- Keep response to 2-3 sentences\n")
	fmt.Fprintf(&sb, "- Be %s\n\n", tone)
	sb.WriteString("Response:")
	return sb.String()
}
