// Package app builds the quotevoice components from a Config. Each
// component is created on first use and shared afterwards, so a command
// only dials the backends it needs.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/haivivi/quotevoice/cmd/quotevoice/internal/config"
	"github.com/haivivi/quotevoice/pkg/cli"
	"github.com/haivivi/quotevoice/pkg/embed"
	"github.com/haivivi/quotevoice/pkg/kv"
	"github.com/haivivi/quotevoice/pkg/llm"
	"github.com/haivivi/quotevoice/pkg/quote"
	"github.com/haivivi/quotevoice/pkg/rag"
	"github.com/haivivi/quotevoice/pkg/speaker"
	"github.com/haivivi/quotevoice/pkg/storage"
	"github.com/haivivi/quotevoice/pkg/voice"
	"github.com/haivivi/quotevoice/pkg/voiceprint"
)

// Overrides replaces backends. Nil fields are built from the config.
type Overrides struct {
	Quotes      quote.Store
	Embedder    embed.Embedder
	Generator   llm.Generator
	Voiceprint  voiceprint.Model
	Files       storage.FileStore
	KV          kv.Store
	Transcriber voice.Transcriber
	Synthesizer voice.Synthesizer
}

// App is the component container for one command invocation.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	mu      sync.Mutex
	ov      Overrides
	closers []func() error

	quotes      quote.Store
	neo4j       *quote.Neo4j
	embedder    embed.Embedder
	generator   llm.Generator
	engine      *rag.Engine
	files       storage.FileStore
	kv          kv.Store
	model       voiceprint.Model
	matcher     *speaker.Matcher
	prefs       voice.Preferences
	transcriber voice.Transcriber
	synthesizer voice.Synthesizer
}

// New creates an App. logger may be nil.
func New(cfg *config.Config, logger *slog.Logger, ov Overrides) *App {
	if logger == nil {
		logger = slog.Default()
	}
	return &App{Config: cfg, Logger: logger, ov: ov}
}

// Close releases every backend opened so far, last opened first.
func (a *App) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) onClose(fn func() error) { a.closers = append(a.closers, fn) }

// Quotes returns the quote store.
func (a *App) Quotes(ctx context.Context) (quote.Store, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.quotesLocked(ctx)
}

func (a *App) quotesLocked(ctx context.Context) (quote.Store, error) {
	if a.quotes != nil {
		return a.quotes, nil
	}
	if a.ov.Quotes != nil {
		a.quotes = a.ov.Quotes
		return a.quotes, nil
	}
	c := a.Config
	switch c.Quotes.Backend {
	case "yaml":
		f, err := os.Open(c.Quotes.File)
		if err != nil {
			return nil, fmt.Errorf("open quotes: %w", err)
		}
		defer f.Close()
		m, err := quote.LoadYAML(f)
		if err != nil {
			return nil, err
		}
		a.quotes = m
	default:
		store, driver, err := quote.Dial(c.Neo4j.URI, c.Neo4j.User, c.Neo4j.Password, c.Neo4j.Database, quote.Neo4jOptions{
			SearchIndex: c.Neo4j.SearchIndex,
			Timeout:     c.Neo4j.Timeout,
			Logger:      a.Logger.With("component", "neo4j"),
		})
		if err != nil {
			return nil, err
		}
		a.onClose(func() error { return driver.Close(context.WithoutCancel(ctx)) })
		a.quotes, a.neo4j = store, store
	}
	return a.quotes, nil
}

// Neo4j returns the graph store, or nil when quotes come from elsewhere.
func (a *App) Neo4j(ctx context.Context) (*quote.Neo4j, error) {
	if _, err := a.Quotes(ctx); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.neo4j, nil
}

// Embedder returns the cached text embedder.
func (a *App) Embedder() (embed.Embedder, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.embedderLocked()
}

func (a *App) embedderLocked() (embed.Embedder, error) {
	if a.embedder != nil {
		return a.embedder, nil
	}
	if a.ov.Embedder != nil {
		a.embedder = a.ov.Embedder
		return a.embedder, nil
	}
	c := a.Config.Embedding
	var opts []embed.Option
	if c.Timeout > 0 {
		opts = append(opts, embed.WithTimeout(c.Timeout))
	}
	if c.Model != "" {
		opts = append(opts, embed.WithModel(c.Model))
	}
	if c.Dimension > 0 {
		opts = append(opts, embed.WithDimension(c.Dimension))
	}
	if c.BaseURL != "" {
		opts = append(opts, embed.WithBaseURL(c.BaseURL))
	}

	var inner embed.Embedder
	switch c.Provider {
	case "openai":
		if c.APIKey == "" {
			return nil, errors.New("embedding.api_key (or OPENAI_API_KEY) is required for openai")
		}
		inner = embed.NewOpenAI(c.APIKey, opts...)
	default:
		o, err := embed.NewOllama(opts...)
		if err != nil {
			return nil, err
		}
		inner = o
	}
	a.embedder = embed.NewCached(inner, c.CacheSize)
	return a.embedder, nil
}

// Generator returns the LLM client.
func (a *App) Generator(ctx context.Context) (llm.Generator, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.generatorLocked(ctx)
}

func (a *App) generatorLocked(ctx context.Context) (llm.Generator, error) {
	if a.generator != nil {
		return a.generator, nil
	}
	if a.ov.Generator != nil {
		a.generator = a.ov.Generator
		return a.generator, nil
	}
	c := a.Config.LLM
	needKey := func() error {
		if c.APIKey == "" {
			return fmt.Errorf("llm.api_key is required for %s", c.Provider)
		}
		return nil
	}
	switch c.Provider {
	case "openai":
		if err := needKey(); err != nil {
			return nil, err
		}
		a.generator = llm.NewOpenAI(c.APIKey, c.BaseURL, c.Model, c.Timeout)
	case "anthropic":
		if err := needKey(); err != nil {
			return nil, err
		}
		a.generator = llm.NewAnthropic(c.APIKey, c.BaseURL, c.Model, c.Timeout)
	case "gemini":
		if err := needKey(); err != nil {
			return nil, err
		}
		g, err := llm.NewGemini(ctx, c.APIKey, c.Model, c.Timeout)
		if err != nil {
			return nil, err
		}
		a.generator = g
	default:
		o, err := llm.NewOllama(c.BaseURL, c.Model, c.Timeout)
		if err != nil {
			return nil, err
		}
		a.generator = o
	}
	return a.generator, nil
}

// Engine returns the RAG engine.
func (a *App) Engine(ctx context.Context) (*rag.Engine, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.engine != nil {
		return a.engine, nil
	}
	store, err := a.quotesLocked(ctx)
	if err != nil {
		return nil, err
	}
	emb, err := a.embedderLocked()
	if err != nil {
		return nil, err
	}
	gen, err := a.generatorLocked(ctx)
	if err != nil {
		return nil, err
	}
	c := a.Config
	logger := a.Logger.With("component", "rag")
	a.engine = &rag.Engine{
		Retriever: &rag.Retriever{
			Embedder: emb,
			Source:   store,
			PoolSize: c.RAG.PoolSize,
			Logger:   logger,
		},
		Composer: rag.NewComposer(gen,
			rag.WithFloor(c.RAG.Floor),
			rag.WithParams(llm.Params{MaxTokens: c.LLM.MaxTokens, Temperature: c.LLM.Temperature}),
			rag.WithLogger(logger),
		),
		TopK:   c.RAG.TopK,
		Logger: logger,
	}
	return a.engine, nil
}

// Files returns the object store for whole-file state.
func (a *App) Files() (storage.FileStore, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.filesLocked()
}

func (a *App) filesLocked() (storage.FileStore, error) {
	if a.files != nil {
		return a.files, nil
	}
	if a.ov.Files != nil {
		a.files = a.ov.Files
		return a.files, nil
	}
	c := a.Config.Storage
	switch c.Backend {
	case "s3":
		a.files = storage.NewS3(newS3Client(c.S3), c.S3.Bucket, c.S3.Prefix)
	default:
		dir, err := a.dataPath(c.Dir, "")
		if err != nil {
			return nil, err
		}
		l, err := storage.NewLocal(dir)
		if err != nil {
			return nil, err
		}
		a.files = l
	}
	return a.files, nil
}

func newS3Client(c config.S3Config) *s3.Client {
	opts := s3.Options{
		Region:       c.Region,
		UsePathStyle: c.PathStyle,
	}
	if c.Endpoint != "" {
		opts.BaseEndpoint = aws.String(c.Endpoint)
	}
	if c.AccessKey != "" {
		creds := aws.Credentials{AccessKeyID: c.AccessKey, SecretAccessKey: c.SecretKey, Source: "quotevoice config"}
		opts.Credentials = aws.NewCredentialsCache(aws.CredentialsProviderFunc(
			func(context.Context) (aws.Credentials, error) { return creds, nil },
		))
	}
	return s3.New(opts)
}

// dataPath returns dir, or name under the per-user data directory.
func (a *App) dataPath(dir, name string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	p, err := cli.NewPaths(config.AppName)
	if err != nil {
		return "", err
	}
	if err := p.EnsureDataDir(); err != nil {
		return "", err
	}
	if name == "" {
		return p.DataDir(), nil
	}
	return p.DataPath(name), nil
}

// KV returns the key-value store.
func (a *App) KV() (kv.Store, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.kvLocked()
}

func (a *App) kvLocked() (kv.Store, error) {
	if a.kv != nil {
		return a.kv, nil
	}
	if a.ov.KV != nil {
		a.kv = a.ov.KV
		return a.kv, nil
	}
	c := a.Config.KV
	opts := kv.BadgerOptions{InMemory: c.InMemory, Logger: a.Logger}
	if !c.InMemory {
		dir, err := a.dataPath(c.Dir, "kv")
		if err != nil {
			return nil, err
		}
		opts.Dir = dir
	}
	b, err := kv.NewBadger(opts)
	if err != nil {
		return nil, err
	}
	a.onClose(b.Close)
	a.kv = b
	return a.kv, nil
}

// Voiceprint returns the speaker embedding extractor.
func (a *App) Voiceprint() voiceprint.Model {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.voiceprintLocked()
}

func (a *App) voiceprintLocked() voiceprint.Model {
	if a.model != nil {
		return a.model
	}
	if a.ov.Voiceprint != nil {
		a.model = a.ov.Voiceprint
		return a.model
	}
	c := a.Config.Speaker
	r := voiceprint.NewRemote(c.EmbedURL,
		voiceprint.WithDimension(c.Dimension),
		voiceprint.WithMinDuration(c.MinDuration),
		voiceprint.WithLogger(a.Logger.With("component", "voiceprint")),
	)
	a.onClose(r.Close)
	a.model = r
	return a.model
}

// Matcher returns the speaker matcher over the configured profile store.
func (a *App) Matcher(ctx context.Context) (*speaker.Matcher, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.matcher != nil {
		return a.matcher, nil
	}
	var store speaker.Store
	switch a.Config.Speaker.Store {
	case "kv":
		s, err := a.kvLocked()
		if err != nil {
			return nil, err
		}
		store = speaker.NewKVStore(s)
	default:
		fs, err := a.filesLocked()
		if err != nil {
			return nil, err
		}
		t, err := speaker.OpenTable(ctx, fs, a.Config.Speaker.Table)
		if err != nil {
			return nil, err
		}
		store = t
	}
	a.matcher = speaker.NewMatcher(a.voiceprintLocked(), store,
		speaker.WithLogger(a.Logger.With("component", "speaker")))
	return a.matcher, nil
}

// Preferences returns the per-speaker voice preferences.
func (a *App) Preferences() (voice.Preferences, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.prefsLocked()
}

func (a *App) prefsLocked() (voice.Preferences, error) {
	if a.prefs != nil {
		return a.prefs, nil
	}
	s, err := a.kvLocked()
	if err != nil {
		return nil, err
	}
	a.prefs = voice.NewKVPreferences(s)
	return a.prefs, nil
}

// Transcriber returns the speech recognizer.
func (a *App) Transcriber() (voice.Transcriber, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.transcriberLocked()
}

func (a *App) transcriberLocked() (voice.Transcriber, error) {
	if a.transcriber != nil {
		return a.transcriber, nil
	}
	if a.ov.Transcriber != nil {
		a.transcriber = a.ov.Transcriber
		return a.transcriber, nil
	}
	c := a.Config.Voice
	if c.APIKey == "" {
		return nil, errors.New("voice.api_key (or OPENAI_API_KEY) is required for transcription")
	}
	t := voice.NewOpenAITranscriber(c.APIKey, c.BaseURL)
	t.Model = c.TranscribeModel
	t.Language = c.Language
	t.Timeout = c.Timeout
	a.transcriber = t
	return a.transcriber, nil
}

// Synthesizer returns the text-to-speech client.
func (a *App) Synthesizer() (voice.Synthesizer, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.synthesizerLocked()
}

func (a *App) synthesizerLocked() (voice.Synthesizer, error) {
	if a.synthesizer != nil {
		return a.synthesizer, nil
	}
	if a.ov.Synthesizer != nil {
		a.synthesizer = a.ov.Synthesizer
		return a.synthesizer, nil
	}
	c := a.Config.Voice
	if c.APIKey == "" {
		return nil, errors.New("voice.api_key (or OPENAI_API_KEY) is required for speech synthesis")
	}
	s := voice.NewOpenAISynthesizer(c.APIKey, c.BaseURL)
	s.Model = c.SpeechModel
	s.Timeout = c.Timeout
	a.synthesizer = s
	return a.synthesizer, nil
}

// Pipeline returns the spoken query pipeline.
func (a *App) Pipeline(ctx context.Context) (*voice.Pipeline, error) {
	engine, err := a.Engine(ctx)
	if err != nil {
		return nil, err
	}
	matcher, err := a.Matcher(ctx)
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	prefs, err := a.prefsLocked()
	if err != nil {
		return nil, err
	}
	tr, err := a.transcriberLocked()
	if err != nil {
		return nil, err
	}
	syn, err := a.synthesizerLocked()
	if err != nil {
		return nil, err
	}
	return &voice.Pipeline{
		Transcriber: tr,
		Speakers:    matcher,
		Preferences: prefs,
		Answerer:    engine,
		Synthesizer: syn,
		Greeter:     engine.Composer,
		Threshold:   a.Config.Speaker.Threshold,
		Logger:      a.Logger.With("component", "voice"),
	}, nil
}

// Greeter returns a greeter that needs no language model.
func (a *App) Greeter() voice.Greeter {
	return rag.NewComposer(nil, rag.WithLogger(a.Logger.With("component", "rag")))
}

// Registrar returns a pipeline for speaker registration only: it can
// register, unregister and greet speakers but not answer queries.
func (a *App) Registrar(ctx context.Context) (*voice.Pipeline, error) {
	matcher, err := a.Matcher(ctx)
	if err != nil {
		return nil, err
	}
	prefs, err := a.Preferences()
	if err != nil {
		return nil, err
	}
	return &voice.Pipeline{
		Speakers:    matcher,
		Preferences: prefs,
		Greeter:     a.Greeter(),
		Threshold:   a.Config.Speaker.Threshold,
		Logger:      a.Logger.With("component", "voice"),
	}, nil
}
