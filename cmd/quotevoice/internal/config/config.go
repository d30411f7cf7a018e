// Package config loads the quotevoice configuration.
//
// Configuration is a single YAML file, by default
//
//	~/Library/Application Support/quotevoice/config.yaml   (macOS)
//	~/.config/quotevoice/config.yaml                       (Linux)
//	%AppData%/quotevoice/config.yaml                       (Windows)
//
// A missing file means all defaults. Secrets and endpoints can be set
// from the environment, which wins over the file:
//
//	NEO4J_URI NEO4J_USER NEO4J_PASSWORD NEO4J_DATABASE OLLAMA_HOST
//	OPENAI_API_KEY ANTHROPIC_API_KEY GEMINI_API_KEY SPEAKER_EMBED_URL
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/haivivi/quotevoice/pkg/cli"
)

// AppName names the config and data directories.
const AppName = "quotevoice"

// Config is the root configuration.
type Config struct {
	LogLevel string `yaml:"log_level"`

	Quotes    QuotesConfig    `yaml:"quotes"`
	Neo4j     Neo4jConfig     `yaml:"neo4j"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	RAG       RAGConfig       `yaml:"rag"`
	Speaker   SpeakerConfig   `yaml:"speaker"`
	Storage   StorageConfig   `yaml:"storage"`
	KV        KVConfig        `yaml:"kv"`
	Voice     VoiceConfig     `yaml:"voice"`

	// path is where the config was loaded from.
	path string
}

// QuotesConfig selects the quote source.
type QuotesConfig struct {
	// Backend is "neo4j" or "yaml".
	Backend string `yaml:"backend"`
	// File is the seed file for the yaml backend.
	File string `yaml:"file,omitempty"`
}

// Neo4jConfig is the graph store connection.
type Neo4jConfig struct {
	URI         string        `yaml:"uri"`
	User        string        `yaml:"user"`
	Password    string        `yaml:"password,omitempty"`
	Database    string        `yaml:"database,omitempty"`
	SearchIndex string        `yaml:"search_index"`
	Timeout     time.Duration `yaml:"timeout"`
}

// EmbeddingConfig selects the text embedding provider.
type EmbeddingConfig struct {
	// Provider is "ollama" or "openai".
	Provider  string        `yaml:"provider"`
	Model     string        `yaml:"model"`
	Dimension int           `yaml:"dimension,omitempty"`
	BaseURL   string        `yaml:"base_url,omitempty"`
	APIKey    string        `yaml:"api_key,omitempty"`
	CacheSize int           `yaml:"cache_size"`
	Timeout   time.Duration `yaml:"timeout"`
}

// LLMConfig selects the generation provider.
type LLMConfig struct {
	// Provider is "ollama", "openai", "anthropic" or "gemini".
	Provider    string        `yaml:"provider"`
	Model       string        `yaml:"model"`
	BaseURL     string        `yaml:"base_url,omitempty"`
	APIKey      string        `yaml:"api_key,omitempty"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
}

// RAGConfig tunes retrieval.
type RAGConfig struct {
	TopK     int     `yaml:"top_k"`
	PoolSize int     `yaml:"pool_size"`
	Floor    float64 `yaml:"floor"`
}

// SpeakerConfig configures speaker identification.
type SpeakerConfig struct {
	EmbedURL    string        `yaml:"embed_url"`
	Dimension   int           `yaml:"dimension,omitempty"`
	Threshold   float64       `yaml:"threshold"`
	MinDuration time.Duration `yaml:"min_duration"`
	// Store is "table" (one JSON object in Storage) or "kv".
	Store string `yaml:"store"`
	// Table is the object name of the table store.
	Table string `yaml:"table"`
}

// StorageConfig is where whole-object state such as the speaker table
// lives.
type StorageConfig struct {
	// Backend is "local" or "s3".
	Backend string   `yaml:"backend"`
	Dir     string   `yaml:"dir,omitempty"`
	S3      S3Config `yaml:"s3,omitempty"`
}

// S3Config is an S3-compatible bucket.
type S3Config struct {
	Bucket    string `yaml:"bucket,omitempty"`
	Prefix    string `yaml:"prefix,omitempty"`
	Region    string `yaml:"region,omitempty"`
	Endpoint  string `yaml:"endpoint,omitempty"`
	AccessKey string `yaml:"access_key,omitempty"`
	SecretKey string `yaml:"secret_key,omitempty"`
	PathStyle bool   `yaml:"path_style,omitempty"`
}

// KVConfig is the BadgerDB store used for speaker profiles and voice
// preferences.
type KVConfig struct {
	Dir      string `yaml:"dir,omitempty"`
	InMemory bool   `yaml:"in_memory,omitempty"`
}

// VoiceConfig configures speech recognition and synthesis.
type VoiceConfig struct {
	APIKey          string        `yaml:"api_key,omitempty"`
	BaseURL         string        `yaml:"base_url,omitempty"`
	TranscribeModel string        `yaml:"transcribe_model"`
	SpeechModel     string        `yaml:"speech_model"`
	Language        string        `yaml:"language,omitempty"`
	Timeout         time.Duration `yaml:"timeout"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Quotes:   QuotesConfig{Backend: "neo4j"},
		Neo4j: Neo4jConfig{
			URI:         "bolt://localhost:7687",
			User:        "neo4j",
			SearchIndex: "quoteTextIndex",
			Timeout:     10 * time.Second,
		},
		Embedding: EmbeddingConfig{
			Provider:  "ollama",
			Model:     "nomic-embed-text",
			CacheSize: 1024,
			Timeout:   30 * time.Second,
		},
		LLM: LLMConfig{
			Provider:    "ollama",
			Model:       "llama3.2:3b",
			Timeout:     60 * time.Second,
			MaxTokens:   150,
			Temperature: 0.7,
		},
		RAG: RAGConfig{TopK: 3, PoolSize: 500, Floor: 0.3},
		Speaker: SpeakerConfig{
			EmbedURL:    "http://localhost:8001/embed",
			Threshold:   0.7,
			MinDuration: 500 * time.Millisecond,
			Store:       "table",
			Table:       "speaker_embeddings.json",
		},
		Storage: StorageConfig{Backend: "local"},
		Voice: VoiceConfig{
			TranscribeModel: "whisper-1",
			SpeechModel:     "tts-1",
			Timeout:         60 * time.Second,
		},
	}
}

// DefaultPath returns the default config file path.
func DefaultPath() (string, error) {
	p, err := cli.NewPaths(AppName)
	if err != nil {
		return "", fmt.Errorf("cannot determine config directory: %w", err)
	}
	return p.ConfigFile(), nil
}

// Load reads path (DefaultPath when empty) over the defaults and applies
// the environment.
func Load(path string) (*Config, error) {
	return LoadWithEnv(path, os.Getenv)
}

// LoadWithEnv is Load with a custom environment lookup.
func LoadWithEnv(path string, getenv func(string) string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	cfg := Default()
	cfg.path = path

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	cfg.applyEnv(getenv)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	set(&c.Neo4j.URI, "NEO4J_URI")
	set(&c.Neo4j.User, "NEO4J_USER")
	set(&c.Neo4j.Password, "NEO4J_PASSWORD")
	set(&c.Neo4j.Database, "NEO4J_DATABASE")
	set(&c.Speaker.EmbedURL, "SPEAKER_EMBED_URL")

	if v := getenv("OLLAMA_HOST"); v != "" {
		if c.Embedding.Provider == "ollama" && c.Embedding.BaseURL == "" {
			c.Embedding.BaseURL = v
		}
		if c.LLM.Provider == "ollama" && c.LLM.BaseURL == "" {
			c.LLM.BaseURL = v
		}
	}

	openai := getenv("OPENAI_API_KEY")
	if c.Embedding.Provider == "openai" && openai != "" {
		c.Embedding.APIKey = openai
	}
	if openai != "" {
		c.Voice.APIKey = openai
	}
	keys := map[string]string{
		"openai":    openai,
		"anthropic": getenv("ANTHROPIC_API_KEY"),
		"gemini":    getenv("GEMINI_API_KEY"),
	}
	if k := keys[c.LLM.Provider]; k != "" {
		c.LLM.APIKey = k
	}
}

// Validate checks value ranges and provider names.
func (c *Config) Validate() error {
	if !oneOf(c.Quotes.Backend, "neo4j", "yaml") {
		return fmt.Errorf("quotes.backend: unknown backend %q", c.Quotes.Backend)
	}
	if c.Quotes.Backend == "yaml" && c.Quotes.File == "" {
		return errors.New("quotes.file is required for the yaml backend")
	}
	if !oneOf(c.Embedding.Provider, "ollama", "openai") {
		return fmt.Errorf("embedding.provider: unknown provider %q", c.Embedding.Provider)
	}
	if !oneOf(c.LLM.Provider, "ollama", "openai", "anthropic", "gemini") {
		return fmt.Errorf("llm.provider: unknown provider %q", c.LLM.Provider)
	}
	if c.RAG.TopK <= 0 || c.RAG.PoolSize <= 0 {
		return errors.New("rag.top_k and rag.pool_size must be positive")
	}
	if c.RAG.Floor < -1 || c.RAG.Floor > 1 {
		return fmt.Errorf("rag.floor %v is outside [-1, 1]", c.RAG.Floor)
	}
	if c.Speaker.Threshold <= 0 || c.Speaker.Threshold > 1 {
		return fmt.Errorf("speaker.threshold %v is outside (0, 1]", c.Speaker.Threshold)
	}
	if !oneOf(c.Speaker.Store, "table", "kv") {
		return fmt.Errorf("speaker.store: unknown store %q", c.Speaker.Store)
	}
	if !oneOf(c.Storage.Backend, "local", "s3") {
		return fmt.Errorf("storage.backend: unknown backend %q", c.Storage.Backend)
	}
	if c.Storage.Backend == "s3" && c.Storage.S3.Bucket == "" {
		return errors.New("storage.s3.bucket is required for the s3 backend")
	}
	return nil
}

func oneOf(v string, options ...string) bool {
	for _, o := range options {
		if v == o {
			return true
		}
	}
	return false
}

// Path returns the file the config was loaded from.
func (c *Config) Path() string { return c.path }

// Save writes c as YAML, creating the directory.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Redacted returns a copy with secrets masked by mask.
func (c *Config) Redacted(mask func(string) string) *Config {
	out := *c
	out.Neo4j.Password = mask(c.Neo4j.Password)
	out.Embedding.APIKey = mask(c.Embedding.APIKey)
	out.LLM.APIKey = mask(c.LLM.APIKey)
	out.Storage.S3.AccessKey = mask(c.Storage.S3.AccessKey)
	out.Storage.S3.SecretKey = mask(c.Storage.S3.SecretKey)
	out.Voice.APIKey = mask(c.Voice.APIKey)
	return &out
}
