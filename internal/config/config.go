// Package config provides configuration loading and structs for atrbot.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrMissingCredential is returned by ValidateCredentials when a required secret is unset.
var ErrMissingCredential = errors.New("missing credential")

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Data      DataConfig      `yaml:"data"`
	Index     IndexConfig     `yaml:"index"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	LLM       LLMConfig       `yaml:"llm"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Bot       BotConfig       `yaml:"bot"`
	Server    ServerConfig    `yaml:"server"`
}

// DataConfig points at the PDF corpus.
type DataConfig struct {
	Directory string `yaml:"directory"`
}

// IndexConfig holds where the built index lives and which vector backend it uses.
type IndexConfig struct {
	Path string `yaml:"path"`
	Type string `yaml:"type"` // "memory" or "chromem"
}

// ChunkingConfig holds splitter settings. Sizes are in characters.
// A nil Overlap means unset; an explicit 0 disables overlap.
type ChunkingConfig struct {
	Size       int      `yaml:"size"`
	Overlap    *int     `yaml:"overlap"`
	Separators []string `yaml:"separators"`
}

// OverlapSize returns the configured overlap, 0 when unset.
func (c ChunkingConfig) OverlapSize() int {
	if c.Overlap == nil {
		return 0
	}
	return *c.Overlap
}

// EmbeddingConfig holds embedder settings. The same model must be used to
// build and to query an index.
type EmbeddingConfig struct {
	Provider      string `yaml:"provider"` // "onnx", "openai", "ollama" or "hashing"
	Model         string `yaml:"model"`
	ModelPath     string `yaml:"model_path"`
	TokenizerPath string `yaml:"tokenizer_path"` // tokenizer.json exported with the onnx model
	Dimensions    int    `yaml:"dimensions"`
	MaxTokens     int    `yaml:"max_tokens"`
	CacheSize     int    `yaml:"cache_size"`
	BaseURL       string `yaml:"base_url"`
	APIKey        string `yaml:"-"`
}

// RetrievalConfig holds query-time retrieval settings.
type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
	// MinScore is the similarity a best hit must exceed before the model is
	// called at all; below it the generator answers with the refusal sentence.
	MinScore float64 `yaml:"min_score"`
}

// LLMConfig holds the remote language-model provider settings.
type LLMConfig struct {
	Provider          string        `yaml:"provider"` // "groq", "openai" or "gemini"
	Model             string        `yaml:"model"`
	BaseURL           string        `yaml:"base_url"`
	APIKey            string        `yaml:"-"`
	Temperature       float64       `yaml:"temperature"`
	MaxTokens         int           `yaml:"max_tokens"`
	Timeout           time.Duration `yaml:"timeout"`
	MaxAttempts       int           `yaml:"max_attempts"`
	RetryDelay        time.Duration `yaml:"retry_delay"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
}

// TelegramConfig holds the messaging transport settings.
type TelegramConfig struct {
	Token        string        `yaml:"-"`
	APIURL       string        `yaml:"api_url"`
	PollTimeout  int           `yaml:"poll_timeout"` // long-poll seconds
	PollInterval time.Duration `yaml:"poll_interval"`
	MaxAttempts  int           `yaml:"max_attempts"`
	RetryDelay   time.Duration `yaml:"retry_delay"`
	MaxRetryWait time.Duration `yaml:"max_retry_wait"`
}

// BotConfig holds conversation behavior.
type BotConfig struct {
	EndKeywords        []string      `yaml:"end_keywords"`
	ConversationsDir   string        `yaml:"conversations_dir"`
	SessionIdleTimeout time.Duration `yaml:"session_idle_timeout"`
	GreetingMessage    string        `yaml:"greeting_message"`
	GoodbyeMessage     string        `yaml:"goodbye_message"`
	FallbackMessage    string        `yaml:"fallback_message"`
}

// ServerConfig holds the optional admin HTTP API settings.
type ServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// Load reads and parses the config file at path, applies environment
// overrides and defaults, and expands paths.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyEnv(&cfg)
	ApplyDefaults(&cfg)
	cfg.expandPaths(filepath.Dir(path))

	return &cfg, nil
}

// Default returns a config built from defaults and the environment only.
// Relative paths are resolved against the working directory.
func Default() *Config {
	var cfg Config
	ApplyEnv(&cfg)
	ApplyDefaults(&cfg)
	if cwd, err := os.Getwd(); err == nil {
		cfg.expandPaths(cwd)
	}
	return &cfg
}

// Save writes the config to path. Secrets are never written.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate checks that numeric and enum settings are usable.
func (c *Config) Validate() error {
	if c.Chunking.Size <= 0 {
		return fmt.Errorf("chunking.size must be positive, got %d", c.Chunking.Size)
	}
	if overlap := c.Chunking.OverlapSize(); overlap < 0 || overlap >= c.Chunking.Size {
		return fmt.Errorf("chunking.overlap must be in [0, size), got %d", overlap)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be positive, got %d", c.Retrieval.TopK)
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions must be positive, got %d", c.Embedding.Dimensions)
	}
	switch c.Index.Type {
	case "memory", "chromem":
	default:
		return fmt.Errorf("unknown index.type %q (supported: memory, chromem)", c.Index.Type)
	}
	switch c.Embedding.Provider {
	case "onnx", "openai", "ollama", "hashing":
	default:
		return fmt.Errorf("unknown embedding.provider %q (supported: onnx, openai, ollama, hashing)", c.Embedding.Provider)
	}
	switch c.LLM.Provider {
	case "groq", "openai", "gemini":
	default:
		return fmt.Errorf("unknown llm.provider %q (supported: groq, openai, gemini)", c.LLM.Provider)
	}
	return nil
}

// Requirement selects which credentials a command needs.
type Requirement int

const (
	// NeedLLM requires the language-model provider key.
	NeedLLM Requirement = 1 << iota
	// NeedTelegram requires the messaging transport token.
	NeedTelegram
	// NeedEmbedding requires the embedding provider key (remote embedders only).
	NeedEmbedding
)

// ValidateCredentials fails fast when a credential required by need is unset.
func (c *Config) ValidateCredentials(need Requirement) error {
	if need&NeedTelegram != 0 && c.Telegram.Token == "" {
		return fmt.Errorf("%w: TELEGRAM_TOKEN is not set", ErrMissingCredential)
	}
	if need&NeedLLM != 0 && c.LLM.APIKey == "" {
		return fmt.Errorf("%w: %s is not set", ErrMissingCredential, llmKeyEnv(c.LLM.Provider))
	}
	if need&NeedEmbedding != 0 && c.Embedding.Provider == "openai" && c.Embedding.APIKey == "" {
		return fmt.Errorf("%w: OPENAI_API_KEY is not set for the openai embedder", ErrMissingCredential)
	}
	return nil
}

func (c *Config) expandPaths(baseDir string) {
	c.Data.Directory = expandPath(c.Data.Directory, baseDir)
	c.Index.Path = expandPath(c.Index.Path, baseDir)
	c.Bot.ConversationsDir = expandPath(c.Bot.ConversationsDir, baseDir)
	if c.Embedding.ModelPath != "" {
		c.Embedding.ModelPath = expandPath(c.Embedding.ModelPath, baseDir)
	}
	if c.Embedding.TokenizerPath != "" {
		c.Embedding.TokenizerPath = expandPath(c.Embedding.TokenizerPath, baseDir)
	}
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to baseDir;
// "~/" paths are relative to the home directory; other relative paths are relative to baseDir.
func expandPath(path string, baseDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
		return path
	}
	return filepath.Join(baseDir, path)
}
