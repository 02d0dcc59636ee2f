package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads variables from the .env file at path if it exists.
// Variables already present in the environment are not overridden.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("error loading %s: %w", path, err)
	}
	return nil
}

// ApplyEnv copies secrets and the documented overrides from the environment into cfg.
func ApplyEnv(cfg *Config) {
	cfg.Telegram.Token = getEnv("TELEGRAM_TOKEN", cfg.Telegram.Token)
	if provider := getEnv("LLM_PROVIDER", ""); provider != "" {
		cfg.LLM.Provider = provider
	}
	cfg.LLM.APIKey = getEnv(llmKeyEnv(cfg.LLM.Provider), cfg.LLM.APIKey)
	if cfg.Embedding.Provider == "openai" {
		cfg.Embedding.APIKey = getEnv("OPENAI_API_KEY", cfg.Embedding.APIKey)
	}
	cfg.Embedding.Model = getEnv("EMBEDDING_MODEL", cfg.Embedding.Model)
	cfg.Chunking.Size = getEnvInt("CHUNK_SIZE", cfg.Chunking.Size)
	if overlap, ok := lookupEnvInt("CHUNK_OVERLAP"); ok {
		cfg.Chunking.Overlap = &overlap
	}
	cfg.Retrieval.TopK = getEnvInt("TOP_K", cfg.Retrieval.TopK)
	if v := getEnv("ATRBOT_DEBUG", ""); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Debug = b
		}
	}
}

// llmKeyEnv names the environment variable holding the key for provider.
// The zero provider is groq, the default.
func llmKeyEnv(provider string) string {
	switch strings.ToLower(provider) {
	case "openai":
		return "OPENAI_API_KEY"
	case "gemini":
		return "GEMINI_API_KEY"
	default:
		return "GROQ_API_KEY"
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if intValue, ok := lookupEnvInt(key); ok {
		return intValue
	}
	return defaultValue
}

// lookupEnvInt reports whether key holds an integer, so an explicit 0 can
// be told apart from an unset variable.
func lookupEnvInt(key string) (int, bool) {
	value := os.Getenv(key)
	if value == "" {
		return 0, false
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return 0, false
	}
	return intValue, true
}
