package config

import "time"

// Refusal is the canned answer given when the knowledge base has nothing relevant.
const Refusal = "Lo siento, pero eso se sale de mi base de conocimiento y no tengo cómo responder."

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Data.Directory == "" {
		cfg.Data.Directory = "./data"
	}
	if cfg.Index.Path == "" {
		cfg.Index.Path = "./faiss_index"
	}
	if cfg.Index.Type == "" {
		cfg.Index.Type = "memory"
	}
	if cfg.Chunking.Size == 0 {
		cfg.Chunking.Size = 1000
	}
	if cfg.Chunking.Overlap == nil {
		overlap := 200
		cfg.Chunking.Overlap = &overlap
	}
	if cfg.Chunking.Separators == nil {
		cfg.Chunking.Separators = []string{"\n\n", "\n", " "}
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "onnx"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = defaultEmbeddingModel(cfg.Embedding.Provider)
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = defaultEmbeddingDimensions(cfg.Embedding.Provider)
	}
	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = defaultEmbeddingBaseURL(cfg.Embedding.Provider)
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.Provider == "onnx" && cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = "./models/LaBSE/model.onnx"
	}
	if cfg.Embedding.Provider == "onnx" && cfg.Embedding.TokenizerPath == "" {
		cfg.Embedding.TokenizerPath = "./models/LaBSE/tokenizer.json"
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 4
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "groq"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = defaultLLMModel(cfg.LLM.Provider)
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = defaultLLMBaseURL(cfg.LLM.Provider)
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 1024
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 60 * time.Second
	}
	if cfg.LLM.MaxAttempts == 0 {
		cfg.LLM.MaxAttempts = 3
	}
	if cfg.LLM.RetryDelay == 0 {
		cfg.LLM.RetryDelay = time.Second
	}
	if cfg.LLM.RequestsPerMinute == 0 {
		cfg.LLM.RequestsPerMinute = 30
	}
	if cfg.Telegram.APIURL == "" {
		cfg.Telegram.APIURL = "https://api.telegram.org"
	}
	if cfg.Telegram.PollTimeout == 0 {
		cfg.Telegram.PollTimeout = 100
	}
	if cfg.Telegram.PollInterval == 0 {
		cfg.Telegram.PollInterval = time.Second
	}
	if cfg.Telegram.MaxAttempts == 0 {
		cfg.Telegram.MaxAttempts = 5
	}
	if cfg.Telegram.RetryDelay == 0 {
		cfg.Telegram.RetryDelay = time.Second
	}
	if cfg.Telegram.MaxRetryWait == 0 {
		cfg.Telegram.MaxRetryWait = 30 * time.Second
	}
	if cfg.Bot.EndKeywords == nil {
		cfg.Bot.EndKeywords = []string{"/end", "salir"}
	}
	if cfg.Bot.ConversationsDir == "" {
		cfg.Bot.ConversationsDir = "./conversations"
	}
	if cfg.Bot.SessionIdleTimeout == 0 {
		cfg.Bot.SessionIdleTimeout = 30 * time.Minute
	}
	if cfg.Bot.GreetingMessage == "" {
		cfg.Bot.GreetingMessage = "Hola, soy tu asistente virtual. Pregúntame sobre tu procedimiento médico. Escribe /end o 'salir' para terminar."
	}
	if cfg.Bot.GoodbyeMessage == "" {
		cfg.Bot.GoodbyeMessage = "Adiós. ¡Que tengas un buen día!"
	}
	if cfg.Bot.FallbackMessage == "" {
		cfg.Bot.FallbackMessage = "En este momento no puedo responder. Por favor, inténtalo de nuevo en unos minutos."
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
}

func defaultEmbeddingModel(provider string) string {
	switch provider {
	case "openai":
		return "text-embedding-3-small"
	case "ollama":
		return "nomic-embed-text"
	case "hashing":
		return "hashing-bow-v1"
	default:
		return "sentence-transformers/LaBSE"
	}
}

func defaultEmbeddingDimensions(provider string) int {
	switch provider {
	case "openai":
		return 1536
	case "hashing":
		return 512
	default:
		return 768
	}
}

func defaultEmbeddingBaseURL(provider string) string {
	switch provider {
	case "openai":
		return "https://api.openai.com/v1"
	case "ollama":
		return "http://localhost:11434"
	default:
		return ""
	}
}

func defaultLLMModel(provider string) string {
	switch provider {
	case "openai":
		return "gpt-4o-mini"
	case "gemini":
		return "gemini-2.0-flash"
	default:
		return "llama3-70b-8192"
	}
}

func defaultLLMBaseURL(provider string) string {
	switch provider {
	case "openai":
		return "https://api.openai.com/v1"
	case "gemini":
		return ""
	default:
		return "https://api.groq.com/openai/v1"
	}
}
