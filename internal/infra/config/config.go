// Package config provides application-wide configuration loaded from env vars.
// All fields have safe defaults so the binary runs locally without any env setup.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// DefaultEnvFile is the dotenv file read before Load when no other is named.
const DefaultEnvFile = ".env"

// Config holds runtime configuration for convo.
type Config struct {
	// LLM
	LLMProvider      string        // LLM_PROVIDER, default: "ollama"
	LLMTimeout       time.Duration // LLM_TIMEOUT, default: 60s
	ChatSystemPrompt string        // CHAT_SYSTEM_PROMPT, default: "" (none)

	OllamaBaseURL   string // OLLAMA_BASE_URL, default: "http://localhost:11434"
	OllamaModel     string // OLLAMA_MODEL, default: "nomic-embed-text" (embed model)
	OllamaChatModel string // OLLAMA_CHAT_MODEL, default: "llama3.2:3b"

	GeminiAPIKey     string // GOOGLE_API_KEY
	GeminiBaseURL    string // GEMINI_BASE_URL
	GeminiModel      string // GEMINI_MODEL, default: "gemini-2.5-flash"
	GeminiEmbedModel string // GEMINI_EMBED_MODEL, default: "embedding-001"

	AnthropicAPIKey string // ANTHROPIC_API_KEY
	AnthropicModel  string // ANTHROPIC_MODEL, default: "claude-3-5-haiku-latest"

	// Storage
	DBPath string // CONVO_DB_PATH, default: "" (no persistence)

	// HTTP API
	HTTPHost  string // HTTP_HOST, default: "0.0.0.0"
	HTTPPort  int    // HTTP_PORT, default: 8080
	JWTSecret string // JWT_SECRET, default: "" (auth disabled)

	// Event fan-out
	NATSURL           string // NATS_URL, default: "" (bridge disabled)
	NATSSubjectPrefix string // NATS_SUBJECT_PREFIX, default: "convo"

	// Logging
	LogLevel  string // LOG_LEVEL, default: "info"
	LogFormat string // LOG_FORMAT, default: "text"
}

const (
	envKeyLLMProvider      = "LLM_PROVIDER"
	envKeyLLMTimeout       = "LLM_TIMEOUT"
	envKeyChatSystemPrompt = "CHAT_SYSTEM_PROMPT"
	envKeyOllamaBaseURL    = "OLLAMA_BASE_URL"
	envKeyOllamaModel      = "OLLAMA_MODEL"
	envKeyOllamaChatModel  = "OLLAMA_CHAT_MODEL"
	envKeyGeminiAPIKey     = "GOOGLE_API_KEY"
	envKeyGeminiBaseURL    = "GEMINI_BASE_URL"
	envKeyGeminiModel      = "GEMINI_MODEL"
	envKeyGeminiEmbedModel = "GEMINI_EMBED_MODEL"
	envKeyAnthropicAPIKey  = "ANTHROPIC_API_KEY"
	envKeyAnthropicModel   = "ANTHROPIC_MODEL"
	envKeyDBPath           = "CONVO_DB_PATH"
	envKeyHTTPHost         = "HTTP_HOST"
	envKeyHTTPPort         = "HTTP_PORT"
	envKeyJWTSecret        = "JWT_SECRET"
	envKeyNATSURL          = "NATS_URL"
	envKeyNATSPrefix       = "NATS_SUBJECT_PREFIX"
	envKeyLogLevel         = "LOG_LEVEL"
	envKeyLogFormat        = "LOG_FORMAT"
)

// Load reads configuration from environment variables, applying defaults for missing values.
func Load() Config {
	return Config{
		LLMProvider:      envOr(envKeyLLMProvider, "ollama"),
		LLMTimeout:       envDuration(envKeyLLMTimeout, 60*time.Second),
		ChatSystemPrompt: os.Getenv(envKeyChatSystemPrompt),

		OllamaBaseURL:   envOr(envKeyOllamaBaseURL, "http://localhost:11434"),
		OllamaModel:     envOr(envKeyOllamaModel, "nomic-embed-text"),
		OllamaChatModel: envOr(envKeyOllamaChatModel, "llama3.2:3b"),

		GeminiAPIKey:     os.Getenv(envKeyGeminiAPIKey),
		GeminiBaseURL:    envOr(envKeyGeminiBaseURL, "https://generativelanguage.googleapis.com"),
		GeminiModel:      envOr(envKeyGeminiModel, "gemini-2.5-flash"),
		GeminiEmbedModel: envOr(envKeyGeminiEmbedModel, "embedding-001"),

		AnthropicAPIKey: os.Getenv(envKeyAnthropicAPIKey),
		AnthropicModel:  envOr(envKeyAnthropicModel, "claude-3-5-haiku-latest"),

		DBPath: os.Getenv(envKeyDBPath),

		HTTPHost:  envOr(envKeyHTTPHost, "0.0.0.0"),
		HTTPPort:  envInt(envKeyHTTPPort, 8080),
		JWTSecret: os.Getenv(envKeyJWTSecret),

		NATSURL:           os.Getenv(envKeyNATSURL),
		NATSSubjectPrefix: envOr(envKeyNATSPrefix, "convo"),

		LogLevel:  envOr(envKeyLogLevel, "info"),
		LogFormat: envOr(envKeyLogFormat, "text"),
	}
}

// LoadEnvFile copies KEY=VALUE pairs from a dotenv file into the process
// environment. Variables that are already set, even to "", keep their value.
// A missing file is not an error; loaded reports whether the file was read.
func LoadEnvFile(path string) (loaded bool, err error) {
	if path == "" {
		return false, nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("config: env file %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return false, fmt.Errorf("config: env file %s: %w", path, err)
	}
	return true, nil
}

// envOr returns the value of the environment variable key, or fallback if not set.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envInt parses key as an int; unparsable values fall back silently.
func envInt(key string, fallback int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return fallback
}

// envDuration accepts Go durations ("90s") or bare seconds ("90").
func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
