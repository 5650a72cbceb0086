package infra

import (
	"os"
	"strconv"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv           string
	Host             string
	Port             string
	OpenAIAPIKey     string
	OpenAIBaseURL    string
	OpenAIModel      string
	DeepAIAPIKey     string
	DeepAIBaseURL    string
	GeminiAPIKey     string
	GeminiBaseURL    string
	ProviderTimeout  time.Duration
	RequestInterval  time.Duration
	RetryDelay       time.Duration
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults
// where needed. Provider API keys are optional; a model whose key is missing
// simply fails at generation time.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "development"),
		Host:             getEnv("HOST", "127.0.0.1"),
		Port:             getEnv("PORT", "8321"),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:    getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel:      getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		DeepAIAPIKey:     os.Getenv("DEEPAI_API_KEY"),
		DeepAIBaseURL:    getEnv("DEEPAI_BASE_URL", "https://api.deepai.org/api"),
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		GeminiBaseURL:    getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		ProviderTimeout:  time.Second * time.Duration(getEnvInt("PROVIDER_TIMEOUT_SECONDS", 180)),
		RequestInterval:  time.Millisecond * time.Duration(getEnvInt("REQUEST_INTERVAL_MS", 0)),
		RetryDelay:       time.Second * time.Duration(getEnvInt("RETRY_DELAY_SECONDS", 5)),
		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 60)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
