// Package config loads server configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Model providers.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Session modes.
const (
	// SessionModeStream holds session connections open and detects real
	// client disconnects.
	SessionModeStream = "stream"
	// SessionModeBuffered collapses the session handshake into one immediate
	// response. The session is closed as soon as it is established.
	SessionModeBuffered = "buffered"
)

// Config holds all application configuration.
type Config struct {
	Addr string

	Provider      string
	Model         string
	OpenAIKey     string
	OpenAIBaseURL string
	GeminiKey     string

	DBPath string

	SessionMode  string
	MessagesPath string

	Temperature  float32
	MaxSteps     int
	ToolCacheTTL time.Duration

	LogLevel  string
	LogFormat string
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	cfg := &Config{
		Addr:          getEnv("NEVERNOOD_ADDR", ":8080"),
		Provider:      getEnv("MODEL_PROVIDER", ProviderOpenAI),
		Model:         getEnv("MODEL_NAME", ""),
		OpenAIKey:     getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),
		GeminiKey:     getEnv("GEMINI_API_KEY", ""),
		DBPath:        getEnv("DB_PATH", "data/nevernood.db"),
		SessionMode:   getEnv("SESSION_MODE", SessionModeStream),
		MessagesPath:  getEnv("MESSAGES_PATH", "/messages"),
		Temperature:   float32(getFloatEnv("CHAT_TEMPERATURE", 0.7)),
		MaxSteps:      getIntEnv("CHAT_MAX_STEPS", 5),
		ToolCacheTTL:  getDurationEnv("TOOL_CACHE_TTL", 0),
		LogLevel:      getEnv("LOG_LEVEL", "debug"),
		LogFormat:     getEnv("LOG_FORMAT", "text"),
	}
	return cfg
}

// ModelName returns the configured model, or the provider's default.
func (c *Config) ModelName() string {
	if c.Model != "" {
		return c.Model
	}
	switch c.Provider {
	case ProviderGemini:
		return "gemini-2.5-flash"
	default:
		return "gpt-5"
	}
}

// Validate reports configuration that cannot be served.
func (c *Config) Validate() error {
	var errs []error
	switch c.Provider {
	case ProviderOpenAI:
		if c.OpenAIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY must be set for the openai provider"))
		}
	case ProviderGemini:
		if c.GeminiKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY must be set for the gemini provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown model provider %q", c.Provider))
	}
	switch c.SessionMode {
	case SessionModeStream, SessionModeBuffered:
	default:
		errs = append(errs, fmt.Errorf("unknown session mode %q", c.SessionMode))
	}
	if c.MaxSteps <= 0 {
		errs = append(errs, fmt.Errorf("max steps must be positive, got %d", c.MaxSteps))
	}
	if c.MessagesPath == "" || c.MessagesPath[0] != '/' {
		errs = append(errs, fmt.Errorf("messages path must start with '/', got %q", c.MessagesPath))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 32); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
