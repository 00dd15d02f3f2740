package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"NEVERNOOD_ADDR", "MODEL_PROVIDER", "MODEL_NAME", "SESSION_MODE", "CHAT_MAX_STEPS", "CHAT_TEMPERATURE", "TOOL_CACHE_TTL"} {
		t.Setenv(k, "")
	}
	cfg := Load()

	if cfg.Addr != ":8080" {
		t.Errorf("Addr = %q", cfg.Addr)
	}
	if cfg.Provider != ProviderOpenAI || cfg.ModelName() != "gpt-5" {
		t.Errorf("provider/model = %q/%q", cfg.Provider, cfg.ModelName())
	}
	if cfg.SessionMode != SessionModeStream {
		t.Errorf("SessionMode = %q", cfg.SessionMode)
	}
	if cfg.MaxSteps != 5 || cfg.Temperature != 0.7 {
		t.Errorf("MaxSteps/Temperature = %d/%v", cfg.MaxSteps, cfg.Temperature)
	}
	if cfg.ToolCacheTTL != 0 {
		t.Errorf("ToolCacheTTL = %v", cfg.ToolCacheTTL)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MODEL_PROVIDER", "gemini")
	t.Setenv("SESSION_MODE", "buffered")
	t.Setenv("CHAT_MAX_STEPS", "3")
	t.Setenv("TOOL_CACHE_TTL", "30s")

	cfg := Load()
	if cfg.ModelName() != "gemini-2.5-flash" {
		t.Errorf("ModelName = %q", cfg.ModelName())
	}
	if cfg.SessionMode != SessionModeBuffered || cfg.MaxSteps != 3 || cfg.ToolCacheTTL != 30*time.Second {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestInvalidNumbersFallBack(t *testing.T) {
	t.Setenv("CHAT_MAX_STEPS", "many")
	t.Setenv("CHAT_TEMPERATURE", "warm")
	cfg := Load()
	if cfg.MaxSteps != 5 || cfg.Temperature != 0.7 {
		t.Errorf("MaxSteps/Temperature = %d/%v, want defaults", cfg.MaxSteps, cfg.Temperature)
	}
}

func TestValidate(t *testing.T) {
	valid := Config{Provider: ProviderOpenAI, OpenAIKey: "k", SessionMode: SessionModeStream, MaxSteps: 5, MessagesPath: "/messages"}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing key", func(c *Config) { c.OpenAIKey = "" }, "OPENAI_API_KEY"},
		{"gemini key", func(c *Config) { c.Provider = ProviderGemini }, "GEMINI_API_KEY"},
		{"provider", func(c *Config) { c.Provider = "claude" }, "unknown model provider"},
		{"mode", func(c *Config) { c.SessionMode = "poll" }, "unknown session mode"},
		{"steps", func(c *Config) { c.MaxSteps = 0 }, "max steps"},
		{"path", func(c *Config) { c.MessagesPath = "messages" }, "messages path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.want)
			}
		})
	}
}
