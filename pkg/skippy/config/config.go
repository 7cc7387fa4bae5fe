// Package config loads and validates the single Skippy configuration
// document and exposes typed, process-wide-immutable settings.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DiscordConfig holds the Discord channel's settings.
type DiscordConfig struct {
	Token               string `json:"token"`
	GuildID             string `json:"guildId"`
	MessageHistoryLimit int    `json:"messageHistoryLimit"`
	DefaultUser         string `json:"default_user"`
}

// WhatsAppConfig holds the WhatsApp channel's settings.
type WhatsAppConfig struct {
	Enabled     bool   `json:"enabled"`
	SessionPath string `json:"session_path"`
	DefaultUser string `json:"default_user"`
}

// OllamaConfig holds the LLM client's endpoint settings.
type OllamaConfig struct {
	Host                    string `json:"host"`
	APIKey                  string `json:"apiKey"`
	Model                   string `json:"model"`
	TimeoutSeconds          int    `json:"timeout"`
	StreamInactivitySeconds int    `json:"stream_inactivity_timeout"`
	MaxRetries              int    `json:"max_retries"`
	ContextWindow           int    `json:"context_window,omitempty"`
}

func (o OllamaConfig) Timeout() time.Duration {
	if o.TimeoutSeconds <= 0 {
		return 120 * time.Second
	}
	return time.Duration(o.TimeoutSeconds) * time.Second
}

func (o OllamaConfig) StreamInactivityTimeout() time.Duration {
	if o.StreamInactivitySeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(o.StreamInactivitySeconds) * time.Second
}

// PromptConfig holds the orchestrator's budget settings.
type PromptConfig struct {
	LoopLimit int `json:"loop_limit"`
}

// MemoryConfig holds memory auto-injection settings.
type MemoryConfig struct {
	ContextCategories []string `json:"context_categories"`
}

// BashToolConfig gates the unsandboxed shell tool per the design notes:
// the tool must refuse to run as root unless Unsafe is explicitly set.
type BashToolConfig struct {
	Unsafe bool `json:"unsafe"`
}

// ToolsConfig groups the per-tool sub-configs.
type ToolsConfig struct {
	Bash      BashToolConfig             `json:"bash"`
	Weather   map[string]any             `json:"weather,omitempty"`
	Trello    map[string]any             `json:"trello,omitempty"`
	WebSearch map[string]any             `json:"web_search,omitempty"`
	Extra     map[string]json.RawMessage `json:"-"`
}

// GatewayConfig controls the chat gateway's history retrieval and typing
// indicator refresh behavior.
type GatewayConfig struct {
	MessageHistoryLimit  int `json:"message_history_limit"`
	TypingRefreshSeconds int `json:"typing_refresh_seconds"`
}

// Config is the single process-wide, immutable-after-load settings
// record. It is parsed from one JSON document at DataLayout.ConfigPath;
// an optional sibling skippy.yaml may override individual fields for
// local development (see Load).
type Config struct {
	LogLevel string         `json:"log_level"`
	Discord  DiscordConfig  `json:"discord"`
	WhatsApp WhatsAppConfig `json:"whatsapp"`
	Ollama   OllamaConfig   `json:"ollama"`
	Prompt   PromptConfig   `json:"prompt"`
	Memory   MemoryConfig   `json:"memory"`
	Tools    ToolsConfig    `json:"tools"`
	Gateway  GatewayConfig  `json:"gateway"`
}

// DefaultConfig returns the zero-value-safe baseline used when a field
// is missing from the config file: every field has a sane fallback
// rather than panicking on a missing key.
func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Discord: DiscordConfig{
			MessageHistoryLimit: 20,
		},
		Ollama: OllamaConfig{
			Host:                    "http://localhost:11434",
			Model:                   "llama3.1",
			TimeoutSeconds:          120,
			StreamInactivitySeconds: 30,
			MaxRetries:              3,
		},
		Prompt: PromptConfig{
			LoopLimit: 25,
		},
		Memory: MemoryConfig{
			ContextCategories: []string{"general"},
		},
		Gateway: GatewayConfig{
			MessageHistoryLimit:  20,
			TypingRefreshSeconds: 8,
		},
	}
}

// Load reads the JSON config document at path, merging it over
// DefaultConfig. If a skippy.yaml file exists beside it, its keys are
// applied on top (yaml.v3, teacher dependency, used for local dev
// overrides — the on-disk external contract remains the single JSON
// document). A .env file beside path, if present, is loaded
// into the process environment before provider keys are read, so
// OLLAMA_API_KEY-style overrides can supply secrets without putting them
// in the JSON file.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	envPath := filepath.Join(filepath.Dir(path), ".env")
	if _, err := os.Stat(envPath); err == nil {
		_ = godotenv.Load(envPath)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	yamlPath := filepath.Join(filepath.Dir(path), "skippy.yaml")
	if data, err := os.ReadFile(yamlPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing override %s: %w", yamlPath, err)
		}
	}

	if key := os.Getenv("OLLAMA_API_KEY"); key != "" {
		cfg.Ollama.APIKey = key
	}
	if key := os.Getenv("DISCORD_TOKEN"); key != "" {
		cfg.Discord.Token = key
	}

	return cfg, cfg.Validate()
}

// Validate fails fast on configuration errors: an empty ollama.host or a
// loop_limit outside [1,200] fails at startup, not as a runtime error
// later. An empty Ollama API key is not checked here.
func (c Config) Validate() error {
	if c.Ollama.Host == "" {
		return fmt.Errorf("config: ollama.host is required")
	}
	if c.Prompt.LoopLimit < 1 || c.Prompt.LoopLimit > 200 {
		return fmt.Errorf("config: prompt.loop_limit must be in [1,200], got %d", c.Prompt.LoopLimit)
	}
	return nil
}

// Save writes cfg back to path as formatted JSON. Round-tripping
// Load -> Save -> Load must be idempotent.
func (c Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
