package llmls

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	defaults "github.com/Paranoid-AF/llmls/default"
)

// Config represents the user's llmls configuration.
type Config struct {
	Version    int              `toml:"version" json:"version"`
	Generation GenerationConfig `toml:"generation" json:"generation"`
	Server     ServerConfig     `toml:"server" json:"server"`
}

// GenerationConfig holds settings for the chat-completion API.
type GenerationConfig struct {
	BaseURL     string   `toml:"base_url" json:"base_url"`
	APIKey      string   `toml:"api_key" json:"api_key"`
	Model       string   `toml:"model" json:"model"`
	MaxTokens   int      `toml:"max_tokens" json:"max_tokens,omitempty"`
	// Temperature is unset by default, leaving it to the server.
	Temperature *float64 `toml:"temperature" json:"temperature,omitempty"`
	Stop        []string `toml:"stop" json:"stop,omitempty"`
}

// ServerConfig holds language server settings.
type ServerConfig struct {
	StreamTimeoutSeconds int    `toml:"stream_timeout_seconds" json:"stream_timeout_seconds"`
	LogLevel             string `toml:"log_level" json:"log_level"`
}

// StreamTimeout bounds how long a single command may stream edits.
func (c *Config) StreamTimeout() time.Duration {
	if c == nil || c.Server.StreamTimeoutSeconds <= 0 {
		return 300 * time.Second
	}
	return time.Duration(c.Server.StreamTimeoutSeconds) * time.Second
}

// Clone returns a deep copy of c.
func (c *Config) Clone() *Config {
	out := *c
	if c.Generation.Stop != nil {
		out.Generation.Stop = append([]string(nil), c.Generation.Stop...)
	}
	if c.Generation.Temperature != nil {
		t := *c.Generation.Temperature
		out.Generation.Temperature = &t
	}
	return &out
}

// ConfigDir returns the config directory path.
// Resolution order: $LLMLS_CONFIG_DIR > $XDG_CONFIG_HOME/llmls > ~/.config/llmls
func ConfigDir() string {
	if dir := os.Getenv("LLMLS_CONFIG_DIR"); dir != "" {
		return dir
	}
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, "llmls")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "llmls-config")
	}
	return filepath.Join(home, ".config", "llmls")
}

// ConfigPath returns the full path to the config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// CompletePromptPath returns the custom completion prompt path.
func CompletePromptPath() string {
	return filepath.Join(ConfigDir(), "complete.md")
}

// InstructPromptPath returns the custom instruct prompt path.
func InstructPromptPath() string {
	return filepath.Join(ConfigDir(), "instruct.md")
}

// DefaultConfig returns the default configuration from the embedded default_config.toml.
func DefaultConfig() *Config {
	var cfg Config
	if _, err := toml.Decode(string(defaults.DefaultConfigTOML), &cfg); err != nil {
		panic("llmls: invalid embedded default_config.toml: " + err.Error())
	}
	return &cfg
}

// LoadConfig loads config from disk or returns defaults if not found.
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(ConfigPath())
}

// LoadConfigFrom loads the config file at path on top of the defaults.
// Keys absent from the file keep their default values.
func LoadConfigFrom(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// ValidateConfig checks configuration for potential issues and returns warnings.
func ValidateConfig(cfg *Config) []string {
	var warnings []string
	if cfg == nil {
		return warnings
	}
	if ResolveModel(cfg) == "" {
		warnings = append(warnings, "generation model is not configured; commands will fail")
	}
	if ResolveBaseURL(cfg) == "" {
		warnings = append(warnings, "generation base_url is not configured; commands will fail")
	}
	if cfg.Server.StreamTimeoutSeconds <= 0 {
		warnings = append(warnings, "stream_timeout_seconds is not positive; using 300")
	}
	if t := cfg.Generation.Temperature; t != nil && (*t < 0 || *t > 2) {
		warnings = append(warnings, fmt.Sprintf("temperature %.2f is outside [0, 2]", *t))
	}
	return warnings
}

// Settings are the client-side settings sent through initializationOptions
// or workspace/didChangeConfiguration. Both the flat form and the
// {"model": ..., "options": {"api_base": ...}} form are accepted.
type Settings struct {
	Model       string          `json:"model"`
	APIBase     string          `json:"api_base"`
	APIKey      string          `json:"api_key"`
	MaxTokens   *int            `json:"max_tokens"`
	Temperature *float64        `json:"temperature"`
	Options     *SettingOptions `json:"options"`
}

// SettingOptions is the nested "options" object of Settings.
type SettingOptions struct {
	APIBase     string   `json:"api_base"`
	APIKey      string   `json:"api_key"`
	MaxTokens   *int     `json:"max_tokens"`
	Temperature *float64 `json:"temperature"`
}

// ApplySettings returns a copy of cfg with client settings applied.
// raw may be nil, the settings object itself, or an object wrapping it under "llmls".
func ApplySettings(cfg *Config, raw any) (*Config, error) {
	out := cfg.Clone()
	if raw == nil {
		return out, nil
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode settings: %w", err)
	}
	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, fmt.Errorf("settings must be an object: %w", err)
	}
	if inner, ok := wrapper["llmls"]; ok {
		data = inner
	}

	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}

	if o := s.Options; o != nil {
		if o.APIBase != "" {
			out.Generation.BaseURL = o.APIBase
		}
		if o.APIKey != "" {
			out.Generation.APIKey = o.APIKey
		}
		if o.MaxTokens != nil {
			out.Generation.MaxTokens = *o.MaxTokens
		}
		if o.Temperature != nil {
			t := *o.Temperature
			out.Generation.Temperature = &t
		}
	}
	if s.Model != "" {
		out.Generation.Model = s.Model
	}
	if s.APIBase != "" {
		out.Generation.BaseURL = s.APIBase
	}
	if s.APIKey != "" {
		out.Generation.APIKey = s.APIKey
	}
	if s.MaxTokens != nil {
		out.Generation.MaxTokens = *s.MaxTokens
	}
	if s.Temperature != nil {
		t := *s.Temperature
		out.Generation.Temperature = &t
	}
	return out, nil
}

// ResolveBaseURL returns the generation API base URL.
// Priority: $LLMLS_API_BASE_URL env > config value.
func ResolveBaseURL(cfg *Config) string {
	if url := os.Getenv("LLMLS_API_BASE_URL"); url != "" {
		return url
	}
	if cfg != nil {
		return cfg.Generation.BaseURL
	}
	return ""
}

// ResolveAPIKey returns the generation API key.
// Priority: $LLMLS_API_KEY env > config value.
func ResolveAPIKey(cfg *Config) string {
	if key := os.Getenv("LLMLS_API_KEY"); key != "" {
		return key
	}
	if cfg != nil {
		return cfg.Generation.APIKey
	}
	return ""
}

// ResolveModel returns the generation model name.
// Priority: $LLMLS_MODEL env > config value.
func ResolveModel(cfg *Config) string {
	if model := os.Getenv("LLMLS_MODEL"); model != "" {
		return model
	}
	if cfg != nil {
		return cfg.Generation.Model
	}
	return ""
}

// GenerationEnabled returns true when both base URL and model are configured.
// The API key is optional: local servers such as Ollama accept none.
func GenerationEnabled(cfg *Config) bool {
	return ResolveBaseURL(cfg) != "" && ResolveModel(cfg) != ""
}
