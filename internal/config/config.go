// Package config loads the smsd TOML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration wraps time.Duration so TOML values like "1h" decode directly.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// Config is the full smsd configuration.
type Config struct {
	ListenAddr string `toml:"listen_addr"`
	DataDir    string `toml:"data_dir"`
	LogPath    string `toml:"log_path"`

	AI     AIConfig     `toml:"ai"`
	Auth   AuthConfig   `toml:"auth"`
	Outbox OutboxConfig `toml:"outbox"`
}

// AIConfig configures the text-generation provider.
type AIConfig struct {
	Provider     string `toml:"provider"`
	Model        string `toml:"model"`
	APIKey       string `toml:"api_key"`
	BaseURL      string `toml:"base_url"`
	SystemPrompt string `toml:"system_prompt"`
	MaxContext   int    `toml:"max_context"`
	MaxRetries   int    `toml:"max_retries"`
}

// AuthConfig configures sender authorization and the relay shared secret.
type AuthConfig struct {
	// AllowedNumbers is the sender allowlist; empty means open mode.
	AllowedNumbers []string `toml:"allowed_numbers"`
	// APIKey, when set, must match the X-API-Key header on inbound requests.
	APIKey string `toml:"api_key"`
}

// OutboxConfig tunes the delivery queue.
type OutboxConfig struct {
	BatchSize       int      `toml:"batch_size"`
	RetentionDays   int      `toml:"retention_days"`
	CleanupInterval Duration `toml:"cleanup_interval"`
}

// Default returns the configuration used when no file overrides a field.
func Default() *Config {
	return &Config{
		ListenAddr: ":8080",
		DataDir:    "./data",
		AI: AIConfig{
			Provider:     "openai",
			Model:        "gpt-4o-mini",
			SystemPrompt: "You are a helpful assistant. Keep responses concise for SMS.",
			MaxContext:   20,
			MaxRetries:   3,
		},
		Outbox: OutboxConfig{
			BatchSize:       10,
			RetentionDays:   7,
			CleanupInterval: Duration{time.Hour},
		},
	}
}

// Load reads config from the given path, layered over the defaults. Secrets
// absent from the file fall back to the environment (OPENAI_API_KEY,
// SMSD_API_KEY) so keys can stay out of the file entirely.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg.applyEnv()
	return cfg, nil
}

// LoadOrDefault is Load, except a missing file yields the defaults.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := Default()
		cfg.applyEnv()
		return cfg, nil
	}
	return Load(path)
}

// DatabasePath is the sqlite file location inside the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "smsd.db")
}

func (c *Config) applyEnv() {
	if c.AI.APIKey == "" {
		c.AI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.Auth.APIKey == "" {
		c.Auth.APIKey = os.Getenv("SMSD_API_KEY")
	}
}
