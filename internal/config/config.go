// Package config handles application configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/alienxp03/sparring/internal/persona"
	"github.com/alienxp03/sparring/internal/topic"
)

// Config represents the application configuration.
type Config struct {
	Server  ServerConfig      `yaml:"server"`
	Storage StorageConfig     `yaml:"storage"`
	LLM     LLMConfig         `yaml:"llm"`
	Debate  DebateConfig      `yaml:"debate"`
	Quota   QuotaConfig       `yaml:"quota"`
	Safety  SafetyConfig      `yaml:"safety"`
	Topics  []topic.Topic     `yaml:"topics,omitempty"`
	Personas []persona.Persona `yaml:"personas,omitempty"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// StorageConfig holds persistence settings.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// LLMConfig holds model endpoint settings. The API key is only ever
// read from the environment, never from the config file.
type LLMConfig struct {
	APIKey      string        `yaml:"-"`
	Model       string        `yaml:"model"`
	BaseURL     string        `yaml:"base_url,omitempty"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

// DebateConfig holds turn-budget settings.
type DebateConfig struct {
	MaxTurns        int `yaml:"max_turns"`
	MaxMessageChars int `yaml:"max_message_chars"`
	HistoryWindow   int `yaml:"history_window"`
}

// QuotaConfig holds daily admission settings. An empty Redis address
// keeps the counters in the primary store.
type QuotaConfig struct {
	DailyLimit int         `yaml:"daily_limit"`
	Redis      RedisConfig `yaml:"redis,omitempty"`
}

// RedisConfig holds optional Redis connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

// SafetyConfig holds content screening settings. Terms and patterns
// extend the builtin list unless Replace is set.
type SafetyConfig struct {
	Replace  bool     `yaml:"replace,omitempty"`
	Terms    []string `yaml:"terms,omitempty"`
	Patterns []string `yaml:"patterns,omitempty"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Server:  ServerConfig{Port: 8480},
		Storage: StorageConfig{Path: ""},
		LLM: LLMConfig{
			Model:       "gpt-4o-mini",
			MaxTokens:   1024,
			Temperature: 0.7,
			Timeout:     30 * time.Second,
		},
		Debate: DebateConfig{
			MaxTurns:        20,
			MaxMessageChars: 100,
			HistoryWindow:   6,
		},
		Quota: QuotaConfig{DailyLimit: 30},
	}
}

// Load loads configuration from the default path.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigPath())
}

// LoadFrom loads configuration from a specific path, merging over
// defaults, then applies environment overrides (including a local .env
// file when present).
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// No config file, proceed with defaults
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	// .env values become process env without clobbering existing vars.
	_ = godotenv.Load()
	applyEnvOverrides(cfg)

	return cfg, nil
}

// applyEnvOverrides updates the configuration from environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SPARRING_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SPARRING_DB"); v != "" {
		cfg.Storage.Path = v
	}

	if v := os.Getenv("SPARRING_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	} else if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("SPARRING_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("SPARRING_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("SPARRING_LLM_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.LLM.Timeout = d
		}
	}

	if v := os.Getenv("SPARRING_MAX_TURNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Debate.MaxTurns = n
		}
	}
	if v := os.Getenv("SPARRING_QUOTA_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Quota.DailyLimit = n
		}
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Quota.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Quota.Redis.Password = v
	}
}

// TopicRegistry builds the topic registry from builtins plus any
// config-supplied topics.
func (c *Config) TopicRegistry() *topic.Registry {
	return topic.NewRegistry(append(topic.Builtin(), c.Topics...))
}

// PersonaRegistry builds the persona registry from builtins plus any
// config-supplied personas.
func (c *Config) PersonaRegistry() *persona.Registry {
	return persona.NewRegistry(append(persona.Builtin(), c.Personas...))
}

// SafetyTerms returns the effective blocked term list.
func (c *Config) SafetyTerms(builtin []string) []string {
	if c.Safety.Replace {
		return c.Safety.Terms
	}
	return append(append([]string(nil), builtin...), c.Safety.Terms...)
}

// DefaultConfigPath returns the default configuration file path.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "sparring.yaml"
	}
	return filepath.Join(home, ".sparring", "config.yaml")
}
