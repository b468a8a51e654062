package observatory

import (
	"context"
	"fmt"

	"github.com/BerriAI/litellm-observatory/service/meta"
	"github.com/BerriAI/litellm-observatory/service/secret"
	"gopkg.in/yaml.v3"
)

// Config is a serialisable representation of the observatory configuration.
// It can be populated from YAML or JSON. The zero-value is useful – all
// fields inherit their package defaults.

type Config struct {
	// MaxConcurrentTests is the global concurrency ceiling, read once at
	// startup.
	MaxConcurrentTests int `json:"maxConcurrentTests" yaml:"maxConcurrentTests"`
	// CompletedHistoryLimit bounds the retained terminal runs.
	CompletedHistoryLimit int        `json:"completedHistoryLimit" yaml:"completedHistoryLimit"`
	HTTP                  HTTPConfig `json:"http" yaml:"http"`
	// Auth is the API key callers must present; open access when empty.
	Auth secret.Ref `json:"auth" yaml:"auth"`
	// SlackWebhook enables the Slack notifier when set.
	SlackWebhook secret.Ref `json:"slackWebhook" yaml:"slackWebhook"`
}

type HTTPConfig struct {
	ListenAddr string `json:"listenAddr" yaml:"listenAddr"`
}

// DefaultConfig returns a Config populated with the defaults of the original
// deployment: five concurrent tests, one hundred retained completions.
func DefaultConfig() *Config {
	return &Config{
		MaxConcurrentTests:    5,
		CompletedHistoryLimit: 100,
		HTTP:                  HTTPConfig{ListenAddr: ":8000"},
	}
}

// Validate returns aggregated error describing invalid settings or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	if c.MaxConcurrentTests <= 0 {
		return fmt.Errorf("maxConcurrentTests must be > 0")
	}
	if c.CompletedHistoryLimit <= 0 {
		return fmt.Errorf("completedHistoryLimit must be > 0")
	}
	return nil
}

// ParseConfig decodes YAML configuration on top of the defaults.
func ParseConfig(data []byte) (*Config, error) {
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadConfig loads YAML configuration from the location through the meta
// service (any afs-supported store, with ${env.KEY} expansion applied).
func LoadConfig(ctx context.Context, metaService *meta.Service, location string) (*Config, error) {
	data, err := metaService.Load(ctx, location)
	if err != nil {
		return nil, err
	}
	return ParseConfig(data)
}
