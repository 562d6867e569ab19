// Package config loads agentcore's run configuration from a YAML file,
// expanding environment variable references and applying the same
// env-override-then-defaults sequencing the teacher's config loader uses.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is agentcore's top-level configuration.
type Config struct {
	Provider  ProviderConfig  `yaml:"provider"`
	Session   SessionConfig   `yaml:"session"`
	Workspace WorkspaceConfig `yaml:"workspace"`
	Tools     ToolsConfig     `yaml:"tools"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
	Remote    RemoteConfig    `yaml:"remote"`
}

// ProviderConfig selects and authenticates the LLM backend.
type ProviderConfig struct {
	// Name is "anthropic" or "openai".
	Name string `yaml:"name"`
	// APIKey is read from the file but normally overridden by an env var
	// (ANTHROPIC_API_KEY / OPENAI_API_KEY) so secrets never live on disk.
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url"`
	DefaultModel string `yaml:"default_model"`
}

// SessionConfig bounds one agent loop run.
type SessionConfig struct {
	MaxIterations int     `yaml:"max_iterations"`
	MaxTokens     int     `yaml:"max_tokens"`
	Temperature   float64 `yaml:"temperature"`
	System        string  `yaml:"system"`
}

// WorkspaceConfig scopes filesystem and shell tools to a root directory.
type WorkspaceConfig struct {
	Root string `yaml:"root"`
}

// ToolsConfig lists command-policy and confirmation settings for the
// built-in tool set.
type ToolsConfig struct {
	BashDisallowed      []string `yaml:"bash_disallowed"`
	BashAllowed         []string `yaml:"bash_allowed"`
	RequireConfirmation []string `yaml:"require_confirmation"`
}

// MetricsConfig configures the Prometheus exporter.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// RemoteConfig configures the optional remote tool executor.
type RemoteConfig struct {
	Enabled    bool          `yaml:"enabled"`
	URL        string        `yaml:"url"`
	InstanceID string        `yaml:"instance_id"`
	Timeout    time.Duration `yaml:"timeout"`
}

// Load reads path, expands ${VAR} references against the process
// environment, decodes strictly (unknown fields are rejected), applies
// environment-variable overrides for secrets, then fills defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	decoder := yaml.NewDecoder(strings.NewReader(expanded))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := decoder.Decode(new(struct{})); err != io.EOF {
		return nil, fmt.Errorf("config: %s must contain a single YAML document", path)
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	switch cfg.Provider.Name {
	case "openai":
		if key := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); key != "" {
			cfg.Provider.APIKey = key
		}
	default:
		if key := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")); key != "" {
			cfg.Provider.APIKey = key
		}
	}
	if url := strings.TrimSpace(os.Getenv("AGENTCORE_REMOTE_TOOL_URL")); url != "" {
		cfg.Remote.URL = url
	}
	if id := strings.TrimSpace(os.Getenv("AGENTCORE_REMOTE_INSTANCE_ID")); id != "" {
		cfg.Remote.InstanceID = id
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Provider.Name == "" {
		cfg.Provider.Name = "anthropic"
	}
	if cfg.Session.MaxIterations <= 0 {
		cfg.Session.MaxIterations = 25
	}
	if cfg.Session.MaxTokens <= 0 {
		cfg.Session.MaxTokens = 4096
	}
	if cfg.Workspace.Root == "" {
		cfg.Workspace.Root = "."
	}
	if abs, err := filepath.Abs(cfg.Workspace.Root); err == nil {
		cfg.Workspace.Root = abs
	}
	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = ":9090"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Remote.Timeout <= 0 {
		cfg.Remote.Timeout = 30 * time.Second
	}
}

func validate(cfg *Config) error {
	switch cfg.Provider.Name {
	case "anthropic", "openai":
	default:
		return fmt.Errorf("config: unknown provider %q (want anthropic or openai)", cfg.Provider.Name)
	}
	if cfg.Provider.APIKey == "" {
		return fmt.Errorf("config: provider %q requires an API key", cfg.Provider.Name)
	}
	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown logging level %q", cfg.Logging.Level)
	}
	return nil
}
