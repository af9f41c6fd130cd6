// Package config loads Tyler's static configuration: the HTTP listener,
// storage backend, LLM provider credentials, and the set of agent personas
// to register at startup.
package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root of a Tyler deployment's YAML configuration file.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	LLM     LLMConfig     `yaml:"llm"`
	Router  RouterConfig  `yaml:"router"`
	Agents  []AgentConfig `yaml:"agents"`
}

// ServerConfig configures the smoke-test HTTP surface cmd/tyler serve
// exposes in front of Ingress.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig selects the ThreadStore backend. The connection details
// for "sql" (DSN, pool size) and the FileStore's base path are read
// separately from TYLER_DB_*/TYLER_FILE_* environment variables by
// sqlstore.ConfigFromEnv and filestore.ConfigFromEnv, matching spec.md
// §4.2's "connection URL, if unset an ephemeral local database is used".
type StorageConfig struct {
	// Backend is "memory" or "sql". Defaults to "memory".
	Backend string `yaml:"backend"`
}

// LLMConfig holds per-provider credentials and defaults.
type LLMConfig struct {
	Anthropic AnthropicConfig `yaml:"anthropic"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
}

type AnthropicConfig struct {
	APIKey       string        `yaml:"api_key"`
	BaseURL      string        `yaml:"base_url"`
	DefaultModel string        `yaml:"default_model"`
	MaxTokens    int           `yaml:"max_tokens"`
	MaxRetries   int           `yaml:"max_retries"`
	RetryDelay   time.Duration `yaml:"retry_delay"`
}

type OpenAIConfig struct {
	APIKey string `yaml:"api_key"`
}

// RouterConfig configures the agent-selection classifier fallback
// (spec.md §4.8 step 2) and the no-selection default (spec.md §4.9).
type RouterConfig struct {
	// ClassifierProvider is "anthropic", "openai", or "" to disable the
	// classifier fallback (mention-only routing).
	ClassifierProvider string `yaml:"classifier_provider"`
	ClassifierModel    string `yaml:"classifier_model"`
	DefaultAgent       string `yaml:"default_agent"`
}

// AgentConfig describes one persona to register at startup.
type AgentConfig struct {
	Name             string  `yaml:"name"`
	Purpose          string  `yaml:"purpose"`
	Notes            string  `yaml:"notes"`
	Provider         string  `yaml:"provider"`
	Model            string  `yaml:"model"`
	Temperature      float64 `yaml:"temperature"`
	MaxToolRecursion int     `yaml:"max_tool_recursion"`
}

// Load reads and validates a YAML config file at path, expanding
// ${VAR}/$VAR environment references first so secrets never need to be
// written to disk in plaintext (grounded on the teacher's config.Load).
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
		return nil, fmt.Errorf("config: %s: expected a single YAML document", path)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "memory"
	}
	if cfg.LLM.Anthropic.DefaultModel == "" {
		cfg.LLM.Anthropic.DefaultModel = "claude-sonnet-4-20250514"
	}
	if cfg.LLM.Anthropic.MaxTokens == 0 {
		cfg.LLM.Anthropic.MaxTokens = 4096
	}
	if cfg.LLM.Anthropic.MaxRetries == 0 {
		cfg.LLM.Anthropic.MaxRetries = 3
	}
	if cfg.LLM.Anthropic.RetryDelay == 0 {
		cfg.LLM.Anthropic.RetryDelay = time.Second
	}
	for i := range cfg.Agents {
		a := &cfg.Agents[i]
		if a.Provider == "" {
			a.Provider = "anthropic"
		}
		if a.MaxToolRecursion == 0 {
			a.MaxToolRecursion = 10
		}
	}
}

func validate(cfg *Config) error {
	switch cfg.Storage.Backend {
	case "memory", "sql":
	default:
		return fmt.Errorf("config: unknown storage.backend %q (want memory or sql)", cfg.Storage.Backend)
	}

	seen := map[string]bool{}
	for _, a := range cfg.Agents {
		if a.Name == "" {
			return fmt.Errorf("config: every agent needs a name")
		}
		key := strings.ToLower(a.Name)
		if seen[key] {
			return fmt.Errorf("config: duplicate agent name %q", a.Name)
		}
		seen[key] = true
		switch a.Provider {
		case "anthropic", "openai":
		default:
			return fmt.Errorf("config: agent %q: unknown provider %q (want anthropic or openai)", a.Name, a.Provider)
		}
	}
	if len(cfg.Agents) == 0 {
		return fmt.Errorf("config: at least one agent must be configured")
	}
	if cfg.Router.DefaultAgent == "" {
		cfg.Router.DefaultAgent = cfg.Agents[0].Name
	}
	return nil
}
