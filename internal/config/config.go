// Package config loads the pipeline's configuration (component J):
// a YAML file layered with environment-variable overrides, the way
// the teacher repo layers its own config file with environment
// overrides — just a much smaller surface, since this pipeline has
// one job rather than a whole agent runtime to configure.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/terrencegiggy/content-pipeline/internal/scheduler"
	"gopkg.in/yaml.v3"
)

// Config is the pipeline's full runtime configuration.
type Config struct {
	// Mode selects which of the three run shapes the pipeline runner
	// executes: "full", "check", or "acquire".
	Mode string `yaml:"mode"`

	// DryRun skips all writes while still computing and logging
	// every decision.
	DryRun bool `yaml:"dry_run"`

	// CreateIssues is loaded and saved with the config; no part of
	// the pipeline reads it, and no tracking issue is ever opened.
	CreateIssues bool `yaml:"create_issues"`

	// Politeness governs the domain-aware scheduler and crawler
	// delay behavior.
	Politeness scheduler.Politeness `yaml:"politeness"`

	// StorageRoot is the local backend's root directory, used
	// whenever GITHUB_ACTIONS is unset.
	StorageRoot string `yaml:"storage_root"`

	// UserAgent is sent on every HTTP request the monitor and
	// crawler issue.
	UserAgent string `yaml:"user_agent"`

	// Extraction configures the extraction driver's LLM backend.
	Extraction ExtractionConfig `yaml:"extraction"`

	// Logging configures the structured logger.
	Logging LoggingConfig `yaml:"logging"`
}

// ExtractionConfig configures the opaque Extractor the extraction
// driver runs against.
type ExtractionConfig struct {
	Provider string `yaml:"provider"` // "genai" or "" (extraction disabled)
	Model    string `yaml:"model"`
	APIKey   string `yaml:"-"` // never persisted; populated from environment only
}

// LoggingConfig configures the zap-based structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// DefaultConfig returns the pipeline's baseline configuration, mirroring
// spec.md's PipelinePoliteness defaults.
func DefaultConfig() *Config {
	return &Config{
		Mode:         "check",
		DryRun:       false,
		CreateIssues: false,
		Politeness:   scheduler.DefaultPoliteness(),
		StorageRoot:  "./data",
		UserAgent:    "content-acquisition-pipeline/1.0",
		Extraction: ExtractionConfig{
			Provider: "",
			Model:    "gemini-2.0-flash",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads path as YAML into a Config seeded with defaults, falling
// back to the defaults untouched if the file does not exist, then
// applies environment-variable overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes c to path as YAML, creating parent directories as
// needed. APIKey is never serialized (yaml:"-").
func (c *Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory %s: %w", dir, err)
		}
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides layers PIPELINE_MODE, PIPELINE_DRY_RUN,
// PIPELINE_STORAGE_ROOT and the GENAI_API_KEY extractor key on top of
// whatever the YAML file set, the way the teacher's
// config loader lets environment variables win over the file.
func (c *Config) applyEnvOverrides() {
	if mode := os.Getenv("PIPELINE_MODE"); mode != "" {
		c.Mode = mode
	}
	if os.Getenv("PIPELINE_DRY_RUN") == "true" {
		c.DryRun = true
	}
	if key := os.Getenv("GENAI_API_KEY"); key != "" {
		c.Extraction.APIKey = key
		if c.Extraction.Provider == "" {
			c.Extraction.Provider = "genai"
		}
	}
	if root := os.Getenv("PIPELINE_STORAGE_ROOT"); root != "" {
		c.StorageRoot = root
	}
}

// Validate rejects an unusable configuration before a run starts.
func (c *Config) Validate() error {
	switch c.Mode {
	case "full", "check", "acquire":
	default:
		return fmt.Errorf("invalid mode %q: must be full, check, or acquire", c.Mode)
	}
	if c.Politeness.MinDomainInterval < 0 {
		return fmt.Errorf("politeness.min_domain_interval must be non-negative")
	}
	if c.Extraction.Provider != "" && c.Extraction.Provider != "genai" {
		return fmt.Errorf("invalid extraction provider %q: must be empty or genai", c.Extraction.Provider)
	}
	return nil
}

// GracePeriod is a cancellation grace window length. Nothing in the
// pipeline reads it; a signal cancels the run's context at once.
const GracePeriod = 5 * time.Second
