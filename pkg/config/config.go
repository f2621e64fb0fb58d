// Package config loads the engine's YAML configuration: storage,
// scheduler, AI transport, inspection surface, and MCP bridge settings.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"go.mau.fi/util/ptr"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration document.
type Config struct {
	Storage   StorageConfig   `yaml:"storage"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Transport TransportConfig `yaml:"transport"`
	Inspect   *InspectConfig  `yaml:"inspect"`
	MCP       *MCPConfig      `yaml:"mcp"`
}

// StorageConfig points at the SQLite database backing the agent tree.
type StorageConfig struct {
	Path       string `yaml:"path"`
	Passphrase string `yaml:"passphrase"`
}

// SchedulerConfig configures the heartbeat scheduler (see heart.Heart).
type SchedulerConfig struct {
	Model            string         `yaml:"model"`
	Interval         *time.Duration `yaml:"interval"`
	MaxTokens        *int           `yaml:"max_tokens"`
	StructuredOutput *bool          `yaml:"structured_output"`
}

// WithDefaults fills unset scheduler knobs with heart.New's own defaults
// (model gpt-4o, one-second interval, 4096 max tokens, structured output
// on), so a caller can always dereference the pointer fields after this
// runs.
func (c *SchedulerConfig) WithDefaults() *SchedulerConfig {
	if c == nil {
		c = &SchedulerConfig{}
	}
	if c.Model == "" {
		c.Model = "gpt-4o"
	}
	if c.Interval == nil {
		c.Interval = ptr.Ptr(time.Second)
	}
	if c.MaxTokens == nil {
		c.MaxTokens = ptr.Ptr(4096)
	}
	if c.StructuredOutput == nil {
		c.StructuredOutput = ptr.Ptr(true)
	}
	return c
}

// TransportConfig selects the AI transport vendor and where to read its
// credential from. Vendor is "anthropic" or "openai"; CredentialEnv
// names the environment variable to read the API key from when
// Credential is left blank, per spec.md §6 (ANTHROPIC_API_KEY /
// OPENAI_API_KEY).
type TransportConfig struct {
	Vendor        string `yaml:"vendor"`
	BaseURL       string `yaml:"base_url"`
	CredentialEnv string `yaml:"credential_env"`
	Credential    string `yaml:"credential"`
}

// WithDefaults fills CredentialEnv with the vendor's conventional
// environment variable name if left unset.
func (c *TransportConfig) WithDefaults() *TransportConfig {
	if c.CredentialEnv == "" {
		switch strings.ToLower(c.Vendor) {
		case "anthropic":
			c.CredentialEnv = "ANTHROPIC_API_KEY"
		case "openai":
			c.CredentialEnv = "OPENAI_API_KEY"
		}
	}
	return c
}

// APIKey returns Credential if set, otherwise the value of the
// CredentialEnv environment variable.
func (c *TransportConfig) APIKey() string {
	if c.Credential != "" {
		return c.Credential
	}
	return strings.TrimSpace(os.Getenv(c.CredentialEnv))
}

// InspectConfig configures the HTTP inspection surface (pkg/inspect).
// A nil section gets WithDefaults' values (enabled, on localhost:8800).
type InspectConfig struct {
	Enabled    *bool  `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"`
}

// WithDefaults fills Enabled (true) and ListenAddr ("localhost:8800") if
// unset.
func (c *InspectConfig) WithDefaults() *InspectConfig {
	if c == nil {
		c = &InspectConfig{}
	}
	if c.Enabled == nil {
		c.Enabled = ptr.Ptr(true)
	}
	if c.ListenAddr == "" {
		c.ListenAddr = "localhost:8800"
	}
	return c
}

// MCPConfig configures the MCP tool bridge (pkg/holonmcp). Nil means the
// bridge isn't started.
type MCPConfig struct {
	Enabled    *bool  `yaml:"enabled"`
	Transport  string `yaml:"transport"` // "stdio" | "http"
	ListenAddr string `yaml:"listen_addr"`
}

// WithDefaults fills Enabled (false — the bridge is opt-in) and
// Transport ("stdio") if unset.
func (c *MCPConfig) WithDefaults() *MCPConfig {
	if c == nil {
		c = &MCPConfig{}
	}
	if c.Enabled == nil {
		c.Enabled = ptr.Ptr(false)
	}
	if c.Transport == "" {
		c.Transport = "stdio"
	}
	return c
}

// Load reads and parses the YAML config at path, then fills every
// optional sub-section with its defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Scheduler = *cfg.Scheduler.WithDefaults()
	cfg.Transport = *cfg.Transport.WithDefaults()
	cfg.Inspect = cfg.Inspect.WithDefaults()
	cfg.MCP = cfg.MCP.WithDefaults()
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = "holonic-engine.db"
	}
	return &cfg, nil
}
