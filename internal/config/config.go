// Package config holds the process configuration for codex-nexus.
// A Config is an explicit value passed into each component at
// construction so tests can run isolated instances side by side.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultModel is the upstream model used when a request does not pin one.
const DefaultModel = "gpt-5.2"

// DefaultOriginator identifies this client to the authorization server.
const DefaultOriginator = "pi"

// Config describes file locations and runtime toggles for the proxy.
type Config struct {
	// MockMode substitutes the offline event generator for the real
	// Codex endpoint. Used by tests and the demo flow.
	MockMode bool `yaml:"mock_mode"`

	// Model is the upstream model identifier sent to Codex.
	Model string `yaml:"model"`

	// Originator is forwarded on the authorize URL and request headers.
	Originator string `yaml:"originator"`

	// AuthFile stores OAuth credentials as a single JSON document.
	AuthFile string `yaml:"auth_file"`

	// PKCEFile stores the bounded list of pending PKCE records.
	PKCEFile string `yaml:"pkce_file"`

	// DBPath is the sqlite database used for the request log and the
	// generated server API key.
	DBPath string `yaml:"db_path"`

	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// APIKeyRequired gates /v1 behind the generated API key.
	APIKeyRequired bool `yaml:"api_key_required"`
}

// Default returns the built-in configuration rooted under the user's
// home directory.
func Default() Config {
	home, _ := os.UserHomeDir()
	dir := filepath.Join(home, ".codex-nexus")
	return Config{
		Model:      DefaultModel,
		Originator: DefaultOriginator,
		AuthFile:   filepath.Join(dir, "auth.json"),
		PKCEFile:   filepath.Join(dir, "pkce.json"),
		DBPath:     filepath.Join(dir, "nexus.db"),
		Host:       "127.0.0.1",
		Port:       1455,
	}
}

// Load builds the effective configuration: defaults, then the optional
// YAML file, then environment overrides. A missing file is not an
// error; an unreadable or malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, err
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// FromEnv returns the default configuration with environment overrides
// applied, skipping the YAML file entirely.
func FromEnv() Config {
	cfg := Default()
	cfg.applyEnv()
	return cfg
}

func (c *Config) applyEnv() {
	if v := os.Getenv("CODEX_NEXUS_MOCK"); v != "" {
		c.MockMode = isTruthy(v)
	}
	if v := os.Getenv("CODEX_NEXUS_MODEL"); v != "" {
		c.Model = v
	}
	if v := os.Getenv("CODEX_NEXUS_ORIGINATOR"); v != "" {
		c.Originator = v
	}
	if v := os.Getenv("CODEX_NEXUS_AUTH_FILE"); v != "" {
		c.AuthFile = v
	}
	if v := os.Getenv("CODEX_NEXUS_PKCE_FILE"); v != "" {
		c.PKCEFile = v
	}
	if v := os.Getenv("CODEX_NEXUS_DB"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("CODEX_NEXUS_HOST"); v != "" {
		c.Host = v
	}
	if v := os.Getenv("CODEX_NEXUS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			c.Port = port
		}
	}
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
