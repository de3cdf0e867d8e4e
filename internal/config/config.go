// Package config loads the operator configuration: defaults, merged with
// an optional config.yaml in the home directory, validated before use.
// Flags override file values at the CLI layer.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Network selects which deployment of the remote authorities to talk to.
type Network string

const (
	NetworkPrd         Network = "prd"
	NetworkTesting     Network = "testing"
	NetworkDevelopment Network = "development"
)

// ValidNetworks lists the accepted network names.
var ValidNetworks = []Network{NetworkPrd, NetworkTesting, NetworkDevelopment}

// signerServiceIDs maps each network to its signing authority deployment.
// Testing and development share one deployment.
var signerServiceIDs = map[Network]string{
	NetworkPrd:         "sig-g7qkb",
	NetworkTesting:     "sig-ho2u6",
	NetworkDevelopment: "sig-ho2u6",
}

// defaultAuthorityURLs maps each network to its authority gateway.
var defaultAuthorityURLs = map[Network]string{
	NetworkPrd:         "https://authority.odin.example",
	NetworkTesting:     "https://authority.testing.odin.example",
	NetworkDevelopment: "https://authority.testing.odin.example",
}

const (
	configFile = "config.yaml"

	defaultAPIURL         = "https://api.odin.example/v1"
	defaultTimeoutSeconds = 30
	defaultMaxConcurrency = 5
)

// Config is the full operator configuration.
type Config struct {
	// Home is the resolved config directory; not read from the file.
	Home string `yaml:"-"`

	Network            Network `yaml:"network"`
	VerifyCertificates bool    `yaml:"verify_certificates"`
	CacheSessions      bool    `yaml:"cache_sessions"`

	APIURL          string `yaml:"api_url"`
	AuthorityURL    string `yaml:"authority_url"`
	AuthorityKeyHex string `yaml:"authority_key_hex"`

	TimeoutSeconds int      `yaml:"timeout_seconds"`
	MaxConcurrency int      `yaml:"max_concurrency"`
	Bots           []string `yaml:"bots"`

	Verbose bool `yaml:"-"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Network:        NetworkPrd,
		CacheSessions:  true,
		APIURL:         defaultAPIURL,
		TimeoutSeconds: defaultTimeoutSeconds,
		MaxConcurrency: defaultMaxConcurrency,
	}
}

// Load merges config.yaml under home (when present) over the defaults and
// validates the result.
func Load(home string) (Config, error) {
	cfg := Default()
	cfg.Home = home

	path := filepath.Join(home, configFile)
	raw, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}
	if err == nil {
		if uerr := yaml.Unmarshal(raw, &cfg); uerr != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, uerr)
		}
		cfg.Home = home
	}
	if verr := cfg.Validate(); verr != nil {
		return cfg, verr
	}
	return cfg, nil
}

// Validate rejects configurations the rest of the system must never see.
func (c *Config) Validate() error {
	if _, ok := signerServiceIDs[c.Network]; !ok {
		return fmt.Errorf("unknown network %q (valid: %v)", c.Network, ValidNetworks)
	}
	if c.TimeoutSeconds <= 0 {
		return fmt.Errorf("timeout_seconds must be positive, got %d", c.TimeoutSeconds)
	}
	if c.MaxConcurrency <= 0 {
		return fmt.Errorf("max_concurrency must be positive, got %d", c.MaxConcurrency)
	}
	return nil
}

// SignerServiceID returns the signing authority deployment for the
// selected network.
func (c *Config) SignerServiceID() string {
	return signerServiceIDs[c.Network]
}

// ResolvedAuthorityURL returns the configured authority gateway, or the
// network default.
func (c *Config) ResolvedAuthorityURL() string {
	if c.AuthorityURL != "" {
		return c.AuthorityURL
	}
	return defaultAuthorityURLs[c.Network]
}

// Timeout converts the configured per-call timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// CacheDir is where per-bot session records live.
func (c *Config) CacheDir() string {
	return filepath.Join(c.Home, ".cache")
}
