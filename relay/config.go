package relay

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the relayd configuration file.
type Config struct {
	// ListenAddr is the HTTP listen address, e.g. ":8080".
	ListenAddr string `yaml:"listen_addr"`

	// TokenSecret keys the session token HMAC, base64 or raw. Must be at
	// least 32 bytes and stable across restarts.
	TokenSecret string `yaml:"token_secret"`

	// BlobDir is the attachment storage directory. Empty selects the
	// in-memory store.
	BlobDir string `yaml:"blob_dir"`

	RateLimit struct {
		PerSecond float64 `yaml:"per_second"`
		Burst     int     `yaml:"burst"`
	} `yaml:"rate_limit"`
}

// DefaultConfig returns a config with sane defaults and no secret.
func DefaultConfig() *Config {
	cfg := &Config{ListenAddr: ":8080"}
	cfg.RateLimit.PerSecond = 10
	cfg.RateLimit.Burst = 30
	return cfg
}

// LoadConfig reads a YAML config file. Values absent from the file keep
// their defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the config is runnable.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr is required")
	}
	if len(c.TokenSecret) < 32 {
		return fmt.Errorf("token_secret must be at least 32 bytes")
	}
	if c.RateLimit.PerSecond <= 0 || c.RateLimit.Burst <= 0 {
		return fmt.Errorf("rate_limit values must be positive")
	}
	return nil
}

// BuildServer constructs a Server from the config.
func (c *Config) BuildServer() (*Server, error) {
	opts := []ServerOption{
		WithRateLimit(c.RateLimit.PerSecond, c.RateLimit.Burst),
	}
	if c.BlobDir != "" {
		blobs, err := NewFSBlobStore(c.BlobDir)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithBlobStore(blobs))
	}
	return NewServer([]byte(c.TokenSecret), opts...)
}
