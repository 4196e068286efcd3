// Package config loads client configuration from YAML with environment
// overrides for secrets.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/driftwire-io/driftwire/api"
	"github.com/driftwire-io/driftwire/gw"
)

// Environment variable consulted when the YAML omits the token.
const EnvToken = "DRIFTWIRE_TOKEN"

// Config is the full client configuration.
type Config struct {
	Token   string          `yaml:"token"`
	Gateway GatewaySettings `yaml:"gateway"`
	REST    RESTSettings    `yaml:"rest"`
	Log     LogSettings     `yaml:"log"`
}

// GatewaySettings configures the WebSocket connection.
type GatewaySettings struct {
	URL              string        `yaml:"url"`
	Intents          uint64        `yaml:"intents"`
	Version          int           `yaml:"version"`
	Encoding         string        `yaml:"encoding"`
	Compress         string        `yaml:"compress"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	DispatchBuffer   int           `yaml:"dispatch_buffer"`
}

// RESTSettings configures the HTTP client.
type RESTSettings struct {
	BaseURL            string        `yaml:"base_url"`
	UserAgent          string        `yaml:"user_agent"`
	MaxAttempts        int           `yaml:"max_attempts"`
	RetryWait          time.Duration `yaml:"retry_wait"`
	BreakerMaxFailures uint32        `yaml:"breaker_max_failures"`
	BreakerTimeout     time.Duration `yaml:"breaker_timeout"`
	BreakerInterval    time.Duration `yaml:"breaker_interval"`
}

// LogSettings configures structured logging.
type LogSettings struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// Default returns the configuration used when a field is absent.
func Default() Config {
	return Config{
		Gateway: GatewaySettings{
			URL:              "wss://gateway.example.gg",
			Version:          10,
			HandshakeTimeout: 5 * time.Second,
		},
		REST: RESTSettings{
			BaseURL: "https://api.example.gg/v10",
		},
		Log: LogSettings{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a YAML configuration file, fills defaults, applies environment
// overrides and validates the result.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration bytes.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if cfg.Token == "" {
		cfg.Token = os.Getenv(EnvToken)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for values that cannot work.
func (c Config) Validate() error {
	if c.Token == "" {
		return fmt.Errorf("config: token missing (set token: or %s)", EnvToken)
	}
	if c.Gateway.URL == "" {
		return fmt.Errorf("config: gateway.url missing")
	}
	if c.REST.BaseURL == "" {
		return fmt.Errorf("config: rest.base_url missing")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config: unknown log format %q", c.Log.Format)
	}
	return nil
}

// GatewayClientConfig converts the settings into a gateway client
// configuration.
func (c Config) GatewayClientConfig() gw.ClientConfig {
	return gw.ClientConfig{
		Token:            c.Token,
		Intents:          c.Gateway.Intents,
		URL:              c.Gateway.URL,
		Version:          c.Gateway.Version,
		Encoding:         c.Gateway.Encoding,
		Compress:         c.Gateway.Compress,
		HandshakeTimeout: c.Gateway.HandshakeTimeout,
		DispatchBuffer:   c.Gateway.DispatchBuffer,
	}
}

// RESTClientConfig converts the settings into a REST client configuration.
func (c Config) RESTClientConfig() api.ClientConfig {
	return api.ClientConfig{
		BaseURL:            c.REST.BaseURL,
		Token:              c.Token,
		UserAgent:          c.REST.UserAgent,
		MaxAttempts:        c.REST.MaxAttempts,
		RetryWait:          c.REST.RetryWait,
		BreakerMaxFailures: c.REST.BreakerMaxFailures,
		BreakerTimeout:     c.REST.BreakerTimeout,
		BreakerInterval:    c.REST.BreakerInterval,
	}
}
