// Package api is the public surface of the REST client: construction plus
// typed route builders for the HTTP API.
package api

import (
	"log/slog"

	"github.com/driftwire-io/driftwire"
	"github.com/driftwire-io/driftwire/internal/ratelimit"
	"github.com/driftwire-io/driftwire/internal/rest"
)

type ClientConfig = rest.Config

// New creates a REST client with default pacing.
//
// Example:
//
//	client := api.New(api.NewConfig("https://api.example.gg/v10", token), nil)
//	body, err := client.Request(ctx, api.CreateMessage("123"), map[string]string{"content": "pong"})
func New(cfg ClientConfig, logger *slog.Logger) driftwire.RestClient {
	return rest.New(cfg, ratelimit.New(ratelimit.DefaultConfig(), logger), logger)
}

// NewConfig builds a REST configuration with library defaults for retries
// and the circuit breaker.
func NewConfig(baseURL, token string) ClientConfig {
	return ClientConfig{
		BaseURL: baseURL,
		Token:   token,
	}
}
