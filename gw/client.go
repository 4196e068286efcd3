// Package gw is the public surface of the gateway client. It wraps the
// internal connection machinery behind the root interfaces.
package gw

import (
	"log/slog"
	"time"

	"github.com/driftwire-io/driftwire"
	"github.com/driftwire-io/driftwire/internal/gateway"
)

type ClientConfig = gateway.Config

// New creates a gateway client delivering dispatches to sink.
//
// Example:
//
//	d := gw.NewDispatcher(nil)
//	d.OnMessageCreate(func(m event.Message) { log.Printf("<%s> %s", m.Author.Username, m.Content) })
//	client := gw.New(gw.NewConfig("wss://gateway.example.gg", token, uint64(driftwire.IntentsDefault)), d, nil)
//	if err := client.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
func New(cfg ClientConfig, sink driftwire.DispatchSink, logger *slog.Logger) driftwire.GatewayClient {
	return gateway.New(cfg, sink, logger)
}

// NewConfig builds a gateway configuration with library defaults for
// everything beyond the connection essentials.
func NewConfig(url, token string, intents uint64) ClientConfig {
	return ClientConfig{
		URL:              url,
		Token:            token,
		Intents:          intents,
		HandshakeTimeout: 5 * time.Second,
	}
}
