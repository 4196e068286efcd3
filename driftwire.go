package driftwire

import (
	"context"
	"encoding/json"
	"time"
)

// GatewayClient defines the interface for a client connection to the event
// gateway. All traffic is exchanged as JSON envelopes carrying an opcode,
// optional event data, and session bookkeeping fields.
//
// The connection owns its own recovery: socket closures, invalidated sessions
// and server-requested reconnects are handled internally by resuming or
// re-identifying. Callers only observe an error from Connect when the very
// first handshake cannot be established.
//
// Example usage:
//
//	import "github.com/driftwire-io/driftwire/gw"
//
//	cfg := gw.NewConfig("wss://gateway.example.gg", os.Getenv("BOT_TOKEN"), uint64(driftwire.IntentsDefault))
//	client := gw.New(cfg, sink, nil)
//
//	if err := client.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
type GatewayClient interface {
	// Connect dials the gateway and starts the connection's internal tasks
	// (read loop, heartbeat loop, dispatch pump). It returns once the socket
	// handshake completes; the identify/resume exchange continues in the
	// background.
	//
	// Returns an error only if the initial socket handshake fails. All later
	// failures are recovered internally via resume or re-identify.
	Connect(ctx context.Context) error

	// Close shuts the connection down. The heartbeat task is cancelled and
	// joined, the socket is closed with a normal-closure frame, and no
	// reconnect is attempted.
	Close(ctx context.Context) error

	// State reports the current lifecycle state of the connection.
	State() ConnState

	// Latency returns the duration between the last heartbeat send and its
	// acknowledgment. Zero until the first acknowledgment arrives.
	Latency() time.Duration
}

// DispatchSink receives named events from the gateway connection.
//
// OnDispatch is invoked from a dedicated pump goroutine, never from the
// connection's read loop, so implementations may block without stalling
// heartbeats or frame reads. Events that cannot be queued because the sink
// is too far behind are dropped and logged.
type DispatchSink interface {
	// OnDispatch hands over one named event. The data is the raw `d` field
	// of the envelope, forwarded verbatim.
	OnDispatch(eventName string, data json.RawMessage)
}

// RestClient defines the interface for the rate-limited REST layer.
//
// Every request passes through the shared rate limiter before touching the
// network and feeds response headers back into it afterwards, so concurrent
// callers collectively honor per-route and global quotas.
type RestClient interface {
	// Request issues one HTTP call for the given route.
	//
	// For GET and DELETE routes the payload must be nil or url.Values and is
	// sent as the query string; for POST and PUT it is marshalled as the JSON
	// body.
	//
	// Returns *APIError when the response body carries an application-level
	// error, and *TransportError after transient network retries are
	// exhausted.
	Request(ctx context.Context, route Route, payload any) (json.RawMessage, error)
}

// RouteMethod is the HTTP method of a REST route.
type RouteMethod string

const (
	MethodGet    RouteMethod = "GET"
	MethodPost   RouteMethod = "POST"
	MethodPut    RouteMethod = "PUT"
	MethodDelete RouteMethod = "DELETE"
)

// Route identifies a REST endpoint for both request building and rate-limit
// bucketing.
//
// ChannelID and GuildID are top-level identifiers: they participate in the
// bucket key so that limits scoped to one channel or guild do not throttle
// another, but they are excluded from the route's string identity.
type Route struct {
	Method    RouteMethod
	Path      string
	ChannelID string
	GuildID   string

	// SharedBucket optionally names another bucket this route is known to
	// share a server-side limit with. When set, it replaces the path in the
	// bucket key so both routes block together.
	SharedBucket string
}

// Identity returns the route's string identity, excluding top-level IDs.
func (r Route) Identity() string {
	return string(r.Method) + " " + r.Path
}

// BucketKey returns the rate-limit bucket key for the route. The shared
// override takes precedence over the route's own path; top-level IDs are
// always included.
func (r Route) BucketKey() string {
	path := r.Path
	if r.SharedBucket != "" {
		path = r.SharedBucket
	}
	return r.ChannelID + ":" + r.GuildID + ":" + path
}
