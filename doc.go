// Package driftwire provides a client for a real-time event gateway over
// WebSockets, paired with a rate-limited REST request layer.
//
// The gateway side maintains a persistent connection over which the server
// pushes named events; the REST side issues HTTP calls gated by per-route and
// global rate-limit buckets so concurrent callers never trip server quotas.
//
// # Architecture
//
// Every gateway message is a four-field JSON envelope: an opcode, opaque
// event data, and two session bookkeeping fields (sequence number and event
// name) that are populated only on dispatch frames. The connection is an
// explicit state machine: it dials, waits for HELLO, identifies or resumes
// depending on whether a prior session is cached, and then processes dispatch
// frames in receipt order while an independent heartbeat task keeps the
// session alive.
//
// # Quick Start
//
//	import (
//	    "github.com/driftwire-io/driftwire"
//	    "github.com/driftwire-io/driftwire/event"
//	    "github.com/driftwire-io/driftwire/gw"
//	)
//
//	d := gw.NewDispatcher(nil)
//	d.OnMessageCreate(func(m event.Message) {
//	    // react to the event
//	})
//
//	cfg := gw.NewConfig("wss://gateway.example.gg", os.Getenv("BOT_TOKEN"),
//	    uint64(driftwire.IntentsDefault))
//	client := gw.New(cfg, d, nil)
//	if err := client.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # Envelope Format
//
// The wire format is a JSON object with four keys that are always present;
// absent optional fields are encoded as null, never omitted:
//
//	{"op": <int>, "d": <any|null>, "s": <int|null>, "t": <string|null>}
//
// Opcodes 0-11 follow the gateway protocol: 0 DISPATCH, 1 HEARTBEAT,
// 2 IDENTIFY, 6 RESUME, 7 RECONNECT, 9 INVALID_SESSION, 10 HELLO,
// 11 HEARTBEAT_ACK. Opcodes 3, 4 and 8 are reserved but their send paths are
// not implemented.
//
// # Failure Recovery
//
// Socket closures trigger an automatic reconnect and are never surfaced to
// the caller. A cached session ID is resumed where possible; INVALID_SESSION
// without the resumable flag clears the session and forces a fresh IDENTIFY.
// A heartbeat that goes unacknowledged past its interval marks the connection
// as dead and forces a resume-reconnect.
//
// # Rate Limiting
//
// REST calls block inside the limiter until both the global gate and the
// route's bucket are clear. Buckets are derived from the route's method,
// path and top-level channel/guild IDs; a 429 response or an exhausted
// remaining-quota header locks the relevant bucket for the server-supplied
// reset duration, and all concurrent callers sharing the bucket observe the
// block immediately.
//
// # Important
//
//   - OnDispatch runs on a pump goroutine; a slow sink drops events rather
//     than stalling the read loop.
//   - Session metadata is owned by the connection's own tasks and must not
//     be mutated externally.
//   - Request retries cover transient network errors only; rate limits are
//     handled by suspension, application errors are surfaced as *APIError.
package driftwire
