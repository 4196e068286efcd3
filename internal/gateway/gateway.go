// Package gateway owns the WebSocket session to the event gateway: the
// connection state machine, the heartbeat task, the identify/resume
// handshake, reconnection policy, and dispatch handoff.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/driftwire-io/driftwire"
	"github.com/driftwire-io/driftwire/internal/payload"
)

// Default connection settings.
const (
	defaultVersion          = 10
	defaultEncoding         = "json"
	defaultHandshakeTimeout = 5 * time.Second
	defaultWriteTimeout     = 10 * time.Second
	defaultDispatchBuffer   = 256

	// Outbound envelope budget: 120 sends per 60 seconds.
	defaultSendRate  rate.Limit = 2
	defaultSendBurst            = 120
)

// Config configures a gateway connection.
type Config struct {
	// Token is the bot token sent with IDENTIFY and RESUME.
	Token string
	// Intents is the event-group bitmask sent with IDENTIFY.
	Intents uint64
	// URL is the base gateway URL, e.g. "wss://gateway.example.gg".
	URL string
	// Version is the protocol version query parameter. Defaults to 10.
	Version int
	// Encoding is the payload encoding query parameter. Defaults to "json".
	Encoding string
	// Compress optionally requests payload compression.
	Compress string
	// HandshakeTimeout bounds the WebSocket dial. Defaults to 5s.
	HandshakeTimeout time.Duration
	// DispatchBuffer is the event queue size between the read loop and the
	// sink pump. Defaults to 256.
	DispatchBuffer int
	// SendRate and SendBurst bound outbound envelopes. Default to the
	// gateway's 120-per-60s budget.
	SendRate  rate.Limit
	SendBurst int
	// Properties identifies the client inside IDENTIFY. Defaulted if empty.
	Properties payload.Properties
}

// sessionMeta is the connection's session bookkeeping. It is owned
// exclusively by the connection's own tasks: HELLO sets the heartbeat
// interval, READY sets the session ID, every DISPATCH advances the sequence,
// and a non-resumable INVALID_SESSION clears the session ID.
type sessionMeta struct {
	heartbeatInterval time.Duration
	sessionID         string
	seq               int64
	hasSeq            bool
}

type dispatchEvent struct {
	name string
	data json.RawMessage
}

// Conn is a client connection to the event gateway.
//
// A connected Conn runs three cooperating tasks: the read loop (frame
// decode, state machine, sequence tracking), the heartbeat loop, and the
// dispatch pump feeding the sink. Socket failures are recovered internally
// by redialing and resuming; only Close ends the connection for good.
type Conn struct {
	cfg    Config
	sink   driftwire.DispatchSink
	logger *slog.Logger
	dialer *websocket.Dialer

	sendLimiter *rate.Limiter

	mu    sync.RWMutex
	state driftwire.ConnState
	ws    *websocket.Conn
	meta  sessionMeta

	writeMu sync.Mutex // gorilla allows one concurrent writer

	ackMu   sync.Mutex
	sentAt  time.Time
	ackedAt time.Time

	dispatchCh chan dispatchEvent

	rootCtx    context.Context
	rootCancel context.CancelFunc
	runWG      sync.WaitGroup

	// Per-attempt lifecycle: the heartbeat task is bound to one connection
	// attempt and must be cancelled and joined before the next dial.
	attempt       context.Context
	attemptCancel context.CancelFunc
	attemptWG     sync.WaitGroup
}

// New creates a gateway connection. If logger is nil, slog.Default() is
// used. The sink must not be nil.
func New(cfg Config, sink driftwire.DispatchSink, logger *slog.Logger) *Conn {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Version == 0 {
		cfg.Version = defaultVersion
	}
	if cfg.Encoding == "" {
		cfg.Encoding = defaultEncoding
	}
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	if cfg.DispatchBuffer == 0 {
		cfg.DispatchBuffer = defaultDispatchBuffer
	}
	if cfg.SendRate == 0 {
		cfg.SendRate = defaultSendRate
	}
	if cfg.SendBurst == 0 {
		cfg.SendBurst = defaultSendBurst
	}
	if cfg.Properties == (payload.Properties{}) {
		cfg.Properties = payload.Properties{
			OS:      runtime.GOOS,
			Browser: "driftwire",
			Device:  "driftwire",
		}
	}

	return &Conn{
		cfg:         cfg,
		sink:        sink,
		logger:      logger,
		dialer:      &websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout},
		sendLimiter: rate.NewLimiter(cfg.SendRate, cfg.SendBurst),
		state:       driftwire.StateDisconnected,
		dispatchCh:  make(chan dispatchEvent, cfg.DispatchBuffer),
	}
}

// Connect dials the gateway and starts the connection's tasks. It returns
// once the socket handshake completes; identify/resume continues in the
// background. Only the initial handshake failure is surfaced.
func (c *Conn) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != driftwire.StateDisconnected {
		c.mu.Unlock()
		return driftwire.ErrAlreadyConnected
	}
	c.mu.Unlock()

	c.setState(driftwire.StateConnecting)

	ws, err := c.dial(ctx)
	if err != nil {
		c.setState(driftwire.StateDisconnected)
		return fmt.Errorf("gateway dial: %w", err)
	}

	c.rootCtx, c.rootCancel = context.WithCancel(context.Background())

	c.mu.Lock()
	c.ws = ws
	c.mu.Unlock()
	c.setState(driftwire.StateAwaitingHello)

	c.beginAttempt()
	c.runWG.Add(2)
	go c.pump()
	go c.run()

	return nil
}

// Close shuts the connection down: the heartbeat task is cancelled and
// joined, the socket closes with a normal-closure frame, and no reconnect is
// attempted. Safe to call more than once.
func (c *Conn) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.state == driftwire.StateClosing || c.state == driftwire.StateDisconnected {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	c.setState(driftwire.StateClosing)
	if c.rootCancel != nil {
		c.rootCancel()
	}
	c.endAttempt()

	c.mu.Lock()
	ws := c.ws
	c.mu.Unlock()
	if ws != nil {
		message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		deadline := time.Now().Add(time.Second)
		ws.WriteControl(websocket.CloseMessage, message, deadline)
		ws.Close()
	}

	done := make(chan struct{})
	go func() {
		c.runWG.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	c.setState(driftwire.StateDisconnected)
	return nil
}

// State reports the connection's current lifecycle state.
func (c *Conn) State() driftwire.ConnState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Latency returns the duration between the last heartbeat send and its
// acknowledgment. Zero until the first acknowledgment arrives.
func (c *Conn) Latency() time.Duration {
	c.ackMu.Lock()
	defer c.ackMu.Unlock()
	if c.ackedAt.IsZero() || c.ackedAt.Before(c.sentAt) {
		return 0
	}
	return c.ackedAt.Sub(c.sentAt)
}

// SessionID returns the cached session ID, empty when no session is live.
func (c *Conn) SessionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.meta.sessionID
}

// Sequence returns the last tracked dispatch sequence.
func (c *Conn) Sequence() (int64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.meta.seq, c.meta.hasSeq
}

func (c *Conn) dial(ctx context.Context) (*websocket.Conn, error) {
	url := fmt.Sprintf("%s/?v=%d&encoding=%s", c.cfg.URL, c.cfg.Version, c.cfg.Encoding)
	if c.cfg.Compress != "" {
		url += "&compress=" + c.cfg.Compress
	}
	ws, _, err := c.dialer.DialContext(ctx, url, nil)
	return ws, err
}

// beginAttempt starts the lifecycle of one connection attempt. The
// heartbeat task binds to its context.
func (c *Conn) beginAttempt() context.Context {
	ctx, cancel := context.WithCancel(c.rootCtx)
	c.mu.Lock()
	c.attempt = ctx
	c.attemptCancel = cancel
	c.mu.Unlock()
	return ctx
}

// endAttempt cancels the current attempt's tasks and waits for them. A
// reconnect must never leave the prior heartbeat task running alongside a
// new connection.
func (c *Conn) endAttempt() {
	c.mu.Lock()
	cancel := c.attemptCancel
	c.attemptCancel = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	c.attemptWG.Wait()
}

// run drives the connection: one readLoop per attempt, reconnecting until
// shutdown.
func (c *Conn) run() {
	defer c.runWG.Done()

	for {
		c.mu.RLock()
		ws := c.ws
		c.mu.RUnlock()

		err := c.readLoop(ws)

		if c.State() == driftwire.StateClosing {
			return
		}
		c.logger.Warn("gateway socket lost, reconnecting", "error", err)

		// The prior attempt's heartbeat must be gone before a new socket
		// exists, or two tasks could beat against one connection.
		c.endAttempt()
		c.setState(driftwire.StateConnecting)

		ws, ok := c.redial()
		if !ok {
			return
		}
		c.mu.Lock()
		c.ws = ws
		c.mu.Unlock()
		c.resetAckClock()
		c.setState(driftwire.StateAwaitingHello)
		c.beginAttempt()
	}
}

// redial re-establishes the socket with exponential backoff. Returns false
// when the connection is shutting down.
func (c *Conn) redial() (*websocket.Conn, bool) {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 0 // keep trying until shutdown

	for {
		if c.State() == driftwire.StateClosing {
			return nil, false
		}

		ws, err := c.dial(c.rootCtx)
		if err == nil {
			return ws, true
		}

		wait := bo.NextBackOff()
		c.logger.Warn("gateway redial failed", "error", err, "retry_in", wait)
		c.setState(driftwire.StateConnecting)

		select {
		case <-c.rootCtx.Done():
			return nil, false
		case <-time.After(wait):
		}
	}
}

// readLoop processes frames in receipt order until the socket fails.
// Malformed frames are logged and dropped; they never close the connection.
func (c *Conn) readLoop(ws *websocket.Conn) error {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return err
		}

		env, err := payload.Decode(data)
		if err != nil {
			c.logger.Warn("dropping malformed frame", "error", err)
			continue
		}

		c.handle(env)
	}
}

// handle interprets one envelope and drives the state machine.
func (c *Conn) handle(env payload.Envelope) {
	c.logger.Debug("gateway frame", "op", env.Op.String())

	switch env.Op {
	case payload.OpHello:
		c.onHello(env)

	case payload.OpHeartbeat:
		// Server requested an immediate heartbeat.
		c.sendHeartbeat()

	case payload.OpHeartbeatACK:
		c.ackMu.Lock()
		c.ackedAt = time.Now()
		c.ackMu.Unlock()
		c.logger.Debug("heartbeat acknowledged", "latency", c.Latency())

	case payload.OpInvalidSession:
		resumable := false
		if env.Data != nil {
			_ = json.Unmarshal(env.Data, &resumable)
		}
		c.logger.Warn("session invalidated by server", "resumable", resumable)
		if !resumable {
			c.mu.Lock()
			c.meta.sessionID = ""
			c.mu.Unlock()
		}
		c.closeSocket()

	case payload.OpReconnect:
		// Session is kept; the next HELLO resumes it.
		c.logger.Info("server requested reconnect")
		c.closeSocket()

	case payload.OpDispatch:
		c.onDispatch(env)
	}
}

func (c *Conn) onHello(env payload.Envelope) {
	var d payload.HelloData
	if err := json.Unmarshal(env.Data, &d); err != nil {
		c.logger.Warn("dropping malformed HELLO data", "error", err)
		return
	}

	interval := time.Duration(d.HeartbeatInterval) * time.Millisecond
	c.mu.Lock()
	c.meta.heartbeatInterval = interval
	sessionID := c.meta.sessionID
	attemptCtx := c.attempt
	c.mu.Unlock()

	c.attemptWG.Add(1)
	go c.heartbeatLoop(attemptCtx, interval)
	c.logger.Debug("heartbeat started", "interval", interval)

	if sessionID == "" {
		c.setState(driftwire.StateIdentifying)
		c.sendIdentify()
	} else {
		c.setState(driftwire.StateResuming)
		c.sendResume(sessionID)
	}
}

func (c *Conn) onDispatch(env payload.Envelope) {
	name := ""
	if env.EventName != nil {
		name = *env.EventName
	}

	// READY starts a fresh session; sequences from any prior session no
	// longer apply.
	if name == "READY" {
		c.mu.Lock()
		c.meta.hasSeq = false
		c.mu.Unlock()
	}
	if env.Sequence != nil {
		c.trackSequence(*env.Sequence)
	}

	switch name {
	case "READY":
		var d payload.ReadyData
		if err := json.Unmarshal(env.Data, &d); err != nil {
			c.logger.Warn("dropping malformed READY data", "error", err)
			return
		}
		c.mu.Lock()
		c.meta.sessionID = d.SessionID
		c.mu.Unlock()
		c.setState(driftwire.StateReady)
		c.logger.Info("gateway ready", "session_id", d.SessionID)

	case "RESUMED":
		c.setState(driftwire.StateReady)
		c.mu.RLock()
		c.logger.Info("gateway resumed",
			"session_id", c.meta.sessionID, "sequence", c.meta.seq)
		c.mu.RUnlock()
	}

	c.forward(name, env.Data)
}

// forward queues one event for the sink. Never blocks: a sink too far
// behind loses events rather than stalling heartbeats or frame reads.
func (c *Conn) forward(name string, data json.RawMessage) {
	select {
	case c.dispatchCh <- dispatchEvent{name: name, data: data}:
	default:
		c.logger.Warn("dispatch sink too slow, dropping event", "event", name)
	}
}

// pump drains the dispatch queue into the sink on its own goroutine.
func (c *Conn) pump() {
	defer c.runWG.Done()
	for {
		select {
		case <-c.rootCtx.Done():
			return
		case ev := <-c.dispatchCh:
			c.sink.OnDispatch(ev.name, ev.data)
		}
	}
}

// trackSequence advances the session sequence monotonically; stale or
// duplicate sequences never move it backwards.
func (c *Conn) trackSequence(seq int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.meta.hasSeq || seq > c.meta.seq {
		c.meta.seq = seq
		c.meta.hasSeq = true
	}
}

// heartbeatLoop sends one HEARTBEAT immediately and then one per interval,
// each carrying the latest observed sequence. If the previous beat was
// never acknowledged by the time the next is due, the connection is
// considered dead and the socket is closed to force a resume-reconnect.
func (c *Conn) heartbeatLoop(ctx context.Context, interval time.Duration) {
	defer c.attemptWG.Done()

	c.sendHeartbeat()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if c.zombie() {
				c.logger.Warn("heartbeat unacknowledged past interval, forcing reconnect")
				c.closeSocket()
				return
			}
			c.sendHeartbeat()
		}
	}
}

// zombie reports whether the last heartbeat is still unacknowledged.
func (c *Conn) zombie() bool {
	c.ackMu.Lock()
	defer c.ackMu.Unlock()
	return !c.sentAt.IsZero() && c.ackedAt.Before(c.sentAt)
}

// resetAckClock clears heartbeat bookkeeping for a fresh attempt.
func (c *Conn) resetAckClock() {
	c.ackMu.Lock()
	defer c.ackMu.Unlock()
	c.sentAt = time.Time{}
	c.ackedAt = time.Time{}
}

func (c *Conn) sendHeartbeat() {
	var seq *int64
	c.mu.RLock()
	if c.meta.hasSeq {
		v := c.meta.seq
		seq = &v
	}
	c.mu.RUnlock()

	env, err := payload.NewHeartbeat(seq)
	if err != nil {
		c.logger.Warn("failed to build heartbeat", "error", err)
		return
	}
	if err := c.send(env); err != nil {
		c.logger.Warn("failed to send heartbeat", "error", err)
		return
	}
	c.ackMu.Lock()
	c.sentAt = time.Now()
	c.ackMu.Unlock()
}

func (c *Conn) sendIdentify() {
	env, err := payload.NewIdentify(c.cfg.Token, c.cfg.Intents, c.cfg.Properties)
	if err != nil {
		c.logger.Warn("failed to build identify", "error", err)
		return
	}
	if err := c.send(env); err != nil {
		c.logger.Warn("failed to send identify", "error", err)
		return
	}
	c.logger.Debug("identify sent")
}

func (c *Conn) sendResume(sessionID string) {
	c.mu.RLock()
	seq := c.meta.seq
	c.mu.RUnlock()

	env, err := payload.NewResume(c.cfg.Token, sessionID, seq)
	if err != nil {
		c.logger.Warn("failed to build resume", "error", err)
		return
	}
	if err := c.send(env); err != nil {
		c.logger.Warn("failed to send resume", "error", err)
		return
	}
	c.logger.Debug("resume sent", "session_id", sessionID, "sequence", seq)
}

// UpdatePresence is reserved. Opcode 3 is allocated on the wire but the send
// path is not implemented.
func (c *Conn) UpdatePresence(ctx context.Context, status string) error {
	return driftwire.ErrUnimplemented
}

// UpdateVoiceState is reserved. Opcode 4 is allocated on the wire but the
// send path is not implemented.
func (c *Conn) UpdateVoiceState(ctx context.Context, guildID, channelID string) error {
	return driftwire.ErrUnimplemented
}

// RequestGuildMembers is reserved. Opcode 8 is allocated on the wire but the
// send path is not implemented.
func (c *Conn) RequestGuildMembers(ctx context.Context, guildID string) error {
	return driftwire.ErrUnimplemented
}

// send encodes and writes one envelope, paced by the outbound budget.
func (c *Conn) send(env payload.Envelope) error {
	data, err := payload.Encode(env)
	if err != nil {
		return err
	}

	if err := c.sendLimiter.Wait(c.rootCtx); err != nil {
		return err
	}

	c.mu.RLock()
	ws := c.ws
	c.mu.RUnlock()
	if ws == nil {
		return driftwire.ErrConnectionClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	ws.SetWriteDeadline(time.Now().Add(defaultWriteTimeout))
	return ws.WriteMessage(websocket.TextMessage, data)
}

// closeSocket forces the read loop off the current socket so the run loop
// reconnects. The session survives unless it was cleared first.
func (c *Conn) closeSocket() {
	c.mu.RLock()
	ws := c.ws
	c.mu.RUnlock()
	if ws != nil {
		ws.Close()
	}
}

// setState applies a table-validated transition.
func (c *Conn) setState(to driftwire.ConnState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == to {
		return
	}
	if !canTransition(c.state, to) {
		c.logger.Warn("refusing invalid state transition",
			"from", c.state.String(), "to", to.String())
		return
	}
	c.logger.Debug("state transition", "from", c.state.String(), "to", to.String())
	c.state = to
}
