package gw

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/driftwire-io/driftwire/event"
)

// Dispatcher fans dispatches out to typed handlers. It implements the
// dispatch sink and decodes each payload once, before handler invocation.
// Registration is append-only; handlers cannot be removed.
//
// Handlers run on the connection's dispatch pump, so a slow handler delays
// later events (but never heartbeats or frame reads). Do long work on your
// own goroutine.
type Dispatcher struct {
	logger *slog.Logger

	mu       sync.RWMutex
	handlers map[event.Name][]func(any)
	raw      []func(event.Raw)
}

// NewDispatcher creates an empty dispatcher. If logger is nil,
// slog.Default() is used.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		logger:   logger,
		handlers: make(map[event.Name][]func(any)),
	}
}

// OnDispatch decodes and routes one gateway dispatch. Unknown events go to
// the raw handlers; decode failures are logged and dropped.
func (d *Dispatcher) OnDispatch(eventName string, data json.RawMessage) {
	v, err := event.Decode(eventName, data)
	if err != nil {
		d.logger.Warn("dropping undecodable dispatch", "event", eventName, "error", err)
		return
	}

	if raw, ok := v.(event.Raw); ok {
		d.mu.RLock()
		hs := d.raw
		d.mu.RUnlock()
		for _, h := range hs {
			h(raw)
		}
		return
	}

	name := event.Parse(eventName)
	d.mu.RLock()
	hs := d.handlers[name]
	d.mu.RUnlock()
	for _, h := range hs {
		h(v)
	}
}

// OnRaw registers a handler for events outside the known set.
func (d *Dispatcher) OnRaw(h func(event.Raw)) {
	d.mu.Lock()
	d.raw = append(d.raw, h)
	d.mu.Unlock()
}

func (d *Dispatcher) on(name event.Name, h func(any)) {
	d.mu.Lock()
	d.handlers[name] = append(d.handlers[name], h)
	d.mu.Unlock()
}

// OnReady registers a handler for the session-established event.
func (d *Dispatcher) OnReady(h func(event.ReadyEvent)) {
	d.on(event.Ready, func(v any) { h(v.(event.ReadyEvent)) })
}

// OnMessageCreate registers a handler for new messages.
func (d *Dispatcher) OnMessageCreate(h func(event.Message)) {
	d.on(event.MessageCreate, func(v any) { h(v.(event.Message)) })
}

// OnMessageUpdate registers a handler for edited messages.
func (d *Dispatcher) OnMessageUpdate(h func(event.Message)) {
	d.on(event.MessageUpdate, func(v any) { h(v.(event.Message)) })
}

// OnMessageDelete registers a handler for deleted messages.
func (d *Dispatcher) OnMessageDelete(h func(event.Message)) {
	d.on(event.MessageDelete, func(v any) { h(v.(event.Message)) })
}

// OnGuildCreate registers a handler for guild availability.
func (d *Dispatcher) OnGuildCreate(h func(event.Guild)) {
	d.on(event.GuildCreate, func(v any) { h(v.(event.Guild)) })
}

// OnGuildMemberAdd registers a handler for members joining.
func (d *Dispatcher) OnGuildMemberAdd(h func(event.Member)) {
	d.on(event.GuildMemberAdd, func(v any) { h(v.(event.Member)) })
}

// OnChannelCreate registers a handler for channel creation.
func (d *Dispatcher) OnChannelCreate(h func(event.Channel)) {
	d.on(event.ChannelCreate, func(v any) { h(v.(event.Channel)) })
}

// OnTypingStart registers a handler for typing notifications.
func (d *Dispatcher) OnTypingStart(h func(event.Typing)) {
	d.on(event.TypingStart, func(v any) { h(v.(event.Typing)) })
}

// OnPresenceUpdate registers a handler for presence changes.
func (d *Dispatcher) OnPresenceUpdate(h func(event.Presence)) {
	d.on(event.PresenceUpdate, func(v any) { h(v.(event.Presence)) })
}
