package gateway

import (
	"github.com/driftwire-io/driftwire"
)

// transitions is the explicit state-machine table. A transition absent from
// the table is a bug in the connection's sequencing, not a recoverable
// condition; setState logs it and refuses the move.
var transitions = map[driftwire.ConnState]map[driftwire.ConnState]bool{
	driftwire.StateDisconnected: {
		driftwire.StateConnecting: true, // connect()/reconnect()
	},
	driftwire.StateConnecting: {
		driftwire.StateAwaitingHello: true, // socket opened
		driftwire.StateConnecting:    true, // redial attempt failed, trying again
		driftwire.StateDisconnected:  true, // initial handshake failed
		driftwire.StateClosing:       true,
	},
	driftwire.StateAwaitingHello: {
		driftwire.StateIdentifying: true, // HELLO, no prior session
		driftwire.StateResuming:    true, // HELLO, cached session
		driftwire.StateConnecting:  true, // socket lost before HELLO
		driftwire.StateClosing:     true,
	},
	driftwire.StateIdentifying: {
		driftwire.StateReady:      true, // READY dispatch
		driftwire.StateConnecting: true,
		driftwire.StateClosing:    true,
	},
	driftwire.StateResuming: {
		driftwire.StateReady:      true, // RESUMED dispatch
		driftwire.StateConnecting: true,
		driftwire.StateClosing:    true,
	},
	driftwire.StateReady: {
		driftwire.StateReady:      true, // steady-state dispatch processing
		driftwire.StateConnecting: true, // closure, INVALID_SESSION, RECONNECT
		driftwire.StateClosing:    true,
	},
	driftwire.StateClosing: {
		driftwire.StateDisconnected: true,
	},
}

// canTransition reports whether the table permits moving from one state to
// another.
func canTransition(from, to driftwire.ConnState) bool {
	return transitions[from][to]
}
