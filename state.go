package driftwire

// ConnState is the lifecycle state of a gateway connection.
//
// The connection moves Disconnected -> Connecting -> AwaitingHello ->
// (Identifying | Resuming) -> Ready, loops on Ready in steady state, and
// returns to Connecting on recoverable failures. Closing is entered only on
// explicit shutdown.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateAwaitingHello
	StateIdentifying
	StateResuming
	StateReady
	StateClosing
)

var stateNames = map[ConnState]string{
	StateDisconnected:  "disconnected",
	StateConnecting:    "connecting",
	StateAwaitingHello: "awaiting_hello",
	StateIdentifying:   "identifying",
	StateResuming:      "resuming",
	StateReady:         "ready",
	StateClosing:       "closing",
}

func (s ConnState) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}
