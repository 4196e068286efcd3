package payload

import (
	"encoding/json"
	"fmt"

	"github.com/driftwire-io/driftwire"
)

const maxPayloadSize = 10 * 1024 * 1024 // 10MB max frame size

// Opcode identifies a gateway operation.
type Opcode int

// Send and receive opcodes.
const (
	OpDispatch  Opcode = 0
	OpHeartbeat Opcode = 1
)

// Send-only opcodes.
const (
	OpIdentify            Opcode = 2
	OpPresenceUpdate      Opcode = 3 // reserved, send path not implemented
	OpVoiceStateUpdate    Opcode = 4 // reserved, send path not implemented
	OpResume              Opcode = 6
	OpRequestGuildMembers Opcode = 8 // reserved, send path not implemented
)

// Receive-only opcodes.
const (
	OpReconnect      Opcode = 7
	OpInvalidSession Opcode = 9
	OpHello          Opcode = 10
	OpHeartbeatACK   Opcode = 11
)

var opcodeNames = map[Opcode]string{
	OpDispatch:            "DISPATCH",
	OpHeartbeat:           "HEARTBEAT",
	OpIdentify:            "IDENTIFY",
	OpPresenceUpdate:      "PRESENCE_UPDATE",
	OpVoiceStateUpdate:    "VOICE_STATE_UPDATE",
	OpResume:              "RESUME",
	OpReconnect:           "RECONNECT",
	OpRequestGuildMembers: "REQUEST_GUILD_MEMBERS",
	OpInvalidSession:      "INVALID_SESSION",
	OpHello:               "HELLO",
	OpHeartbeatACK:        "HEARTBEAT_ACK",
}

func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return fmt.Sprintf("OPCODE(%d)", int(op))
}

// Valid reports whether op is a known gateway opcode.
func (op Opcode) Valid() bool {
	_, ok := opcodeNames[op]
	return ok
}

// Envelope is the four-field wrapper carried by every gateway message.
//
// Sequence and EventName are populated only on DISPATCH frames (and consumed
// during RESUME bookkeeping); for every other opcode they are null on the
// wire and nil here. An Envelope is immutable once constructed.
type Envelope struct {
	Op        Opcode          `json:"op"`
	Data      json.RawMessage `json:"d"`
	Sequence  *int64          `json:"s"`
	EventName *string         `json:"t"`
}

// Encode serialises the envelope. All four keys are always present; absent
// optional fields serialise as null, never omitted.
func Encode(env Envelope) ([]byte, error) {
	if !env.Op.Valid() {
		return nil, fmt.Errorf("%w: unknown opcode %d", driftwire.ErrMalformedPayload, int(env.Op))
	}
	out, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", driftwire.ErrMalformedPayload, err)
	}
	return out, nil
}

// Decode parses raw bytes into an Envelope. It fails with a
// driftwire.ErrMalformedPayload wrap when the bytes are not valid JSON or
// the opcode field is absent or unknown. Null sequence and event-name fields
// decode as absent, not as errors.
func Decode(data []byte) (Envelope, error) {
	if len(data) > maxPayloadSize {
		return Envelope{}, fmt.Errorf("%w: frame size %d exceeds maximum %d bytes",
			driftwire.ErrMalformedPayload, len(data), maxPayloadSize)
	}

	// Op is a pointer here so a missing "op" key is distinguishable from
	// opcode 0 (DISPATCH).
	var raw struct {
		Op        *int            `json:"op"`
		Data      json.RawMessage `json:"d"`
		Sequence  *int64          `json:"s"`
		EventName *string         `json:"t"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", driftwire.ErrMalformedPayload, err)
	}
	if raw.Op == nil {
		return Envelope{}, fmt.Errorf("%w: missing opcode field", driftwire.ErrMalformedPayload)
	}
	op := Opcode(*raw.Op)
	if !op.Valid() {
		return Envelope{}, fmt.Errorf("%w: unknown opcode %d", driftwire.ErrMalformedPayload, *raw.Op)
	}

	// "null" data decodes as absent.
	d := raw.Data
	if string(d) == "null" {
		d = nil
	}

	return Envelope{
		Op:        op,
		Data:      d,
		Sequence:  raw.Sequence,
		EventName: raw.EventName,
	}, nil
}

// HelloData is the `d` field of a HELLO frame.
type HelloData struct {
	HeartbeatInterval int64 `json:"heartbeat_interval"` // milliseconds
}

// ReadyData is the `d` field of a READY dispatch.
type ReadyData struct {
	Version   int    `json:"v"`
	SessionID string `json:"session_id"`
}

// Properties identifies the connecting client inside an IDENTIFY payload.
type Properties struct {
	OS      string `json:"os"`
	Browser string `json:"browser"`
	Device  string `json:"device"`
}

// IdentifyData is the `d` field of an IDENTIFY frame.
type IdentifyData struct {
	Token      string     `json:"token"`
	Intents    uint64     `json:"intents"`
	Properties Properties `json:"properties"`
}

// ResumeData is the `d` field of a RESUME frame.
type ResumeData struct {
	Token     string `json:"token"`
	SessionID string `json:"session_id"`
	Sequence  int64  `json:"seq"`
}

// NewHeartbeat builds a HEARTBEAT envelope carrying the last known sequence.
// A nil sequence serialises as null, which the server accepts before any
// dispatch has been seen.
func NewHeartbeat(seq *int64) (Envelope, error) {
	d, err := json.Marshal(seq)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Op: OpHeartbeat, Data: d}, nil
}

// NewIdentify builds an IDENTIFY envelope.
func NewIdentify(token string, intents uint64, props Properties) (Envelope, error) {
	d, err := json.Marshal(IdentifyData{Token: token, Intents: intents, Properties: props})
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Op: OpIdentify, Data: d}, nil
}

// NewResume builds a RESUME envelope for an existing session.
func NewResume(token, sessionID string, seq int64) (Envelope, error) {
	d, err := json.Marshal(ResumeData{Token: token, SessionID: sessionID, Sequence: seq})
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Op: OpResume, Data: d}, nil
}
