// Package event maps gateway dispatch names onto a closed set of event
// types with typed payloads. Names outside the set parse as Unknown rather
// than failing, so new server-side events degrade to raw payloads instead of
// breaking clients.
package event

import (
	"encoding/json"
	"fmt"
)

// Name identifies a dispatch event.
type Name int

// The closed event set. Unknown is the zero value so an unmapped dispatch
// name never masquerades as a real event.
const (
	Unknown Name = iota
	Ready
	Resumed
	ChannelCreate
	ChannelUpdate
	ChannelDelete
	GuildCreate
	GuildUpdate
	GuildDelete
	GuildRoleCreate
	GuildRoleUpdate
	GuildRoleDelete
	GuildMemberAdd
	GuildMemberUpdate
	GuildMemberRemove
	MessageCreate
	MessageUpdate
	MessageDelete
	TypingStart
	PresenceUpdate
)

var wireNames = map[Name]string{
	Ready:             "READY",
	Resumed:           "RESUMED",
	ChannelCreate:     "CHANNEL_CREATE",
	ChannelUpdate:     "CHANNEL_UPDATE",
	ChannelDelete:     "CHANNEL_DELETE",
	GuildCreate:       "GUILD_CREATE",
	GuildUpdate:       "GUILD_UPDATE",
	GuildDelete:       "GUILD_DELETE",
	GuildRoleCreate:   "GUILD_ROLE_CREATE",
	GuildRoleUpdate:   "GUILD_ROLE_UPDATE",
	GuildRoleDelete:   "GUILD_ROLE_DELETE",
	GuildMemberAdd:    "GUILD_MEMBER_ADD",
	GuildMemberUpdate: "GUILD_MEMBER_UPDATE",
	GuildMemberRemove: "GUILD_MEMBER_REMOVE",
	MessageCreate:     "MESSAGE_CREATE",
	MessageUpdate:     "MESSAGE_UPDATE",
	MessageDelete:     "MESSAGE_DELETE",
	TypingStart:       "TYPING_START",
	PresenceUpdate:    "PRESENCE_UPDATE",
}

var byWireName = func() map[string]Name {
	m := make(map[string]Name, len(wireNames))
	for n, s := range wireNames {
		m[s] = n
	}
	return m
}()

// Parse maps a wire dispatch name onto the event set. Unmapped names return
// Unknown, never an error.
func Parse(wire string) Name {
	return byWireName[wire]
}

func (n Name) String() string {
	if s, ok := wireNames[n]; ok {
		return s
	}
	return "UNKNOWN"
}

// User is a platform account.
type User struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Discriminator string `json:"discriminator"`
	Bot           bool   `json:"bot"`
}

// Member is a user's guild membership.
type Member struct {
	User     *User    `json:"user,omitempty"`
	Nick     string   `json:"nick,omitempty"`
	Roles    []string `json:"roles"`
	GuildID  string   `json:"guild_id,omitempty"`
	JoinedAt string   `json:"joined_at,omitempty"`
}

// Role is a guild role.
type Role struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Color       int    `json:"color"`
	Position    int    `json:"position"`
	Permissions string `json:"permissions"`
	GuildID     string `json:"guild_id,omitempty"`
}

// Channel is a guild or direct-message channel.
type Channel struct {
	ID      string `json:"id"`
	Type    int    `json:"type"`
	GuildID string `json:"guild_id,omitempty"`
	Name    string `json:"name,omitempty"`
	Topic   string `json:"topic,omitempty"`
}

// Guild is a server-side guild object.
type Guild struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	OwnerID     string    `json:"owner_id,omitempty"`
	Roles       []Role    `json:"roles,omitempty"`
	Channels    []Channel `json:"channels,omitempty"`
	Unavailable bool      `json:"unavailable,omitempty"`
}

// Message is a channel message.
type Message struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
	GuildID   string `json:"guild_id,omitempty"`
	Author    *User  `json:"author,omitempty"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Typing is a typing-start notification.
type Typing struct {
	ChannelID string  `json:"channel_id"`
	GuildID   string  `json:"guild_id,omitempty"`
	UserID    string  `json:"user_id"`
	Timestamp int64   `json:"timestamp"`
	Member    *Member `json:"member,omitempty"`
}

// Presence is a user presence change.
type Presence struct {
	User    User   `json:"user"`
	GuildID string `json:"guild_id,omitempty"`
	Status  string `json:"status"`
}

// ReadyEvent is the session-establishing dispatch payload.
type ReadyEvent struct {
	Version   int    `json:"v"`
	SessionID string `json:"session_id"`
	User      *User  `json:"user,omitempty"`
}

// Raw carries an Unknown event's untouched payload.
type Raw struct {
	WireName string
	Data     json.RawMessage
}

// Decode parses a dispatch payload into the typed form for its event. For
// Unknown (and Resumed, which carries no meaningful payload) the raw bytes
// are returned wrapped in Raw.
func Decode(wire string, data json.RawMessage) (any, error) {
	name := Parse(wire)

	var (
		out any
		err error
	)
	switch name {
	case Ready:
		out, err = decodeAs[ReadyEvent](data)
	case ChannelCreate, ChannelUpdate, ChannelDelete:
		out, err = decodeAs[Channel](data)
	case GuildCreate, GuildUpdate, GuildDelete:
		out, err = decodeAs[Guild](data)
	case GuildRoleCreate, GuildRoleUpdate, GuildRoleDelete:
		out, err = decodeAs[Role](data)
	case GuildMemberAdd, GuildMemberUpdate, GuildMemberRemove:
		out, err = decodeAs[Member](data)
	case MessageCreate, MessageUpdate, MessageDelete:
		out, err = decodeAs[Message](data)
	case TypingStart:
		out, err = decodeAs[Typing](data)
	case PresenceUpdate:
		out, err = decodeAs[Presence](data)
	default:
		return Raw{WireName: wire, Data: data}, nil
	}

	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", name, err)
	}
	return out, nil
}

func decodeAs[T any](data json.RawMessage) (T, error) {
	var v T
	err := json.Unmarshal(data, &v)
	return v, err
}
