package driftwire

// Intents is the bitmask of event groups a connection subscribes to. It is
// sent with the IDENTIFY payload and never changes for the lifetime of a
// session.
type Intents uint64

const (
	IntentGuilds Intents = 1 << iota
	IntentGuildMembers
	IntentGuildModeration
	IntentGuildExpressions
	IntentGuildIntegrations
	IntentGuildWebhooks
	IntentGuildInvites
	IntentGuildVoiceStates
	IntentGuildPresences
	IntentGuildMessages
	IntentGuildMessageReactions
	IntentGuildMessageTyping
	IntentDirectMessages
	IntentDirectMessageReactions
	IntentDirectMessageTyping
	IntentMessageContent
)

// IntentsDefault covers the non-privileged event groups most bots need.
const IntentsDefault = IntentGuilds | IntentGuildMessages | IntentDirectMessages

// Has reports whether every bit in other is set.
func (i Intents) Has(other Intents) bool {
	return i&other == other
}
