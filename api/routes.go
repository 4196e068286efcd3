package api

import (
	"github.com/driftwire-io/driftwire"
)

// Route constructors. Each carries the channel or guild ID used for bucket
// scoping, so two channels never contend for one rate-limit bucket.

// GetChannel fetches a channel object.
func GetChannel(channelID string) driftwire.Route {
	return driftwire.Route{
		Method:    driftwire.MethodGet,
		Path:      "/channels/" + channelID,
		ChannelID: channelID,
	}
}

// ModifyChannel updates a channel's settings.
func ModifyChannel(channelID string) driftwire.Route {
	return driftwire.Route{
		Method:    driftwire.MethodPut,
		Path:      "/channels/" + channelID,
		ChannelID: channelID,
	}
}

// DeleteChannel deletes or closes a channel.
func DeleteChannel(channelID string) driftwire.Route {
	return driftwire.Route{
		Method:    driftwire.MethodDelete,
		Path:      "/channels/" + channelID,
		ChannelID: channelID,
	}
}

// GetChannelMessages lists a channel's messages. Pagination goes in the
// query payload.
func GetChannelMessages(channelID string) driftwire.Route {
	return driftwire.Route{
		Method:    driftwire.MethodGet,
		Path:      "/channels/" + channelID + "/messages",
		ChannelID: channelID,
	}
}

// GetChannelMessage fetches one message.
func GetChannelMessage(channelID, messageID string) driftwire.Route {
	return driftwire.Route{
		Method:    driftwire.MethodGet,
		Path:      "/channels/" + channelID + "/messages/" + messageID,
		ChannelID: channelID,
	}
}

// CreateMessage posts a message to a channel.
func CreateMessage(channelID string) driftwire.Route {
	return driftwire.Route{
		Method:    driftwire.MethodPost,
		Path:      "/channels/" + channelID + "/messages",
		ChannelID: channelID,
	}
}

// EditMessage edits an existing message.
func EditMessage(channelID, messageID string) driftwire.Route {
	return driftwire.Route{
		Method:    driftwire.MethodPut,
		Path:      "/channels/" + channelID + "/messages/" + messageID,
		ChannelID: channelID,
	}
}

// DeleteMessage removes a message. Deletions are bucketed separately from
// sends on the server side, expressed here as a shared bucket name.
func DeleteMessage(channelID, messageID string) driftwire.Route {
	return driftwire.Route{
		Method:       driftwire.MethodDelete,
		Path:         "/channels/" + channelID + "/messages/" + messageID,
		ChannelID:    channelID,
		SharedBucket: "message-delete",
	}
}

// TriggerTyping starts the typing indicator in a channel.
func TriggerTyping(channelID string) driftwire.Route {
	return driftwire.Route{
		Method:    driftwire.MethodPost,
		Path:      "/channels/" + channelID + "/typing",
		ChannelID: channelID,
	}
}

// GetGuild fetches a guild object.
func GetGuild(guildID string) driftwire.Route {
	return driftwire.Route{
		Method:  driftwire.MethodGet,
		Path:    "/guilds/" + guildID,
		GuildID: guildID,
	}
}

// ModifyGuild updates a guild's settings.
func ModifyGuild(guildID string) driftwire.Route {
	return driftwire.Route{
		Method:  driftwire.MethodPut,
		Path:    "/guilds/" + guildID,
		GuildID: guildID,
	}
}

// GetGuildChannels lists a guild's channels.
func GetGuildChannels(guildID string) driftwire.Route {
	return driftwire.Route{
		Method:  driftwire.MethodGet,
		Path:    "/guilds/" + guildID + "/channels",
		GuildID: guildID,
	}
}

// CreateGuildChannel creates a channel in a guild.
func CreateGuildChannel(guildID string) driftwire.Route {
	return driftwire.Route{
		Method:  driftwire.MethodPost,
		Path:    "/guilds/" + guildID + "/channels",
		GuildID: guildID,
	}
}

// GetGuildRoles lists a guild's roles.
func GetGuildRoles(guildID string) driftwire.Route {
	return driftwire.Route{
		Method:  driftwire.MethodGet,
		Path:    "/guilds/" + guildID + "/roles",
		GuildID: guildID,
	}
}

// CreateGuildRole creates a role.
func CreateGuildRole(guildID string) driftwire.Route {
	return driftwire.Route{
		Method:  driftwire.MethodPost,
		Path:    "/guilds/" + guildID + "/roles",
		GuildID: guildID,
	}
}

// DeleteGuildRole removes a role.
func DeleteGuildRole(guildID, roleID string) driftwire.Route {
	return driftwire.Route{
		Method:  driftwire.MethodDelete,
		Path:    "/guilds/" + guildID + "/roles/" + roleID,
		GuildID: guildID,
	}
}

// GetGuildMember fetches one member.
func GetGuildMember(guildID, userID string) driftwire.Route {
	return driftwire.Route{
		Method:  driftwire.MethodGet,
		Path:    "/guilds/" + guildID + "/members/" + userID,
		GuildID: guildID,
	}
}

// ListGuildMembers pages through a guild's members.
func ListGuildMembers(guildID string) driftwire.Route {
	return driftwire.Route{
		Method:  driftwire.MethodGet,
		Path:    "/guilds/" + guildID + "/members",
		GuildID: guildID,
	}
}

// RemoveGuildMember kicks a member.
func RemoveGuildMember(guildID, userID string) driftwire.Route {
	return driftwire.Route{
		Method:  driftwire.MethodDelete,
		Path:    "/guilds/" + guildID + "/members/" + userID,
		GuildID: guildID,
	}
}

// GetCurrentUser fetches the authenticated user.
func GetCurrentUser() driftwire.Route {
	return driftwire.Route{
		Method: driftwire.MethodGet,
		Path:   "/users/@me",
	}
}

// GetGateway fetches the gateway connection URL.
func GetGateway() driftwire.Route {
	return driftwire.Route{
		Method: driftwire.MethodGet,
		Path:   "/gateway/bot",
	}
}
