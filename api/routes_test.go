package api

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/driftwire-io/driftwire"
)

// TestRouteScoping verifies constructors carry the IDs that scope their
// rate-limit bucket.
func TestRouteScoping(t *testing.T) {
	t.Parallel()

	r := CreateMessage("42")
	assert.Equal(t, driftwire.MethodPost, r.Method)
	assert.Equal(t, "/channels/42/messages", r.Path)
	assert.Equal(t, "42", r.ChannelID)

	g := GetGuildMember("7", "9")
	assert.Equal(t, "/guilds/7/members/9", g.Path)
	assert.Equal(t, "7", g.GuildID)
	assert.Empty(t, g.ChannelID)
}

// TestBucketIsolation verifies distinct channels never share a bucket key
// while the same channel's send routes do.
func TestBucketIsolation(t *testing.T) {
	t.Parallel()

	assert.NotEqual(t, CreateMessage("1").BucketKey(), CreateMessage("2").BucketKey())
	assert.Equal(t, CreateMessage("1").BucketKey(), GetChannelMessages("1").BucketKey())
}

// TestDeleteMessageSharedBucket verifies deletions share one bucket per
// channel, separate from sends.
func TestDeleteMessageSharedBucket(t *testing.T) {
	t.Parallel()

	a := DeleteMessage("1", "10")
	b := DeleteMessage("1", "11")
	assert.Equal(t, a.BucketKey(), b.BucketKey())
	assert.NotEqual(t, a.BucketKey(), CreateMessage("1").BucketKey())
}
