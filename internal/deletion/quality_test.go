package deletion

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/skymarshal/core/internal/atmodel"
)

func TestAnalyzeFollowingQualityFlagsSuspiciousBotAccount(t *testing.T) {
	profiles := []atmodel.Profile{
		{DID: "did:plc:bot", Handle: "user88392011.bsky.social", FollowersCount: 2, FollowingCount: 4000, PostsCount: 0},
		{DID: "did:plc:real", Handle: "alice.bsky.social", Description: "hi I'm alice", FollowersCount: 500, FollowingCount: 300, PostsCount: 120},
	}

	results := AnalyzeFollowingQuality(profiles)

	assert.Len(t, results, 2)
	bot := results[0]
	assert.True(t, bot.SuspiciousHandle)
	assert.True(t, bot.EmptyDescription)
	assert.True(t, bot.Recommend)

	real := results[1]
	assert.False(t, real.SuspiciousHandle)
	assert.False(t, real.Recommend)
}

func TestFollowerRatioZeroFollowing(t *testing.T) {
	assert.Equal(t, 0.0, followerRatio(0, 0))
	assert.Equal(t, 1.0, followerRatio(5, 0))
	assert.Equal(t, 0.5, followerRatio(5, 10))
}
