package profilecache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skymarshal/core/internal/atmodel"
)

func TestSQLiteUpsertThenGetRoundTrips(t *testing.T) {
	cache, err := OpenSQLite(t.TempDir() + "/profiles.sqlite")
	require.NoError(t, err)
	defer cache.Close()

	profile := atmodel.Profile{DID: "did:plc:alice", Handle: "alice.bsky.social", FollowersCount: 10}
	require.NoError(t, cache.UpsertProfiles([]atmodel.Profile{profile}))

	got, err := cache.GetProfiles([]atmodel.DID{"did:plc:alice"}, atmodel.DefaultProfileTTL)
	require.NoError(t, err)
	require.Contains(t, got, atmodel.DID("did:plc:alice"))
	assert.Equal(t, "alice.bsky.social", got["did:plc:alice"].Handle)
	assert.Equal(t, 10, got["did:plc:alice"].FollowersCount)
}

func TestSQLiteGetProfilesExcludesStaleEntries(t *testing.T) {
	cache, err := OpenSQLite(t.TempDir() + "/profiles.sqlite")
	require.NoError(t, err)
	defer cache.Close()

	profile := atmodel.Profile{DID: "did:plc:bob", Handle: "bob.bsky.social", LastUpdated: time.Now().Add(-48 * time.Hour)}
	require.NoError(t, cache.db.Save(&profile).Error)

	got, err := cache.GetProfiles([]atmodel.DID{"did:plc:bob"}, time.Hour)
	require.NoError(t, err)
	assert.NotContains(t, got, atmodel.DID("did:plc:bob"))
}

func TestSQLiteFindMissingNeverReturnsFreshDID(t *testing.T) {
	cache, err := OpenSQLite(t.TempDir() + "/profiles.sqlite")
	require.NoError(t, err)
	defer cache.Close()

	require.NoError(t, cache.UpsertProfiles([]atmodel.Profile{{DID: "did:plc:carol", Handle: "carol.bsky.social"}}))

	missing, err := cache.FindMissing([]string{"carol.bsky.social", "dave.bsky.social"}, atmodel.DefaultProfileTTL)
	require.NoError(t, err)
	assert.Equal(t, []string{"dave.bsky.social"}, missing)
}
