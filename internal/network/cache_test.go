package network

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skymarshal/core/internal/atmodel"
)

func TestFetchCacheSetThenGetRoundTrips(t *testing.T) {
	cache, err := NewFetchCache(t.TempDir(), time.Hour)
	require.NoError(t, err)

	snapshot := atmodel.NetworkSnapshot{Metadata: atmodel.NetworkMetadata{TargetHandle: "alice.bsky.social"}}
	require.NoError(t, cache.Set("network:alice", snapshot))

	got, ok := cache.Get("network:alice", 0)
	require.True(t, ok)
	assert.Equal(t, "alice.bsky.social", got.Metadata.TargetHandle)
}

func TestFetchCacheGetMissingKeyIsMiss(t *testing.T) {
	cache, err := NewFetchCache(t.TempDir(), time.Hour)
	require.NoError(t, err)

	_, ok := cache.Get("network:nobody", 0)
	assert.False(t, ok)
}

func TestFetchCacheExpiredEntryIsEvicted(t *testing.T) {
	dir := t.TempDir()
	cache, err := NewFetchCache(dir, time.Hour)
	require.NoError(t, err)

	require.NoError(t, cache.Set("network:alice", atmodel.NetworkSnapshot{}))

	meta := `{"created_at":1,"key":"network:alice"}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "network_alice.meta.json"), []byte(meta), 0o644))

	_, ok := cache.Get("network:alice", time.Hour)
	assert.False(t, ok)
	_, err = os.Stat(filepath.Join(dir, "network_alice.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestFetchCacheCorruptEntrySelfHeals(t *testing.T) {
	dir := t.TempDir()
	cache, err := NewFetchCache(dir, time.Hour)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "network_alice.json"), []byte("not json"), 0o644))

	_, ok := cache.Get("network:alice", 0)
	assert.False(t, ok)
}

func TestKeyEncodesFetchParameters(t *testing.T) {
	opts := DefaultOptions()
	k := Key("alice.bsky.social", opts)
	assert.Contains(t, k, "network:alice.bsky.social")
	assert.Contains(t, k, "follower")
	assert.Contains(t, k, "following")
	assert.Contains(t, k, "balanced")
}
