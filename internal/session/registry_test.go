package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateThenGetTouchesLastAccessed(t *testing.T) {
	r := NewRegistry(time.Hour)
	defer r.Stop()

	sess := r.Create("alice.bsky.social", "did:plc:alice", "access", "refresh")
	before := sess.LastAccessed

	time.Sleep(time.Millisecond)
	got := r.Get(sess.SessionID)
	require.NotNil(t, got)
	assert.True(t, got.LastAccessed.After(before) || got.LastAccessed.Equal(before))
}

func TestGetExpiredSessionReturnsNilAndEvicts(t *testing.T) {
	r := NewRegistry(time.Millisecond)
	defer r.Stop()

	sess := r.Create("alice.bsky.social", "did:plc:alice", "access", "refresh")
	time.Sleep(5 * time.Millisecond)

	assert.Nil(t, r.Get(sess.SessionID))
	assert.Equal(t, 0, r.Count())
}

func TestGetByHandleReturnsMostRecentlyAccessed(t *testing.T) {
	r := NewRegistry(time.Hour)
	defer r.Stop()

	first := r.Create("alice.bsky.social", "did:plc:alice", "a1", "r1")
	time.Sleep(2 * time.Millisecond)
	second := r.Create("alice.bsky.social", "did:plc:alice", "a2", "r2")

	got := r.GetByHandle("alice.bsky.social")
	require.NotNil(t, got)
	assert.Equal(t, second.SessionID, got.SessionID)
	_ = first
}

func TestClearRemovesSession(t *testing.T) {
	r := NewRegistry(time.Hour)
	defer r.Stop()

	sess := r.Create("alice.bsky.social", "did:plc:alice", "a", "r")
	r.Clear(sess.SessionID)
	assert.Nil(t, r.Get(sess.SessionID))
}
