package atclient

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterAllowsUnderCeiling(t *testing.T) {
	rl := NewRateLimiter(10, time.Minute)
	rl.Acquire(4)
	rl.Acquire(4)

	stats := rl.Stats()
	assert.Equal(t, 8, stats.PointsUsed)
	assert.Equal(t, 2, stats.PointsRemaining)
}

func TestRateLimiterWaitsForOldestToExpire(t *testing.T) {
	rl := NewRateLimiter(10, time.Minute)

	var slept time.Duration
	rl.sleepFn = func(d time.Duration) {
		slept = d
		rl.nowFn = func() time.Time { return time.Now().Add(time.Minute) }
	}

	base := time.Now()
	rl.nowFn = func() time.Time { return base }
	rl.Acquire(9)

	rl.nowFn = func() time.Time { return base }
	rl.Acquire(5)

	require.Greater(t, slept, time.Duration(0))
}

func TestRateLimiterPrunesExpiredEntries(t *testing.T) {
	rl := NewRateLimiter(10, time.Minute)
	base := time.Now()
	rl.nowFn = func() time.Time { return base }
	rl.Acquire(9)

	rl.nowFn = func() time.Time { return base.Add(2 * time.Minute) }
	stats := rl.Stats()
	assert.Equal(t, 0, stats.PointsUsed)
	assert.Equal(t, 10, stats.PointsRemaining)
}
