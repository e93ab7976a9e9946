package atmodel

import "time"

// Profile is a cached view of an actor, considered stale after the
// configured TTL (default 14 days).
type Profile struct {
	DID             DID       `json:"did" gorm:"primaryKey"`
	Handle          string    `json:"handle" gorm:"index"`
	DisplayName     string    `json:"display_name"`
	Description     string    `json:"description"`
	FollowersCount  int       `json:"followers_count" gorm:"index:idx_followers,sort:desc"`
	FollowingCount  int       `json:"following_count"`
	PostsCount      int       `json:"posts_count"`
	Avatar          string    `json:"avatar"`
	LastUpdated     time.Time `json:"last_updated"`
}

// DefaultProfileTTL is the staleness window spec.md §3 names (14 days).
const DefaultProfileTTL = 14 * 24 * time.Hour

// Stale reports whether the profile is older than ttl as of now.
func (p Profile) Stale(now time.Time, ttl time.Duration) bool {
	return now.Sub(p.LastUpdated) > ttl
}
