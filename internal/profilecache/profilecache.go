// Package profilecache implements the durable profile/post key-value
// store of spec.md §4.6.
package profilecache

import (
	"time"

	"github.com/skymarshal/core/internal/atmodel"
)

// CachedPost is the logical posts(...) row spec.md §4.6 names.
type CachedPost struct {
	URI          string    `gorm:"column:uri;primaryKey"`
	CID          string    `gorm:"column:cid"`
	AuthorHandle string    `gorm:"column:author_handle;index"`
	Text         string    `gorm:"column:text"`
	CreatedAt    time.Time `gorm:"column:created_at;index"`
	LikeCount    int       `gorm:"column:like_count"`
	ReplyCount   int       `gorm:"column:reply_count"`
	RepostCount  int       `gorm:"column:repost_count"`
	RawData      string    `gorm:"column:raw_data"` // JSON-encoded atmodel.RawData
}

// Cache is the durable profile/post store. Concurrent writers must be
// serialized; reads must never observe a partial upsert (spec.md §4.6).
// SQLiteCache is the default implementation; PostgresCache serves server
// deployments that set PROFILE_CACHE_BACKEND=postgres.
type Cache interface {
	GetProfiles(dids []atmodel.DID, ttl time.Duration) (map[atmodel.DID]atmodel.Profile, error)
	UpsertProfiles(profiles []atmodel.Profile) error
	FindMissing(handles []string, ttl time.Duration) ([]string, error)
	UpsertPosts(posts []CachedPost) error
	Close() error
}
