package profilecache

import (
	"encoding/json"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/skymarshal/core/internal/atmodel"
)

// SQLiteCache is the default durable backend, grounded on spec.md §4.6/§5's
// WAL-journaled, NORMAL-synchronous durability requirement. Built on
// gorm.io/gorm + gorm.io/driver/sqlite, the embedded-store pair the rest
// of the retrieved pack depends on (indirectly, via the teacher's and
// watzon-lining's go.mod).
type SQLiteCache struct {
	db *gorm.DB
}

// OpenSQLite opens (creating if absent) a WAL-journaled SQLite database
// at path and auto-migrates the profiles/posts schema.
func OpenSQLite(path string) (*SQLiteCache, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, err
	}
	if err := db.Exec("PRAGMA journal_mode=WAL;").Error; err != nil {
		return nil, err
	}
	if err := db.Exec("PRAGMA synchronous=NORMAL;").Error; err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&atmodel.Profile{}, &CachedPost{}); err != nil {
		return nil, err
	}
	return &SQLiteCache{db: db}, nil
}

// GetProfiles returns only DIDs present and not stale past ttl, per
// spec.md §4.6: "a staleness check against the configured TTL may mark
// an entry missing."
func (c *SQLiteCache) GetProfiles(dids []atmodel.DID, ttl time.Duration) (map[atmodel.DID]atmodel.Profile, error) {
	result := make(map[atmodel.DID]atmodel.Profile, len(dids))
	if len(dids) == 0 {
		return result, nil
	}

	var rows []atmodel.Profile
	if err := c.db.Where("did IN ?", dids).Find(&rows).Error; err != nil {
		return nil, err
	}

	now := time.Now()
	for _, p := range rows {
		if ttl > 0 && p.Stale(now, ttl) {
			continue
		}
		result[p.DID] = p
	}
	return result, nil
}

// UpsertProfiles inserts or replaces each profile, stamping LastUpdated.
// Writes are serialized by gorm's single *sql.DB connection pool handling
// one transaction at a time for this table (spec.md §4.6/§5 "serialize
// writes" requirement); reads never observe a partial row since SQLite
// commits a row atomically.
func (c *SQLiteCache) UpsertProfiles(profiles []atmodel.Profile) error {
	if len(profiles) == 0 {
		return nil
	}
	now := time.Now()
	for i := range profiles {
		profiles[i].LastUpdated = now
	}
	return c.db.Transaction(func(tx *gorm.DB) error {
		for _, p := range profiles {
			if err := tx.Save(&p).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// FindMissing returns handles whose row is absent or older than ttl.
func (c *SQLiteCache) FindMissing(handles []string, ttl time.Duration) ([]string, error) {
	if len(handles) == 0 {
		return nil, nil
	}

	var rows []atmodel.Profile
	if err := c.db.Where("handle IN ?", handles).Find(&rows).Error; err != nil {
		return nil, err
	}

	fresh := make(map[string]bool, len(rows))
	now := time.Now()
	for _, p := range rows {
		if ttl <= 0 || !p.Stale(now, ttl) {
			fresh[p.Handle] = true
		}
	}

	missing := make([]string, 0, len(handles))
	for _, h := range handles {
		if !fresh[h] {
			missing = append(missing, h)
		}
	}
	return missing, nil
}

// UpsertPosts inserts or replaces cached posts, JSON-encoding RawData.
func (c *SQLiteCache) UpsertPosts(posts []CachedPost) error {
	if len(posts) == 0 {
		return nil
	}
	return c.db.Transaction(func(tx *gorm.DB) error {
		for _, p := range posts {
			if err := tx.Save(&p).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// CachedPostFromItem builds a CachedPost row from a hydrated ContentItem.
func CachedPostFromItem(item atmodel.ContentItem, authorHandle string) (CachedPost, error) {
	raw, err := json.Marshal(item.RawData)
	if err != nil {
		return CachedPost{}, err
	}
	text := ""
	if item.Text != nil {
		text = *item.Text
	}
	createdAt := time.Time{}
	if item.CreatedAt != nil {
		createdAt = *item.CreatedAt
	}
	return CachedPost{
		URI:          string(item.URI),
		CID:          item.CID,
		AuthorHandle: authorHandle,
		Text:         text,
		CreatedAt:    createdAt,
		LikeCount:    item.LikeCount,
		ReplyCount:   item.ReplyCount,
		RepostCount:  item.RepostCount,
		RawData:      string(raw),
	}, nil
}

// Close releases the underlying *sql.DB connection.
func (c *SQLiteCache) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
