package network

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/skymarshal/core/internal/atmodel"
)

// DefaultCacheTTL mirrors skymarshal/network/cache.py's DEFAULT_TTL_SECONDS.
const DefaultCacheTTL = time.Hour

type cacheMeta struct {
	CreatedAt int64  `json:"created_at"`
	Key       string `json:"key"`
}

// FetchCache is a filesystem TTL cache for NetworkSnapshots, keyed by
// handle + fetch parameters. Each entry stores the JSON payload alongside
// a ".meta.json" sidecar carrying the creation timestamp, per
// skymarshal/network/cache.py.
type FetchCache struct {
	dir string
	ttl time.Duration
}

// NewFetchCache opens (creating if absent) a filesystem cache rooted at dir.
func NewFetchCache(dir string, ttl time.Duration) (*FetchCache, error) {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FetchCache{dir: dir, ttl: ttl}, nil
}

// Key derives a cache key from a handle and its fetch parameters.
func Key(handle string, opts Options) string {
	parts := []string{
		"network:" + handle,
		boolPart(opts.IncludeFollowers, "follower", "nofollower"),
		boolPart(opts.IncludeFollowing, "following", "nofollowing"),
		"maxf" + strconv.Itoa(orDefault(opts.MaxFollowers, 500)),
		"maxt" + strconv.Itoa(orDefault(opts.MaxFollowing, 500)),
		string(opts.Mode),
	}
	return strings.Join(parts, ":")
}

func boolPart(b bool, ifTrue, ifFalse string) string {
	if b {
		return ifTrue
	}
	return ifFalse
}

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func (c *FetchCache) dataPath(key string) string {
	return filepath.Join(c.dir, safeKey(key)+".json")
}

func (c *FetchCache) metaPath(key string) string {
	return filepath.Join(c.dir, safeKey(key)+".meta.json")
}

func safeKey(key string) string {
	key = strings.ReplaceAll(key, "/", "_")
	return strings.ReplaceAll(key, ":", "_")
}

// Get returns the cached snapshot for key if present and not expired. A
// corrupt or unreadable entry is treated as a miss and removed, rather
// than surfaced as an error, mirroring the Python cache's self-healing
// behavior.
func (c *FetchCache) Get(key string, ttl time.Duration) (atmodel.NetworkSnapshot, bool) {
	if ttl <= 0 {
		ttl = c.ttl
	}
	dataPath := c.dataPath(key)
	data, err := os.ReadFile(dataPath)
	if err != nil || len(data) == 0 {
		return atmodel.NetworkSnapshot{}, false
	}

	if metaRaw, err := os.ReadFile(c.metaPath(key)); err == nil {
		var meta cacheMeta
		if json.Unmarshal(metaRaw, &meta) == nil {
			age := time.Since(time.Unix(meta.CreatedAt, 0))
			if age > ttl {
				c.Delete(key)
				return atmodel.NetworkSnapshot{}, false
			}
		}
	}

	var snapshot atmodel.NetworkSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		c.Delete(key)
		return atmodel.NetworkSnapshot{}, false
	}
	return snapshot, true
}

// Set stores snapshot under key along with its creation-time metadata.
func (c *FetchCache) Set(key string, snapshot atmodel.NetworkSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	if err := os.WriteFile(c.dataPath(key), data, 0o644); err != nil {
		return err
	}
	meta, err := json.Marshal(cacheMeta{CreatedAt: time.Now().Unix(), Key: key})
	if err != nil {
		return err
	}
	return os.WriteFile(c.metaPath(key), meta, 0o644)
}

// Delete removes both files of a cache entry, ignoring a missing file.
func (c *FetchCache) Delete(key string) {
	_ = os.Remove(c.dataPath(key))
	_ = os.Remove(c.metaPath(key))
}

// Clear removes every cached entry and returns the count of data files
// removed.
func (c *FetchCache) Clear() (int, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".json") && !strings.HasSuffix(e.Name(), ".meta.json") {
			if err := os.Remove(filepath.Join(c.dir, e.Name())); err == nil {
				count++
			}
		} else if strings.HasSuffix(e.Name(), ".meta.json") {
			_ = os.Remove(filepath.Join(c.dir, e.Name()))
		}
	}
	return count, nil
}
