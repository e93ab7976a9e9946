package config

import (
	"os"
	"path/filepath"
	"strconv"
)

// Paths resolves the storage locations spec.md §6 names, all rooted under
// $HOME/.skymarshal unless overridden by SKYMARSHAL_HOME.
type Paths struct {
	Root string
}

// DefaultPaths resolves Root from SKYMARSHAL_HOME or $HOME/.skymarshal.
func DefaultPaths() Paths {
	if root := os.Getenv("SKYMARSHAL_HOME"); root != "" {
		return Paths{Root: root}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return Paths{Root: filepath.Join(home, ".skymarshal")}
}

func (p Paths) JSONExport(handle string) string {
	return filepath.Join(p.Root, "json", handle+".json")
}

func (p Paths) CARBackup(handle string, timestamp int64) string {
	return filepath.Join(p.Root, "cars", handle+"-"+strconv.FormatInt(timestamp, 10)+".car")
}

func (p Paths) ProfileCacheSQLite() string {
	return filepath.Join(p.Root, "profile_cache.sqlite")
}

func (p Paths) SessionBlob() string {
	return filepath.Join(p.Root, "session.json")
}

func (p Paths) SharedPosts() string {
	return filepath.Join(p.Root, "shared_posts.sqlite")
}

func (p Paths) Settings() string {
	return filepath.Join(p.Root, "settings.json")
}

func (p Paths) NetworkCacheDir() string {
	return filepath.Join(p.Root, "network_cache")
}
