// Package atmodel defines the normalized data model shared across every
// skymarshal component: handles, DIDs, record URIs, content items,
// profiles, search filters, network snapshots, and sessions.
package atmodel

import "strings"

// Handle is a human-readable ATProto actor alias, e.g. "alice.bsky.social".
type Handle string

// NormalizeHandle trims whitespace, strips a single leading "@", rewrites
// any remaining "@" to ".", and appends the default PDS suffix when the
// result carries no dot. Idempotent: NormalizeHandle(NormalizeHandle(h)) ==
// NormalizeHandle(h).
func NormalizeHandle(raw string) Handle {
	h := strings.TrimSpace(raw)
	h = strings.TrimPrefix(h, "@")
	h = strings.ReplaceAll(h, "@", ".")
	if !strings.Contains(h, ".") {
		h += ".bsky.social"
	}
	return Handle(h)
}

func (h Handle) String() string { return string(h) }
