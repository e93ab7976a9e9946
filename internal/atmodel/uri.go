package atmodel

import (
	"fmt"
	"strings"
)

// DID is an actor's decentralized identifier, e.g. "did:plc:abcd1234".
type DID string

// Collection names used by this system.
const (
	CollectionPost   = "app.bsky.feed.post"
	CollectionLike   = "app.bsky.feed.like"
	CollectionRepost = "app.bsky.feed.repost"
	CollectionFollow = "app.bsky.graph.follow"
)

// RecordURI is of the form at://<did>/<collection>/<rkey>.
type RecordURI string

// Parsed is the decomposed form of a RecordURI.
type Parsed struct {
	DID        DID
	Collection string
	RKey       string
}

// Parse splits a RecordURI into (did, collection, rkey). It returns a
// Validation-flavored error (via internal/skyerr at the call site) when the
// URI doesn't have the at://did/collection/rkey shape.
func (u RecordURI) Parse() (Parsed, error) {
	s := string(u)
	const prefix = "at://"
	if len(s) <= len(prefix) || s[:len(prefix)] != prefix {
		return Parsed{}, fmt.Errorf("not an at:// uri: %q", s)
	}
	rest := s[len(prefix):]

	first := strings.IndexByte(rest, '/')
	if first < 0 {
		return Parsed{}, fmt.Errorf("missing collection/rkey in uri: %q", s)
	}
	did := rest[:first]
	rest = rest[first+1:]

	second := strings.IndexByte(rest, '/')
	if second < 0 {
		return Parsed{}, fmt.Errorf("missing rkey in uri: %q", s)
	}
	collection := rest[:second]
	rkey := rest[second+1:]

	if did == "" || collection == "" || rkey == "" {
		return Parsed{}, fmt.Errorf("empty component in uri: %q", s)
	}

	return Parsed{DID: DID(did), Collection: collection, RKey: rkey}, nil
}

// Build reassembles a RecordURI from its parts.
func Build(did DID, collection, rkey string) RecordURI {
	return RecordURI(fmt.Sprintf("at://%s/%s/%s", did, collection, rkey))
}
