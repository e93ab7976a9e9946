package export

import (
	"context"
	"sync"

	"github.com/skymarshal/core/internal/atclient"
	"github.com/skymarshal/core/internal/atmodel"
)

// DefaultInteractionDetailLimit caps the liker and reposter samples
// Hydrate attaches per item when collectDetails is requested.
const DefaultInteractionDetailLimit = 100

// Summary is the per-category breakdown Summarize returns.
type Summary struct {
	Posts   int `json:"posts"`
	Replies int `json:"replies"`
	Likes   int `json:"likes"`
	Reposts int `json:"reposts"`
	Total   int `json:"total"`
}

// ContentStore caches a handle's content items in memory, fronting
// DataExporter and offering hydration for engagement counts and
// interaction-detail samples.
type ContentStore struct {
	exporter *DataExporter
	client   *atclient.Client

	mu    sync.Mutex
	items map[string][]atmodel.ContentItem // keyed by handle
}

// NewContentStore builds a ContentStore over the given exporter/client.
func NewContentStore(exporter *DataExporter, client *atclient.Client) *ContentStore {
	return &ContentStore{
		exporter: exporter,
		client:   client,
		items:    make(map[string][]atmodel.ContentItem),
	}
}

// EnsureLoaded returns the handle's cached items, populating the cache via
// DataExporter on first access or when forceRefresh is set.
func (s *ContentStore) EnsureLoaded(ctx context.Context, handle string, did atmodel.DID, categories Categories, limit int, forceRefresh bool) ([]atmodel.ContentItem, error) {
	s.mu.Lock()
	cached, ok := s.items[handle]
	s.mu.Unlock()
	if ok && !forceRefresh {
		return cached, nil
	}

	_, items, err := s.exporter.Export(ctx, handle, did, categories, limit)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.items[handle] = items
	s.mu.Unlock()
	return items, nil
}

// Remove evicts a single item from every handle's cache, used by
// DeletionEngine so subsequent searches reflect the deletion immediately.
func (s *ContentStore) Remove(uri atmodel.RecordURI) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for handle, items := range s.items {
		for i, item := range items {
			if item.URI == uri {
				s.items[handle] = append(items[:i], items[i+1:]...)
				break
			}
		}
	}
}

// Hydrate fills engagement counts for posts/replies via batched GetPosts
// (≤25 URIs per call) and, when collectDetails is true, attaches the
// handles of likers and reposters (RawData.Likes, RawData.RepostedBy),
// each capped at DefaultInteractionDetailLimit; quote and reply samples
// are not collected. Engagement scores are recomputed after.
func (s *ContentStore) Hydrate(ctx context.Context, items []atmodel.ContentItem, collectDetails bool) error {
	var postURIs []string
	index := make(map[string]int)
	for i, item := range items {
		if item.ContentType != atmodel.ContentPost && item.ContentType != atmodel.ContentReply {
			continue
		}
		index[string(item.URI)] = i
		postURIs = append(postURIs, string(item.URI))
	}

	for start := 0; start < len(postURIs); start += 25 {
		end := start + 25
		if end > len(postURIs) {
			end = len(postURIs)
		}
		batch := postURIs[start:end]

		posts, err := s.client.GetPosts(ctx, batch)
		if err != nil {
			return err
		}
		for _, p := range posts {
			i, ok := index[p.Uri]
			if !ok {
				continue
			}
			item := &items[i]
			if p.LikeCount != nil {
				item.LikeCount = int(*p.LikeCount)
			}
			if p.RepostCount != nil {
				item.RepostCount = int(*p.RepostCount)
			}
			if p.ReplyCount != nil {
				item.ReplyCount = int(*p.ReplyCount)
			}
			item.RecomputeEngagement()

			if collectDetails {
				s.attachInteractionSamples(ctx, item)
			}
		}
	}

	return nil
}

// attachInteractionSamples fetches the handles of the accounts who
// liked/reposted item, capped at DefaultInteractionDetailLimit, per
// spec.md §4.5's collectDetails option. Quotes and replies are not
// fetched.
func (s *ContentStore) attachInteractionSamples(ctx context.Context, item *atmodel.ContentItem) {
	likers, err := s.client.GetLikes(ctx, string(item.URI), DefaultInteractionDetailLimit)
	if err == nil {
		item.RawData.Likes = likers
	}
	reposters, err := s.client.GetRepostedBy(ctx, string(item.URI), DefaultInteractionDetailLimit)
	if err == nil {
		item.RawData.RepostedBy = reposters
	}
}

// Summarize computes the {posts, replies, likes, reposts, total} counts.
func Summarize(items []atmodel.ContentItem) Summary {
	var s Summary
	for _, item := range items {
		switch item.ContentType {
		case atmodel.ContentPost:
			s.Posts++
		case atmodel.ContentReply:
			s.Replies++
		case atmodel.ContentLike:
			s.Likes++
		case atmodel.ContentRepost:
			s.Reposts++
		}
	}
	s.Total = len(items)
	return s
}
