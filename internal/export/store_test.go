package export

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/skymarshal/core/internal/atmodel"
)

func ptr(s string) *string { return &s }

func TestSummarizeCountsByContentType(t *testing.T) {
	now := time.Now()
	items := []atmodel.ContentItem{
		{ContentType: atmodel.ContentPost, Text: ptr("a"), CreatedAt: &now},
		{ContentType: atmodel.ContentReply, Text: ptr("b"), CreatedAt: &now},
		{ContentType: atmodel.ContentLike, CreatedAt: &now},
		{ContentType: atmodel.ContentRepost, CreatedAt: &now},
		{ContentType: atmodel.ContentRepost, CreatedAt: &now},
	}

	summary := Summarize(items)

	assert.Equal(t, Summary{Posts: 1, Replies: 1, Likes: 1, Reposts: 2, Total: 5}, summary)
}

func TestContentStoreRemoveEvictsAcrossHandles(t *testing.T) {
	s := NewContentStore(nil, nil)
	s.items["alice"] = []atmodel.ContentItem{{URI: "at://did/app.bsky.feed.post/1"}, {URI: "at://did/app.bsky.feed.post/2"}}
	s.items["bob"] = []atmodel.ContentItem{{URI: "at://did/app.bsky.feed.post/1"}}

	s.Remove("at://did/app.bsky.feed.post/1")

	assert.Len(t, s.items["alice"], 1)
	assert.Equal(t, atmodel.RecordURI("at://did/app.bsky.feed.post/2"), s.items["alice"][0].URI)
	assert.Len(t, s.items["bob"], 0)
}

func TestFilterByCategoriesEmptyMeansAll(t *testing.T) {
	items := []atmodel.ContentItem{
		{ContentType: atmodel.ContentPost, URI: "at://did/app.bsky.feed.post/1"},
		{ContentType: atmodel.ContentLike, URI: "at://did/app.bsky.feed.like/1"},
	}
	filtered := filterByCategories(items, Categories{})
	assert.Len(t, filtered, 2)
}

func TestFilterByCategoriesNarrows(t *testing.T) {
	items := []atmodel.ContentItem{
		{ContentType: atmodel.ContentPost, URI: "at://did/app.bsky.feed.post/1"},
		{ContentType: atmodel.ContentLike, URI: "at://did/app.bsky.feed.like/1"},
	}
	filtered := filterByCategories(items, Categories{Posts: true})
	assert.Len(t, filtered, 1)
	assert.Equal(t, atmodel.ContentPost, filtered[0].ContentType)
}
