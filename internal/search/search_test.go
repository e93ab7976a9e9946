package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/skymarshal/core/internal/atmodel"
)

func textPtr(s string) *string { return &s }
func timePtr(t time.Time) *time.Time { return &t }

func sampleItems() []atmodel.ContentItem {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	items := []atmodel.ContentItem{
		{URI: "at://did/app.bsky.feed.post/1", ContentType: atmodel.ContentPost, Text: textPtr("golang is great"), CreatedAt: timePtr(base), LikeCount: 10},
		{URI: "at://did/app.bsky.feed.post/2", ContentType: atmodel.ContentReply, Text: textPtr("I dislike spam"), CreatedAt: timePtr(base.Add(time.Hour)), LikeCount: 1},
		{URI: "at://did/app.bsky.feed.repost/3", ContentType: atmodel.ContentRepost, CreatedAt: timePtr(base.Add(2 * time.Hour))},
	}
	for i := range items {
		items[i].RecomputeEngagement()
	}
	return items
}

func TestSearchBareKeywordIsCaseInsensitiveSubstring(t *testing.T) {
	items := sampleItems()
	filter := atmodel.SearchFilter{Keywords: []string{"GO"}}
	results, total := Search(items, filter)
	assert.Equal(t, 1, total)
	if assert.Len(t, results, 1) {
		assert.Contains(t, *results[0].Text, "golang")
	}
}

func TestSearchExplicitWordBoundaryMarkerExcludesSubstringMatch(t *testing.T) {
	items := sampleItems()
	filter := atmodel.SearchFilter{Keywords: []string{`\bgo\b`}}
	results, total := Search(items, filter)
	assert.Equal(t, 0, total)
	assert.Empty(t, results)
}

func TestSearchExactPhraseIsCaseSensitive(t *testing.T) {
	items := sampleItems()
	filter := atmodel.SearchFilter{Keywords: []string{`"Golang"`}}
	results, total := Search(items, filter)
	assert.Equal(t, 0, total)
	assert.Empty(t, results)

	filter = atmodel.SearchFilter{Keywords: []string{`"golang"`}}
	results, total = Search(items, filter)
	assert.Equal(t, 1, total)
	assert.Len(t, results, 1)
}

func TestSearchNegativeKeywordExcludes(t *testing.T) {
	items := sampleItems()
	filter := atmodel.SearchFilter{Keywords: []string{"-spam"}}
	results, total := Search(items, filter)
	assert.Equal(t, 2, total)
	for _, r := range results {
		if r.Text != nil {
			assert.NotContains(t, *r.Text, "spam")
		}
	}
}

func TestSearchContentTypeFilter(t *testing.T) {
	items := sampleItems()
	filter := atmodel.SearchFilter{ContentTypes: []atmodel.ContentTypeFilter{atmodel.FilterReposts}}
	results, total := Search(items, filter)
	assert.Equal(t, 1, total)
	assert.Equal(t, atmodel.ContentRepost, results[0].ContentType)
}

func TestSearchSortNewestIsDefault(t *testing.T) {
	items := sampleItems()
	results, _ := Search(items, atmodel.SearchFilter{})
	assert.True(t, results[0].CreatedAt.After(*results[len(results)-1].CreatedAt))
}

func TestSearchLimitTruncatesButReportsFullTotal(t *testing.T) {
	items := sampleItems()
	filter := atmodel.SearchFilter{Limit: 1}
	results, total := Search(items, filter)
	assert.Len(t, results, 1)
	assert.Equal(t, 3, total)
}

func TestSearchSubjectHandleContainsFiltersResolvedRepostsAndLikes(t *testing.T) {
	items := []atmodel.ContentItem{
		{URI: "at://did/app.bsky.feed.repost/bob", ContentType: atmodel.ContentRepost, RawData: atmodel.RawData{SubjectURI: "at://did:plc:bob/app.bsky.feed.post/xyz", SubjectHandle: "bob.bsky.social"}},
		{URI: "at://did/app.bsky.feed.like/carol", ContentType: atmodel.ContentLike, RawData: atmodel.RawData{SubjectURI: "at://did:plc:carol/app.bsky.feed.post/abc", SubjectHandle: "carol.bsky.social"}},
	}
	filter := atmodel.SearchFilter{SubjectHandleContains: "bob"}
	results, total := Search(items, filter)
	assert.Equal(t, 1, total)
	assert.Equal(t, atmodel.ContentRepost, results[0].ContentType)
}
