package atmodel

import "time"

// SortMode selects how Search orders its results.
type SortMode string

const (
	SortNewest       SortMode = "newest"
	SortOldest       SortMode = "oldest"
	SortEngagementAsc  SortMode = "eng_asc"
	SortEngagementDesc SortMode = "eng_desc"
	SortLikesDesc    SortMode = "likes_desc"
	SortRepliesDesc  SortMode = "replies_desc"
	SortRepostsDesc  SortMode = "reposts_desc"
)

// ContentTypeFilter is the §4.3 step-4 content-type predicate. ALL matches
// anything; POSTS matches only "post"; REPLIES/COMMENTS alias to "reply".
type ContentTypeFilter string

const (
	FilterAll      ContentTypeFilter = "all"
	FilterPosts    ContentTypeFilter = "posts"
	FilterReplies  ContentTypeFilter = "replies"
	FilterComments ContentTypeFilter = "comments"
	FilterReposts  ContentTypeFilter = "reposts"
	FilterLikes    ContentTypeFilter = "likes"
)

// SearchFilter is an immutable search request. Zero values mean "no bound".
type SearchFilter struct {
	Keywords []string

	ContentTypes []ContentTypeFilter

	StartDate *time.Time
	EndDate   *time.Time

	MinLikes, MaxLikes           *int
	MinReposts, MaxReposts       *int
	MinReplies, MaxReplies       *int
	MinEngagement, MaxEngagement *float64

	SubjectURIContains    string
	SubjectHandleContains string

	Sort  SortMode
	Limit int

	// UseSubjectEngagementForReposts mirrors the ContentStore-wide setting
	// described in spec.md §4.3 step 2; it travels with the filter so
	// SearchEngine stays a pure function of (items, filter).
	UseSubjectEngagementForReposts bool
}
