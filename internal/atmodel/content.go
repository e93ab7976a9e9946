package atmodel

import "time"

// ContentType is a tagged variant computed at ingestion time (spec.md §9:
// "not a string to be re-tested"), rather than re-derived from raw_data on
// every read.
type ContentType string

const (
	ContentPost   ContentType = "post"
	ContentReply  ContentType = "reply"
	ContentRepost ContentType = "repost"
	ContentLike   ContentType = "like"
)

// RawData carries only the known extra fields a like/repost/post can need,
// per spec.md §9's "tagged union with an extra map" design note — a
// dedicated type guards against accidental key typos elsewhere.
type RawData struct {
	SubjectURI         RecordURI `json:"subject_uri,omitempty"`
	SubjectHandle      string    `json:"subject_handle,omitempty"`
	SubjectLikeCount   int       `json:"subject_like_count,omitempty"`
	SubjectRepostCount int       `json:"subject_repost_count,omitempty"`
	SubjectReplyCount  int       `json:"subject_reply_count,omitempty"`
	Likes              []string  `json:"likes,omitempty"`
	RepostedBy         []string  `json:"reposted_by,omitempty"`
	Quotes             []string  `json:"quotes,omitempty"`
	Replies            []string  `json:"replies,omitempty"`
}

// ContentItem is the normalized view of a post/reply/repost/like record.
type ContentItem struct {
	URI             RecordURI   `json:"uri"`
	CID             string      `json:"cid"`
	ContentType     ContentType `json:"content_type"`
	Text            *string     `json:"text,omitempty"`
	CreatedAt       *time.Time  `json:"created_at,omitempty"`
	LikeCount       int         `json:"like_count"`
	RepostCount     int         `json:"repost_count"`
	ReplyCount      int         `json:"reply_count"`
	EngagementScore float64     `json:"engagement_score"`
	RawData         RawData     `json:"raw_data,omitempty"`
}

// EngagementScore computes likes + 2*reposts + 2.5*replies.
func EngagementScore(likes, reposts, replies int) float64 {
	return float64(likes) + 2*float64(reposts) + 2.5*float64(replies)
}

// RecomputeEngagement refreshes EngagementScore from the item's own counts.
// Callers must invoke this whenever any count field changes (spec.md §3
// invariant).
func (c *ContentItem) RecomputeEngagement() {
	c.EngagementScore = EngagementScore(c.LikeCount, c.RepostCount, c.ReplyCount)
}

// IsReply reports whether the item is a post carrying a reply sub-field.
func (c *ContentItem) IsReply() bool { return c.ContentType == ContentReply }
