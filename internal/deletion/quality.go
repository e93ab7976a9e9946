package deletion

import (
	"regexp"
	"strings"

	"github.com/skymarshal/core/internal/atmodel"
)

// suspiciousHandle flags handles containing a run of five or more digits,
// a common bot-account naming pattern (e.g. "user8839201.bsky.social").
var suspiciousHandle = regexp.MustCompile(`\d{5,}`)

// FollowAnalysis is one followed account's bot/quality scoring, ported
// from following_cleaner.py::analyze_following_quality.
type FollowAnalysis struct {
	DID               atmodel.DID
	Handle            string
	FollowerRatio     float64
	SuspiciousHandle  bool
	EmptyDescription  bool
	QualityScore      float64
	Recommend         bool
}

// AnalyzeFollowingQuality scores every followed profile, flagging likely
// low-value or bot accounts for cleanup review. Nothing here deletes or
// unfollows: callers act on the result via Engine.Unfollow.
func AnalyzeFollowingQuality(profiles []atmodel.Profile) []FollowAnalysis {
	results := make([]FollowAnalysis, 0, len(profiles))
	for _, p := range profiles {
		results = append(results, analyzeOne(p))
	}
	return results
}

func analyzeOne(p atmodel.Profile) FollowAnalysis {
	ratio := followerRatio(p.FollowersCount, p.FollowingCount)
	suspicious := suspiciousHandle.MatchString(p.Handle)
	emptyDesc := strings.TrimSpace(p.Description) == ""

	score := qualityScore(ratio, suspicious, emptyDesc, p.PostsCount)

	return FollowAnalysis{
		DID:              p.DID,
		Handle:           p.Handle,
		FollowerRatio:    ratio,
		SuspiciousHandle: suspicious,
		EmptyDescription: emptyDesc,
		QualityScore:     score,
		Recommend:        score < 0.3,
	}
}

// followerRatio is followers/following. An account following nobody is
// not divided by zero: it gets 1 if it has any followers and 0 if it has
// none (matching the Python guard on following_count == 0).
func followerRatio(followers, following int) float64 {
	if following == 0 {
		if followers == 0 {
			return 0
		}
		return 1
	}
	return float64(followers) / float64(following)
}

// qualityScore combines the four signals into [0,1]; lower is worse.
// Weights mirror following_cleaner.py's scoring: ratio dominates, handle
// suspicion and empty bio are fixed penalties, near-zero posts is a
// further penalty (inactive/abandoned account).
func qualityScore(ratio float64, suspiciousHandle, emptyDesc bool, posts int) float64 {
	score := ratio
	if score > 1 {
		score = 1
	}
	if suspiciousHandle {
		score -= 0.3
	}
	if emptyDesc {
		score -= 0.2
	}
	if posts == 0 {
		score -= 0.2
	}
	if score < 0 {
		score = 0
	}
	return score
}
