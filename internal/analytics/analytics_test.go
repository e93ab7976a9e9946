package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/skymarshal/core/internal/atmodel"
)

func strPtr(s string) *string   { return &s }
func timePtr(t time.Time) *time.Time { return &t }

func TestAnalyzeSentimentPositiveTextScoresAboveZero(t *testing.T) {
	s := AnalyzeSentiment("this is great and wonderful, I love it")
	assert.Greater(t, s.Score, 0.0)
	assert.Equal(t, 0, s.Negative)
}

func TestAnalyzeSentimentEmptyTextIsNeutral(t *testing.T) {
	s := AnalyzeSentiment("")
	assert.Equal(t, 0.0, s.Score)
	assert.Equal(t, 1, s.Neutral)
}

func TestAnalyzeSentimentsIgnoresNonPostContent(t *testing.T) {
	items := []atmodel.ContentItem{
		{ContentType: atmodel.ContentPost, Text: strPtr("awesome work team")},
		{ContentType: atmodel.ContentLike},
	}
	summary := AnalyzeSentiments(items)
	assert.Equal(t, 1, summary.TotalAnalyzed)
	assert.Equal(t, 1, summary.PositivePosts)
}

func TestAnalyzeTimePatternsBucketsByHourAndWeekday(t *testing.T) {
	mon9am := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC) // a Monday
	items := []atmodel.ContentItem{
		{ContentType: atmodel.ContentPost, CreatedAt: timePtr(mon9am), LikeCount: 10},
		{ContentType: atmodel.ContentPost, CreatedAt: timePtr(mon9am), LikeCount: 20},
	}
	patterns := AnalyzeTimePatterns(items)
	assert.Equal(t, 2, patterns.ByHour[9])
	assert.Equal(t, 2, patterns.ByDayOfWeek["Monday"])
	assert.NotNil(t, patterns.BestHour)
	assert.Equal(t, 9, *patterns.BestHour)
}

func TestAnalyzeEngagementCorrelationRequiresThreeOccurrences(t *testing.T) {
	items := []atmodel.ContentItem{
		{ContentType: atmodel.ContentPost, Text: strPtr("launch day energy"), LikeCount: 100},
		{ContentType: atmodel.ContentPost, Text: strPtr("launch day vibes"), LikeCount: 80},
		{ContentType: atmodel.ContentPost, Text: strPtr("launch day again"), LikeCount: 90},
	}
	corr := AnalyzeEngagementCorrelation(items, 10)
	var found bool
	for _, w := range corr.HighEngagementWords {
		if w.Word == "launch" {
			found = true
			assert.Equal(t, 3, w.Count)
		}
	}
	assert.True(t, found)
}

func TestAnalyzeWordFrequencyExcludesStopwordsAndShortWords(t *testing.T) {
	items := []atmodel.ContentItem{
		{ContentType: atmodel.ContentPost, Text: strPtr("the quick brown fox jumps over the lazy dog")},
	}
	report := AnalyzeWordFrequency(items, 10)
	for _, w := range report.TopWords {
		assert.NotEqual(t, "the", w.Word)
		assert.Greater(t, len(w.Word), 3)
	}
}

func TestGenerateInsightsReturnsAllFourSections(t *testing.T) {
	items := []atmodel.ContentItem{
		{ContentType: atmodel.ContentPost, Text: strPtr("great launch today"), CreatedAt: timePtr(time.Now()), LikeCount: 5},
	}
	insights := GenerateInsights(items)
	assert.Equal(t, 1, insights.Sentiment.TotalAnalyzed)
	assert.Equal(t, 1, insights.TimePatterns.TotalAnalyzed)
	assert.Equal(t, 1, insights.EngagementCorrelation.TotalAnalyzed)
	assert.Equal(t, 1, insights.WordFrequency.TotalAnalyzed)
}
