// Package analytics implements the aggregate content insights spec.md
// §4.10 names (sentiment, time patterns, engagement correlation, word
// frequency), ported from skymarshal/services/analytics.py's lexicon and
// histogram logic re-expressed over []atmodel.ContentItem. The LLM-backed
// vibe-check/summarization/categorization features in
// skymarshal/analytics/content_analyzer.py are out of scope per spec.md
// §1 Non-goals.
package analytics

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/skymarshal/core/internal/atmodel"
)

var wordPattern = regexp.MustCompile(`\w+`)

var positiveWords = wordSet(
	"good", "great", "awesome", "excellent", "amazing", "wonderful", "fantastic",
	"love", "happy", "joy", "beautiful", "perfect", "best", "excited", "fun",
	"thanks", "thank", "appreciate", "grateful", "nice", "helpful", "enjoy",
	"congrats", "congratulations", "success", "win", "winning", "brilliant",
	"outstanding", "superb", "incredible", "lovely", "delightful", "pleased",
)

var negativeWords = wordSet(
	"bad", "terrible", "awful", "horrible", "worst", "hate", "angry", "sad",
	"disappointed", "disappointing", "poor", "fail", "failed", "failure", "wrong",
	"problem", "issue", "error", "broken", "useless", "stupid", "annoying",
	"frustrating", "frustrated", "difficult", "hard", "sucks", "sorry", "unfortunately",
	"concern", "worried", "worry", "afraid", "scared",
)

var stopWords = wordSet(
	"the", "a", "an", "and", "or", "but", "in", "on", "at", "to", "for", "of", "with",
	"by", "from", "as", "is", "was", "are", "were", "be", "been", "being", "have",
	"has", "had", "do", "does", "did", "will", "would", "could", "should", "may",
	"might", "must", "can", "this", "that", "these", "those", "i", "you", "he", "she",
	"it", "we", "they", "me", "him", "her", "us", "them", "my", "your", "his", "its",
	"our", "their", "so", "just", "now", "out", "up", "get", "got", "like", "one", "two",
)

func wordSet(words ...string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}

func tokenize(text string) []string {
	return wordPattern.FindAllString(strings.ToLower(text), -1)
}

// SentimentScore is a single text's lexicon-based sentiment.
type SentimentScore struct {
	Score    float64 `json:"score"`
	Positive int     `json:"positive"`
	Negative int     `json:"negative"`
	Neutral  int     `json:"neutral"`
}

// AnalyzeSentiment scores text in [-1, 1] using the positive/negative
// word lexicons.
func AnalyzeSentiment(text string) SentimentScore {
	if text == "" {
		return SentimentScore{Neutral: 1}
	}
	words := tokenize(text)

	var positive, negative int
	for _, w := range words {
		switch {
		case positiveWords[w]:
			positive++
		case negativeWords[w]:
			negative++
		}
	}

	total := positive + negative
	var score float64
	if total > 0 {
		score = float64(positive-negative) / float64(total)
	}
	neutral := 0
	if total == 0 {
		neutral = 1
	}
	return SentimentScore{Score: round3(score), Positive: positive, Negative: negative, Neutral: neutral}
}

// SentimentSummary aggregates sentiment across a content set.
type SentimentSummary struct {
	AverageScore       float64 `json:"average_score"`
	PositivePosts      int     `json:"positive_posts"`
	NegativePosts      int     `json:"negative_posts"`
	NeutralPosts       int     `json:"neutral_posts"`
	TotalAnalyzed      int     `json:"total_analyzed"`
	PercentagePositive float64 `json:"percentage_positive"`
	PercentageNegative float64 `json:"percentage_negative"`
	PercentageNeutral  float64 `json:"percentage_neutral"`
}

// AnalyzeSentiments summarizes sentiment across every post/reply in items.
func AnalyzeSentiments(items []atmodel.ContentItem) SentimentSummary {
	var scores []float64
	var positive, negative, neutral int

	for _, item := range items {
		if !isPostOrReply(item) || item.Text == nil {
			continue
		}
		s := AnalyzeSentiment(*item.Text)
		scores = append(scores, s.Score)
		switch {
		case s.Score > 0.1:
			positive++
		case s.Score < -0.1:
			negative++
		default:
			neutral++
		}
	}

	if len(scores) == 0 {
		return SentimentSummary{}
	}

	var sum float64
	for _, s := range scores {
		sum += s
	}
	n := float64(len(scores))
	return SentimentSummary{
		AverageScore:       round3(sum / n),
		PositivePosts:      positive,
		NegativePosts:      negative,
		NeutralPosts:       neutral,
		TotalAnalyzed:      len(scores),
		PercentagePositive: round1(100 * float64(positive) / n),
		PercentageNegative: round1(100 * float64(negative) / n),
		PercentageNeutral:  round1(100 * float64(neutral) / n),
	}
}

// TimePatterns is the posting-time/engagement histogram spec.md §4.10 names.
type TimePatterns struct {
	ByHour         map[int]int     `json:"by_hour"`
	ByDayOfWeek    map[string]int  `json:"by_day_of_week"`
	HourEngagement map[int]float64 `json:"hour_engagement"`
	DayEngagement  map[string]float64 `json:"day_engagement"`
	BestHour       *int            `json:"best_hour,omitempty"`
	BestDay        *string         `json:"best_day,omitempty"`
	TotalAnalyzed  int             `json:"total_analyzed"`
}

var dayOrder = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// AnalyzeTimePatterns buckets posts/replies by hour-of-day and
// day-of-week, and their average engagement.
func AnalyzeTimePatterns(items []atmodel.ContentItem) TimePatterns {
	hourCounts := map[int]int{}
	dayCounts := map[string]int{}
	hourEngagement := map[int][]float64{}
	dayEngagement := map[string][]float64{}

	total := 0
	for _, item := range items {
		if !isPostOrReply(item) || item.CreatedAt == nil {
			continue
		}
		total++
		t := item.CreatedAt.UTC()
		hour := t.Hour()
		day := t.Weekday().String()

		hourCounts[hour]++
		dayCounts[day]++

		engagement := float64(item.LikeCount + item.RepostCount + item.ReplyCount)
		hourEngagement[hour] = append(hourEngagement[hour], engagement)
		dayEngagement[day] = append(dayEngagement[day], engagement)
	}

	hourAvg := averageMap(hourEngagement)
	dayAvg := averageMapStr(dayEngagement)

	orderedDayCounts := make(map[string]int, len(dayOrder))
	orderedDayEngagement := make(map[string]float64, len(dayOrder))
	for _, d := range dayOrder {
		orderedDayCounts[d] = dayCounts[d]
		orderedDayEngagement[d] = round1(dayAvg[d])
	}

	var bestHour *int
	var bestHourVal float64
	for h, v := range hourAvg {
		if bestHour == nil || v > bestHourVal {
			hh := h
			bestHour = &hh
			bestHourVal = v
		}
	}
	var bestDay *string
	var bestDayVal float64
	for _, d := range dayOrder {
		v := dayAvg[d]
		if _, ok := dayEngagement[d]; !ok {
			continue
		}
		if bestDay == nil || v > bestDayVal {
			dd := d
			bestDay = &dd
			bestDayVal = v
		}
	}

	roundedHourEngagement := make(map[int]float64, len(hourAvg))
	for h, v := range hourAvg {
		roundedHourEngagement[h] = round1(v)
	}

	return TimePatterns{
		ByHour:         hourCounts,
		ByDayOfWeek:    orderedDayCounts,
		HourEngagement: roundedHourEngagement,
		DayEngagement:  orderedDayEngagement,
		BestHour:       bestHour,
		BestDay:        bestDay,
		TotalAnalyzed:  total,
	}
}

func averageMap(m map[int][]float64) map[int]float64 {
	out := make(map[int]float64, len(m))
	for k, vs := range m {
		out[k] = mean(vs)
	}
	return out
}

func averageMapStr(m map[string][]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, vs := range m {
		out[k] = mean(vs)
	}
	return out
}

func mean(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}

// WordEngagement is a single word's average engagement across the posts
// it appeared in.
type WordEngagement struct {
	Word          string  `json:"word"`
	AvgEngagement float64 `json:"avg_engagement"`
	Count         int     `json:"count"`
}

// EngagementCorrelation pairs the highest- and lowest-performing words.
type EngagementCorrelation struct {
	HighEngagementWords []WordEngagement `json:"high_engagement_words"`
	LowEngagementWords  []WordEngagement `json:"low_engagement_words"`
	TotalAnalyzed       int              `json:"total_analyzed"`
	UniqueWords         int              `json:"unique_words"`
}

// AnalyzeEngagementCorrelation reports which words (used 3+ times)
// correlate with higher or lower average engagement.
func AnalyzeEngagementCorrelation(items []atmodel.ContentItem, topN int) EngagementCorrelation {
	if topN <= 0 {
		topN = 20
	}
	wordEngagements := map[string][]float64{}
	total := 0

	for _, item := range items {
		if !isPostOrReply(item) || item.Text == nil || *item.Text == "" {
			continue
		}
		total++
		engagement := float64(item.LikeCount + item.RepostCount + item.ReplyCount)
		for _, w := range tokenize(*item.Text) {
			if len(w) > 3 && !stopWords[w] {
				wordEngagements[w] = append(wordEngagements[w], engagement)
			}
		}
	}

	type scored struct {
		word string
		avg  float64
		n    int
	}
	var scoredWords []scored
	for w, es := range wordEngagements {
		if len(es) < 3 {
			continue
		}
		scoredWords = append(scoredWords, scored{word: w, avg: mean(es), n: len(es)})
	}
	sort.SliceStable(scoredWords, func(i, j int) bool { return scoredWords[i].avg > scoredWords[j].avg })

	toEntries := func(ss []scored) []WordEngagement {
		out := make([]WordEngagement, len(ss))
		for i, s := range ss {
			out[i] = WordEngagement{Word: s.word, AvgEngagement: round1(s.avg), Count: s.n}
		}
		return out
	}

	high := scoredWords
	if len(high) > topN {
		high = high[:topN]
	}
	var low []scored
	if len(scoredWords) > topN {
		low = scoredWords[len(scoredWords)-topN:]
	} else {
		low = scoredWords
	}

	return EngagementCorrelation{
		HighEngagementWords: toEntries(high),
		LowEngagementWords:  toEntries(low),
		TotalAnalyzed:       total,
		UniqueWords:         len(scoredWords),
	}
}

// WordFrequency is a single term's frequency.
type WordFrequency struct {
	Word       string  `json:"word"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// WordFrequencyReport is the stopword-filtered term-frequency table.
type WordFrequencyReport struct {
	TopWords      []WordFrequency `json:"top_words"`
	TotalWords    int             `json:"total_words"`
	UniqueWords   int             `json:"unique_words"`
	TotalAnalyzed int             `json:"total_analyzed"`
}

// AnalyzeWordFrequency reports the topN most frequent non-stopword terms
// (length > 3) across every post/reply's text.
func AnalyzeWordFrequency(items []atmodel.ContentItem, topN int) WordFrequencyReport {
	if topN <= 0 {
		topN = 50
	}
	var allWords []string
	total := 0
	for _, item := range items {
		if !isPostOrReply(item) || item.Text == nil || *item.Text == "" {
			continue
		}
		total++
		allWords = append(allWords, tokenize(*item.Text)...)
	}

	counts := map[string]int{}
	var filtered []string
	for _, w := range allWords {
		if len(w) > 3 && !stopWords[w] {
			counts[w]++
			filtered = append(filtered, w)
		}
	}

	type entry struct {
		word  string
		count int
	}
	entries := make([]entry, 0, len(counts))
	for w, c := range counts {
		entries = append(entries, entry{w, c})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].word < entries[j].word
	})
	if len(entries) > topN {
		entries = entries[:topN]
	}

	topWords := make([]WordFrequency, len(entries))
	for i, e := range entries {
		pct := 0.0
		if len(filtered) > 0 {
			pct = round2(100 * float64(e.count) / float64(len(filtered)))
		}
		topWords[i] = WordFrequency{Word: e.word, Count: e.count, Percentage: pct}
	}

	return WordFrequencyReport{
		TopWords:      topWords,
		TotalWords:    len(allWords),
		UniqueWords:   len(counts),
		TotalAnalyzed: total,
	}
}

// Insights bundles all four analytics for a single response.
type Insights struct {
	Sentiment             SentimentSummary      `json:"sentiment"`
	TimePatterns          TimePatterns          `json:"time_patterns"`
	EngagementCorrelation EngagementCorrelation `json:"engagement_correlation"`
	WordFrequency         WordFrequencyReport   `json:"word_frequency"`
}

// GenerateInsights runs all four analytics over items.
func GenerateInsights(items []atmodel.ContentItem) Insights {
	return Insights{
		Sentiment:             AnalyzeSentiments(items),
		TimePatterns:          AnalyzeTimePatterns(items),
		EngagementCorrelation: AnalyzeEngagementCorrelation(items, 20),
		WordFrequency:         AnalyzeWordFrequency(items, 50),
	}
}

func isPostOrReply(item atmodel.ContentItem) bool {
	return item.ContentType == atmodel.ContentPost || item.ContentType == atmodel.ContentReply
}

func round1(v float64) float64 { return roundTo(v, 10) }
func round2(v float64) float64 { return roundTo(v, 100) }
func round3(v float64) float64 { return roundTo(v, 1000) }

func roundTo(v float64, factor float64) float64 {
	return math.Round(v*factor) / factor
}
