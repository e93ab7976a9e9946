// Package search implements the content search/filter/sort pipeline of
// spec.md §4.4, grounded on skymarshal/search.py.
package search

import (
	"regexp"
	"sort"
	"strings"

	"github.com/skymarshal/core/internal/atmodel"
)

// compiledPattern is one of the four keyword-operator classes
// search.py::_compile_search_patterns recognizes.
type compiledPattern struct {
	negative bool
	required bool
	re       *regexp.Regexp
	literal  string // used for exact-phrase/plain-substring classes
	isRegex  bool
	// caseSensitive governs the literal classes only: an exact phrase
	// ("...") compares against the original-case text, a bare keyword
	// against lowercased text.
	caseSensitive bool
}

// compileKeywordPatterns turns each raw keyword token into its evaluable
// form: "-word" negates, "+word" requires, `"quoted phrase"` matches the
// literal phrase case-sensitively, a literal `\bword\b` matches on a
// word-boundary regex, and anything else is a case-insensitive substring
// match. Mirrors search.py::_compile_search_patterns exactly: word-boundary
// matching only kicks in when the raw keyword text itself is wrapped in
// the two-character `\b` markers, not for every bare token.
func compileKeywordPatterns(keywords []string) []compiledPattern {
	patterns := make([]compiledPattern, 0, len(keywords))
	for _, raw := range keywords {
		kw := strings.TrimSpace(raw)
		if kw == "" {
			continue
		}

		negative := false
		required := false
		if strings.HasPrefix(kw, "-") && len(kw) > 1 {
			negative = true
			kw = kw[1:]
		} else if strings.HasPrefix(kw, "+") && len(kw) > 1 {
			required = true
			kw = kw[1:]
		}
		if kw == "" {
			continue
		}

		patterns = append(patterns, compileOnePattern(kw, negative, required))
	}
	return patterns
}

func compileOnePattern(kw string, negative, required bool) compiledPattern {
	if len(kw) > 2 && kw[0] == '"' && kw[len(kw)-1] == '"' {
		return compiledPattern{
			negative:      negative,
			required:      required,
			literal:       kw[1 : len(kw)-1],
			caseSensitive: true,
		}
	}

	if len(kw) > 4 && strings.HasPrefix(kw, `\b`) && strings.HasSuffix(kw, `\b`) {
		word := kw[2 : len(kw)-2]
		if re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(word) + `\b`); err == nil {
			return compiledPattern{negative: negative, required: required, re: re, isRegex: true}
		}
	}

	return compiledPattern{negative: negative, required: required, literal: strings.ToLower(kw)}
}

func (p compiledPattern) matches(textLower, textOriginal string) bool {
	if p.isRegex {
		return p.re.MatchString(textOriginal)
	}
	if p.caseSensitive {
		return strings.Contains(textOriginal, p.literal)
	}
	return strings.Contains(textLower, p.literal)
}

// passesKeywordFilters evaluates the compiled patterns against text in the
// order search.py::_passes_keyword_filters uses: negatives first (any
// match excludes), then required (all must match), then plain/positive
// terms (at least one must match, when present and nothing is required).
func passesKeywordFilters(patterns []compiledPattern, text string) bool {
	if len(patterns) == 0 {
		return true
	}
	lower := strings.ToLower(text)

	for _, p := range patterns {
		if p.negative && p.matches(lower, text) {
			return false
		}
	}

	hasRequired := false
	for _, p := range patterns {
		if p.required {
			hasRequired = true
			if !p.matches(lower, text) {
				return false
			}
		}
	}
	if hasRequired {
		return true
	}

	hasPlain := false
	for _, p := range patterns {
		if p.negative || p.required {
			continue
		}
		hasPlain = true
		if p.matches(lower, text) {
			return true
		}
	}
	return !hasPlain
}

// Search runs the 6-stage filter pipeline of search.py::search_content_
// with_filters over items, then sorts and truncates to filter.Limit. It
// returns the filtered+sorted slice and the total match count before
// truncation.
func Search(items []atmodel.ContentItem, filter atmodel.SearchFilter) ([]atmodel.ContentItem, int) {
	patterns := compileKeywordPatterns(filter.Keywords)

	matched := make([]atmodel.ContentItem, 0, len(items))
	for _, item := range items {
		if !passesContentType(item, filter) {
			continue
		}
		if !passesDateRange(item, filter) {
			continue
		}
		if !passesEngagementBounds(item, filter) {
			continue
		}
		if !passesSubjectFilters(item, filter) {
			continue
		}
		text := ""
		if item.Text != nil {
			text = *item.Text
		}
		if !passesKeywordFilters(patterns, text) {
			continue
		}
		matched = append(matched, item)
	}

	sortResults(matched, filter.Sort, filter.UseSubjectEngagementForReposts)

	total := len(matched)
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}
	return matched, total
}

func passesContentType(item atmodel.ContentItem, filter atmodel.SearchFilter) bool {
	if len(filter.ContentTypes) == 0 {
		return true
	}
	for _, ct := range filter.ContentTypes {
		switch ct {
		case atmodel.FilterAll:
			return true
		case atmodel.FilterPosts:
			if item.ContentType == atmodel.ContentPost {
				return true
			}
		case atmodel.FilterReplies, atmodel.FilterComments:
			if item.ContentType == atmodel.ContentReply {
				return true
			}
		case atmodel.FilterReposts:
			if item.ContentType == atmodel.ContentRepost {
				return true
			}
		case atmodel.FilterLikes:
			if item.ContentType == atmodel.ContentLike {
				return true
			}
		}
	}
	return false
}

func passesDateRange(item atmodel.ContentItem, filter atmodel.SearchFilter) bool {
	if item.CreatedAt == nil {
		return filter.StartDate == nil && filter.EndDate == nil
	}
	if filter.StartDate != nil && item.CreatedAt.Before(*filter.StartDate) {
		return false
	}
	if filter.EndDate != nil && item.CreatedAt.After(*filter.EndDate) {
		return false
	}
	return true
}

func passesEngagementBounds(item atmodel.ContentItem, filter atmodel.SearchFilter) bool {
	if filter.MinLikes != nil && item.LikeCount < *filter.MinLikes {
		return false
	}
	if filter.MaxLikes != nil && item.LikeCount > *filter.MaxLikes {
		return false
	}
	if filter.MinReposts != nil && item.RepostCount < *filter.MinReposts {
		return false
	}
	if filter.MaxReposts != nil && item.RepostCount > *filter.MaxReposts {
		return false
	}
	if filter.MinReplies != nil && item.ReplyCount < *filter.MinReplies {
		return false
	}
	if filter.MaxReplies != nil && item.ReplyCount > *filter.MaxReplies {
		return false
	}
	if filter.MinEngagement != nil && item.EngagementScore < *filter.MinEngagement {
		return false
	}
	if filter.MaxEngagement != nil && item.EngagementScore > *filter.MaxEngagement {
		return false
	}
	return true
}

func passesSubjectFilters(item atmodel.ContentItem, filter atmodel.SearchFilter) bool {
	if filter.SubjectURIContains != "" {
		if !strings.Contains(string(item.RawData.SubjectURI), filter.SubjectURIContains) {
			return false
		}
	}
	if filter.SubjectHandleContains != "" {
		if item.ContentType != atmodel.ContentLike && item.ContentType != atmodel.ContentRepost {
			return false
		}
		if !strings.Contains(strings.ToLower(item.RawData.SubjectHandle), strings.ToLower(filter.SubjectHandleContains)) {
			return false
		}
	}
	return true
}

// effectiveEngagement returns the score sort/filter operations should use:
// for reposts, spec.md §4.4 lets callers opt into using the *subject
// post's* engagement rather than the repost record's own (always-zero)
// counts.
func effectiveEngagement(item atmodel.ContentItem, useSubjectForReposts bool) float64 {
	if item.ContentType == atmodel.ContentRepost && useSubjectForReposts {
		return atmodel.EngagementScore(item.RawData.SubjectLikeCount, item.RawData.SubjectRepostCount, item.RawData.SubjectReplyCount)
	}
	return item.EngagementScore
}

func sortResults(items []atmodel.ContentItem, mode atmodel.SortMode, useSubjectForReposts bool) {
	switch mode {
	case atmodel.SortOldest:
		sort.SliceStable(items, func(i, j int) bool {
			return createdBefore(items[i], items[j])
		})
	case atmodel.SortEngagementAsc:
		sort.SliceStable(items, func(i, j int) bool {
			return effectiveEngagement(items[i], useSubjectForReposts) < effectiveEngagement(items[j], useSubjectForReposts)
		})
	case atmodel.SortEngagementDesc:
		sort.SliceStable(items, func(i, j int) bool {
			return effectiveEngagement(items[i], useSubjectForReposts) > effectiveEngagement(items[j], useSubjectForReposts)
		})
	case atmodel.SortLikesDesc:
		sort.SliceStable(items, func(i, j int) bool { return items[i].LikeCount > items[j].LikeCount })
	case atmodel.SortRepliesDesc:
		sort.SliceStable(items, func(i, j int) bool { return items[i].ReplyCount > items[j].ReplyCount })
	case atmodel.SortRepostsDesc:
		sort.SliceStable(items, func(i, j int) bool { return items[i].RepostCount > items[j].RepostCount })
	default: // SortNewest
		sort.SliceStable(items, func(i, j int) bool {
			return createdBefore(items[j], items[i])
		})
	}
}

func createdBefore(a, b atmodel.ContentItem) bool {
	if a.CreatedAt == nil {
		return false
	}
	if b.CreatedAt == nil {
		return true
	}
	return a.CreatedAt.Before(*b.CreatedAt)
}
