package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/skymarshal/core/internal/atmodel"
	"github.com/skymarshal/core/internal/export"
	"github.com/skymarshal/core/internal/search"
)

type searchRequest struct {
	Keyword      string   `json:"keyword"`
	Keywords     []string `json:"keywords"`
	ContentTypes []string `json:"content_types"`

	StartDate *string `json:"start_date"`
	EndDate   *string `json:"end_date"`

	MinLikes   *int `json:"min_likes"`
	MaxLikes   *int `json:"max_likes"`
	MinReposts *int `json:"min_reposts"`
	MaxReposts *int `json:"max_reposts"`
	MinReplies *int `json:"min_replies"`
	MaxReplies *int `json:"max_replies"`

	MinEngagement *float64 `json:"min_engagement"`
	MaxEngagement *float64 `json:"max_engagement"`

	SubjectURIContains    string `json:"subject_uri_contains"`
	SubjectHandleContains string `json:"subject_handle_contains"`

	Sort  string `json:"sort"`
	Limit int    `json:"limit"`
}

type searchResponse struct {
	Results []atmodel.ContentItem `json:"results"`
	Total   int                   `json:"total"`
	Summary export.Summary        `json:"summary"`
}

// handleSearch implements POST /api/search, grounded on spec.md §4.3's
// 6-stage evaluation order; internal/search.Search is the pure function
// applying it, this handler only builds the immutable SearchFilter and
// (when a subject-handle filter is present) resolves subject handles
// first via internal/search.ResolveSubjectHandles.
func (a *App) handleSearch(c *gin.Context) {
	sess := a.sessionFromContext(c)

	var req searchRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeBadRequest(c, err.Error())
			return
		}
	}

	categories := export.Categories{Posts: true, Likes: true, Reposts: true}
	items, err := a.ContentStore.EnsureLoaded(c.Request.Context(), sess.Handle, sess.DID, categories, a.Settings.Settings.DownloadLimitDefault, false)
	if err != nil {
		writeError(c, "search failed", err)
		return
	}

	filter, err := buildSearchFilter(req, a.Settings.Settings.UseSubjectEngagementForReposts)
	if err != nil {
		writeBadRequest(c, err.Error())
		return
	}

	if filter.SubjectHandleContains != "" {
		search.ResolveSubjectHandles(c.Request.Context(), a.Client, items)
	}

	results, total := search.Search(items, filter)

	c.JSON(http.StatusOK, searchResponse{
		Results: results,
		Total:   total,
		Summary: export.Summarize(results),
	})
}

func buildSearchFilter(req searchRequest, useSubjectEngagement bool) (atmodel.SearchFilter, error) {
	filter := atmodel.SearchFilter{
		Keywords:              req.Keywords,
		SubjectURIContains:    req.SubjectURIContains,
		SubjectHandleContains: req.SubjectHandleContains,
		Sort:                  atmodel.SortMode(req.Sort),
		Limit:                 req.Limit,

		MinLikes: req.MinLikes, MaxLikes: req.MaxLikes,
		MinReposts: req.MinReposts, MaxReposts: req.MaxReposts,
		MinReplies: req.MinReplies, MaxReplies: req.MaxReplies,
		MinEngagement: req.MinEngagement, MaxEngagement: req.MaxEngagement,

		UseSubjectEngagementForReposts: useSubjectEngagement,
	}
	if req.Keyword != "" {
		filter.Keywords = append(filter.Keywords, req.Keyword)
	}
	if filter.Sort == "" {
		filter.Sort = atmodel.SortNewest
	}
	for _, ct := range req.ContentTypes {
		filter.ContentTypes = append(filter.ContentTypes, atmodel.ContentTypeFilter(ct))
	}
	if len(filter.ContentTypes) == 0 {
		filter.ContentTypes = []atmodel.ContentTypeFilter{atmodel.FilterAll}
	}

	if req.StartDate != nil {
		t, err := parseFlexibleDate(*req.StartDate, false)
		if err != nil {
			return filter, err
		}
		filter.StartDate = &t
	}
	if req.EndDate != nil {
		t, err := parseFlexibleDate(*req.EndDate, true)
		if err != nil {
			return filter, err
		}
		filter.EndDate = &t
	}
	return filter, nil
}

// parseFlexibleDate accepts RFC3339 or a bare date ("2024-01-02"); bare
// end dates are expanded to 23:59:59.999999 UTC per spec.md §4.3 step 3.
func parseFlexibleDate(raw string, isEnd bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, err
	}
	t = t.UTC()
	if isEnd {
		t = t.Add(24*time.Hour - time.Microsecond)
	}
	return t, nil
}
