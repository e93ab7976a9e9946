package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/skymarshal/core/internal/analytics"
	"github.com/skymarshal/core/internal/atmodel"
	"github.com/skymarshal/core/internal/export"
)

// loadedItems returns whatever is cached for the session's handle without
// forcing a fetch, shared by every analytics handler.
func (a *App) loadedItems(c *gin.Context) ([]atmodel.ContentItem, bool) {
	sess := a.sessionFromContext(c)
	categories := export.Categories{Posts: true, Likes: true, Reposts: true}
	items, err := a.ContentStore.EnsureLoaded(c.Request.Context(), sess.Handle, sess.DID, categories, a.Settings.Settings.DownloadLimitDefault, false)
	if err != nil {
		writeError(c, "analytics failed", err)
		return nil, false
	}
	return items, true
}

// handleAnalyticsInsights implements GET /api/analytics/insights, the
// combined sentiment/time-patterns/engagement/words bundle spec.md §4.10
// names.
func (a *App) handleAnalyticsInsights(c *gin.Context) {
	items, ok := a.loadedItems(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, analytics.GenerateInsights(items))
}

func (a *App) handleAnalyticsSentiment(c *gin.Context) {
	items, ok := a.loadedItems(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, analytics.AnalyzeSentiments(items))
}

func (a *App) handleAnalyticsTimePatterns(c *gin.Context) {
	items, ok := a.loadedItems(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, analytics.AnalyzeTimePatterns(items))
}

func (a *App) handleAnalyticsEngagement(c *gin.Context) {
	items, ok := a.loadedItems(c)
	if !ok {
		return
	}
	topN, _ := strconv.Atoi(c.Query("top_n"))
	c.JSON(http.StatusOK, analytics.AnalyzeEngagementCorrelation(items, topN))
}

func (a *App) handleAnalyticsWords(c *gin.Context) {
	items, ok := a.loadedItems(c)
	if !ok {
		return
	}
	topN, _ := strconv.Atoi(c.Query("top_n"))
	c.JSON(http.StatusOK, analytics.AnalyzeWordFrequency(items, topN))
}
