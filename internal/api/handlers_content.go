package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/skymarshal/core/internal/export"
)

type contentLoadRequest struct {
	Limit        int  `json:"limit"`
	ForceRefresh bool `json:"force_refresh"`
}

type contentLoadResponse struct {
	LoadedCount int            `json:"loaded_count"`
	Summary     export.Summary `json:"summary"`
}

// handleContentLoad implements POST /api/content/load, grounded on
// spec.md §4.5's ContentStore.EnsureLoaded contract.
func (a *App) handleContentLoad(c *gin.Context) {
	sess := a.sessionFromContext(c)

	var req contentLoadRequest
	_ = c.ShouldBindJSON(&req)
	limit := req.Limit
	if limit <= 0 {
		limit = a.Settings.Settings.DownloadLimitDefault
	}

	categories := export.Categories{Posts: true, Likes: true, Reposts: true}
	items, err := a.ContentStore.EnsureLoaded(c.Request.Context(), sess.Handle, sess.DID, categories, limit, req.ForceRefresh)
	if err != nil {
		writeError(c, "content load failed", err)
		return
	}

	c.JSON(http.StatusOK, contentLoadResponse{
		LoadedCount: len(items),
		Summary:     export.Summarize(items),
	})
}

type contentSummaryResponse struct {
	Summary export.Summary `json:"summary"`
}

// handleContentSummary implements GET /api/content/summary over whatever
// is already cached for this handle; it does not trigger a fetch.
func (a *App) handleContentSummary(c *gin.Context) {
	sess := a.sessionFromContext(c)

	categories := export.Categories{Posts: true, Likes: true, Reposts: true}
	items, err := a.ContentStore.EnsureLoaded(c.Request.Context(), sess.Handle, sess.DID, categories, a.Settings.Settings.DownloadLimitDefault, false)
	if err != nil {
		writeError(c, "content summary failed", err)
		return
	}

	c.JSON(http.StatusOK, contentSummaryResponse{Summary: export.Summarize(items)})
}
