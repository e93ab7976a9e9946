package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// handleGetSettings implements GET /api/settings (SPEC_FULL.md §4.13).
func (a *App) handleGetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, a.Settings.Settings)
}

type settingsUpdateRequest struct {
	DownloadLimitDefault           *int      `json:"download_limit_default"`
	DefaultCategories              *[]string `json:"default_categories"`
	RecordsPageSize                *int      `json:"records_page_size"`
	HydrateBatchSize               *int      `json:"hydrate_batch_size"`
	CategoryWorkers                *int      `json:"category_workers"`
	FileListPageSize               *int      `json:"file_list_page_size"`
	HighEngagementThreshold        *int      `json:"high_engagement_threshold"`
	UseSubjectEngagementForReposts *bool     `json:"use_subject_engagement_for_reposts"`
	FetchOrder                     *string   `json:"fetch_order"`
}

// handleUpdateSettings implements PUT /api/settings, applying partial
// updates through config.SettingsManager's validated setters where one
// exists (records_page_size, hydrate_batch_size, fetch_order) and direct
// assignment for the rest, then persisting.
func (a *App) handleUpdateSettings(c *gin.Context) {
	var req settingsUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err.Error())
		return
	}

	s := &a.Settings.Settings
	if req.DownloadLimitDefault != nil {
		s.DownloadLimitDefault = *req.DownloadLimitDefault
	}
	if req.DefaultCategories != nil {
		s.DefaultCategories = *req.DefaultCategories
	}
	if req.RecordsPageSize != nil {
		a.Settings.UpdateRecordsPageSize(*req.RecordsPageSize)
	}
	if req.HydrateBatchSize != nil {
		a.Settings.UpdateHydrateBatchSize(*req.HydrateBatchSize)
	}
	if req.CategoryWorkers != nil {
		s.CategoryWorkers = *req.CategoryWorkers
	}
	if req.FileListPageSize != nil {
		s.FileListPageSize = *req.FileListPageSize
	}
	if req.HighEngagementThreshold != nil {
		s.HighEngagementThreshold = *req.HighEngagementThreshold
	}
	if req.UseSubjectEngagementForReposts != nil {
		s.UseSubjectEngagementForReposts = *req.UseSubjectEngagementForReposts
	}
	if req.FetchOrder != nil {
		if err := a.Settings.UpdateFetchOrder(*req.FetchOrder); err != nil {
			writeBadRequest(c, err.Error())
			return
		}
	}

	if err := a.Settings.Save(); err != nil {
		writeError(c, "failed to persist settings", err)
		return
	}

	c.JSON(http.StatusOK, a.Settings.Settings)
}
