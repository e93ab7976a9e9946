package api

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/skymarshal/core/internal/export"
)

// handleExportCSV implements GET /api/export/csv, streaming the handle's
// cached ContentItems as a tabular download via the standard library's
// encoding/csv — no library in the retrieved pack offers a CSV writer, so
// this is the one deliberately stdlib-backed serializer in internal/api.
func (a *App) handleExportCSV(c *gin.Context) {
	sess := a.sessionFromContext(c)

	categories := export.Categories{Posts: true, Likes: true, Reposts: true}
	items, err := a.ContentStore.EnsureLoaded(c.Request.Context(), sess.Handle, sess.DID, categories, a.Settings.Settings.DownloadLimitDefault, false)
	if err != nil {
		writeError(c, "export failed", err)
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.csv"`, sess.Handle))

	w := csv.NewWriter(c.Writer)
	_ = w.Write([]string{"uri", "content_type", "text", "created_at", "like_count", "repost_count", "reply_count", "engagement_score", "subject_uri"})
	for _, item := range items {
		text := ""
		if item.Text != nil {
			text = *item.Text
		}
		createdAt := ""
		if item.CreatedAt != nil {
			createdAt = item.CreatedAt.Format(time.RFC3339)
		}
		_ = w.Write([]string{
			string(item.URI),
			string(item.ContentType),
			text,
			createdAt,
			strconv.Itoa(item.LikeCount),
			strconv.Itoa(item.RepostCount),
			strconv.Itoa(item.ReplyCount),
			strconv.FormatFloat(item.EngagementScore, 'f', 2, 64),
			string(item.RawData.SubjectURI),
		})
	}
	w.Flush()
}

// handleExportCAR implements GET /api/export/car, grounded on spec.md §6's
// `com.atproto.sync.getRepo` CAR-download endpoint and §4.5's CAR-backup
// file naming; the file is served then removed, mirroring DataExporter's
// own CAR-fallback cleanup rule ("the backup file is deleted after
// successful import").
func (a *App) handleExportCAR(c *gin.Context) {
	sess := a.sessionFromContext(c)

	path := a.Paths.CARBackup(sess.Handle, time.Now().Unix())
	if err := a.Client.DownloadRepoBackup(c.Request.Context(), string(sess.DID), path); err != nil {
		writeError(c, "car export failed", err)
		return
	}
	defer os.Remove(path)

	c.FileAttachment(path, sess.Handle+".car")
}
