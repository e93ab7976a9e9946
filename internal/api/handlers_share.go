package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type createShareRequest struct {
	URI  string `json:"uri" binding:"required"`
	Text string `json:"text"`
}

type createShareResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// handleCreateShare implements POST /api/share, minting a permalink ID
// for a content item the authenticated user chooses to share publicly.
func (a *App) handleCreateShare(c *gin.Context) {
	var req createShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err.Error())
		return
	}

	sess := a.sessionFromContext(c)
	id, err := a.Shares.Create(req.URI, req.Text, sess.Handle)
	if err != nil {
		writeError(c, "share failed", err)
		return
	}

	c.JSON(http.StatusOK, createShareResponse{ID: id, URL: "/share/" + id})
}

type shareResponse struct {
	URI       string    `json:"uri"`
	Text      string    `json:"text"`
	Handle    string    `json:"handle"`
	CreatedAt time.Time `json:"created_at"`
}

// handleGetShare implements GET /api/share/:id. Unlike the rest of
// internal/api it is deliberately unauthenticated: a permalink is meant
// to be viewable by anyone holding the link.
func (a *App) handleGetShare(c *gin.Context) {
	uri, text, handle, createdAt, ok := a.Shares.Get(c.Param("id"))
	if !ok {
		writeError(c, "share not found", errShareNotFound)
		return
	}
	c.JSON(http.StatusOK, shareResponse{URI: uri, Text: text, Handle: handle, CreatedAt: createdAt})
}
