package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/skymarshal/core/internal/atmodel"
	"github.com/skymarshal/core/internal/skyerr"
)

type deleteRequest struct {
	URIs []string `json:"uris" binding:"required"`
}

type deleteError struct {
	URI     string `json:"uri"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type deleteResponse struct {
	Deleted int           `json:"deleted"`
	Failed  int           `json:"failed"`
	Errors  []deleteError `json:"errors"`
}

// handleDelete implements POST /api/delete, grounded on spec.md §4.4 and
// §8's "deleted + len(errors) == len(validated_uris)" invariant:
// deletion.Engine.Delete already enforces the ownership check and never
// aborts the batch, this handler only shapes the response.
func (a *App) handleDelete(c *gin.Context) {
	sess := a.sessionFromContext(c)

	var req deleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err.Error())
		return
	}

	uris := make([]atmodel.RecordURI, 0, len(req.URIs))
	for _, u := range req.URIs {
		uris = append(uris, atmodel.RecordURI(u))
	}

	engine := a.engineFor(sess.DID)
	deleted, errs := engine.Delete(c.Request.Context(), uris)

	resp := deleteResponse{Deleted: deleted, Errors: make([]deleteError, 0, len(errs))}
	for _, u := range req.URIs {
		err, ok := errs[atmodel.RecordURI(u)]
		if !ok {
			continue
		}
		resp.Errors = append(resp.Errors, deleteError{
			URI:     u,
			Kind:    string(skyerr.KindOf(err)),
			Message: err.Error(),
		})
	}
	resp.Failed = len(resp.Errors)

	c.JSON(http.StatusOK, resp)
}
