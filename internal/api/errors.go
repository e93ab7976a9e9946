package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/skymarshal/core/internal/skyerr"
)

// ErrorResponse matches the teacher's models.ErrorResponse{Error, Message,
// Code} JSON shape, so existing API consumers need no reshaping.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// writeError maps err to an HTTP status via skyerr.Kind.HTTPStatus, taking
// over the teacher's string-comparison (err.Error() == "account not
// found") idiom with a typed lookup.
func writeError(c *gin.Context, label string, err error) {
	status := skyerr.KindOf(err).HTTPStatus()
	c.JSON(status, ErrorResponse{Error: label, Message: err.Error(), Code: status})
}

func writeValidationError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "validation failed",
		Message: err.Error(),
		Code:    http.StatusBadRequest,
	})
}

func writeBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: "bad request", Message: message, Code: http.StatusBadRequest})
}

func writeUnauthorized(c *gin.Context, message string) {
	c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: message, Code: http.StatusUnauthorized})
}

// errJobNotFound backs GET /api/network/status|result/:id for an unknown
// job ID.
var errJobNotFound = skyerr.New(skyerr.NotFound, "job not found")

// errShareNotFound backs GET /api/share/:id for an unknown permalink.
var errShareNotFound = skyerr.New(skyerr.NotFound, "share not found")
