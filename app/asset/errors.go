// Package asset contains the handlers of the /api/assets routes
package asset

import (
	"bitwise74/model-vault/internal/registry"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	reasonNotFound    = "not_found"
	reasonUnavailable = "asset_unavailable"
	reasonBadRequest  = "invalid_request"
)

// respondErr maps registry errors to responses. Unexpected errors are
// logged with msg and hidden from the client.
func respondErr(c *gin.Context, err error, msg string) {
	requestID := c.GetString("requestID")

	switch {
	case errors.Is(err, registry.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":     "Asset not found",
			"reason":    reasonNotFound,
			"requestID": requestID,
		})
	case errors.Is(err, registry.ErrUnavailable):
		c.JSON(http.StatusGone, gin.H{
			"error":     "This asset is currently unavailable",
			"reason":    reasonUnavailable,
			"requestID": requestID,
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error(msg, zap.Error(err), zap.String("requestID", requestID))
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":     msg,
		"reason":    reasonBadRequest,
		"requestID": c.GetString("requestID"),
	})
}

// assetID parses the :id path param. Malformed ids can't exist so they're
// reported as not found.
func assetID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusNotFound, gin.H{
			"error":     "Asset not found",
			"reason":    reasonNotFound,
			"requestID": c.GetString("requestID"),
		})
		return 0, false
	}

	return uint(id), true
}
