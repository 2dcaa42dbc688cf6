package asset

import (
	"bitwise74/model-vault/internal"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AssetDelete removes an asset owned by the caller. A failure to remove
// the bytes is logged but still counts as a successful delete.
func AssetDelete(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)
	userID := c.MustGet("userID").(string)

	id, ok := assetID(c)
	if !ok {
		return
	}

	res, err := d.Registry.Delete(c.Request.Context(), id, userID)
	if err != nil {
		respondErr(c, err, "Failed to delete asset")
		return
	}

	zap.L().Info("Asset deleted",
		zap.Uint("assetID", id),
		zap.String("userID", userID),
		zap.Bool("physicalDeleted", res.PhysicalDeleted),
		zap.String("requestID", requestID),
	)

	c.JSON(http.StatusOK, gin.H{
		"deleted":         true,
		"physicalDeleted": res.PhysicalDeleted,
	})
}
