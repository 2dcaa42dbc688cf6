package asset

import (
	"bitwise74/model-vault/internal"
	"net/http"

	"github.com/gin-gonic/gin"
)

// AssetFetch returns the metadata of an asset visible to the caller.
// Assets flagged as missing are still listed with missing set.
func AssetFetch(c *gin.Context, d *internal.Deps) {
	id, ok := assetID(c)
	if !ok {
		return
	}

	a, err := d.Registry.GetVisible(c.Request.Context(), id, c.GetString("userID"))
	if err != nil {
		respondErr(c, err, "Failed to fetch asset")
		return
	}

	c.JSON(http.StatusOK, a)
}
