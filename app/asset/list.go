package asset

import (
	"bitwise74/model-vault/internal"
	"bitwise74/model-vault/internal/registry"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AssetList lists public assets, or every asset of the caller with mine=true
func AssetList(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)
	userID := c.GetString("userID")

	page, err := queryInt(c, "page")
	if err != nil {
		badRequest(c, "page must be a number")
		return
	}

	perPage, err := queryInt(c, "per_page")
	if err != nil {
		badRequest(c, "per_page must be a number")
		return
	}

	f := registry.Filter{Search: c.Query("search")}
	p := registry.Page{Page: page, PerPage: perPage}

	var res registry.PageResult

	if c.Query("mine") == "true" {
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":     "Authorization required",
				"requestID": requestID,
			})
			return
		}

		res, err = d.Registry.ListByOwner(c.Request.Context(), userID, f, p)
	} else {
		res, err = d.Registry.ListPublic(c.Request.Context(), f, p)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to list assets", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	c.JSON(http.StatusOK, res)
}

// queryInt returns 0 for an absent parameter
func queryInt(c *gin.Context, key string) (int, error) {
	v := c.Query(key)
	if v == "" {
		return 0, nil
	}

	return strconv.Atoi(v)
}
