package root

import (
	"bitwise74/model-vault/internal"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Stats returns instance wide totals
func Stats(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)

	t, err := d.Registry.Totals(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to compute totals", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	c.JSON(http.StatusOK, t)
}
