package user

import (
	"bitwise74/model-vault/internal"
	"bitwise74/model-vault/pkg/middleware"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// UserDelete removes the logged in user together with every asset they own
func UserDelete(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)
	userID := c.MustGet("userID").(string)

	n, err := d.Registry.DeleteOwner(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to delete user", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	zap.L().Info("User deleted",
		zap.String("userID", userID),
		zap.Int("assets", n),
		zap.String("requestID", requestID),
	)

	c.SetCookie(middleware.AuthCookie, "", -1, "/", "", d.SecureCookies, true)
	c.JSON(http.StatusOK, gin.H{
		"deleted": true,
		"assets":  n,
	})
}
