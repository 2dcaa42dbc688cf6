package middleware

import (
	"bitwise74/model-vault/internal/model"
	"bitwise74/model-vault/pkg/security"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const AuthCookie = "auth_token"

// tokenFrom reads the auth token from the auth_token cookie or a Bearer
// Authorization header
func tokenFrom(c *gin.Context) string {
	if v, err := c.Cookie(AuthCookie); err == nil && v != "" {
		return v
	}

	h := c.GetHeader("Authorization")
	if after, ok := strings.CutPrefix(h, "Bearer "); ok {
		return strings.TrimSpace(after)
	}

	return ""
}

type authResult int

const (
	authNone authResult = iota
	authOK
	authInvalid
	authFailed
)

func authenticate(c *gin.Context, db *gorm.DB, secret []byte) (string, authResult) {
	requestID := c.GetString("requestID")

	tokenStr := tokenFrom(c)
	if tokenStr == "" {
		return "", authNone
	}

	userID, err := security.ParseAuthToken(secret, tokenStr)
	if err != nil {
		zap.L().Debug("Rejected auth token", zap.Error(err), zap.String("requestID", requestID))
		return "", authInvalid
	}

	// The account may have been deleted while the token is still valid
	var n int64
	err = db.
		WithContext(c.Request.Context()).
		Model(&model.User{}).
		Where("id = ?", userID).
		Count(&n).
		Error
	if err != nil {
		zap.L().Error("Failed to check if user exists", zap.Error(err), zap.String("requestID", requestID))
		return "", authFailed
	}

	if n == 0 {
		return "", authInvalid
	}

	return userID, authOK
}

// NewJWTMiddleware rejects requests without a valid auth token and sets
// userID for the ones that carry one
func NewJWTMiddleware(db *gorm.DB, secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetString("requestID")

		userID, res := authenticate(c, db, secret)
		switch res {
		case authOK:
			c.Set("userID", userID)
			c.Next()
		case authNone:
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":     "Authorization required",
				"requestID": requestID,
			})
		case authInvalid:
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":     "Authorization token invalid or expired. Please log in again",
				"requestID": requestID,
			})
		default:
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":     "Internal server error",
				"requestID": requestID,
			})
		}
	}
}

// NewOptionalJWTMiddleware lets anonymous requests through. userID is only
// set when a valid token was sent, an invalid one is treated as anonymous.
func NewOptionalJWTMiddleware(db *gorm.DB, secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, res := authenticate(c, db, secret)
		if res == authFailed {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":     "Internal server error",
				"requestID": c.GetString("requestID"),
			})
			return
		}

		if res == authOK {
			c.Set("userID", userID)
		}

		c.Next()
	}
}
