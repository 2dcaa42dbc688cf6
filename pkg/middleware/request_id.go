// Package middleware contains any custom middleware used in the app
package middleware

import (
	"bitwise74/model-vault/pkg/util"
	"regexp"

	"github.com/gin-gonic/gin"
)

const RequestIDHeader = "X-Request-ID"

var requestIDRe = regexp.MustCompile(`^[A-Za-z0-9-]{1,64}$`)

// NewRequestIDMiddleware returns a new middleware function that sets a request ID
// for each incoming request as requestID. A well formed X-Request-ID header from a
// proxy in front of the app is reused, otherwise a new ID is generated.
func NewRequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if !requestIDRe.MatchString(id) {
			id = util.RandStr(10)
		}

		c.Set("requestID", id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}
