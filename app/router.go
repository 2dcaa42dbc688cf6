// Package app wires the HTTP router, its middleware and every handler
package app

import (
	"bitwise74/model-vault/app/asset"
	"bitwise74/model-vault/app/root"
	"bitwise74/model-vault/app/user"
	"bitwise74/model-vault/internal"
	"bitwise74/model-vault/pkg/middleware"
	"context"
	"time"

	cache "github.com/chenyahui/gin-cache"
	"github.com/chenyahui/gin-cache/persist"
	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Extra room for the multipart envelope around the file itself
const multipartOverhead = 1 << 20

// NewRouter builds the HTTP router. Background work started by the
// middleware stops when ctx is done.
func NewRouter(ctx context.Context, d *internal.Deps) *gin.Engine {
	router := gin.New()

	origins := viper.GetStringSlice("host.cors_origins")
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173"}
	}

	router.Use(
		cors.New(cors.Config{
			AllowOrigins:     origins,
			AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "TurnstileToken"},
			ExposeHeaders:    []string{"Content-Length", "Content-Disposition", middleware.RequestIDHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
		gin.Recovery(),
		middleware.NewRequestIDMiddleware(),
		ginzap.GinzapWithConfig(zap.L(), &ginzap.Config{
			TimeFormat: "15:04:05.000",
			UTC:        true,
			Skipper: func(c *gin.Context) bool {
				return c.Request.Method == "HEAD"
			},
			Context: func(c *gin.Context) []zapcore.Field {
				fields := []zapcore.Field{}

				if v := c.GetString("requestID"); v != "" {
					fields = append(fields, zap.String("request_id", v))
				}

				if v := c.GetString("userID"); v != "" {
					fields = append(fields, zap.String("userID", v))
				}

				return fields
			},
		}),
	)

	router.HandleMethodNotAllowed = true
	router.RedirectFixedPath = true
	router.MaxMultipartMemory = 5 << 20

	jwt := middleware.NewJWTMiddleware(d.DB, d.JWTSecret)
	optionalJWT := middleware.NewOptionalJWTMiddleware(d.DB, d.JWTSecret)
	turnstile := middleware.NewTurnstileMiddleware(middleware.TurnstileConfigFromViper())
	rateLimiter := middleware.RateLimiterMiddleware(ctx, middleware.RateLimiterConfig{
		RequestsPerSecond: viper.GetInt("security.rate_limit"),
	})

	store := persist.NewMemoryStore(time.Minute)

	main := router.Group("/api", rateLimiter)
	{
		// HEAD /api/heartbeat 		-> Used to check if the server is alive
		main.HEAD("/heartbeat", root.Heartbeat)

		// GET /api/stats		-> Instance wide totals
		main.GET("/stats", cache.CacheByRequestURI(store, 30*time.Second), func(c *gin.Context) { root.Stats(c, d) })
	}

	users := main.Group("/users", middleware.BodySizeLimiter(1<<20))
	{
		// GET /api/users		-> Returns the profile and stats of a user
		users.GET("", jwt, func(c *gin.Context) { user.UserFetch(c, d) })

		// POST /api/users 		-> Registers a new user
		users.POST("", turnstile, func(c *gin.Context) { user.UserRegister(c, d) })

		// POST /api/users/login 	-> Logs in a user and returns a JWT token
		users.POST("/login", func(c *gin.Context) { user.UserLogin(c, d) })

		// DELETE /api/users 		-> Deletes the user and all of their assets
		users.DELETE("", jwt, func(c *gin.Context) { user.UserDelete(c, d) })
	}

	assets := main.Group("/assets")
	{
		// GET /api/assets		-> Lists public assets, or the caller's with mine=true
		assets.GET("", optionalJWT, func(c *gin.Context) { asset.AssetList(c, d) })

		// GET /api/assets/:id		-> Returns the metadata of an asset
		assets.GET("/:id", optionalJWT, func(c *gin.Context) { asset.AssetFetch(c, d) })

		// GET /api/assets/:id/download	-> Downloads an asset as an attachment
		assets.GET("/:id/download", optionalJWT, func(c *gin.Context) { asset.AssetDownload(c, d) })

		// GET /api/assets/:id/view	-> Serves an asset inline for viewers
		assets.GET("/:id/view", optionalJWT, func(c *gin.Context) { asset.AssetView(c, d) })

		// POST /api/assets		-> Uploads a new model
		assets.POST("", jwt, middleware.BodySizeLimiter(d.UploadRules.MaxSize+multipartOverhead), func(c *gin.Context) { asset.AssetUpload(c, d) })

		// PATCH /api/assets/:id	-> Edits an asset owned by the caller
		assets.PATCH("/:id", jwt, middleware.BodySizeLimiter(1<<20), func(c *gin.Context) { asset.AssetEdit(c, d) })

		// DELETE /api/assets/:id	-> Deletes an asset owned by the caller
		assets.DELETE("/:id", jwt, func(c *gin.Context) { asset.AssetDelete(c, d) })
	}

	return router
}
