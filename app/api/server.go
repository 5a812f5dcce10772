package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/replybot/app/monitoring"
)

// NewServer creates a new HTTP server with all routes configured
func NewServer(handler *Handler, apiAccessKey string, metrics *monitoring.Metrics) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
		SkipPaths: []string{"/health", "/metrics"},
	}))

	r.Use(gin.Recovery())
	r.Use(metrics.Middleware())

	// The dashboard is served from another origin.
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-API-Key")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	setupRoutes(r, handler, apiAccessKey, metrics)

	return r
}

func setupRoutes(r *gin.Engine, handler *Handler, apiAccessKey string, metrics *monitoring.Metrics) {
	r.GET("/health", handler.GetHealth)
	r.GET("/metrics", metrics.Handler())
	r.GET("/get-sheet-link/:sheet_id", handler.GetSheetLink)
	r.POST("/heartbeat", handler.Heartbeat)

	admin := r.Group("/")
	if apiAccessKey != "" {
		admin.Use(authMiddleware(apiAccessKey))
		slog.Info("Administrative endpoints require an API key")
	} else {
		slog.Warn("Administrative endpoints are not protected (API_ACCESS_KEY not set)")
	}
	{
		admin.POST("/update-blacklisted-users", handler.UpdateBlacklist)
		admin.POST("/add-blacklisted-users", handler.AddBlacklist)
		admin.POST("/remove-blacklisted-users", handler.RemoveBlacklist)
		admin.POST("/clear-blacklist", handler.ClearBlacklist)
		admin.GET("/get-blacklisted-users", handler.GetBlacklist)

		admin.POST("/set-additional-instructions", handler.SetInstructions)
		admin.GET("/get-additional-instructions", handler.GetInstructions)

		admin.POST("/add-preset-reply", handler.AddPresetReplies)
		admin.GET("/get-preset-replies", handler.GetPresetReplies)

		admin.POST("/start-scheduler", handler.StartScheduler)
		admin.POST("/stop-scheduler", handler.StopScheduler)

		admin.POST("/start-daily-scheduler", handler.StartDailyScheduler)
		admin.POST("/stop-daily-scheduler/:job_id", handler.StopDailyScheduler)
		admin.GET("/daily-jobs", handler.ListDailyJobs)

		admin.GET("/replies", handler.ListReplies)
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service":     "ReplyBot",
			"version":     handler.version,
			"description": "Scheduled comment triage and AI replies for Facebook pages",
			"endpoints": map[string]string{
				"health":       "/health",
				"metrics":      "/metrics",
				"blacklist":    "/get-blacklisted-users",
				"presets":      "/get-preset-replies",
				"instructions": "/get-additional-instructions",
				"daily_jobs":   "/daily-jobs",
				"replies":      "/replies",
			},
			"api_status": map[string]interface{}{
				"auth_required": apiAccessKey != "",
				"header":        "X-API-Key",
			},
		})
	})

	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
}

// authMiddleware accepts the key in X-API-Key or as a Bearer token
func authMiddleware(apiAccessKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		providedKey := c.GetHeader("X-API-Key")

		if providedKey == "" {
			authHeader := c.GetHeader("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				providedKey = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}

		if providedKey == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"status":  "error",
				"message": "Provide API key in X-API-Key header or Authorization: Bearer <key>",
			})
			return
		}

		if providedKey != apiAccessKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"status":  "error",
				"message": "The provided API key is not valid",
			})
			return
		}

		c.Next()
	}
}
