package transport

import (
	"time"

	"github.com/ds124wfegd/imagestudio/internal/transport/middleware"
	"github.com/gin-gonic/gin"
)

type RouterConfig struct {
	AllowedOrigin  string
	RequestTimeout time.Duration
	Version        string
}

func InitRoutes(h *SessionHandler, cfg RouterConfig) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.AllowedOrigin))
	router.Use(middleware.Logger())
	router.Use(middleware.Timeout(cfg.RequestTimeout))

	api := router.Group("/api/v1")
	{
		sessions := api.Group("/sessions")
		{
			sessions.POST("", h.CreateSession)
			sessions.GET("/:id", h.GetSession)
			sessions.DELETE("/:id", h.DeleteSession)
			sessions.PUT("/:id/image", h.ReplaceImage)

			sessions.POST("/:id/edits", h.ApplyEdit)
			sessions.POST("/:id/edits/:type", h.ApplyImageEdit)
			sessions.POST("/:id/undo", h.Undo)
			sessions.POST("/:id/redo", h.Redo)
			sessions.POST("/:id/clear", h.Clear)

			sessions.GET("/:id/preview", h.Preview)
			sessions.GET("/:id/export", h.Export)
			sessions.GET("/:id/archive", h.Archive)
			sessions.POST("/:id/remove-background", h.RemoveBackground)
		}
	}

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": "image-studio",
			"version": cfg.Version,
		})
	})

	return router
}
