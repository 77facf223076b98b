package api

import (
	"net/http"
	"strings"

	"stylist/internal/storage"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// NewRouter 注册所有路由。store 为本地存储时同时托管渲染结果文件
func NewRouter(h *HTTPHandler, store storage.Storage) *gin.Engine {
	r := gin.New()
	r.Use(LoggingMiddleware())
	r.Use(corsMiddleware(h.cfg.CORSAllowOrigins))
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	apiGroup := r.Group("/api")

	authGroup := apiGroup.Group("/auth")
	authGroup.GET("/status", h.AuthStatus)
	authGroup.POST("/register", h.Register)
	authGroup.POST("/login", h.Login)
	authGroup.GET("/me", h.AuthMiddleware(), h.Me)

	// 服务商回调使用共享密钥鉴权
	apiGroup.POST("/webhooks/render/:provider", h.RenderWebhook)

	protected := apiGroup.Group("")
	protected.Use(h.AuthMiddleware())
	protected.PATCH("/me/profile", h.UpdateProfile)
	protected.GET("/catalog/items", h.ListCatalogItems)

	protected.POST("/looks", h.ComposeLook)
	protected.GET("/looks", h.ListLooks)
	protected.GET("/looks/:id", h.GetLook)
	protected.POST("/looks/:id/render", h.StartLookRender)
	protected.GET("/looks/:id/render", h.GetLookRenderStatus)

	protected.POST("/items/:id/try-on", h.StartItemTryOn)
	protected.GET("/items/:id/try-on", h.GetItemTryOnStatus)

	protected.GET("/jobs/:id", h.GetJob)
	protected.GET("/events", h.StreamJobEvents)

	admin := protected.Group("/admin")
	admin.Use(h.RequireAdmin())
	admin.POST("/render/poll", h.PollRenderJobs)

	if localProvider, ok := store.(storage.LocalBaseDirProvider); ok {
		publicPrefix := strings.TrimSpace(h.cfg.StoragePublicBaseURL)
		if publicPrefix == "" {
			publicPrefix = "/files"
		}
		if !strings.HasPrefix(publicPrefix, "http://") && !strings.HasPrefix(publicPrefix, "https://") {
			if !strings.HasPrefix(publicPrefix, "/") {
				publicPrefix = "/" + publicPrefix
			}
			r.Static(publicPrefix, localProvider.LocalBaseDir())
		}
	}

	return r
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	conf := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Requested-With", "X-Webhook-Token"},
	}

	allowed := make([]string, 0, len(origins))
	for _, origin := range origins {
		origin = strings.TrimSpace(origin)
		if origin == "*" {
			allowed = nil
			break
		}
		if origin != "" {
			allowed = append(allowed, origin)
		}
	}
	if len(allowed) == 0 {
		conf.AllowAllOrigins = true
	} else {
		conf.AllowOrigins = allowed
		conf.AllowCredentials = true
	}
	return cors.New(conf)
}
