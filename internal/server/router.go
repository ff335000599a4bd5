package server

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/likenovel/likenovel-backend/internal/handlers"
	"github.com/likenovel/likenovel-backend/internal/middleware"
	"github.com/likenovel/likenovel-backend/internal/observability"
	"github.com/likenovel/likenovel-backend/internal/utils"
)

type RouterConfig struct {
	AuthHandler    *handlers.AuthHandler
	ProductHandler *handlers.ProductHandler
	EpisodeHandler *handlers.EpisodeHandler
	HomeHandler    *handlers.HomeHandler
	UserHandler    *handlers.UserHandler
	AuthMiddleware *middleware.AuthMiddleware
	Metrics        *observability.Metrics
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()
	router.Use(otelgin.Middleware("likenovel"))
	router.Use(cfg.Metrics.GinMiddleware())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     corsOrigins(),
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)
	router.GET("/metrics", cfg.Metrics.Handler())

	auth := router.Group("/auth")
	{
		auth.POST("/signup", cfg.AuthHandler.Signup)
		auth.POST("/signin", cfg.AuthHandler.Signin)
		auth.POST("/admin/signin", cfg.AuthHandler.AdminSignin)
		auth.POST("/social/:kind/:mode", cfg.AuthHandler.SocialCallback)
		auth.POST("/reissue", cfg.AuthHandler.Reissue)
		auth.POST("/reset-password", cfg.AuthHandler.ResetPassword)
		auth.GET("/find-account", cfg.AuthHandler.FindAccount)
		auth.POST("/signoff", cfg.AuthMiddleware.RequireAuth(), cfg.AuthHandler.Signoff)
	}

	// Browse surfaces personalize when a token is present but stay open to
	// guests.
	browse := router.Group("/")
	browse.Use(cfg.AuthMiddleware.OptionalAuth())
	{
		browse.GET("/products", cfg.ProductHandler.List)
		browse.GET("/products/:productID", cfg.ProductHandler.Detail)
		browse.GET("/products/:productID/others", cfg.ProductHandler.AuthorOtherWorks)
		browse.GET("/episodes/:episodeID/entitlement", cfg.EpisodeHandler.Resolve)
		browse.GET("/home/sections", cfg.HomeHandler.Sections)
	}

	reader := router.Group("/")
	reader.Use(cfg.AuthMiddleware.RequireAuth())
	{
		reader.GET("/products/:productID/interest", cfg.ProductHandler.InterestStatus)
		reader.POST("/products/:productID/interest/revive", cfg.ProductHandler.ReviveInterest)
		reader.POST("/episodes/:episodeID/purchase", cfg.EpisodeHandler.Purchase)
		reader.POST("/episodes/:episodeID/use-ticket", cfg.EpisodeHandler.UseTicket)
		reader.POST("/episodes/:episodeID/like", cfg.EpisodeHandler.Like)
		reader.DELETE("/episodes/:episodeID/like", cfg.EpisodeHandler.Unlike)
		reader.GET("/home/similar", cfg.HomeHandler.Similar)
		reader.GET("/users/me", cfg.UserHandler.Me)
		reader.GET("/users/me/notifications", cfg.UserHandler.Notifications)
	}

	author := router.Group("/")
	author.Use(cfg.AuthMiddleware.RequireAuth())
	{
		author.POST("/episodes", cfg.EpisodeHandler.Save)
		author.PUT("/episodes/:episodeID/open", cfg.EpisodeHandler.ToggleOpen)
		author.DELETE("/episodes/:episodeID", cfg.EpisodeHandler.Delete)
	}

	return router
}

func corsOrigins() []string {
	raw := utils.GetEnv("CORS_ALLOW_ORIGINS", "http://localhost:3000", nil)
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
