package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/handler"
	"github.com/stemsi/exstem-proctor/internal/logger"
	"github.com/stemsi/exstem-proctor/internal/middleware"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth    *handler.AuthHandler
	Catalog *handler.CatalogHandler
	Session *handler.SessionHandler
	// Result is nil when no archive is configured.
	Result *handler.ResultHandler
	WS     *handler.WSHandler
	System *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	limiter *middleware.RateLimiter,
	cfg *config.Config,
	log zerolog.Logger,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Request ID first so every response and log line carries it.
	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.RequestLogger(logger.Component(log, "http")))

	router.Use(middleware.BrotliWithConfig(middleware.BrotliConfig{
		MinLength:    middleware.DefaultBrotliConfig.MinLength,
		SkipPrefixes: []string{"/ws/", "/api/v1/system/metrics"},
	}))

	router.GET("/health", handlers.System.Health)
	router.GET("/ready", handlers.System.Ready)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	auth.Use(limiter.Middleware())
	{
		auth.POST("/guest", handlers.Auth.GuestLogin)
		auth.GET("/me", middleware.RequireCandidateJWT(authService), handlers.Auth.Me)
	}

	// ─── 2. Catalog Group (Public, Cacheable) ──────────────────────────
	catalog := router.Group("/api/v1")
	catalog.Use(limiter.Middleware(), middleware.CacheControl(5*time.Minute))
	{
		catalog.GET("/companies", handlers.Catalog.ListCompanies)
		catalog.GET("/tests/:test_id", handlers.Catalog.GetTest)
	}

	// ─── 3. Candidate Group (JWT) ──────────────────────────────────────
	api := router.Group("/api/v1")
	api.Use(
		middleware.RequireCandidateJWT(authService),
		limiter.Middleware(),
		middleware.NoStore(),
	)
	{
		sessions := api.Group("/sessions")
		{
			sessions.POST("", handlers.Session.Create)
			sessions.GET("/:id", handlers.Session.Get)
			sessions.DELETE("/:id", handlers.Session.Leave)
			sessions.POST("/:id/preflight", handlers.Session.Preflight)
			sessions.POST("/:id/start", handlers.Session.Start)
			sessions.PUT("/:id/answers/:question_id", handlers.Session.SetAnswer)
			sessions.POST("/:id/marks/:question_id", handlers.Session.ToggleMark)
			sessions.POST("/:id/jump", handlers.Session.Jump)
			sessions.POST("/:id/violations", handlers.Session.AddViolation)
			sessions.POST("/:id/fullscreen", handlers.Session.FullscreenChanged)
			sessions.POST("/:id/fullscreen/enter", handlers.Session.EnterFullscreen)
			sessions.POST("/:id/fullscreen/exit", handlers.Session.ExitFullscreen)
			sessions.POST("/:id/visibility", handlers.Session.Visibility)
			sessions.POST("/:id/submit", handlers.Session.Submit)
			sessions.GET("/:id/result", handlers.Session.Result)
		}

		if handlers.Result != nil {
			results := api.Group("/results")
			{
				results.GET("", handlers.Result.History)
				results.GET("/:session_id", handlers.Result.Get)
				results.GET("/:session_id/events", handlers.Result.Events)
			}
		}

		api.GET("/system/metrics", handlers.System.MetricsSSE)
	}

	// ─── 4. WebSocket Group (Query Token Auth) ─────────────────────────
	wsGroup := router.Group("/ws/v1")
	wsGroup.Use(middleware.RequireCandidateWSAuth(authService))
	{
		wsGroup.GET("/sessions/:id/stream", handlers.WS.Stream)
	}

	return router
}
