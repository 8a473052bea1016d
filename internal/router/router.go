package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/traincenter/traincenter-backend/internal/config"
	"github.com/traincenter/traincenter-backend/internal/handler"
	"github.com/traincenter/traincenter-backend/internal/middleware"
	"github.com/traincenter/traincenter-backend/internal/response"
	"github.com/traincenter/traincenter-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth *handler.AuthHandler
	Exam *handler.ExamHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(authService *service.AuthService, handlers *Handlers, cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Every response carries a request ID for tracing.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// ─── Auth (public) ─────────────────────────────────────────────────
	auth := router.Group("/api/v1/auth")
	{
		auth.POST("/login", handlers.Auth.Login)
		auth.GET("/me", middleware.RequireJWT(authService), handlers.Auth.Me)
	}

	// ─── Exam core (JWT) ───────────────────────────────────────────────
	train := router.Group("/api/v1/train")
	train.Use(middleware.RequireJWT(authService))
	{
		train.POST("/questions/draw", handlers.Exam.Draw)
		train.POST("/questions/redraw", handlers.Exam.Redraw)
		train.POST("/questions/judge", handlers.Exam.Submit)
		train.GET("/results", handlers.Exam.History)
	}

	return router
}
