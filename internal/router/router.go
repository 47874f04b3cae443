package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-client/internal/config"
	"github.com/stemsi/exstem-client/internal/handler"
	"github.com/stemsi/exstem-client/internal/middleware"
	"github.com/stemsi/exstem-client/internal/response"
	"github.com/stemsi/exstem-client/internal/service"
	"github.com/stemsi/exstem-client/internal/transport"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Exam *handler.ExamHandler
	WS   *handler.WSHandler
}

// SetupRouter configures the development exam server routes.
func SetupRouter(
	attempts *service.AttemptService,
	handlers *Handlers,
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
		corsConfig.AllowCredentials = true
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{
		"Origin", "Content-Type", "X-Request-ID",
		transport.HeaderAutosaveSeq, transport.HeaderClientRun,
	}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(log))

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// ─── Exam page ─────────────────────────────────────────────────────
	router.GET("/exam", handlers.Exam.GetPage)
	router.GET("/result/:attempt_id", handlers.Exam.GetResult)

	// ─── Attempt-bound routes ──────────────────────────────────────────
	attempt := router.Group("/")
	attempt.Use(middleware.RequireAttempt(attempts))
	{
		save := []gin.HandlerFunc{handlers.Exam.Save}
		if cfg.SaveRate > 0 {
			limiter := middleware.NewRateLimiter(cfg.SaveRate, time.Minute)
			save = append([]gin.HandlerFunc{limiter.Middleware()}, save...)
		}
		attempt.POST(service.SavePath, save...)
		attempt.POST(service.SubmitPath, handlers.Exam.Submit)
		attempt.GET("/ws"+service.SavePath, handlers.WS.AutosaveStream)
	}

	return router
}
