package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/Suraj08344/examproct-backend/internal/config"
	"github.com/Suraj08344/examproct-backend/internal/handler"
	"github.com/Suraj08344/examproct-backend/internal/middleware"
	"github.com/Suraj08344/examproct-backend/internal/response"
	"github.com/Suraj08344/examproct-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Attempt   *handler.AttemptHandler
	WS        *handler.WSHandler
	ProctorWS *handler.ProctorWSHandler
	Proctor   *handler.ProctorHandler
	Monitor   *handler.MonitorHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for attempt lifecycle routes. Starting an attempt is
	// cheap to request and expensive to serve, so cap it per IP.
	attemptLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 1. Student Group (JWT) ────────────────────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(middleware.RequireStudentJWT(authService))
	{
		studentAPI.POST("/exams/:exam_id/start", attemptLimiter.Middleware(), handlers.Attempt.StartAttempt)
		studentAPI.POST("/exams/:exam_id/resume", attemptLimiter.Middleware(), handlers.Attempt.ResumeAttempt)
		studentAPI.GET("/exams/:exam_id/state", handlers.Attempt.GetState)
	}

	// ─── 2. WebSocket Group (Query-Token Auth) ─────────────────────────
	ws := router.Group("/ws/v1")
	{
		ws.GET("/student/exams/:exam_id/stream",
			middleware.RequireStudentWSAuth(authService),
			handlers.WS.ExamStream,
		)
		ws.GET("/proctor/exams/:exam_id/console",
			middleware.RequireProctorWSAuth(authService),
			handlers.ProctorWS.Console,
		)
	}

	// ─── 3. Proctor Group (JWT) ────────────────────────────────────────
	proctorAPI := router.Group("/api/v1/proctor")
	proctorAPI.Use(middleware.RequireProctorJWT(authService))
	{
		proctorAPI.GET("/exams/:exam_id/monitor", handlers.Monitor.MonitorExamSSE)
		proctorAPI.POST("/exams/:exam_id/students/:student_id/message", handlers.Proctor.SendMessage)
		proctorAPI.POST("/exams/:exam_id/students/:student_id/warning", handlers.Proctor.SendWarning)
		proctorAPI.POST("/exams/:exam_id/students/:student_id/terminate", handlers.Proctor.TerminateSession)
	}

	return router
}
