package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/cppla/blogstreak/config"
	"github.com/cppla/blogstreak/controllers"
	"github.com/cppla/blogstreak/middleware"
	"github.com/cppla/blogstreak/services"
	"github.com/cppla/blogstreak/utils"
)

// SetupRouter wires routes, middlewares, and controllers. scheduler may be nil.
func SetupRouter(db *gorm.DB, streaks *services.StreakService, trending *services.TrendingService, scheduler *utils.Scheduler) *gin.Engine {
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// access log goes to its own rolling file
	gl, err := utils.NewAccessLogger(cfg)
	if err == nil {
		r.Use(utils.Ginzap(gl, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(gl, false))
	} else {
		r.Use(gin.Recovery())
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", utils.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", utils.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})
	if cfg.MetricsEnabled {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	authController := controllers.NewAuthController(db)
	postController := controllers.NewPostController(db, streaks, trending)
	streakController := controllers.NewStreakController(streaks, scheduler)
	statsController := controllers.NewStatsController(db, streaks)

	authed := middleware.AuthRequired()
	optional := middleware.OptionalAuth()
	admin := middleware.AdminRequired()

	api := r.Group("/api/v1")
	api.Use(middleware.RateLimitMiddleware())

	authGroup := api.Group("/auth")
	authGroup.POST("/register", middleware.RateLimit("auth", 10), authController.Register)
	authGroup.POST("/login", middleware.RateLimit("auth", 10), authController.Login)
	authGroup.POST("/logout", authed, authController.Logout)
	authGroup.GET("/me", authed, authController.Me)
	authGroup.PATCH("/profile", authed, authController.UpdateProfile)

	api.GET("/users/:userId", authController.GetUserPublic)
	api.GET("/stats", statsController.GetStats)

	posts := api.Group("/posts")
	posts.GET("", postController.ListPosts)
	posts.GET("/trending", postController.TrendingPosts)
	posts.GET("/search", postController.SearchPosts)
	posts.GET("/user/:userId", optional, postController.ListUserPosts)
	posts.GET("/my", authed, postController.ListMyPosts)
	posts.GET("/liked", authed, postController.ListLikedPosts)
	posts.GET("/saved", authed, postController.ListSavedPosts)
	posts.GET("/:id", optional, middleware.PostViewRecorder(db, trending), postController.GetPost)
	posts.POST("", authed, postController.CreatePost)
	posts.PUT("/:id", authed, postController.UpdatePost)
	posts.DELETE("/:id", authed, postController.DeletePost)
	posts.PUT("/:id/like", authed, postController.ToggleLike)
	posts.POST("/:id/save", authed, postController.SavePost)
	posts.DELETE("/:id/save", authed, postController.UnsavePost)
	posts.GET("/:id/comments", postController.ListComments)
	posts.POST("/:id/comments", authed, postController.CreateComment)

	api.DELETE("/comments/:commentId", authed, postController.DeleteComment)

	streak := api.Group("/streak")
	streak.GET("/user/:userId", authed, streakController.GetUserStreak)
	streak.GET("/calendar/:userId", authed, streakController.GetCalendar)
	streak.POST("/update/:userId", authed, streakController.UpdateContribution)
	streak.GET("/stats", streakController.GetStats)
	streak.GET("/leaderboard", streakController.Leaderboard)
	streak.GET("/badges/:userId", streakController.GetBadges)
	streak.POST("/badges/:userId/evaluate", authed, streakController.EvaluateBadges)
	streak.POST("/reset-inactive", authed, admin, streakController.ResetInactive)
	streak.GET("/jobs", authed, admin, streakController.ListJobs)
	streak.POST("/jobs/:name/run", authed, admin, streakController.RunJob)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "route not found")
	})

	return r
}
