package controllers

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/blogstreak/models"
	"github.com/cppla/blogstreak/services"
	"github.com/cppla/blogstreak/utils"
)

const siteStatsTTL = 5 * time.Minute

// StatsController provides site-wide counters.
type StatsController struct {
	db      *gorm.DB
	streaks *services.StreakService
	log     *zap.Logger
}

// NewStatsController creates a new StatsController instance.
func NewStatsController(db *gorm.DB, streaks *services.StreakService) *StatsController {
	return &StatsController{db: db, streaks: streaks, log: utils.Named("stats")}
}

// GetStats returns aggregate statistics for the blog. Individual counters
// fall back to 0 instead of failing the whole endpoint.
func (s *StatsController) GetStats(ctx *gin.Context) {
	if utils.ServeCached(ctx, utils.CacheKeySiteStats) {
		return
	}

	var userCount, postCount, commentCount, likeCount, activeToday int64
	db := s.db.WithContext(ctx)
	if err := db.Model(&models.User{}).Count(&userCount).Error; err != nil {
		userCount = 0
	}
	if err := db.Model(&models.Post{}).Where("status = ?", models.PostStatusPublished).Count(&postCount).Error; err != nil {
		postCount = 0
	}
	if err := db.Model(&models.Comment{}).Count(&commentCount).Error; err != nil {
		commentCount = 0
	}
	if err := db.Model(&models.PostLike{}).Count(&likeCount).Error; err != nil {
		likeCount = 0
	}
	// contributors with any activity on the service's current day
	if err := db.Model(&models.DailyContribution{}).
		Where("day = ? AND posts + likes + comments > 0", s.streaks.Today()).
		Count(&activeToday).Error; err != nil {
		activeToday = 0
	}

	payload := gin.H{
		"user_count":         userCount,
		"post_count":         postCount,
		"comment_count":      commentCount,
		"like_count":         likeCount,
		"active_today_count": activeToday,
	}
	if streak, err := s.streaks.GetGlobalStreakStats(ctx); err != nil {
		s.log.Warn("streak stats unavailable", zap.Error(err))
	} else {
		payload["streaks"] = streak
	}
	utils.WarmCache(utils.CacheKeySiteStats, payload, siteStatsTTL)
	utils.Success(ctx, payload)
}
