package controllers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/blogstreak/config"
	"github.com/cppla/blogstreak/middleware"
	"github.com/cppla/blogstreak/services"
	"github.com/cppla/blogstreak/utils"
)

const (
	streakCacheTTL = 10 * time.Minute
	// calendars longer than two years are refused
	maxCalendarDays = 2 * services.MaxStreakLookback

	JobStreakReset  = "streak-reset"
	JobStatsRefresh = "stats-refresh"
)

// StreakController exposes contribution streaks, calendars, badges and the
// leaderboard, plus admin access to the scheduled jobs.
type StreakController struct {
	streaks   *services.StreakService
	scheduler *utils.Scheduler
	log       *zap.Logger
}

// NewStreakController creates a StreakController. scheduler may be nil when
// background jobs are disabled.
func NewStreakController(streaks *services.StreakService, scheduler *utils.Scheduler) *StreakController {
	return &StreakController{streaks: streaks, scheduler: scheduler, log: utils.Named("streak")}
}

// GetUserStreak returns the calendar, streaks and totals for a user.
func (s *StreakController) GetUserStreak(ctx *gin.Context) {
	userID, ok := pathID(ctx, "userId")
	if !ok {
		return
	}
	days, ok := calendarDays(ctx)
	if !ok {
		return
	}
	cacheKey := streakCacheKey(userID, days, s.streaks.Today())
	if utils.ServeCached(ctx, cacheKey) {
		return
	}

	data, err := s.streaks.GetStreakData(ctx, userID, days)
	if err != nil {
		serviceError(ctx, err, "user not found")
		return
	}
	utils.WarmCache(cacheKey, data, streakCacheTTL)
	utils.Success(ctx, data)
}

// GetCalendar returns the heat map cells with their 0..4 level and the
// headline streak figures.
func (s *StreakController) GetCalendar(ctx *gin.Context) {
	userID, ok := pathID(ctx, "userId")
	if !ok {
		return
	}
	days, ok := calendarDays(ctx)
	if !ok {
		return
	}
	data, err := s.streaks.GetStreakData(ctx, userID, days)
	if err != nil {
		serviceError(ctx, err, "user not found")
		return
	}
	utils.Success(ctx, gin.H{
		"calendar_data":        data.CalendarData,
		"current_streak":       data.CurrentStreak,
		"longest_streak":       data.LongestStreak,
		"total_posts":          data.TotalPosts,
		"total_likes_received": data.TotalLikesReceived,
		"total_contributions":  data.TotalContributions,
	})
}

// UpdateContribution records an activity for the user and evaluates badges.
// Callers may only update themselves unless they are admins.
func (s *StreakController) UpdateContribution(ctx *gin.Context) {
	userID, ok := pathID(ctx, "userId")
	if !ok {
		return
	}
	if callerID, _ := getUserID(ctx); callerID != userID && !middleware.IsAdmin(ctx) {
		utils.Error(ctx, http.StatusForbidden, 40350, "cannot update another user's streak")
		return
	}
	var req struct {
		ActivityType string `json:"activityType"`
	}
	if ctx.Request.ContentLength > 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			utils.Error(ctx, http.StatusBadRequest, 40050, "invalid request payload")
			return
		}
	}
	if req.ActivityType == "" {
		req.ActivityType = string(services.ActivityPosts)
	}
	activity, err := services.ParseActivity(req.ActivityType)
	if err != nil {
		serviceError(ctx, err, "")
		return
	}

	snapshot, err := s.streaks.RecordContribution(ctx, userID, activity)
	if err != nil {
		serviceError(ctx, err, "user not found")
		return
	}
	badges, err := s.streaks.EvaluateBadges(ctx, userID)
	if err != nil {
		s.log.Warn("badge evaluation failed", zap.Uint("user_id", userID), zap.Error(err))
		badges = nil
	}
	invalidateStreakCaches(userID)
	utils.Success(ctx, gin.H{"streak": snapshot, "new_badges": nonNil(badges)})
}

// GetStats returns global streak statistics, served from cache when warm.
func (s *StreakController) GetStats(ctx *gin.Context) {
	if utils.ServeCached(ctx, utils.CacheKeyStreakStats) {
		return
	}
	stats, err := s.streaks.GetGlobalStreakStats(ctx)
	if err != nil {
		serviceError(ctx, err, "")
		return
	}
	utils.SuccessCached(ctx, utils.CacheKeyStreakStats, stats, 0)
}

// ResetInactive runs the inactivity sweep immediately.
func (s *StreakController) ResetInactive(ctx *gin.Context) {
	reset, err := s.streaks.ResetInactiveStreaks(ctx)
	if err != nil {
		serviceError(ctx, err, "")
		return
	}
	utils.InvalidateByPrefix(utils.CacheKeyStreak)
	utils.InvalidateByPrefix(utils.CacheKeyLeaderboard)
	utils.InvalidateByPrefix(utils.CacheKeyStreakStats)
	utils.Success(ctx, gin.H{"reset": reset})
}

// Leaderboard ranks users by current streak.
func (s *StreakController) Leaderboard(ctx *gin.Context) {
	limit := config.Get().LeaderboardLimit
	if raw := strings.TrimSpace(ctx.Query("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 100 {
			utils.Error(ctx, http.StatusBadRequest, 40051, "limit must be between 1 and 100")
			return
		}
		limit = n
	}
	cacheKey := utils.CacheKeyLeaderboard + strconv.Itoa(limit)
	if utils.ServeCached(ctx, cacheKey) {
		return
	}
	rows, err := s.streaks.Leaderboard(ctx, limit)
	if err != nil {
		serviceError(ctx, err, "")
		return
	}
	utils.WarmCache(cacheKey, rows, streakCacheTTL)
	utils.Success(ctx, rows)
}

// GetBadges lists a user's badges.
func (s *StreakController) GetBadges(ctx *gin.Context) {
	userID, ok := pathID(ctx, "userId")
	if !ok {
		return
	}
	badges, err := s.streaks.Badges(ctx, userID)
	if err != nil {
		serviceError(ctx, err, "user not found")
		return
	}
	utils.Success(ctx, badges)
}

// EvaluateBadges grants any badges the user now qualifies for.
func (s *StreakController) EvaluateBadges(ctx *gin.Context) {
	userID, ok := pathID(ctx, "userId")
	if !ok {
		return
	}
	badges, err := s.streaks.EvaluateBadges(ctx, userID)
	if err != nil {
		serviceError(ctx, err, "user not found")
		return
	}
	if len(badges) > 0 {
		utils.InvalidateByPrefix(cacheKeyUserPublic + strconv.Itoa(int(userID)) + ":")
	}
	utils.Success(ctx, gin.H{"new_badges": nonNil(badges)})
}

// ListJobs reports the scheduled jobs.
func (s *StreakController) ListJobs(ctx *gin.Context) {
	if s.scheduler == nil {
		utils.Success(ctx, []utils.JobStatus{})
		return
	}
	utils.Success(ctx, s.scheduler.Status())
}

// RunJob triggers a scheduled job out of band.
func (s *StreakController) RunJob(ctx *gin.Context) {
	if s.scheduler == nil {
		utils.Error(ctx, http.StatusServiceUnavailable, 50350, "scheduler disabled")
		return
	}
	name := ctx.Param("name")
	known := false
	for _, st := range s.scheduler.Status() {
		known = known || st.Name == name
	}
	if !known {
		utils.Error(ctx, http.StatusNotFound, 40450, "job not found")
		return
	}
	if err := s.scheduler.RunNow(ctx, name); err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50050, err.Error())
		return
	}
	utils.Success(ctx, gin.H{"job": name, "ran": true})
}

// StreakResetJob is the scheduled form of the inactivity sweep.
func StreakResetJob(streaks *services.StreakService) utils.JobFunc {
	return func(ctx context.Context) error {
		if _, err := streaks.ResetInactiveStreaks(ctx); err != nil {
			return err
		}
		utils.InvalidateByPrefix(utils.CacheKeyStreak)
		utils.InvalidateByPrefix(utils.CacheKeyLeaderboard)
		return StatsRefreshJob(streaks)(ctx)
	}
}

// StatsRefreshJob recomputes global streak statistics into the cache read by GetStats.
func StatsRefreshJob(streaks *services.StreakService) utils.JobFunc {
	return func(ctx context.Context) error {
		stats, err := streaks.GetGlobalStreakStats(ctx)
		if err != nil {
			return err
		}
		utils.WarmCache(utils.CacheKeyStreakStats, stats, 0)
		return nil
	}
}

func calendarDays(ctx *gin.Context) (int, bool) {
	raw := strings.TrimSpace(ctx.Query("days"))
	if raw == "" {
		return config.Get().CalendarDefaultDays, true
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days < 1 || days > maxCalendarDays {
		utils.Error(ctx, http.StatusBadRequest, 40052, fmt.Sprintf("days must be between 1 and %d", maxCalendarDays))
		return 0, false
	}
	return days, true
}

// streakCacheKey scopes a cached streak view to the ledger day it was
// computed on, so a view warmed before midnight is not served after it.
// The userID prefix matches invalidateStreakCaches.
func streakCacheKey(userID uint, days int, day string) string {
	return fmt.Sprintf("%s%d:day=%s:days=%d", utils.CacheKeyStreak, userID, day, days)
}

func invalidateStreakCaches(userID uint) {
	utils.InvalidateByPrefix(utils.CacheKeyStreak + strconv.FormatUint(uint64(userID), 10) + ":")
	utils.InvalidateByPrefix(utils.CacheKeyLeaderboard)
	utils.InvalidateByPrefix(utils.CacheKeyStreakStats)
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
