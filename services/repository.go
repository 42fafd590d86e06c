package services

import (
	"context"
	"time"

	"github.com/cppla/blogstreak/models"
)

// Activity names one of the three ledger counters.
type Activity string

const (
	ActivityPosts    Activity = "posts"
	ActivityLikes    Activity = "likes"
	ActivityComments Activity = "comments"
)

// column returns the ledger column for a; only these names ever reach SQL.
func (a Activity) column() (string, bool) {
	switch a {
	case ActivityPosts, ActivityLikes, ActivityComments:
		return string(a), true
	}
	return "", false
}

// ParseActivity validates a raw activity name.
func ParseActivity(raw string) (Activity, error) {
	a := Activity(raw)
	if _, ok := a.column(); !ok {
		return "", invalid("parse activity", "unknown activity %q", raw)
	}
	return a, nil
}

// StreakStats aggregates streak figures across all users.
type StreakStats struct {
	TotalUsers       int64   `json:"total_users"`
	AvgCurrentStreak float64 `json:"avg_current_streak"`
	AvgLongestStreak float64 `json:"avg_longest_streak"`
	MaxCurrentStreak int     `json:"max_current_streak"`
	MaxLongestStreak int     `json:"max_longest_streak"`
	TotalPosts       int64   `json:"total_posts"`
}

// LeaderboardEntry is one ranked user.
type LeaderboardEntry struct {
	UserID        uint   `json:"user_id"`
	Username      string `json:"username"`
	AvatarURL     string `json:"avatar_url"`
	CurrentStreak int    `json:"current_streak"`
	LongestStreak int    `json:"longest_streak"`
	TotalPosts    int    `json:"total_posts"`
}

// Repository is the persistence boundary of the streak subsystem. Counter
// mutations are single statements so concurrent writers never lose updates.
type Repository interface {
	FindUser(ctx context.Context, id uint) (*models.User, error)
	// ContributionOn returns nil without error when no row exists for day.
	ContributionOn(ctx context.Context, userID uint, day string) (*models.DailyContribution, error)
	Ledger(ctx context.Context, userID uint) ([]models.DailyContribution, error)
	IncrementContribution(ctx context.Context, userID uint, day string, a Activity) error
	// DecrementContribution reports whether a counter was actually lowered.
	DecrementContribution(ctx context.Context, userID uint, day string, a Activity) (bool, error)
	AdjustTotalPosts(ctx context.Context, userID uint, delta int) error
	// SaveStreak stores current as-is and raises longest only when it grows.
	SaveStreak(ctx context.Context, userID uint, current, longest int) error
	UsersWithActiveStreak(ctx context.Context) ([]models.User, error)
	ResetCurrentStreak(ctx context.Context, userID uint) (bool, error)
	EarnedBadges(ctx context.Context, userID uint) ([]models.UserBadge, error)
	// GrantBadge reports false when the badge was already present.
	GrantBadge(ctx context.Context, badge *models.UserBadge) (bool, error)
	CountPostsByAuthor(ctx context.Context, userID uint) (int64, error)
	SumLikesOnPostsByAuthor(ctx context.Context, userID uint) (int64, error)
	StreakAggregate(ctx context.Context) (StreakStats, error)
	Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error)

	TrendingInputFor(ctx context.Context, postID uint) (TrendingInput, error)
	SaveTrendingScore(ctx context.Context, postID uint, score int) error
	TrendingPosts(ctx context.Context, since time.Time, limit int) ([]models.Post, error)

	Transaction(ctx context.Context, fn func(Repository) error) error
}
