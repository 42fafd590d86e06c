package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/cppla/blogstreak/models"
)

// BadgeStats are the figures badge rules are evaluated against.
type BadgeStats struct {
	TotalPosts    int
	CurrentStreak int
	LongestStreak int
}

// BadgeRule grants a badge once Qualifies holds.
type BadgeRule struct {
	ID          string
	Name        string
	Description string
	Icon        string
	Qualifies   func(BadgeStats) bool
}

// BadgeCatalog lists every badge in evaluation order.
var BadgeCatalog = []BadgeRule{
	{
		ID:          "first-post",
		Name:        "First Post",
		Description: "Published your first blog post",
		Icon:        "📝",
		Qualifies:   func(s BadgeStats) bool { return s.TotalPosts >= 1 },
	},
	{
		ID:          "week-streak",
		Name:        "Week Warrior",
		Description: "Maintained a 7-day streak",
		Icon:        "🔥",
		Qualifies:   func(s BadgeStats) bool { return s.CurrentStreak >= 7 },
	},
	{
		ID:          "month-streak",
		Name:        "Monthly Master",
		Description: "Maintained a 30-day streak",
		Icon:        "⭐",
		Qualifies:   func(s BadgeStats) bool { return s.CurrentStreak >= 30 },
	},
	{
		ID:          "century-streak",
		Name:        "Century Club",
		Description: "Achieved a 100-day streak",
		Icon:        "🏆",
		Qualifies:   func(s BadgeStats) bool { return s.LongestStreak >= 100 },
	},
}

// EvaluateBadges grants every qualifying badge the user does not hold yet and
// returns only the badges granted by this call.
func (s *StreakService) EvaluateBadges(ctx context.Context, userID uint) ([]models.UserBadge, error) {
	const op = "evaluate badges"
	user, err := s.repo.FindUser(ctx, userID)
	if err != nil {
		return nil, wrapOp(op, err)
	}
	earned, err := s.repo.EarnedBadges(ctx, userID)
	if err != nil {
		return nil, wrapOp(op, err)
	}
	have := make(map[string]struct{}, len(earned))
	for _, b := range earned {
		have[b.BadgeID] = struct{}{}
	}

	stats := BadgeStats{
		TotalPosts:    user.TotalPosts,
		CurrentStreak: user.CurrentStreak,
		LongestStreak: user.LongestStreak,
	}
	granted := []models.UserBadge{}
	for _, rule := range s.catalog {
		if _, ok := have[rule.ID]; ok || !rule.Qualifies(stats) {
			continue
		}
		badge := models.UserBadge{
			UserID:      userID,
			BadgeID:     rule.ID,
			Name:        rule.Name,
			Description: rule.Description,
			Icon:        rule.Icon,
			EarnedAt:    s.clock(),
		}
		// a concurrent evaluation may have inserted it first; only report our own grant
		ok, err := s.repo.GrantBadge(ctx, &badge)
		if err != nil {
			return granted, wrapOp(op, err)
		}
		if !ok {
			continue
		}
		s.log.Info("badge granted", zap.Uint("user_id", userID), zap.String("badge", rule.ID))
		s.metrics.ObserveBadge(rule.ID)
		granted = append(granted, badge)
	}
	return granted, nil
}

// Badges lists the badges a user holds, oldest first.
func (s *StreakService) Badges(ctx context.Context, userID uint) ([]models.UserBadge, error) {
	const op = "list badges"
	if _, err := s.repo.FindUser(ctx, userID); err != nil {
		return nil, wrapOp(op, err)
	}
	badges, err := s.repo.EarnedBadges(ctx, userID)
	if err != nil {
		return nil, wrapOp(op, err)
	}
	if badges == nil {
		badges = []models.UserBadge{}
	}
	return badges, nil
}
