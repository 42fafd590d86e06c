package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/blogstreak/models"
)

const contributionsTable = "daily_contributions"

type gormRepository struct {
	db *gorm.DB
}

// NewGormRepository returns a Repository backed by db.
func NewGormRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) FindUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, persistence("find user", err)
	}
	return &user, nil
}

func (r *gormRepository) ContributionOn(ctx context.Context, userID uint, day string) (*models.DailyContribution, error) {
	var row models.DailyContribution
	err := r.db.WithContext(ctx).Where("user_id = ? AND day = ?", userID, day).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, persistence("load contribution", err)
	}
	return &row, nil
}

func (r *gormRepository) Ledger(ctx context.Context, userID uint) ([]models.DailyContribution, error) {
	var rows []models.DailyContribution
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("day ASC").Find(&rows).Error; err != nil {
		return nil, persistence("load ledger", err)
	}
	return rows, nil
}

func (r *gormRepository) IncrementContribution(ctx context.Context, userID uint, day string, a Activity) error {
	col, ok := a.column()
	if !ok {
		return invalid("increment contribution", "unknown activity %q", a)
	}
	row := models.DailyContribution{UserID: userID, Day: day}
	switch a {
	case ActivityPosts:
		row.Posts = 1
	case ActivityLikes:
		row.Likes = 1
	case ActivityComments:
		row.Comments = 1
	}
	// Atomic upsert: the first writer of the day inserts, later writers bump the column in place.
	// The column is table-qualified; postgres sees both the row and EXCLUDED inside DO UPDATE.
	current := clause.Column{Table: contributionsTable, Name: col}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "day"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			col:          clause.Expr{SQL: "? + 1", Vars: []interface{}{current}},
			"updated_at": time.Now(),
		}),
	}).Create(&row).Error
	return persistence("increment contribution", err)
}

func (r *gormRepository) DecrementContribution(ctx context.Context, userID uint, day string, a Activity) (bool, error) {
	col, ok := a.column()
	if !ok {
		return false, invalid("decrement contribution", "unknown activity %q", a)
	}
	res := r.db.WithContext(ctx).Model(&models.DailyContribution{}).
		Where("user_id = ? AND day = ? AND "+col+" > 0", userID, day).
		UpdateColumn(col, gorm.Expr(col+" - 1"))
	if res.Error != nil {
		return false, persistence("decrement contribution", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *gormRepository) AdjustTotalPosts(ctx context.Context, userID uint, delta int) error {
	if delta == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).
		UpdateColumn("total_posts", gorm.Expr("CASE WHEN total_posts + ? < 0 THEN 0 ELSE total_posts + ? END", delta, delta)).Error
	return persistence("adjust total posts", err)
}

func (r *gormRepository) SaveStreak(ctx context.Context, userID uint, current, longest int) error {
	err := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).
		UpdateColumns(map[string]interface{}{
			"current_streak": current,
			"longest_streak": gorm.Expr("CASE WHEN longest_streak < ? THEN ? ELSE longest_streak END", longest, longest),
		}).Error
	return persistence("save streak", err)
}

func (r *gormRepository) UsersWithActiveStreak(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).Select("id", "username", "current_streak", "longest_streak").
		Where("current_streak > 0").Order("id ASC").Find(&users).Error
	if err != nil {
		return nil, persistence("list active streaks", err)
	}
	return users, nil
}

func (r *gormRepository) ResetCurrentStreak(ctx context.Context, userID uint) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND current_streak > 0", userID).
		UpdateColumn("current_streak", 0)
	if res.Error != nil {
		return false, persistence("reset streak", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *gormRepository) EarnedBadges(ctx context.Context, userID uint) ([]models.UserBadge, error) {
	var badges []models.UserBadge
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("earned_at ASC, id ASC").Find(&badges).Error; err != nil {
		return nil, persistence("load badges", err)
	}
	return badges, nil
}

func (r *gormRepository) GrantBadge(ctx context.Context, badge *models.UserBadge) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "badge_id"}},
		DoNothing: true,
	}).Create(badge)
	if res.Error != nil {
		return false, persistence("grant badge", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *gormRepository) CountPostsByAuthor(ctx context.Context, userID uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Post{}).
		Where("user_id = ? AND status = ?", userID, models.PostStatusPublished).Count(&n).Error
	if err != nil {
		return 0, persistence("count posts", err)
	}
	return n, nil
}

func (r *gormRepository) SumLikesOnPostsByAuthor(ctx context.Context, userID uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.PostLike{}).
		Joins("JOIN posts ON posts.id = post_likes.post_id").
		Where("posts.user_id = ?", userID).Count(&n).Error
	if err != nil {
		return 0, persistence("sum likes", err)
	}
	return n, nil
}

func (r *gormRepository) StreakAggregate(ctx context.Context) (StreakStats, error) {
	var out StreakStats
	err := r.db.WithContext(ctx).Model(&models.User{}).Select(
		"COUNT(*) AS total_users, " +
			"COALESCE(AVG(current_streak), 0) AS avg_current_streak, " +
			"COALESCE(AVG(longest_streak), 0) AS avg_longest_streak, " +
			"COALESCE(MAX(current_streak), 0) AS max_current_streak, " +
			"COALESCE(MAX(longest_streak), 0) AS max_longest_streak, " +
			"COALESCE(SUM(total_posts), 0) AS total_posts",
	).Scan(&out).Error
	if err != nil {
		return StreakStats{}, persistence("aggregate streaks", err)
	}
	return out, nil
}

func (r *gormRepository) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	var rows []LeaderboardEntry
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Select("id AS user_id, username, avatar_url, current_streak, longest_streak, total_posts").
		Where("current_streak > 0").
		Order("current_streak DESC, longest_streak DESC, id ASC").
		Limit(limit).Scan(&rows).Error
	if err != nil {
		return nil, persistence("leaderboard", err)
	}
	return rows, nil
}

func (r *gormRepository) TrendingInputFor(ctx context.Context, postID uint) (TrendingInput, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).First(&post, postID).Error; err != nil {
		return TrendingInput{}, persistence("load post", err)
	}
	var likes int64
	if err := r.db.WithContext(ctx).Model(&models.PostLike{}).Where("post_id = ?", postID).Count(&likes).Error; err != nil {
		return TrendingInput{}, persistence("count likes", err)
	}
	return TrendingInput{
		Likes:        int(likes),
		ViewCount:    post.ViewCount,
		CommentCount: post.CommentCount,
		PublishedAt:  post.PublishedAt,
	}, nil
}

func (r *gormRepository) SaveTrendingScore(ctx context.Context, postID uint, score int) error {
	err := r.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", postID).
		UpdateColumn("trending_score", score).Error
	return persistence("save trending score", err)
}

func (r *gormRepository) TrendingPosts(ctx context.Context, since time.Time, limit int) ([]models.Post, error) {
	var posts []models.Post
	err := r.db.WithContext(ctx).Preload("User").
		Where("status = ? AND published_at >= ?", models.PostStatusPublished, since).
		Order("trending_score DESC, published_at DESC").
		Limit(limit).Find(&posts).Error
	if err != nil {
		return nil, persistence("trending posts", err)
	}
	return posts, nil
}

func (r *gormRepository) Transaction(ctx context.Context, fn func(Repository) error) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepository{db: tx})
	})
	return persistence("transaction", err)
}
