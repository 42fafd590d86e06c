package services

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/blogstreak/models"
)

const (
	trendingDecayHours = 168.0
	trendingDecayFloor = 0.1
)

// TrendingInput carries the post figures the score depends on.
type TrendingInput struct {
	Likes        int
	ViewCount    int64
	CommentCount int
	PublishedAt  *time.Time
}

// TrendingScore weights likes, views and comments and decays the sum linearly
// over one week down to a floor of 0.1. Unpublished posts sit at the floor.
func TrendingScore(in TrendingInput, now time.Time) int {
	raw := float64(in.Likes)*10 + float64(in.ViewCount)*0.1 + float64(in.CommentCount)*5
	decay := trendingDecayFloor
	if in.PublishedAt != nil {
		hours := now.Sub(*in.PublishedAt).Hours()
		decay = math.Max(trendingDecayFloor, 1-hours/trendingDecayHours)
	}
	return int(math.Round(raw * decay))
}

// TimeFrameStart maps day|week|month to the start of the window; anything else means week.
func TimeFrameStart(timeFrame string, now time.Time) time.Time {
	switch timeFrame {
	case "day":
		return now.AddDate(0, 0, -1)
	case "month":
		return now.AddDate(0, -1, 0)
	default:
		return now.AddDate(0, 0, -7)
	}
}

// TrendingService recomputes and lists cached post scores.
type TrendingService struct {
	repo  Repository
	clock Clock
	log   *zap.Logger
}

func NewTrendingService(repo Repository, clock Clock, log *zap.Logger) *TrendingService {
	if clock == nil {
		clock = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &TrendingService{repo: repo, clock: clock, log: log}
}

// Refresh recomputes the score of postID and stores it on the post.
func (t *TrendingService) Refresh(ctx context.Context, postID uint) (int, error) {
	const op = "refresh trending"
	in, err := t.repo.TrendingInputFor(ctx, postID)
	if err != nil {
		return 0, wrapOp(op, err)
	}
	score := TrendingScore(in, t.clock())
	if err := t.repo.SaveTrendingScore(ctx, postID, score); err != nil {
		return 0, wrapOp(op, err)
	}
	return score, nil
}

// RefreshQuietly is Refresh for hot paths where a stale score is acceptable.
func (t *TrendingService) RefreshQuietly(ctx context.Context, postID uint) {
	if _, err := t.Refresh(ctx, postID); err != nil {
		t.log.Warn("trending refresh failed", zap.Uint("post_id", postID), zap.Error(err))
	}
}

// List returns published posts inside timeFrame ordered by cached score.
func (t *TrendingService) List(ctx context.Context, limit int, timeFrame string) ([]models.Post, error) {
	if limit <= 0 {
		return nil, invalid("trending posts", "limit must be positive")
	}
	posts, err := t.repo.TrendingPosts(ctx, TimeFrameStart(timeFrame, t.clock()), limit)
	if err != nil {
		return nil, wrapOp("trending posts", err)
	}
	if posts == nil {
		posts = []models.Post{}
	}
	return posts, nil
}
