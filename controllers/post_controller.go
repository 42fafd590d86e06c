package controllers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/blogstreak/models"
	"github.com/cppla/blogstreak/services"
	"github.com/cppla/blogstreak/utils"
)

const (
	cacheKeyPostList = "cache:posts:list:"
	trendingCacheTTL = 5 * time.Minute
)

// PostController manages posts, likes, bookmarks and comments. Every write
// that counts as a contribution is forwarded to the streak service.
type PostController struct {
	db       *gorm.DB
	streaks  *services.StreakService
	trending *services.TrendingService
	log      *zap.Logger
}

// NewPostController creates a new PostController instance.
func NewPostController(db *gorm.DB, streaks *services.StreakService, trending *services.TrendingService) *PostController {
	return &PostController{db: db, streaks: streaks, trending: trending, log: utils.Named("posts")}
}

type postInput struct {
	Title    *string `json:"title"`
	Content  *string `json:"content"`
	Excerpt  *string `json:"excerpt"`
	Category *string `json:"category"`
	Status   *string `json:"status"`
}

// apply validates the input and copies it onto post. Missing fields keep
// their current value, so the same rules serve create and update.
func (in postInput) apply(post *models.Post) string {
	if in.Title != nil {
		post.Title = utils.StripTags(*in.Title)
	}
	if n := utf8.RuneCountInString(post.Title); n < 5 || n > 100 {
		return "title must be between 5 and 100 characters"
	}
	if in.Content != nil {
		post.Content = utils.Sanitize(strings.TrimSpace(*in.Content))
	}
	if utf8.RuneCountInString(post.Content) < 10 {
		return "content must be at least 10 characters"
	}
	if in.Excerpt != nil {
		post.Excerpt = utils.StripTags(*in.Excerpt)
	}
	if utf8.RuneCountInString(post.Excerpt) > 200 {
		return "excerpt cannot exceed 200 characters"
	}
	if post.Excerpt == "" {
		post.Excerpt = utils.Excerpt(post.Content, 200)
	}
	if in.Category != nil {
		post.Category = strings.ToLower(strings.TrimSpace(*in.Category))
	}
	if post.Category == "" {
		post.Category = "other"
	}
	if !contains(models.PostCategories, post.Category) {
		return "invalid category"
	}
	if in.Status != nil {
		post.Status = strings.ToLower(strings.TrimSpace(*in.Status))
	}
	if post.Status == "" {
		post.Status = models.PostStatusDraft
	}
	if !contains([]string{models.PostStatusDraft, models.PostStatusPublished, models.PostStatusArchived}, post.Status) {
		return "invalid status"
	}
	if post.Status == models.PostStatusPublished && post.PublishedAt == nil {
		now := time.Now()
		post.PublishedAt = &now
	}
	return ""
}

// CreatePost stores a new post and counts it towards the author's streak,
// whatever its status.
func (p *PostController) CreatePost(ctx *gin.Context) {
	var req postInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	post := models.Post{UserID: userID}
	if msg := req.apply(&post); msg != "" {
		utils.Error(ctx, http.StatusBadRequest, 40021, msg)
		return
	}
	if err := p.db.WithContext(ctx).Create(&post).Error; err != nil {
		_ = ctx.Error(err)
		utils.Error(ctx, http.StatusInternalServerError, 50020, "failed to create post")
		return
	}

	snapshot := p.record(ctx, userID, services.ActivityPosts)
	badges := p.evaluateBadges(ctx, userID)
	p.trending.RefreshQuietly(ctx, post.ID)
	p.invalidatePostLists()

	_ = p.db.WithContext(ctx).Preload("User").First(&post, post.ID).Error
	utils.Success(ctx, gin.H{"post": post, "streak": snapshot, "new_badges": badges})
}

// UpdatePost lets the author edit a post.
func (p *PostController) UpdatePost(ctx *gin.Context) {
	post, ok := p.ownedPost(ctx)
	if !ok {
		return
	}
	var req postInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}
	if msg := req.apply(post); msg != "" {
		utils.Error(ctx, http.StatusBadRequest, 40021, msg)
		return
	}
	err := p.db.WithContext(ctx).Model(post).Select("title", "content", "excerpt", "category", "status", "published_at").Updates(post).Error
	if err != nil {
		_ = ctx.Error(err)
		utils.Error(ctx, http.StatusInternalServerError, 50024, "failed to update post")
		return
	}

	p.trending.RefreshQuietly(ctx, post.ID)
	p.invalidatePost(post.ID)
	p.invalidatePostLists()
	utils.Success(ctx, gin.H{"post": post})
}

// DeletePost removes a post with its likes, bookmarks and comments, then
// takes the post back out of the author's ledger.
func (p *PostController) DeletePost(ctx *gin.Context) {
	post, ok := p.ownedPost(ctx)
	if !ok {
		return
	}

	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", post.ID).Delete(&models.PostLike{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", post.ID).Delete(&models.SavedPost{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", post.ID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Post{}, post.ID).Error
	})
	if err != nil {
		_ = ctx.Error(err)
		utils.Error(ctx, http.StatusInternalServerError, 50025, "failed to delete post")
		return
	}

	var snapshot *services.StreakSnapshot
	if s, err := p.streaks.DecrementContributionAt(ctx, post.UserID, services.ActivityPosts, post.CreatedAt); err != nil {
		p.log.Warn("streak decrement failed", zap.Uint("user_id", post.UserID), zap.Uint("post_id", post.ID), zap.Error(err))
	} else {
		snapshot = &s
	}
	invalidateStreakCaches(post.UserID)
	p.invalidatePost(post.ID)
	p.invalidatePostLists()
	utils.Success(ctx, gin.H{"deleted": true, "streak": snapshot})
}

// ListPosts returns published posts, newest first, optionally filtered by
// category or a title/content search.
func (p *PostController) ListPosts(ctx *gin.Context) {
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))
	search := strings.TrimSpace(ctx.Query("search"))
	category := strings.TrimSpace(ctx.Query("category"))

	// only unsearched lists are cached to keep the key space bounded
	cacheKey := fmt.Sprintf("%scat=%s:page=%d:size=%d", cacheKeyPostList, category, page, pageSize)
	if search == "" && utils.ServeCached(ctx, cacheKey) {
		return
	}

	query := p.db.WithContext(ctx).Model(&models.Post{}).Where("status = ?", models.PostStatusPublished)
	if search != "" {
		query = query.Where("title LIKE ? OR content LIKE ?", "%"+search+"%", "%"+search+"%")
	}
	if category != "" {
		query = query.Where("category = ?", category)
	}
	payload, ok := p.paginate(ctx, query, "published_at DESC, id DESC", page, pageSize)
	if !ok {
		return
	}
	if search == "" {
		utils.SuccessCached(ctx, cacheKey, payload, 0)
		return
	}
	utils.Success(ctx, payload)
}

// SearchPosts is ListPosts with a mandatory query term.
func (p *PostController) SearchPosts(ctx *gin.Context) {
	q := strings.TrimSpace(ctx.Query("q"))
	if q == "" {
		q = strings.TrimSpace(ctx.Query("search"))
	}
	if q == "" {
		utils.Error(ctx, http.StatusBadRequest, 40026, "search query is required")
		return
	}
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))
	query := p.db.WithContext(ctx).Model(&models.Post{}).
		Where("status = ?", models.PostStatusPublished).
		Where("title LIKE ? OR content LIKE ? OR excerpt LIKE ?", "%"+q+"%", "%"+q+"%", "%"+q+"%")
	if category := strings.TrimSpace(ctx.Query("category")); category != "" {
		query = query.Where("category = ?", category)
	}
	payload, ok := p.paginate(ctx, query, "published_at DESC, id DESC", page, pageSize)
	if !ok {
		return
	}
	utils.Success(ctx, payload)
}

// TrendingPosts lists published posts in a time frame by cached score.
func (p *PostController) TrendingPosts(ctx *gin.Context) {
	limit := 10
	if l, err := strconv.Atoi(ctx.Query("limit")); err == nil && l > 0 && l <= 50 {
		limit = l
	}
	frame := ctx.DefaultQuery("timeFrame", ctx.DefaultQuery("time_frame", "week"))
	cacheKey := fmt.Sprintf("%s%s:%d", utils.CacheKeyTrending, frame, limit)
	if utils.ServeCached(ctx, cacheKey) {
		return
	}

	posts, err := p.trending.List(ctx, limit, frame)
	if err != nil {
		serviceError(ctx, err, "posts not found")
		return
	}
	if err := p.attachLikeCounts(ctx, posts); err != nil {
		p.log.Warn("like counts unavailable", zap.Error(err))
	}
	payload := gin.H{"items": posts, "time_frame": frame}
	utils.WarmCache(cacheKey, payload, trendingCacheTTL)
	utils.Success(ctx, payload)
}

// GetPost returns a single post with comments. Viewer flags are added per
// request on top of the cached body.
func (p *PostController) GetPost(ctx *gin.Context) {
	postID, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	var post models.Post
	cacheKey := p.postCacheKey(postID)
	if !utils.CacheGetJSON(cacheKey, &post) {
		if err := p.db.WithContext(ctx).Preload("User").First(&post, postID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				utils.Error(ctx, http.StatusNotFound, 40401, "post not found")
				return
			}
			_ = ctx.Error(err)
			utils.Error(ctx, http.StatusInternalServerError, 50023, "failed to load post")
			return
		}
		if err := p.db.WithContext(ctx).Preload("User").Where("post_id = ?", post.ID).
			Order("created_at ASC").Find(&post.Comments).Error; err != nil {
			p.log.Warn("failed to load comments", zap.Uint("post_id", post.ID), zap.Error(err))
		}
		posts := []models.Post{post}
		if err := p.attachLikeCounts(ctx, posts); err == nil {
			post = posts[0]
		}
		if post.Status == models.PostStatusPublished {
			utils.CacheSetJSON(cacheKey, post, 0)
		}
	}

	viewerID, authed := getUserID(ctx)
	if post.Status != models.PostStatusPublished && (!authed || viewerID != post.UserID) {
		utils.Error(ctx, http.StatusNotFound, 40401, "post not found")
		return
	}

	isLiked, isSaved := false, false
	if authed {
		var n int64
		p.db.WithContext(ctx).Model(&models.PostLike{}).Where("post_id = ? AND user_id = ?", post.ID, viewerID).Count(&n)
		isLiked = n > 0
		p.db.WithContext(ctx).Model(&models.SavedPost{}).Where("post_id = ? AND user_id = ?", post.ID, viewerID).Count(&n)
		isSaved = n > 0
	}
	utils.Success(ctx, gin.H{"post": post, "is_liked": isLiked, "is_saved": isSaved})
}

// ListUserPosts returns a user's published posts; authors also see their drafts.
func (p *PostController) ListUserPosts(ctx *gin.Context) {
	authorID, ok := pathID(ctx, "userId")
	if !ok {
		return
	}
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))

	query := p.db.WithContext(ctx).Model(&models.Post{}).Where("user_id = ?", authorID)
	if viewerID, authed := getUserID(ctx); !authed || viewerID != authorID {
		query = query.Where("status = ?", models.PostStatusPublished)
	}
	payload, ok := p.paginate(ctx, query, "created_at DESC, id DESC", page, pageSize)
	if !ok {
		return
	}
	utils.Success(ctx, payload)
}

// ListMyPosts returns the caller's posts in every status unless one is requested.
func (p *PostController) ListMyPosts(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))
	query := p.db.WithContext(ctx).Model(&models.Post{}).Where("user_id = ?", userID)
	if status := strings.TrimSpace(ctx.Query("status")); status != "" {
		query = query.Where("status = ?", status)
	}
	payload, ok := p.paginate(ctx, query, "created_at DESC, id DESC", page, pageSize)
	if !ok {
		return
	}
	utils.Success(ctx, payload)
}

func (p *PostController) paginate(ctx *gin.Context, query *gorm.DB, order string, page, pageSize int) (gin.H, bool) {
	query = query.Session(&gorm.Session{})
	var total int64
	if err := query.Count(&total).Error; err != nil {
		_ = ctx.Error(err)
		utils.Error(ctx, http.StatusInternalServerError, 50021, "failed to count posts")
		return nil, false
	}
	posts := []models.Post{}
	if err := query.Preload("User").Order(order).Offset((page - 1) * pageSize).Limit(pageSize).Find(&posts).Error; err != nil {
		_ = ctx.Error(err)
		utils.Error(ctx, http.StatusInternalServerError, 50022, "failed to list posts")
		return nil, false
	}
	if err := p.attachLikeCounts(ctx, posts); err != nil {
		p.log.Warn("like counts unavailable", zap.Error(err))
	}
	return gin.H{"items": posts, "pagination": pagination(page, pageSize, total)}, true
}

func (p *PostController) attachLikeCounts(ctx context.Context, posts []models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	ids := make([]uint, 0, len(posts))
	for _, post := range posts {
		ids = append(ids, post.ID)
	}
	var rows []struct {
		PostID uint
		N      int
	}
	err := p.db.WithContext(ctx).Model(&models.PostLike{}).Select("post_id, COUNT(*) AS n").
		Where("post_id IN ?", utils.Unique(ids)).Group("post_id").Scan(&rows).Error
	if err != nil {
		return err
	}
	counts := make(map[uint]int, len(rows))
	for _, r := range rows {
		counts[r.PostID] = r.N
	}
	for i := range posts {
		posts[i].LikeCount = counts[posts[i].ID]
	}
	return nil
}

// ownedPost loads the :id post and answers 403 unless the caller wrote it.
func (p *PostController) ownedPost(ctx *gin.Context) (*models.Post, bool) {
	postID, ok := pathID(ctx, "id")
	if !ok {
		return nil, false
	}
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return nil, false
	}
	var post models.Post
	if err := p.db.WithContext(ctx).First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40401, "post not found")
			return nil, false
		}
		_ = ctx.Error(err)
		utils.Error(ctx, http.StatusInternalServerError, 50023, "failed to load post")
		return nil, false
	}
	if post.UserID != userID {
		utils.Error(ctx, http.StatusForbidden, 40320, "not the author of this post")
		return nil, false
	}
	return &post, true
}

// record forwards a contribution to the streak service. Failures are logged
// and never fail the request that triggered them.
func (p *PostController) record(ctx context.Context, userID uint, activity services.Activity) *services.StreakSnapshot {
	snapshot, err := p.streaks.RecordContribution(ctx, userID, activity)
	invalidateStreakCaches(userID)
	if err != nil {
		p.log.Warn("streak update failed", zap.Uint("user_id", userID), zap.String("activity", string(activity)), zap.Error(err))
		return nil
	}
	return &snapshot
}

func (p *PostController) evaluateBadges(ctx context.Context, userID uint) []models.UserBadge {
	badges, err := p.streaks.EvaluateBadges(ctx, userID)
	if err != nil {
		p.log.Warn("badge evaluation failed", zap.Uint("user_id", userID), zap.Error(err))
		return []models.UserBadge{}
	}
	return badges
}

func (p *PostController) postCacheKey(postID uint) string {
	return utils.CacheKeyPost + "detail:" + strconv.FormatUint(uint64(postID), 10) + ":"
}

func (p *PostController) invalidatePost(postID uint) {
	utils.InvalidateByPrefix(p.postCacheKey(postID))
	utils.InvalidateByPrefix(utils.CacheKeyTrending)
}

func (p *PostController) invalidatePostLists() {
	utils.InvalidateByPrefix(cacheKeyPostList)
	utils.InvalidateByPrefix(utils.CacheKeyTrending)
	utils.InvalidateByPrefix(utils.CacheKeySiteStats)
}
