package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/blogstreak/middleware"
	"github.com/cppla/blogstreak/models"
	"github.com/cppla/blogstreak/services"
	"github.com/cppla/blogstreak/utils"
)

// loadPost answers 404 when the :id post does not exist.
func (p *PostController) loadPost(ctx *gin.Context) (*models.Post, bool) {
	postID, ok := pathID(ctx, "id")
	if !ok {
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
	return &post, true
}

// ToggleLike likes the post, or removes the caller's like when present.
// A new like counts for the liker and, when someone else wrote the post,
// for the author as well. Unliking records nothing.
func (p *PostController) ToggleLike(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	post, ok := p.loadPost(ctx)
	if !ok {
		return
	}

	var liked bool
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("post_id = ? AND user_id = ?", post.ID, userID).Delete(&models.PostLike{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}
		res = tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.PostLike{PostID: post.ID, UserID: userID})
		liked = res.RowsAffected > 0
		return res.Error
	})
	if err != nil {
		_ = ctx.Error(err)
		utils.Error(ctx, http.StatusInternalServerError, 50030, "failed to update like")
		return
	}

	if liked {
		p.record(ctx, userID, services.ActivityLikes)
		if post.UserID != userID {
			p.record(ctx, post.UserID, services.ActivityLikes)
		}
	}
	p.trending.RefreshQuietly(ctx, post.ID)
	p.invalidatePost(post.ID)

	var count int64
	p.db.WithContext(ctx).Model(&models.PostLike{}).Where("post_id = ?", post.ID).Count(&count)
	utils.Success(ctx, gin.H{"like_count": count, "is_liked": liked})
}

// SavePost bookmarks a post for the caller.
func (p *PostController) SavePost(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	post, ok := p.loadPost(ctx)
	if !ok {
		return
	}
	res := p.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.SavedPost{UserID: userID, PostID: post.ID})
	if res.Error != nil {
		_ = ctx.Error(res.Error)
		utils.Error(ctx, http.StatusInternalServerError, 50031, "failed to save post")
		return
	}
	if res.RowsAffected == 0 {
		utils.Error(ctx, http.StatusBadRequest, 40031, "post already saved")
		return
	}
	utils.Success(ctx, gin.H{"is_saved": true})
}

// UnsavePost removes the caller's bookmark.
func (p *PostController) UnsavePost(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	postID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	res := p.db.WithContext(ctx).Where("post_id = ? AND user_id = ?", postID, userID).Delete(&models.SavedPost{})
	if res.Error != nil {
		_ = ctx.Error(res.Error)
		utils.Error(ctx, http.StatusInternalServerError, 50032, "failed to unsave post")
		return
	}
	if res.RowsAffected == 0 {
		utils.Error(ctx, http.StatusBadRequest, 40032, "post not saved")
		return
	}
	utils.Success(ctx, gin.H{"is_saved": false})
}

// ListLikedPosts returns published posts the caller liked, latest like first.
func (p *PostController) ListLikedPosts(ctx *gin.Context) {
	p.listJoined(ctx, "post_likes")
}

// ListSavedPosts returns published posts the caller bookmarked, latest first.
func (p *PostController) ListSavedPosts(ctx *gin.Context) {
	p.listJoined(ctx, "saved_posts")
}

func (p *PostController) listJoined(ctx *gin.Context, table string) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))
	query := p.db.WithContext(ctx).Model(&models.Post{}).
		Joins("JOIN "+table+" ON "+table+".post_id = posts.id AND "+table+".user_id = ?", userID).
		Where("posts.status = ?", models.PostStatusPublished)
	payload, ok := p.paginate(ctx, query, table+".created_at DESC, posts.id DESC", page, pageSize)
	if !ok {
		return
	}
	utils.Success(ctx, payload)
}

// CreateComment adds a comment and counts it towards the commenter's streak.
func (p *PostController) CreateComment(ctx *gin.Context) {
	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40040, "invalid request payload")
		return
	}
	content := utils.Sanitize(strings.TrimSpace(req.Content))
	if content == "" {
		utils.Error(ctx, http.StatusBadRequest, 40041, "comment cannot be empty")
		return
	}
	if len([]rune(content)) > models.MaxCommentRunes {
		utils.Error(ctx, http.StatusBadRequest, 40042, fmt.Sprintf("comment cannot exceed %d characters", models.MaxCommentRunes))
		return
	}
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	post, ok := p.loadPost(ctx)
	if !ok {
		return
	}

	comment := models.Comment{PostID: post.ID, UserID: userID, Content: content}
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&comment).Error; err != nil {
			return err
		}
		return tx.Model(&models.Post{}).Where("id = ?", post.ID).
			UpdateColumn("comment_count", gorm.Expr("comment_count + 1")).Error
	})
	if err != nil {
		_ = ctx.Error(err)
		utils.Error(ctx, http.StatusInternalServerError, 50040, "failed to create comment")
		return
	}

	snapshot := p.record(ctx, userID, services.ActivityComments)
	p.trending.RefreshQuietly(ctx, post.ID)
	p.invalidatePost(post.ID)

	if err := p.db.WithContext(ctx).Preload("User").First(&comment, comment.ID).Error; err != nil {
		p.log.Warn("reload comment failed", zap.Uint("comment_id", comment.ID), zap.Error(err))
	}
	utils.Success(ctx, gin.H{"comment": comment, "streak": snapshot})
}

// ListComments returns a post's comments, oldest first.
func (p *PostController) ListComments(ctx *gin.Context) {
	postID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))

	var total int64
	if err := p.db.WithContext(ctx).Model(&models.Comment{}).Where("post_id = ?", postID).Count(&total).Error; err != nil {
		_ = ctx.Error(err)
		utils.Error(ctx, http.StatusInternalServerError, 50041, "failed to count comments")
		return
	}
	comments := []models.Comment{}
	if err := p.db.WithContext(ctx).Preload("User").Where("post_id = ?", postID).
		Order("created_at ASC, id ASC").Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&comments).Error; err != nil {
		_ = ctx.Error(err)
		utils.Error(ctx, http.StatusInternalServerError, 50042, "failed to list comments")
		return
	}
	utils.Success(ctx, gin.H{"items": comments, "pagination": pagination(page, pageSize, total)})
}

// DeleteComment removes a comment. Its author or an admin may do so.
func (p *PostController) DeleteComment(ctx *gin.Context) {
	commentID, ok := pathID(ctx, "commentId")
	if !ok {
		return
	}
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	var comment models.Comment
	if err := p.db.WithContext(ctx).First(&comment, commentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40402, "comment not found")
			return
		}
		_ = ctx.Error(err)
		utils.Error(ctx, http.StatusInternalServerError, 50043, "failed to load comment")
		return
	}
	if comment.UserID != userID && !middleware.IsAdmin(ctx) {
		utils.Error(ctx, http.StatusForbidden, 40340, "not the author of this comment")
		return
	}

	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.Comment{}, comment.ID).Error; err != nil {
			return err
		}
		return tx.Model(&models.Post{}).Where("id = ?", comment.PostID).
			UpdateColumn("comment_count", gorm.Expr("CASE WHEN comment_count > 0 THEN comment_count - 1 ELSE 0 END")).Error
	})
	if err != nil {
		_ = ctx.Error(err)
		utils.Error(ctx, http.StatusInternalServerError, 50044, "failed to delete comment")
		return
	}
	p.trending.RefreshQuietly(ctx, comment.PostID)
	p.invalidatePost(comment.PostID)
	utils.Success(ctx, gin.H{"deleted": true})
}
