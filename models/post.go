package models

import "time"

const (
	PostStatusDraft     = "draft"
	PostStatusPublished = "published"
	PostStatusArchived  = "archived"
)

// PostCategories lists the accepted category values.
var PostCategories = []string{"technology", "lifestyle", "travel", "food", "health", "business", "entertainment", "other"}

// Post represents a blog post written by a user.
type Post struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	UserID        uint       `gorm:"index;not null" json:"user_id"`
	Title         string     `gorm:"size:100;not null" json:"title"`
	Content       string     `gorm:"type:text;not null" json:"content"`
	Excerpt       string     `gorm:"size:200" json:"excerpt"`
	Category      string     `gorm:"size:32;default:'other'" json:"category"`
	Status        string     `gorm:"size:16;not null;default:'draft';index" json:"status"`
	ViewCount     int64      `gorm:"not null;default:0" json:"view_count"`
	CommentCount  int        `gorm:"not null;default:0" json:"comment_count"`
	LikeCount     int        `gorm:"-" json:"like_count"`
	TrendingScore int        `gorm:"not null;default:0;index" json:"trending_score"`
	PublishedAt   *time.Time `gorm:"index" json:"published_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	User          User       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"author"`
	Comments      []Comment  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"comments,omitempty"`
	Likes         []PostLike `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
}

// PostLike records that a user liked a post.
type PostLike struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	PostID    uint      `gorm:"not null;index:idx_post_like,unique" json:"post_id"`
	UserID    uint      `gorm:"not null;index:idx_post_like,unique;index" json:"user_id"`
	CreatedAt time.Time `json:"liked_at"`
}

// SavedPost is a user's bookmark on a post.
type SavedPost struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	UserID    uint      `gorm:"not null;index:idx_saved_post,unique" json:"user_id"`
	PostID    uint      `gorm:"not null;index:idx_saved_post,unique" json:"post_id"`
	CreatedAt time.Time `json:"saved_at"`
}
