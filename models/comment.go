package models

import "time"

// MaxCommentRunes bounds a comment body after sanitising.
const MaxCommentRunes = 1000

// Comment is a reply on a post. Creating one counts as a "comments"
// contribution for its author; listing is oldest first within a post.
type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"not null;index:idx_comment_post_created,priority:1" json:"post_id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `gorm:"index:idx_comment_post_created,priority:2" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	User      User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"author"`
}
