package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents a blog author. Passwords are stored as bcrypt hashes only.
type User struct {
	ID            uint                `gorm:"primaryKey" json:"id"`
	Username      string              `gorm:"size:64;not null;uniqueIndex" json:"username"`
	Email         string              `gorm:"size:255" json:"email"`
	PasswordHash  string              `gorm:"size:255" json:"-"`
	Role          string              `gorm:"size:16;not null;default:'user'" json:"role"`
	AvatarURL     string              `gorm:"size:512" json:"avatar_url"`
	Bio           string              `gorm:"size:200" json:"bio"`
	CurrentStreak int                 `gorm:"not null;default:0;index" json:"current_streak"`
	LongestStreak int                 `gorm:"not null;default:0" json:"longest_streak"`
	TotalPosts    int                 `gorm:"not null;default:0" json:"total_posts"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
	DeletedAt     gorm.DeletedAt      `gorm:"index" json:"-"`
	Badges        []UserBadge         `json:"badges,omitempty"`
	Contributions []DailyContribution `json:"-"`
	Comments      []Comment           `json:"-"`
	Posts         []Post              `json:"-"`
}

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// BeforeCreate hook ensures timestamps and role are set even when not provided.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	u.UpdatedAt = now
	return nil
}

// BeforeUpdate ensures the UpdatedAt timestamp is refreshed.
func (u *User) BeforeUpdate(tx *gorm.DB) error {
	u.UpdatedAt = time.Now()
	return nil
}
