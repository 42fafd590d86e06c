package models

import "time"

// UserBadge is an achievement granted to a user. Rows are written once and
// never updated or removed.
type UserBadge struct {
	ID          uint      `gorm:"primaryKey" json:"-"`
	UserID      uint      `gorm:"not null;index:idx_user_badge,unique" json:"user_id"`
	BadgeID     string    `gorm:"size:32;not null;index:idx_user_badge,unique" json:"badge_id"`
	Name        string    `gorm:"size:64;not null" json:"name"`
	Description string    `gorm:"size:255" json:"description"`
	Icon        string    `gorm:"size:16" json:"icon"`
	EarnedAt    time.Time `gorm:"not null" json:"earned_at"`
}
