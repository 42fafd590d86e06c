package models

import "time"

// DayLayout is the civil-date layout used for ledger keys.
const DayLayout = "2006-01-02"

// DailyContribution is one row of a user's contribution ledger.
// Day holds the civil date (YYYY-MM-DD) in the processing time zone; the
// (user_id, day) pair is unique so every date appears at most once.
type DailyContribution struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	UserID    uint      `gorm:"not null;index:idx_contrib_user_day,unique" json:"user_id"`
	Day       string    `gorm:"size:10;not null;index:idx_contrib_user_day,unique" json:"date"`
	Posts     int       `gorm:"not null;default:0" json:"posts"`
	Likes     int       `gorm:"not null;default:0" json:"likes"`
	Comments  int       `gorm:"not null;default:0" json:"comments"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// Total returns the sum of all activity counters for the day.
func (d DailyContribution) Total() int {
	return d.Posts + d.Likes + d.Comments
}

// Active reports whether any counter is non-zero.
func (d DailyContribution) Active() bool {
	return d.Posts > 0 || d.Likes > 0 || d.Comments > 0
}
