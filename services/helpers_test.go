package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cppla/blogstreak/models"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

func date(s string) time.Time {
	d, err := time.Parse(models.DayLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

// at returns noon UTC of day so tests stay clear of midnight.
func at(day string) time.Time {
	return date(day).Add(12 * time.Hour)
}

func createUser(t *testing.T, db *gorm.DB, name string, mutate ...func(*models.User)) models.User {
	t.Helper()
	u := models.User{Username: name, Email: name + "@example.com"}
	for _, m := range mutate {
		m(&u)
	}
	require.NoError(t, db.Create(&u).Error)
	// zero values are skipped on insert when a column default exists
	require.NoError(t, db.Model(&u).UpdateColumns(map[string]interface{}{
		"current_streak": u.CurrentStreak,
		"longest_streak": u.LongestStreak,
		"total_posts":    u.TotalPosts,
	}).Error)
	return u
}

func seedLedger(t *testing.T, db *gorm.DB, userID uint, rows ...models.DailyContribution) {
	t.Helper()
	for i := range rows {
		rows[i].UserID = userID
		require.NoError(t, db.Create(&rows[i]).Error)
	}
}

func active(day string) models.DailyContribution {
	return models.DailyContribution{Day: day, Posts: 1}
}

func reloadUser(t *testing.T, db *gorm.DB, id uint) models.User {
	t.Helper()
	var u models.User
	require.NoError(t, db.First(&u, id).Error)
	return u
}
