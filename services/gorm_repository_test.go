package services

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cppla/blogstreak/models"
)

func mockRepo(t *testing.T) (Repository, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return openMock(t, mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true})), mock
}

func mockPostgresRepo(t *testing.T) (Repository, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return openMock(t, postgres.New(postgres.Config{Conn: sqlDB})), mock
}

func openMock(t *testing.T, dialector gorm.Dialector) Repository {
	t.Helper()
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	return NewGormRepository(db)
}

func TestGormRepositoryWrapsDriverErrors(t *testing.T) {
	repo, mock := mockRepo(t)
	mock.ExpectQuery("SELECT \\* FROM `users`").WillReturnError(errors.New("connection reset"))

	_, err := repo.FindUser(context.Background(), 1)
	require.ErrorIs(t, err, ErrPersistence)
	require.NotErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormRepositoryMapsMissingRows(t *testing.T) {
	repo, mock := mockRepo(t)
	mock.ExpectQuery("SELECT \\* FROM `users`").WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.FindUser(context.Background(), 1)
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormRepositoryUpsertStatement(t *testing.T) {
	repo, mock := mockRepo(t)
	mock.ExpectExec("INSERT INTO `daily_contributions` .* ON DUPLICATE KEY UPDATE `likes`=`daily_contributions`.`likes` \\+ 1").
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.IncrementContribution(context.Background(), 7, "2024-01-10", ActivityLikes))
	require.NoError(t, mock.ExpectationsWereMet())
}

// Inside ON CONFLICT DO UPDATE postgres rejects a bare column name as
// ambiguous with EXCLUDED, so the increment must name the table.
func TestGormRepositoryPostgresUpsertQualifiesColumn(t *testing.T) {
	repo, mock := mockPostgresRepo(t)
	mock.ExpectQuery(`INSERT INTO "daily_contributions" .* ON CONFLICT \("user_id","day"\) DO UPDATE SET "likes"="daily_contributions"."likes" \+ 1`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	require.NoError(t, repo.IncrementContribution(context.Background(), 7, "2024-01-10", ActivityLikes))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormRepositoryDecrementIsGuarded(t *testing.T) {
	repo, mock := mockRepo(t)
	mock.ExpectExec("UPDATE `daily_contributions` SET `comments`=comments - 1 WHERE user_id = \\? AND day = \\? AND comments > 0").
		WillReturnResult(sqlmock.NewResult(0, 0))

	applied, err := repo.DecrementContribution(context.Background(), 7, "2024-01-10", ActivityComments)
	require.NoError(t, err)
	require.False(t, applied)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormRepositoryRejectsUnknownColumn(t *testing.T) {
	repo, mock := mockRepo(t)
	err := repo.IncrementContribution(context.Background(), 1, "2024-01-10", Activity("posts; DROP TABLE users"))
	require.ErrorIs(t, err, ErrValidation)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	repo := NewGormRepository(db)
	u := createUser(t, db, "ledger")

	require.NoError(t, repo.IncrementContribution(ctx, u.ID, "2024-01-02", ActivityPosts))
	require.NoError(t, repo.IncrementContribution(ctx, u.ID, "2024-01-01", ActivityLikes))
	require.NoError(t, repo.IncrementContribution(ctx, u.ID, "2024-01-02", ActivityPosts))

	ledger, err := repo.Ledger(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, ledger, 2)
	require.Equal(t, "2024-01-01", ledger[0].Day)
	require.Equal(t, 2, ledger[1].Posts)

	var count int64
	require.NoError(t, db.Model(&models.DailyContribution{}).Where("user_id = ?", u.ID).Count(&count).Error)
	require.Equal(t, int64(2), count)

	missing, err := repo.ContributionOn(ctx, u.ID, "2023-12-31")
	require.NoError(t, err)
	require.Nil(t, missing)

	granted, err := repo.GrantBadge(ctx, &models.UserBadge{UserID: u.ID, BadgeID: "first-post", Name: "First Post", EarnedAt: at("2024-01-02")})
	require.NoError(t, err)
	require.True(t, granted)
	granted, err = repo.GrantBadge(ctx, &models.UserBadge{UserID: u.ID, BadgeID: "first-post", Name: "First Post", EarnedAt: at("2024-01-03")})
	require.NoError(t, err)
	require.False(t, granted)
}
