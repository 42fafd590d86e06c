package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cppla/blogstreak/config"
	"github.com/cppla/blogstreak/models"
	"github.com/cppla/blogstreak/services"
	"github.com/cppla/blogstreak/utils"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "blogstreak-routes")
	if err != nil {
		panic(err)
	}
	os.Setenv("JWT_SECRET", "test-secret")
	os.Setenv("CACHE_ENABLED", "false")
	os.Setenv("GIN_MODE", "test")
	os.Setenv("GIN_PATH", filepath.Join(dir, "gin.log"))
	os.Setenv("RATE_LIMIT_PER_MINUTE", "6000")
	os.Setenv("ADMIN_USERNAMES", "root")
	config.Load()
	utils.UseRedis(nil)

	code := m.Run()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type harness struct {
	t      *testing.T
	db     *gorm.DB
	server http.Handler
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.All()...))

	clock, err := services.ClockIn("UTC")
	require.NoError(t, err)
	repo := services.NewGormRepository(db)
	streaks := services.NewStreakService(repo, services.WithClock(clock))
	trending := services.NewTrendingService(repo, clock, nil)
	scheduler := utils.NewScheduler(nil, nil)
	return &harness{t: t, db: db, server: SetupRouter(db, streaks, trending, scheduler)}
}

func (h *harness) do(method, path, token string, body interface{}) (int, envelope) {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.server.ServeHTTP(w, req)

	var env envelope
	require.NoError(h.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

// user creates an account directly and returns it with a signed token.
func (h *harness) user(name string) (models.User, string) {
	h.t.Helper()
	u := models.User{Username: name}
	require.NoError(h.t, h.db.Create(&u).Error)
	token, err := utils.GenerateToken(u.ID, u.Username, u.Role, 0)
	require.NoError(h.t, err)
	return u, token
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func (h *harness) createPost(token, status string) uint {
	h.t.Helper()
	code, env := h.do(http.MethodPost, "/api/v1/posts", token, map[string]string{
		"title":    "Keeping the streak alive",
		"content":  "<p>Writing a little every single day.</p>",
		"category": "lifestyle",
		"status":   status,
	})
	require.Equal(h.t, http.StatusOK, code, env.Message)
	out := decode[struct {
		Post models.Post `json:"post"`
	}](h.t, env.Data)
	return out.Post.ID
}

func TestRegisterLoginLogout(t *testing.T) {
	h := newHarness(t)

	code, env := h.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{"username": "ada", "password": "short"})
	require.Equal(t, http.StatusBadRequest, code)

	code, env = h.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{"username": "ada", "password": "lovelace"})
	require.Equal(t, http.StatusOK, code, env.Message)

	code, _ = h.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": "ada", "password": "wrong-one"})
	require.Equal(t, http.StatusUnauthorized, code)

	code, env = h.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": "ada", "password": "lovelace"})
	require.Equal(t, http.StatusOK, code)
	token := decode[struct {
		Token string `json:"token"`
	}](t, env.Data).Token
	require.NotEmpty(t, token)

	code, _ = h.do(http.MethodGet, "/api/v1/auth/me", token, nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = h.do(http.MethodPost, "/api/v1/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = h.do(http.MethodGet, "/api/v1/auth/me", token, nil)
	require.Equal(t, http.StatusUnauthorized, code)
}

func TestCreatePostRecordsContributionAndBadge(t *testing.T) {
	h := newHarness(t)
	author, token := h.user("author")

	code, env := h.do(http.MethodPost, "/api/v1/posts", token, map[string]string{"title": "hey", "content": "too short"})
	require.Equal(t, http.StatusBadRequest, code, env.Message)

	code, env = h.do(http.MethodPost, "/api/v1/posts", token, map[string]string{
		"title":   "A draft still counts",
		"content": "Drafts are contributions too, as long as they are long enough.",
	})
	require.Equal(t, http.StatusOK, code, env.Message)
	created := decode[struct {
		Post      models.Post             `json:"post"`
		Streak    services.StreakSnapshot `json:"streak"`
		NewBadges []models.UserBadge      `json:"new_badges"`
	}](t, env.Data)
	require.Equal(t, models.PostStatusDraft, created.Post.Status)
	require.Nil(t, created.Post.PublishedAt)
	require.Equal(t, 1, created.Streak.CurrentStreak)
	require.Equal(t, 1, created.Streak.TotalPosts)
	require.Len(t, created.NewBadges, 1)
	require.Equal(t, "first-post", created.NewBadges[0].BadgeID)

	code, env = h.do(http.MethodGet, fmt.Sprintf("/api/v1/streak/user/%d?days=7", author.ID), token, nil)
	require.Equal(t, http.StatusOK, code)
	data := decode[services.StreakData](t, env.Data)
	require.Len(t, data.CalendarData, 8)
	require.Equal(t, 1, data.CalendarData[7].Posts)
	require.Equal(t, 1, data.CurrentStreak)
	require.Equal(t, int64(0), data.PublishedPosts)

	// drafts are hidden from other readers
	_, other := h.user("reader")
	code, _ = h.do(http.MethodGet, fmt.Sprintf("/api/v1/posts/%d", created.Post.ID), other, nil)
	require.Equal(t, http.StatusNotFound, code)
	code, _ = h.do(http.MethodGet, fmt.Sprintf("/api/v1/posts/%d", created.Post.ID), token, nil)
	require.Equal(t, http.StatusOK, code)
}

func TestToggleLikeCreditsLikerAndAuthor(t *testing.T) {
	h := newHarness(t)
	author, authorToken := h.user("author")
	fan, fanToken := h.user("fan")
	postID := h.createPost(authorToken, models.PostStatusPublished)

	code, env := h.do(http.MethodPut, fmt.Sprintf("/api/v1/posts/%d/like", postID), fanToken, nil)
	require.Equal(t, http.StatusOK, code, env.Message)
	liked := decode[struct {
		LikeCount int64 `json:"like_count"`
		IsLiked   bool  `json:"is_liked"`
	}](t, env.Data)
	require.True(t, liked.IsLiked)
	require.EqualValues(t, 1, liked.LikeCount)

	var ledger []models.DailyContribution
	require.NoError(t, h.db.Where("user_id IN ?", []uint{author.ID, fan.ID}).Order("user_id").Find(&ledger).Error)
	require.Len(t, ledger, 2)
	require.Equal(t, 1, ledger[0].Likes)
	require.Equal(t, 1, ledger[1].Likes)

	// unliking records nothing
	code, env = h.do(http.MethodPut, fmt.Sprintf("/api/v1/posts/%d/like", postID), fanToken, nil)
	require.Equal(t, http.StatusOK, code)
	unliked := decode[struct {
		LikeCount int64 `json:"like_count"`
		IsLiked   bool  `json:"is_liked"`
	}](t, env.Data)
	require.False(t, unliked.IsLiked)
	require.Zero(t, unliked.LikeCount)
	var fanRow models.DailyContribution
	require.NoError(t, h.db.Where("user_id = ?", fan.ID).First(&fanRow).Error)
	require.Equal(t, 1, fanRow.Likes)

	// liking your own post credits you once
	code, _ = h.do(http.MethodPut, fmt.Sprintf("/api/v1/posts/%d/like", postID), authorToken, nil)
	require.Equal(t, http.StatusOK, code)
	var authorRow models.DailyContribution
	require.NoError(t, h.db.Where("user_id = ?", author.ID).First(&authorRow).Error)
	require.Equal(t, 2, authorRow.Likes)
}

func TestSaveTwiceIsRejected(t *testing.T) {
	h := newHarness(t)
	_, token := h.user("writer")
	postID := h.createPost(token, models.PostStatusPublished)

	path := fmt.Sprintf("/api/v1/posts/%d/save", postID)
	code, _ := h.do(http.MethodPost, path, token, nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = h.do(http.MethodPost, path, token, nil)
	require.Equal(t, http.StatusBadRequest, code)

	code, env := h.do(http.MethodGet, "/api/v1/posts/saved", token, nil)
	require.Equal(t, http.StatusOK, code)
	saved := decode[struct {
		Items []models.Post `json:"items"`
	}](t, env.Data)
	require.Len(t, saved.Items, 1)

	code, _ = h.do(http.MethodDelete, path, token, nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = h.do(http.MethodDelete, path, token, nil)
	require.Equal(t, http.StatusBadRequest, code)
}

func TestCommentLifecycle(t *testing.T) {
	h := newHarness(t)
	_, authorToken := h.user("author")
	commenter, commenterToken := h.user("commenter")
	postID := h.createPost(authorToken, models.PostStatusPublished)

	code, env := h.do(http.MethodPost, fmt.Sprintf("/api/v1/posts/%d/comments", postID), commenterToken, map[string]string{"content": "Nice one"})
	require.Equal(t, http.StatusOK, code, env.Message)
	created := decode[struct {
		Comment models.Comment `json:"comment"`
	}](t, env.Data)

	var row models.DailyContribution
	require.NoError(t, h.db.Where("user_id = ?", commenter.ID).First(&row).Error)
	require.Equal(t, 1, row.Comments)

	var post models.Post
	require.NoError(t, h.db.First(&post, postID).Error)
	require.Equal(t, 1, post.CommentCount)

	code, _ = h.do(http.MethodDelete, fmt.Sprintf("/api/v1/comments/%d", created.Comment.ID), authorToken, nil)
	require.Equal(t, http.StatusForbidden, code)
	code, _ = h.do(http.MethodDelete, fmt.Sprintf("/api/v1/comments/%d", created.Comment.ID), commenterToken, nil)
	require.Equal(t, http.StatusOK, code)

	require.NoError(t, h.db.First(&post, postID).Error)
	require.Zero(t, post.CommentCount)
}

func TestDeletePostDecrementsAuthorLedger(t *testing.T) {
	h := newHarness(t)
	author, token := h.user("author")
	_, intruder := h.user("intruder")
	postID := h.createPost(token, models.PostStatusPublished)

	code, _ := h.do(http.MethodDelete, fmt.Sprintf("/api/v1/posts/%d", postID), intruder, nil)
	require.Equal(t, http.StatusForbidden, code)

	code, env := h.do(http.MethodDelete, fmt.Sprintf("/api/v1/posts/%d", postID), token, nil)
	require.Equal(t, http.StatusOK, code, env.Message)

	var u models.User
	require.NoError(t, h.db.First(&u, author.ID).Error)
	require.Zero(t, u.TotalPosts)
	var row models.DailyContribution
	require.NoError(t, h.db.Where("user_id = ?", author.ID).First(&row).Error)
	require.Zero(t, row.Posts)

	code, _ = h.do(http.MethodGet, fmt.Sprintf("/api/v1/posts/%d", postID), "", nil)
	require.Equal(t, http.StatusNotFound, code)
}

func TestStreakEndpointsValidateInput(t *testing.T) {
	h := newHarness(t)
	u, token := h.user("someone")
	_, other := h.user("other")

	code, _ := h.do(http.MethodGet, "/api/v1/streak/user/abc", token, nil)
	require.Equal(t, http.StatusBadRequest, code)
	code, _ = h.do(http.MethodGet, "/api/v1/streak/user/999999", token, nil)
	require.Equal(t, http.StatusNotFound, code)
	code, _ = h.do(http.MethodGet, fmt.Sprintf("/api/v1/streak/calendar/%d?days=0", u.ID), token, nil)
	require.Equal(t, http.StatusBadRequest, code)
	code, _ = h.do(http.MethodGet, fmt.Sprintf("/api/v1/streak/user/%d", u.ID), "", nil)
	require.Equal(t, http.StatusUnauthorized, code)

	path := fmt.Sprintf("/api/v1/streak/update/%d", u.ID)
	code, _ = h.do(http.MethodPost, path, token, map[string]string{"activityType": "shares"})
	require.Equal(t, http.StatusBadRequest, code)
	code, _ = h.do(http.MethodPost, path, other, map[string]string{"activityType": "likes"})
	require.Equal(t, http.StatusForbidden, code)
	code, env := h.do(http.MethodPost, path, token, map[string]string{"activityType": "comments"})
	require.Equal(t, http.StatusOK, code, env.Message)

	code, env = h.do(http.MethodGet, "/api/v1/streak/leaderboard?limit=5", "", nil)
	require.Equal(t, http.StatusOK, code)
	board := decode[[]services.LeaderboardEntry](t, env.Data)
	require.Len(t, board, 1)
	require.Equal(t, u.ID, board[0].UserID)

	code, _ = h.do(http.MethodGet, "/api/v1/streak/leaderboard?limit=0", "", nil)
	require.Equal(t, http.StatusBadRequest, code)
}

func TestAdminOnlyEndpoints(t *testing.T) {
	h := newHarness(t)
	_, userToken := h.user("plain")
	_, adminToken := h.user("root")

	code, _ := h.do(http.MethodPost, "/api/v1/streak/reset-inactive", userToken, nil)
	require.Equal(t, http.StatusForbidden, code)

	code, env := h.do(http.MethodPost, "/api/v1/streak/reset-inactive", adminToken, nil)
	require.Equal(t, http.StatusOK, code, env.Message)
	out := decode[struct {
		Reset int `json:"reset"`
	}](t, env.Data)
	require.Zero(t, out.Reset)

	code, env = h.do(http.MethodGet, "/api/v1/streak/jobs", adminToken, nil)
	require.Equal(t, http.StatusOK, code)
	require.JSONEq(t, "[]", string(env.Data))

	code, _ = h.do(http.MethodPost, "/api/v1/streak/jobs/streak-reset/run", adminToken, nil)
	require.Equal(t, http.StatusNotFound, code)
}

func TestStatsAndHealth(t *testing.T) {
	h := newHarness(t)
	_, token := h.user("writer")
	h.createPost(token, models.PostStatusPublished)

	code, env := h.do(http.MethodGet, "/api/v1/stats", "", nil)
	require.Equal(t, http.StatusOK, code)
	stats := decode[map[string]interface{}](t, env.Data)
	require.EqualValues(t, 1, stats["post_count"])
	require.EqualValues(t, 1, stats["active_today_count"])

	code, env = h.do(http.MethodGet, "/api/v1/streak/stats", "", nil)
	require.Equal(t, http.StatusOK, code)
	global := decode[services.StreakStats](t, env.Data)
	require.EqualValues(t, 1, global.TotalUsers)
	require.Equal(t, 1, global.MaxCurrentStreak)

	code, _ = h.do(http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = h.do(http.MethodGet, "/nowhere", "", nil)
	require.Equal(t, http.StatusNotFound, code)
}
