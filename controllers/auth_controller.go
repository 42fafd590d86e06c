package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/blogstreak/config"
	"github.com/cppla/blogstreak/middleware"
	"github.com/cppla/blogstreak/models"
	"github.com/cppla/blogstreak/utils"
)

const cacheKeyUserPublic = "cache:user:public:"

// AuthController handles local accounts: registration, login, logout and profiles.
type AuthController struct {
	db *gorm.DB
}

// NewAuthController creates an AuthController.
func NewAuthController(db *gorm.DB) *AuthController {
	return &AuthController{db: db}
}

// Register handles local account registration with bcrypt hashing.
func (a *AuthController) Register(ctx *gin.Context) {
	type request struct {
		Username string `json:"username" binding:"required"`
		Email    string `json:"email"`
		Password string `json:"password" binding:"required"`
		Confirm  string `json:"confirm"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid request payload")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if l := len([]rune(req.Username)); l < 3 || l > 30 {
		utils.Error(ctx, http.StatusBadRequest, 40002, "username must be between 3 and 30 characters")
		return
	}
	if !validUsername(req.Username) {
		utils.Error(ctx, http.StatusBadRequest, 40002, "username may only contain letters, digits, '-' and '_'")
		return
	}
	if req.Confirm != "" && req.Password != req.Confirm {
		utils.Error(ctx, http.StatusBadRequest, 40002, "passwords do not match")
		return
	}

	var existing int64
	if err := a.db.WithContext(ctx).Model(&models.User{}).Where("username = ?", req.Username).Count(&existing).Error; err != nil {
		_ = ctx.Error(err)
		utils.Error(ctx, http.StatusInternalServerError, 50000, "failed to check username")
		return
	}
	if existing > 0 {
		utils.Error(ctx, http.StatusConflict, 40901, "username already exists")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		if errors.Is(err, utils.ErrPasswordTooShort) {
			utils.Error(ctx, http.StatusBadRequest, 40002, err.Error())
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50001, "failed to hash password")
		return
	}

	user := models.User{
		Username:     req.Username,
		Email:        strings.TrimSpace(req.Email),
		PasswordHash: hash,
	}
	if err := a.db.WithContext(ctx).Create(&user).Error; err != nil {
		_ = ctx.Error(err)
		utils.Error(ctx, http.StatusInternalServerError, 50002, "failed to create user")
		return
	}

	token, err := utils.GenerateToken(user.ID, user.Username, user.Role, utils.DefaultTokenTTL)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50003, "failed to generate token")
		return
	}
	utils.Success(ctx, gin.H{"token": token, "user": userResponseWithAdmin(user)})
}

func validUsername(s string) bool {
	for _, r := range s {
		if r == '-' || r == '_' {
			continue
		}
		if (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			continue
		}
		return false
	}
	return true
}

// Login verifies user credentials and issues a JWT.
func (a *AuthController) Login(ctx *gin.Context) {
	type request struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40003, "invalid request payload")
		return
	}

	var user models.User
	if err := a.db.WithContext(ctx).Where("username = ?", strings.TrimSpace(req.Username)).First(&user).Error; err != nil {
		utils.Error(ctx, http.StatusUnauthorized, 40106, "invalid username or password")
		return
	}
	if !utils.CheckPassword(user.PasswordHash, req.Password) {
		utils.Error(ctx, http.StatusUnauthorized, 40106, "invalid username or password")
		return
	}

	token, err := utils.GenerateToken(user.ID, user.Username, user.Role, utils.DefaultTokenTTL)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50004, "failed to generate token")
		return
	}
	utils.Success(ctx, gin.H{"token": token, "user": userResponseWithAdmin(user)})
}

// Logout invalidates the token by blacklisting it until expiration.
func (a *AuthController) Logout(ctx *gin.Context) {
	token := ctx.GetString(middleware.ContextTokenKey)
	claims, err := utils.ParseToken(token)
	if err != nil {
		utils.Error(ctx, http.StatusUnauthorized, 40105, "invalid token")
		return
	}

	expiresAt := time.Now().Add(utils.DefaultTokenTTL)
	if claims.RegisteredClaims.ExpiresAt != nil {
		expiresAt = claims.RegisteredClaims.ExpiresAt.Time
	}
	utils.BlacklistToken(token, expiresAt)
	utils.Success(ctx, gin.H{"message": "logged out"})
}

// Me returns the current authenticated user's information.
func (a *AuthController) Me(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}

	var user models.User
	if err := a.db.WithContext(ctx).Preload("Badges").First(&user, userID).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40410, "user not found")
		return
	}
	utils.Success(ctx, userResponseWithAdmin(user))
}

// UpdateProfile allows the authenticated user to update basic profile fields.
func (a *AuthController) UpdateProfile(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}

	var req struct {
		Email     *string `json:"email"`
		Bio       *string `json:"bio"`
		AvatarURL *string `json:"avatar_url"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40030, "invalid request payload")
		return
	}

	var user models.User
	if err := a.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40410, "user not found")
		return
	}
	if req.Email != nil {
		user.Email = strings.TrimSpace(*req.Email)
	}
	if req.Bio != nil {
		bio := utils.StripTags(*req.Bio)
		if len([]rune(bio)) > 200 {
			utils.Error(ctx, http.StatusBadRequest, 40031, "bio cannot exceed 200 characters")
			return
		}
		user.Bio = bio
	}
	if req.AvatarURL != nil {
		user.AvatarURL = strings.TrimSpace(*req.AvatarURL)
	}

	if err := a.db.WithContext(ctx).Model(&user).Select("email", "bio", "avatar_url").Updates(&user).Error; err != nil {
		_ = ctx.Error(err)
		utils.Error(ctx, http.StatusInternalServerError, 50031, "failed to update profile")
		return
	}
	utils.InvalidateByPrefix(cacheKeyUserPublic + strconv.Itoa(int(user.ID)) + ":")
	utils.InvalidateByPrefix(utils.CacheKeyLeaderboard)
	utils.Success(ctx, userResponseWithAdmin(user))
}

// GetUserPublic returns public user info by ID.
func (a *AuthController) GetUserPublic(ctx *gin.Context) {
	userID, ok := pathID(ctx, "userId")
	if !ok {
		return
	}
	cacheKey := cacheKeyUserPublic + strconv.Itoa(int(userID)) + ":"
	if utils.ServeCached(ctx, cacheKey) {
		return
	}

	var user models.User
	if err := a.db.WithContext(ctx).Preload("Badges").First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40410, "user not found")
			return
		}
		_ = ctx.Error(err)
		utils.Error(ctx, http.StatusInternalServerError, 50050, "failed to get user")
		return
	}
	utils.SuccessCached(ctx, cacheKey, userResponse(user), 0)
}

func userResponse(user models.User) gin.H {
	badges := user.Badges
	if badges == nil {
		badges = []models.UserBadge{}
	}
	return gin.H{
		"id":             user.ID,
		"username":       user.Username,
		"avatar_url":     user.AvatarURL,
		"bio":            user.Bio,
		"current_streak": user.CurrentStreak,
		"longest_streak": user.LongestStreak,
		"total_posts":    user.TotalPosts,
		"badges":         badges,
		"created_at":     user.CreatedAt,
	}
}

// userResponseWithAdmin adds private fields for the account owner.
func userResponseWithAdmin(user models.User) gin.H {
	m := userResponse(user)
	m["email"] = user.Email
	m["role"] = user.Role
	m["is_admin"] = user.Role == models.RoleAdmin || isAdminUsername(user.Username)
	return m
}

func isAdminUsername(username string) bool {
	uname := strings.TrimSpace(username)
	if uname == "" {
		return false
	}
	for _, u := range config.Get().AdminUsernames {
		if strings.EqualFold(strings.TrimSpace(u), uname) {
			return true
		}
	}
	return false
}
